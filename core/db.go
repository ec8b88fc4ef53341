package core

import (
	"strings"
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderByClause renders orderings whose field is in allowed, falling back to dflt.
// Unknown fields are dropped so user input never reaches the query text.
func OrderByClause(orderings []DBOrdering, allowed map[string]bool, dflt ...DBOrdering) string {
	parts := make([]string, 0, len(orderings)+len(dflt))
	for _, ord := range orderings {
		if allowed[ord.Field] {
			parts = append(parts, ord.String())
		}
	}
	if len(parts) == 0 {
		for _, ord := range dflt {
			parts = append(parts, ord.String())
		}
	}
	return strings.Join(parts, ", ")
}
