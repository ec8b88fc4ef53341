package subject

import (
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/aulaprof/aula/core"
)

type Subject struct {
	ID          string    `json:"id"`
	ProfessorID string    `json:"professor_id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Credits     *int      `json:"credits"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// GenerateCode derives a subject code from its name: the first three letters of each word,
// upper-cased and concatenated. "Advanced Web Systems" -> "ADVWEBSYS". Codes are not unique.
func GenerateCode(name string) string {
	var code strings.Builder
	for _, word := range strings.Fields(name) {
		runes := []rune(word)
		if len(runes) > 3 {
			runes = runes[:3]
		}
		for _, r := range runes {
			code.WriteRune(unicode.ToUpper(r))
		}
	}
	return code.String()
}

// NewSubject contains information needed to create a new Subject.
type NewSubject struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Credits     *int   `json:"credits" validate:"omitempty,min=0,max=60"`
	Description string `json:"description" validate:"max=2000"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

// UpdateSubject defines what information may be provided to modify an existing Subject.
// Empty/nil fields keep their current value.
type UpdateSubject struct {
	Name        string  `json:"name" validate:"max=200"`
	Credits     *int    `json:"credits" validate:"omitempty,min=0,max=60"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (us *UpdateSubject) Validate(orig Subject, validate *validator.Validate) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if us.Credits == nil {
		us.Credits = orig.Credits
	}
	if us.Description != nil {
		desc := core.CleanString(*us.Description)
		us.Description = &desc
	} else {
		us.Description = &orig.Description
	}
	return validate.Struct(us)
}
