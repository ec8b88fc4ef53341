package user

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Sessions tracks revoked session tokens (by jti) until they would have expired anyway.
type Sessions struct {
	revoked *expirable.LRU[string, time.Time]
}

// NewSessions keeps at most size revoked tokens, each for ttl (the token lifetime).
func NewSessions(size int, ttl time.Duration) *Sessions {
	return &Sessions{revoked: expirable.NewLRU[string, time.Time](size, nil, ttl)}
}

func (s *Sessions) Revoke(jti string) {
	if jti == "" {
		return
	}
	s.revoked.Add(jti, time.Now().UTC())
}

func (s *Sessions) IsRevoked(jti string) bool {
	return s.revoked.Contains(jti)
}
