package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Student is one attendee record, one per purchased ticket, owned by an
// order and submitted through it on the per-ticket wizard steps.
type Student struct {
	bun.BaseModel `bun:"table:students"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	OrderID   int64     `bun:"order_id,notnull" json:"order_id"`
	Position  int       `bun:"position,notnull" json:"position"`
	Name      string    `bun:"name" json:"name"`
	Email     string    `bun:"email" json:"email"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func (s *Student) Validate() ValidationErrors {
	errs := NewValidationErrors()
	if strings.TrimSpace(s.Name) == "" {
		errs.Add("name", "can't be blank")
	}
	if strings.TrimSpace(s.Email) == "" {
		errs.Add("email", "can't be blank")
	}
	return errs
}

// Valid reports whether the record passes its own validations.
func (s *Student) Valid() bool {
	return !s.Validate().Any()
}
