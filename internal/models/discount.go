package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DiscountCode is a promo token resolving to a percentage discount.
// Exempt ticket types are defined by the pricing edition, not the code.
type DiscountCode struct {
	bun.BaseModel `bun:"table:discount_codes"`

	ID                 int64     `bun:"id,pk,autoincrement" json:"id"`
	Code               string    `bun:"code,notnull,unique" json:"code"`
	DiscountPercentage float64   `bun:"discount_percentage,notnull" json:"discount_percentage"`
	Active             bool      `bun:"active,notnull" json:"active"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
