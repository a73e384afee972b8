package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is the entry pass issued for one attendee once their order has
// been paid. The QR payload carries the encrypted ticket data for door
// scanning.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID        string    `bun:"ticket_id,pk" json:"ticket_id"`
	OrderIdentifier string    `bun:"order_identifier,notnull" json:"order_identifier"`
	StudentID       int64     `bun:"student_id,notnull" json:"student_id"`
	StudentName     string    `bun:"student_name" json:"student_name"`
	TicketType      string    `bun:"ticket_type" json:"ticket_type"`
	QRCode          []byte    `bun:"qr_code" json:"qr_code,omitempty"`
	IssuedAt        time.Time `bun:"issued_at,nullzero,notnull,default:current_timestamp" json:"issued_at"`
}
