package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-registration/internal/models"
	"ms-registration/internal/order"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// GetOrderByIdentifier → fetch one order by its public identifier, with
// its discount code and attendee records loaded.
func (d *DB) GetOrderByIdentifier(ctx context.Context, identifier string) (*models.Order, error) {
	var o models.Order
	err := d.Bun.NewSelect().
		Model(&o).
		Relation("DiscountCode").
		Relation("Students", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("identifier = ?", identifier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder → insert a new order
func (d *DB) CreateOrder(ctx context.Context, o *models.Order) error {
	o.CreatedAt = time.Now()
	_, err := d.Bun.NewInsert().Model(o).Exec(ctx)
	return err
}

// UpdateOrder → update the mutable fields. The identifier is assigned
// once and never rewritten.
func (d *DB) UpdateOrder(ctx context.Context, o *models.Order) error {
	o.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(o).
		Column("cart", "billing_name", "billing_email", "billing_address",
			"billing_postal", "billing_city", "billing_country", "billing_phone",
			"terms_accepted", "confirmed_at", "payment_id", "manually_paid",
			"paid_by_card", "discount_code_id", "updated_at").
		Where("identifier = ?", o.Identifier).
		Exec(ctx)
	return err
}

// IdentifierExists → uniqueness probe for the identifier generator.
func (d *DB) IdentifierExists(ctx context.Context, identifier string) (bool, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("identifier = ?", identifier).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ---------------- STUDENTS ----------------

// UpsertStudent → write the attendee record for one wizard position,
// replacing any earlier submission for the same position.
func (d *DB) UpsertStudent(ctx context.Context, student *models.Student) error {
	var existing models.Student
	err := d.Bun.NewSelect().
		Model(&existing).
		Where("order_id = ? AND position = ?", student.OrderID, student.Position).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		student.CreatedAt = time.Now()
		_, err = d.Bun.NewInsert().Model(student).Exec(ctx)
		return err
	case err != nil:
		return err
	}

	student.ID = existing.ID
	_, err = d.Bun.NewUpdate().
		Model(student).
		Column("name", "email").
		Where("id = ?", student.ID).
		Exec(ctx)
	return err
}

// GetStudentsByOrder → fetch all attendee records for an order in wizard
// order.
func (d *DB) GetStudentsByOrder(ctx context.Context, orderID int64) ([]*models.Student, error) {
	var students []*models.Student
	err := d.Bun.NewSelect().
		Model(&students).
		Where("order_id = ?", orderID).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return students, nil
}

// ---------------- DISCOUNT CODES ----------------

// FindActiveByCode → resolve a promo code to its active discount record.
func (d *DB) FindActiveByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var discount models.DiscountCode
	err := d.Bun.NewSelect().
		Model(&discount).
		Where("code = ? AND active", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrDiscountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

// ---------------- TICKETS ----------------

// CreateTickets → insert the issued attendee tickets for a paid order.
func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&tickets).Exec(ctx)
	return err
}

// GetTicketsByOrder → fetch all tickets issued for an order.
func (d *DB) GetTicketsByOrder(ctx context.Context, identifier string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("order_identifier = ?", identifier).
		Order("issued_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}
