package tickets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/pricing"
	"ms-registration/internal/tickets/qr"
)

type DBLayer interface {
	CreateTickets(ctx context.Context, tickets []models.Ticket) error
	GetTicketsByOrder(ctx context.Context, identifier string) ([]models.Ticket, error)
}

// TicketService turns a paid order's attendee records into scannable
// tickets.
type TicketService struct {
	DB     DBLayer
	QR     *qr.QRGenerator
	Table  pricing.Table
	logger *logger.Logger
}

func NewTicketService(db DBLayer, generator *qr.QRGenerator, table pricing.Table) *TicketService {
	return &TicketService{
		DB:     db,
		QR:     generator,
		Table:  table,
		logger: logger.NewLogger(),
	}
}

// IssueForOrder creates one QR ticket per attendee of a paid order.
// Idempotent: an order that already has tickets gets them back unchanged.
func (s *TicketService) IssueForOrder(ctx context.Context, order *models.Order) ([]models.Ticket, error) {
	existing, err := s.DB.GetTicketsByOrder(ctx, order.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tickets for order %s: %w", order.Identifier, err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	types := s.expandCartTypes(order)
	tickets := make([]models.Ticket, 0, len(order.Students))
	for i, student := range order.Students {
		ticket := models.Ticket{
			TicketID:        uuid.NewString(),
			OrderIdentifier: order.Identifier,
			StudentID:       student.ID,
			StudentName:     student.Name,
			IssuedAt:        time.Now(),
		}
		if i < len(types) {
			ticket.TicketType = types[i]
		}

		qrBytes, err := s.QR.GenerateEncryptedQR(ticket)
		if err != nil {
			return nil, fmt.Errorf("failed to generate QR for ticket %s: %w", ticket.TicketID, err)
		}
		ticket.QRCode = qrBytes
		tickets = append(tickets, ticket)
	}

	if err := s.DB.CreateTickets(ctx, tickets); err != nil {
		return nil, fmt.Errorf("failed to store tickets for order %s: %w", order.Identifier, err)
	}

	s.logger.Info("TICKETS", fmt.Sprintf("Issued %d tickets for order %s", len(tickets), order.Identifier))
	return tickets, nil
}

// expandCartTypes flattens the cart into one ticket type per purchased
// ticket, in the edition's display order, so attendee N gets the N-th
// purchased ticket.
func (s *TicketService) expandCartTypes(order *models.Order) []string {
	var types []string
	for _, typ := range s.Table.Types() {
		for i := 0; i < order.Cart[typ]; i++ {
			types = append(types, typ)
		}
	}
	return types
}
