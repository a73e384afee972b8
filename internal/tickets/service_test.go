package tickets_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-registration/internal/models"
	"ms-registration/internal/pricing"
	"ms-registration/internal/tickets"
	"ms-registration/internal/tickets/qr"
)

type MockTicketDB struct {
	mock.Mock
}

func (m *MockTicketDB) CreateTickets(ctx context.Context, issued []models.Ticket) error {
	args := m.Called(ctx, issued)
	return args.Error(0)
}

func (m *MockTicketDB) GetTicketsByOrder(ctx context.Context, identifier string) ([]models.Ticket, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func newTestTicketService(t *testing.T) (*tickets.TicketService, *MockTicketDB) {
	t.Helper()
	tab, err := pricing.Edition("bootcamp")
	require.NoError(t, err)

	mockDB := new(MockTicketDB)
	svc := tickets.NewTicketService(mockDB, qr.NewQRGenerator("test-secret"), tab)
	return svc, mockDB
}

func paidOrder(t *testing.T) *models.Order {
	t.Helper()
	tab, err := pricing.Edition("bootcamp")
	require.NoError(t, err)

	o := models.NewOrder(tab)
	o.ID = 1
	o.Identifier = "paid-order-1"
	o.Cart["community"] = 1
	o.Cart["normal"] = 1
	o.Students = []*models.Student{
		{ID: 10, OrderID: 1, Position: 0, Name: "Grace", Email: "grace@example.com"},
		{ID: 11, OrderID: 1, Position: 1, Name: "Alan", Email: "alan@example.com"},
	}
	return o
}

func TestIssueForOrder(t *testing.T) {
	svc, mockDB := newTestTicketService(t)
	ctx := context.Background()
	o := paidOrder(t)

	mockDB.On("GetTicketsByOrder", ctx, o.Identifier).Return([]models.Ticket{}, nil)
	mockDB.On("CreateTickets", ctx, mock.AnythingOfType("[]models.Ticket")).Return(nil)

	issued, err := svc.IssueForOrder(ctx, o)

	require.NoError(t, err)
	require.Len(t, issued, 2)

	// Attendees get the cart's ticket types in display order
	assert.Equal(t, "community", issued[0].TicketType)
	assert.Equal(t, "Grace", issued[0].StudentName)
	assert.Equal(t, int64(10), issued[0].StudentID)
	assert.Equal(t, "normal", issued[1].TicketType)
	assert.Equal(t, "Alan", issued[1].StudentName)

	for _, ticket := range issued {
		assert.NotEmpty(t, ticket.TicketID)
		assert.Equal(t, o.Identifier, ticket.OrderIdentifier)
		assert.NotEmpty(t, ticket.QRCode, "every ticket carries a QR image")
	}
	mockDB.AssertExpectations(t)
}

func TestIssueForOrder_Idempotent(t *testing.T) {
	svc, mockDB := newTestTicketService(t)
	ctx := context.Background()
	o := paidOrder(t)

	existing := []models.Ticket{{TicketID: "t-1", OrderIdentifier: o.Identifier, IssuedAt: time.Now()}}
	mockDB.On("GetTicketsByOrder", ctx, o.Identifier).Return(existing, nil)

	issued, err := svc.IssueForOrder(ctx, o)

	require.NoError(t, err)
	assert.Equal(t, existing, issued)
	mockDB.AssertNotCalled(t, "CreateTickets", mock.Anything, mock.Anything)
}

func TestIssueForOrder_LookupFailure(t *testing.T) {
	svc, mockDB := newTestTicketService(t)
	ctx := context.Background()
	o := paidOrder(t)

	mockDB.On("GetTicketsByOrder", ctx, o.Identifier).Return(nil, errors.New("connection refused"))

	_, err := svc.IssueForOrder(ctx, o)

	assert.ErrorContains(t, err, "failed to look up tickets")
}

func TestIssueForOrder_StoreFailure(t *testing.T) {
	svc, mockDB := newTestTicketService(t)
	ctx := context.Background()
	o := paidOrder(t)

	mockDB.On("GetTicketsByOrder", ctx, o.Identifier).Return([]models.Ticket{}, nil)
	mockDB.On("CreateTickets", ctx, mock.AnythingOfType("[]models.Ticket")).Return(errors.New("insert failed"))

	_, err := svc.IssueForOrder(ctx, o)

	assert.ErrorContains(t, err, "failed to store tickets")
}

func TestGenerateEncryptedQR(t *testing.T) {
	generator := qr.NewQRGenerator("test-secret")

	ticket := models.Ticket{
		TicketID:        "t-1",
		OrderIdentifier: "order-1",
		StudentName:     "Grace",
		TicketType:      "normal",
		IssuedAt:        time.Now(),
	}

	png, err := generator.GenerateEncryptedQR(ticket)
	require.NoError(t, err)
	assert.NotEmpty(t, png)

	// Random IV: two encodings of the same ticket never match
	png2, err := generator.GenerateEncryptedQR(ticket)
	require.NoError(t, err)
	assert.NotEqual(t, png, png2)
}
