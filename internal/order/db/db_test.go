package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-registration/internal/models"
	"ms-registration/internal/order"
	"ms-registration/internal/order/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	if err := db.ResetSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func insertTestOrder(t *testing.T, orderDB *db.DB) *models.Order {
	t.Helper()
	o := &models.Order{
		Identifier: uuid.New().String(),
		Cart:       models.Cart{"community": 0, "normal": 1, "supporter": 0},
	}
	require.NoError(t, orderDB.CreateOrder(context.Background(), o))
	require.NotZero(t, o.ID)
	return o
}

func TestGetOrderByIdentifier(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	created := insertTestOrder(t, orderDB)

	// Test case: Get existing order
	o, err := orderDB.GetOrderByIdentifier(ctx, created.Identifier)
	assert.NoError(t, err)
	assert.NotNil(t, o)
	assert.Equal(t, created.Identifier, o.Identifier)
	assert.Equal(t, models.Cart{"community": 0, "normal": 1, "supporter": 0}, o.Cart)

	// Test case: Get non-existent order
	o, err = orderDB.GetOrderByIdentifier(ctx, "non-existent")
	assert.Error(t, err)
	assert.Nil(t, o)
}

func TestGetOrderByIdentifier_LoadsRelations(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	created := insertTestOrder(t, orderDB)

	discount, err := orderDB.FindActiveByCode(ctx, "EARLYBIRD10")
	require.NoError(t, err)
	created.DiscountCodeID = discount.ID
	require.NoError(t, orderDB.UpdateOrder(ctx, created))

	// Students inserted out of order come back sorted by position
	require.NoError(t, orderDB.UpsertStudent(ctx, &models.Student{
		OrderID: created.ID, Position: 1, Name: "Alan", Email: "alan@example.com",
	}))
	require.NoError(t, orderDB.UpsertStudent(ctx, &models.Student{
		OrderID: created.ID, Position: 0, Name: "Grace", Email: "grace@example.com",
	}))

	o, err := orderDB.GetOrderByIdentifier(ctx, created.Identifier)
	require.NoError(t, err)
	require.NotNil(t, o.DiscountCode)
	assert.Equal(t, "EARLYBIRD10", o.DiscountCode.Code)
	require.Len(t, o.Students, 2)
	assert.Equal(t, "Grace", o.Students[0].Name)
	assert.Equal(t, "Alan", o.Students[1].Name)
}

func TestUpdateOrder(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	o := insertTestOrder(t, orderDB)
	o.BillingName = "Ada Lovelace"
	o.BillingEmail = "ada@example.com"
	o.TermsAccepted = true
	o.PaymentID = "pi_123"
	now := time.Now()
	o.ConfirmedAt = &now

	require.NoError(t, orderDB.UpdateOrder(ctx, o))

	reloaded, err := orderDB.GetOrderByIdentifier(ctx, o.Identifier)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", reloaded.BillingName)
	assert.Equal(t, "ada@example.com", reloaded.BillingEmail)
	assert.True(t, reloaded.TermsAccepted)
	assert.Equal(t, "pi_123", reloaded.PaymentID)
	assert.NotNil(t, reloaded.ConfirmedAt)
	assert.False(t, reloaded.UpdatedAt.IsZero())
}

func TestIdentifierExists(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	o := insertTestOrder(t, orderDB)

	exists, err := orderDB.IdentifierExists(ctx, o.Identifier)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = orderDB.IdentifierExists(ctx, uuid.New().String())
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestUpsertStudent(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	o := insertTestOrder(t, orderDB)

	// First submission inserts
	student := &models.Student{OrderID: o.ID, Position: 0, Name: "Grace", Email: "grace@example.com"}
	require.NoError(t, orderDB.UpsertStudent(ctx, student))
	require.NotZero(t, student.ID)

	// Resubmitting the same position updates in place
	replacement := &models.Student{OrderID: o.ID, Position: 0, Name: "Grace Hopper", Email: "hopper@example.com"}
	require.NoError(t, orderDB.UpsertStudent(ctx, replacement))
	assert.Equal(t, student.ID, replacement.ID)

	students, err := orderDB.GetStudentsByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Grace Hopper", students[0].Name)
	assert.Equal(t, "hopper@example.com", students[0].Email)
}

func TestFindActiveByCode(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	// Seeded by ResetSchema
	discount, err := orderDB.FindActiveByCode(ctx, "EARLYBIRD10")
	assert.NoError(t, err)
	assert.Equal(t, "EARLYBIRD10", discount.Code)
	assert.InDelta(t, 10, discount.DiscountPercentage, 0.001)

	// Unknown codes map to the sentinel
	_, err = orderDB.FindActiveByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, order.ErrDiscountNotFound)

	// Inactive codes are treated as unknown
	inactive := &models.DiscountCode{Code: "EXPIRED50", DiscountPercentage: 50, Active: false, CreatedAt: time.Now()}
	_, err = bunDB.NewInsert().Model(inactive).Exec(ctx)
	require.NoError(t, err)

	_, err = orderDB.FindActiveByCode(ctx, "EXPIRED50")
	assert.ErrorIs(t, err, order.ErrDiscountNotFound)
}

func TestCreateAndGetTickets(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	o := insertTestOrder(t, orderDB)

	issued := time.Now()
	tickets := []models.Ticket{
		{TicketID: uuid.New().String(), OrderIdentifier: o.Identifier, TicketType: "normal", StudentName: "Grace", IssuedAt: issued},
		{TicketID: uuid.New().String(), OrderIdentifier: o.Identifier, TicketType: "supporter", StudentName: "Alan", IssuedAt: issued.Add(time.Second)},
	}
	require.NoError(t, orderDB.CreateTickets(ctx, tickets))

	got, err := orderDB.GetTicketsByOrder(ctx, o.Identifier)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Grace", got[0].StudentName)
	assert.Equal(t, "Alan", got[1].StudentName)

	// Empty batches are a no-op
	assert.NoError(t, orderDB.CreateTickets(ctx, nil))
}
