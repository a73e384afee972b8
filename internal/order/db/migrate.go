package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-registration/internal/models"
)

// ResetSchema drops and recreates every table this service owns, then
// seeds a development discount code. Dev and test helper only; real
// deployments run the SQL migrations.
func ResetSchema(ctx context.Context, bunDB *bun.DB) error {
	tables := []interface{}{
		(*models.Ticket)(nil),
		(*models.Student)(nil),
		(*models.Order)(nil),
		(*models.DiscountCode)(nil),
	}

	for _, table := range tables {
		if _, err := bunDB.NewDropTable().Model(table).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table failed: %w", err)
		}
	}
	// Reverse order so parents come first.
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := bunDB.NewCreateTable().Model(tables[i]).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table failed: %w", err)
		}
	}

	seed := &models.DiscountCode{
		Code:               "EARLYBIRD10",
		DiscountPercentage: 10,
		Active:             true,
		CreatedAt:          time.Now(),
	}
	if _, err := bunDB.NewInsert().Model(seed).Exec(ctx); err != nil {
		return fmt.Errorf("seed insert failed: %w", err)
	}

	return nil
}
