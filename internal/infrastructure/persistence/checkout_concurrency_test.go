package persistence

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	orderapp "github.com/marketplace/backend/internal/application/order"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
	"github.com/marketplace/backend/internal/infrastructure/migration"
)

// startPostgres spins up a throwaway PostgreSQL container with the full
// schema applied. Requires Docker, so it stays out of short runs.
func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("marketplace_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	t.Cleanup(func() { _ = sqlDB.Close() })

	migrator, err := migration.New(sqlDB, findMigrationsDir(t), zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, migrator.Up(), "Failed to run migrations")

	return db
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "migrations")
}

// flatQuoter returns a fixed shipping cost, keeping the carrier out of the
// checkout path.
type flatQuoter struct{}

func (flatQuoter) Quote(_ context.Context, _ order.ShippingAddress, _ decimal.Decimal) (decimal.Decimal, error) {
	return decimal.NewFromFloat(5.00), nil
}

func seedVariantWithStock(t *testing.T, db *gorm.DB, stock int) *catalog.Variant {
	t.Helper()

	ref, err := catalog.NewProductRef(catalog.ProductKindFashion, uuid.New())
	require.NoError(t, err)
	v, err := catalog.NewVariant(ref, uuid.New(), uuid.New(), "SKU-"+uuid.NewString()[:8], decimal.NewFromFloat(19.99))
	require.NoError(t, err)
	v.ProductName = "Item " + v.SKU
	v.StockQuantity = stock

	repo := NewGormVariantRepository(db)
	require.NoError(t, repo.Save(context.Background(), v))
	return v
}

func concurrencyTestAddress() orderapp.ShippingAddressRequest {
	return orderapp.ShippingAddressRequest{
		RecipientName: "Jamie Doe",
		Phone:         "+31612345678",
		Line1:         "Keizersgracht 1",
		City:          "Amsterdam",
		Country:       "NL",
		PostalCode:    "1015 CC",
	}
}

// Two buyers race for the last unit of a variant. The row lock taken on the
// reservation read serializes them, so exactly one order is created and the
// loser fails with an insufficient stock error instead of overselling.
func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	variant := seedVariantWithStock(t, db, 1)

	scope := NewGormOrderTransactionScope(db)
	recordRepo := NewGormLogisticsRecordRepository(db)
	service := orderapp.NewCheckoutService(scope, recordRepo, flatQuoter{}, "postnl", zap.NewNop())

	start := make(chan struct{})
	results := make([]error, 2)
	var wg sync.WaitGroup

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := service.Checkout(ctx, orderapp.CheckoutRequest{
				BuyerID: uuid.New(),
				Items: []orderapp.CheckoutItemRequest{
					{VariantID: variant.ID, Quantity: 1},
				},
				Address: concurrencyTestAddress(),
			})
			results[i] = err
		}(i)
	}

	close(start)
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INSUFFICIENT_STOCK", domainErr.Code)
		insufficient++
	}
	assert.Equal(t, 1, succeeded, "exactly one checkout should win the last unit")
	assert.Equal(t, 1, insufficient)

	// The stored hold matches the single winning order
	variantRepo := NewGormVariantRepository(db)
	stored, err := variantRepo.FindByID(ctx, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.StockQuantity)
	assert.Equal(t, 1, stored.ReservedQuantity)
	assert.Equal(t, 0, stored.Available())

	var orderCount int64
	require.NoError(t, db.Model(&order.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)
}

// A released hold frees the unit for the next buyer.
func TestCheckout_LastUnitFreedAfterRelease(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	variant := seedVariantWithStock(t, db, 1)

	scope := NewGormOrderTransactionScope(db)
	recordRepo := NewGormLogisticsRecordRepository(db)
	service := orderapp.NewCheckoutService(scope, recordRepo, flatQuoter{}, "postnl", zap.NewNop())

	first, err := service.Checkout(ctx, orderapp.CheckoutRequest{
		BuyerID: uuid.New(),
		Items:   []orderapp.CheckoutItemRequest{{VariantID: variant.ID, Quantity: 1}},
		Address: concurrencyTestAddress(),
	})
	require.NoError(t, err)

	// second buyer is locked out while the hold stands
	_, err = service.Checkout(ctx, orderapp.CheckoutRequest{
		BuyerID: uuid.New(),
		Items:   []orderapp.CheckoutItemRequest{{VariantID: variant.ID, Quantity: 1}},
		Address: concurrencyTestAddress(),
	})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INSUFFICIENT_STOCK", domainErr.Code)

	// cancelling the first order releases the unit
	variantRepo := NewGormVariantRepository(db)
	require.NoError(t, scope.Execute(ctx, func(repos orderapp.TransactionalRepositories) error {
		o, err := repos.OrderRepo().FindByID(ctx, first.ID)
		if err != nil {
			return err
		}
		if err := o.Cancel("changed my mind"); err != nil {
			return err
		}
		v, err := repos.VariantRepo().FindByIDForUpdate(ctx, variant.ID)
		if err != nil {
			return err
		}
		if err := v.Release(1); err != nil {
			return err
		}
		if err := repos.VariantRepo().Save(ctx, v); err != nil {
			return err
		}
		return repos.OrderRepo().Save(ctx, o)
	}))

	_, err = service.Checkout(ctx, orderapp.CheckoutRequest{
		BuyerID: uuid.New(),
		Items:   []orderapp.CheckoutItemRequest{{VariantID: variant.ID, Quantity: 1}},
		Address: concurrencyTestAddress(),
	})
	require.NoError(t, err)

	stored, err := variantRepo.FindByID(ctx, variant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ReservedQuantity)
}
