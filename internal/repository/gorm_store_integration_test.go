//go:build integration

package repository

// Runs GormStore against a real Postgres in a container.
// Run with: go test -tags integration ./internal/repository/... -v

import (
	"context"
	"testing"
	"time"

	"go-resale-dashboard/internal/model"
	"go-resale-dashboard/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupGormStore(t *testing.T) *GormStore {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("resale_test"),
		tcPostgres.WithUsername("resale"),
		tcPostgres.WithPassword("resale"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.ConnectDB(dsn, false)
	require.NoError(t, err)

	store := NewGormStore(db)
	require.NoError(t, store.Migrate())
	return store
}

func TestGormStoreAgainstPostgres(t *testing.T) {
	store := setupGormStore(t)
	ctx := context.Background()
	before := time.Now().Add(-time.Minute)

	t.Run("server timestamp resolves on the database", func(t *testing.T) {
		require.NoError(t, store.Commit(ctx, []Write{createProduct("p1", "Lamp")}))

		p, err := store.GetProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "Lamp", p.Name)
		assert.True(t, p.CreatedAt.After(before), "created_at %v", p.CreatedAt)
		assert.False(t, p.Sold)
	})

	t.Run("create of an existing id fails", func(t *testing.T) {
		err := store.Commit(ctx, []Write{createProduct("p1", "Dup")})
		assert.ErrorIs(t, err, ErrDocumentExists)

		p, err := store.GetProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "Lamp", p.Name)
	})

	t.Run("update of a missing document is not found", func(t *testing.T) {
		err := store.Commit(ctx, []Write{{
			Op: OpUpdate, Collection: CollectionProducts, ID: "ghost",
			Fields: map[string]interface{}{model.FieldName: "Ghost"},
		}})
		assert.ErrorIs(t, err, ErrDocumentNotFound)

		_, err = store.GetProduct(ctx, "ghost")
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("failed batch rolls back earlier writes", func(t *testing.T) {
		err := store.Commit(ctx, []Write{
			createProduct("p2", "Chair"),
			{Op: OpUpdate, Collection: CollectionSales, ID: "missing", Fields: map[string]interface{}{model.FieldProfit: 1.0}},
		})
		assert.ErrorIs(t, err, ErrDocumentNotFound)

		_, err = store.GetProduct(ctx, "p2")
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("delete of a missing document is a no-op", func(t *testing.T) {
		assert.NoError(t, store.Commit(ctx, []Write{{Op: OpDelete, Collection: CollectionSales, ID: "nope"}}))
	})

	t.Run("increment adds to the stored value", func(t *testing.T) {
		require.NoError(t, store.Commit(ctx, []Write{{Op: OpCreate, Collection: CollectionOwners, ID: "o1", Fields: map[string]interface{}{
			model.FieldName:               "Alice",
			model.FieldContributionAmount: Increment(5),
			model.FieldCreatedAt:          ServerTimestamp,
		}}}))
		require.NoError(t, store.Commit(ctx, []Write{{Op: OpUpdate, Collection: CollectionOwners, ID: "o1", Fields: map[string]interface{}{
			model.FieldContributionAmount: Increment(2.5),
			model.FieldUpdatedAt:          ServerTimestamp,
		}}}))

		o, err := store.GetOwner(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, 7.5, o.ContributionAmount)
		assert.True(t, o.UpdatedAt.After(before))
	})

	t.Run("subscribers get product and sale in one snapshot", func(t *testing.T) {
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch, err := store.Subscribe(subCtx)
		require.NoError(t, err)
		initial := <-ch
		assert.Equal(t, AllCollections, initial.Collections)
		require.Len(t, initial.Owners, 1)

		require.NoError(t, store.Commit(ctx, []Write{
			{Op: OpUpdate, Collection: CollectionProducts, ID: "p1", Fields: map[string]interface{}{
				model.FieldSold:      true,
				model.FieldSoldPrice: 18.0,
				model.FieldSoldAt:    ServerTimestamp,
			}},
			{Op: OpCreate, Collection: CollectionSales, ID: "p1", Fields: map[string]interface{}{
				model.FieldProductID:   "p1",
				model.FieldProductName: "Lamp",
				model.FieldBuyPrice:    10.0,
				model.FieldSoldPrice:   18.0,
				model.FieldProfit:      8.0,
				model.FieldSoldAt:      ServerTimestamp,
				model.FieldCreatedAt:   ServerTimestamp,
			}},
		}))

		select {
		case snap := <-ch:
			assert.Equal(t, initial.Version+1, snap.Version)
			assert.Equal(t, []Collection{CollectionProducts, CollectionSales}, snap.Collections)
			require.Len(t, snap.Products, 1)
			require.Len(t, snap.Sales, 1)
			assert.True(t, snap.Products[0].Sold)
			assert.Equal(t, snap.Products[0].ID, snap.Sales[0].ID)
		case <-time.After(5 * time.Second):
			t.Fatal("no snapshot after commit")
		}

		sales, err := store.ListSalesByProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Len(t, sales, 1)
	})
}
