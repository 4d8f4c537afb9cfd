package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-resale-dashboard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore() *MemoryStore {
	s := NewMemoryStore()
	s.SetClock(func() time.Time { return epoch })
	return s
}

func createProduct(id, name string) Write {
	return Write{Op: OpCreate, Collection: CollectionProducts, ID: id, Fields: map[string]interface{}{
		model.FieldName:      name,
		model.FieldBuyPrice:  10.0,
		model.FieldCreatedAt: ServerTimestamp,
		model.FieldUpdatedAt: ServerTimestamp,
	}}
}

func TestCommitResolvesServerTimestamp(t *testing.T) {
	ctx := context.Background()
	s := newStore()

	require.NoError(t, s.Commit(ctx, []Write{createProduct("p1", "Lamp")}))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Lamp", p.Name)
	assert.True(t, p.CreatedAt.Equal(epoch))
	assert.Nil(t, p.SoldAt)
}

func TestUpdateMergesOnlyGivenFields(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	require.NoError(t, s.Commit(ctx, []Write{createProduct("p1", "Lamp")}))

	require.NoError(t, s.Commit(ctx, []Write{{
		Op: OpUpdate, Collection: CollectionProducts, ID: "p1",
		Fields: map[string]interface{}{model.FieldDescription: "brass"},
	}}))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Lamp", p.Name)
	assert.Equal(t, "brass", p.Description)
	assert.Equal(t, 10.0, p.BuyPrice)
}

func TestBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	require.NoError(t, s.Commit(ctx, []Write{createProduct("p1", "Lamp")}))

	err := s.Commit(ctx, []Write{
		createProduct("p2", "Chair"),
		{Op: OpUpdate, Collection: CollectionSales, ID: "missing", Fields: map[string]interface{}{model.FieldProfit: 1.0}},
	})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	_, err = s.GetProduct(ctx, "p2")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	err = s.Commit(ctx, []Write{createProduct("p3", "Desk"), createProduct("p1", "Dup")})
	assert.ErrorIs(t, err, ErrDocumentExists)
	_, err = s.GetProduct(ctx, "p3")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	p, _ := s.GetProduct(ctx, "p1")
	assert.Equal(t, "Lamp", p.Name)
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := newStore()
	assert.NoError(t, s.Commit(context.Background(), []Write{{Op: OpDelete, Collection: CollectionSales, ID: "nope"}}))
}

func TestUnknownCollection(t *testing.T) {
	s := newStore()
	err := s.Commit(context.Background(), []Write{{Op: OpDelete, Collection: "invoices", ID: "x"}})
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestIncrementAddsToCurrentValue(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	require.NoError(t, s.Commit(ctx, []Write{{Op: OpCreate, Collection: CollectionOwners, ID: "o1", Fields: map[string]interface{}{
		model.FieldName:               "Alice",
		model.FieldContributionAmount: Increment(5),
	}}}))
	require.NoError(t, s.Commit(ctx, []Write{{Op: OpUpdate, Collection: CollectionOwners, ID: "o1", Fields: map[string]interface{}{
		model.FieldContributionAmount: Increment(2.5),
	}}}))

	o, err := s.GetOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 7.5, o.ContributionAmount)
}

func TestFailNextCommit(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	boom := errors.New("unavailable")
	s.FailNextCommit(boom)

	assert.ErrorIs(t, s.Commit(ctx, []Write{createProduct("p1", "Lamp")}), boom)
	assert.NoError(t, s.Commit(ctx, []Write{createProduct("p1", "Lamp")}))
}

func TestListOrdersByCreatedAtThenID(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	now := epoch
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Commit(ctx, []Write{createProduct("b", "B"), createProduct("a", "A")}))
	now = now.Add(-time.Hour)
	require.NoError(t, s.Commit(ctx, []Write{createProduct("z", "Z")}))

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	var ids []string
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"z", "a", "b"}, ids)
}

func TestListSalesByProduct(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	sale := func(id, productID string) Write {
		return Write{Op: OpCreate, Collection: CollectionSales, ID: id, Fields: map[string]interface{}{
			model.FieldProductID: productID,
			model.FieldCreatedAt: ServerTimestamp,
		}}
	}
	require.NoError(t, s.Commit(ctx, []Write{sale("p1", "p1"), sale("legacy", "p1"), sale("p2", "p2")}))

	sales, err := s.ListSalesByProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, sales, 2)
}

func TestSubscribeDeliversInitialAndLatestSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newStore()
	require.NoError(t, s.Commit(ctx, []Write{createProduct("p1", "Lamp")}))

	ch, err := s.Subscribe(ctx, CollectionProducts)
	require.NoError(t, err)
	initial := <-ch
	assert.Equal(t, []Collection{CollectionProducts}, initial.Collections)
	assert.Len(t, initial.Products, 1)

	// nobody reads in between: only the newest snapshot is kept
	require.NoError(t, s.Commit(ctx, []Write{createProduct("p2", "Chair")}))
	require.NoError(t, s.Commit(ctx, []Write{createProduct("p3", "Desk")}))

	latest := <-ch
	assert.Len(t, latest.Products, 3)
	assert.Greater(t, latest.Version, initial.Version)

	// writes to other collections do not notify product subscribers
	require.NoError(t, s.Commit(ctx, []Write{{Op: OpDelete, Collection: CollectionSales, ID: "x"}}))
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot for %v", snap.Collections)
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeRejectsUnknownCollection(t *testing.T) {
	_, err := newStore().Subscribe(context.Background(), "invoices")
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestCommitPublishesTouchedCollectionsTogether(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newStore()

	ch, err := s.Subscribe(ctx)
	require.NoError(t, err)
	initial := <-ch
	assert.Equal(t, AllCollections, initial.Collections)

	require.NoError(t, s.Commit(ctx, []Write{
		createProduct("p1", "Lamp"),
		{Op: OpCreate, Collection: CollectionSales, ID: "p1", Fields: map[string]interface{}{
			model.FieldProductID: "p1",
			model.FieldCreatedAt: ServerTimestamp,
		}},
	}))

	snap := <-ch
	assert.Equal(t, []Collection{CollectionProducts, CollectionSales}, snap.Collections)
	assert.Equal(t, initial.Version+1, snap.Version)
	require.Len(t, snap.Products, 1)
	require.Len(t, snap.Sales, 1)
	assert.Nil(t, snap.Owners)
}

func TestBrokerMergesPendingSnapshot(t *testing.T) {
	b := newBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	want, err := wantSet(nil)
	require.NoError(t, err)
	ch := b.subscribe(ctx, want, Snapshot{Collections: AllCollections, Version: 5})
	<-ch

	b.publish(Snapshot{Collections: []Collection{CollectionSales}, Version: 4})
	select {
	case snap := <-ch:
		t.Fatalf("stale version %d delivered", snap.Version)
	default:
	}

	// the owners change is still unread when the products change lands
	b.publish(Snapshot{Collections: []Collection{CollectionOwners}, Version: 6, Owners: []model.Owner{{Name: "Alice"}}})
	b.publish(Snapshot{Collections: []Collection{CollectionProducts}, Version: 7, Products: []model.Product{{Name: "Lamp"}}})

	snap := <-ch
	assert.Equal(t, uint64(7), snap.Version)
	assert.True(t, snap.Has(CollectionProducts))
	assert.True(t, snap.Has(CollectionOwners))
	assert.Len(t, snap.Owners, 1)
	assert.Len(t, snap.Products, 1)

	assert.Equal(t, []Collection{CollectionSales}, b.wanted([]Collection{CollectionSales}))
}

func TestBrokerFiltersBySubscription(t *testing.T) {
	b := newBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	want, err := wantSet([]Collection{CollectionOwners})
	require.NoError(t, err)
	ch := b.subscribe(ctx, want, Snapshot{Collections: []Collection{CollectionOwners}})
	<-ch

	assert.Empty(t, b.wanted([]Collection{CollectionProducts, CollectionSales}))
	b.publish(Snapshot{Collections: []Collection{CollectionProducts, CollectionOwners}, Version: 1, Products: []model.Product{{Name: "Lamp"}}})

	snap := <-ch
	assert.Equal(t, []Collection{CollectionOwners}, snap.Collections)
	assert.Nil(t, snap.Products)
}

func TestGormFieldsTranslatesSentinels(t *testing.T) {
	fields := map[string]interface{}{
		model.FieldName:               "Alice",
		model.FieldUpdatedAt:          ServerTimestamp,
		model.FieldContributionAmount: Increment(3),
	}

	update := gormFields(fields, false)
	assert.Equal(t, "Alice", update[model.FieldName])
	assert.IsType(t, gorm.Expr(""), update[model.FieldUpdatedAt])
	assert.IsType(t, gorm.Expr(""), update[model.FieldContributionAmount])

	create := gormFields(fields, true)
	assert.Equal(t, 3.0, create[model.FieldContributionAmount])
}

func TestMemoryUserRepo(t *testing.T) {
	repo := NewMemoryUserRepo()
	u := &model.User{Email: "Ops@Example.com", IsActive: true}
	require.NoError(t, repo.Create(u))
	assert.NotEmpty(t, u.ID)

	found, err := repo.FindByEmail("OPS@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	assert.ErrorIs(t, repo.Create(&model.User{Email: "ops@example.com"}), gorm.ErrDuplicatedKey)
	require.NoError(t, repo.UpdateTokenVersion(u.ID, "v2"))
	found, _ = repo.FindByID(u.ID)
	assert.Equal(t, "v2", found.TokenVersion)

	_, err = repo.FindByID("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
