package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-resale-dashboard/internal/model"
	"go-resale-dashboard/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []map[string]interface{}
}

func (p *recordingPublisher) Publish(payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := payload.(map[string]interface{}); ok {
		p.events = append(p.events, m)
	}
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e["action"].(string))
	}
	return out
}

type inventoryFixture struct {
	ctx    context.Context
	store  *repository.MemoryStore
	clock  *testClock
	events *recordingPublisher
	svc    InventoryService
}

func newInventoryFixture(t *testing.T) *inventoryFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := newTestClock()
	store.SetClock(clock.Now)
	events := &recordingPublisher{}
	return &inventoryFixture{
		ctx:    context.Background(),
		store:  store,
		clock:  clock,
		events: events,
		svc:    NewInventoryService(store, NewInlineQueue(NewReconciler(store)), events),
	}
}

var operator = Actor{ID: "u1", Name: "Ops", Email: "ops@example.com"}

func price(v float64) *float64 { return &v }

func (f *inventoryFixture) create(t *testing.T, edit model.ProductEdit) *model.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(f.ctx, edit, operator)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *inventoryFixture) update(t *testing.T, id string, edit model.ProductEdit) *model.Product {
	t.Helper()
	p, err := f.svc.UpdateProduct(f.ctx, id, edit, operator)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

// assertConsistent checks that a sale exists exactly when the product is sold.
func (f *inventoryFixture) assertConsistent(t *testing.T, id string) {
	t.Helper()
	p, err := f.store.GetProduct(f.ctx, id)
	require.NoError(t, err)
	s, saleErr := f.store.GetSale(f.ctx, id)
	if p.Sold {
		require.NoError(t, saleErr)
		require.NotNil(t, p.SoldPrice)
		require.NotNil(t, p.SoldAt)
		assert.Equal(t, id, s.ProductID)
		assert.Equal(t, *p.SoldPrice, s.SoldPrice)
	} else {
		assert.ErrorIs(t, saleErr, repository.ErrDocumentNotFound)
		assert.Nil(t, p.SoldAt)
	}
}

func (f *inventoryFixture) plantStraySale(t *testing.T, strayID, productID string) {
	t.Helper()
	at := f.clock.Now().Add(-time.Hour)
	require.NoError(t, f.store.Commit(f.ctx, []repository.Write{{
		Op:         repository.OpCreate,
		Collection: repository.CollectionSales,
		ID:         strayID,
		Fields: map[string]interface{}{
			model.FieldProductID:   productID,
			model.FieldProductName: "legacy",
			model.FieldBuyPrice:    1.0,
			model.FieldSoldPrice:   2.0,
			model.FieldProfit:      1.0,
			model.FieldSoldAt:      at,
			model.FieldCreatedAt:   at,
			model.FieldUpdatedAt:   at,
		},
	}}))
}

func TestCreateUnsoldProduct(t *testing.T) {
	f := newInventoryFixture(t)

	p := f.create(t, model.ProductEdit{Name: "Lamp", BuyPrice: 10, Link: "https://shop/lamp"})

	assert.False(t, p.Sold)
	assert.Nil(t, p.SoldPrice)
	assert.True(t, p.CreatedAt.Equal(f.clock.Now()))
	assert.Equal(t, "https://shop/lamp", p.Link)
	f.assertConsistent(t, p.ID)
	assert.Equal(t, []string{"product_created"}, f.events.actions())
}

func TestCreateProductAlreadySold(t *testing.T) {
	f := newInventoryFixture(t)

	p := f.create(t, model.ProductEdit{Name: "Chair", BuyPrice: 5, Sold: true, SoldPrice: price(8)})

	f.assertConsistent(t, p.ID)
	s, err := f.store.GetSale(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, s.Profit)
	assert.True(t, s.SoldAt.Equal(f.clock.Now()))
}

func TestMarkSoldCreatesSale(t *testing.T) {
	f := newInventoryFixture(t)
	p := f.create(t, model.ProductEdit{Name: "Desk", BuyPrice: 40})

	f.clock.Advance(time.Hour)
	updated := f.update(t, p.ID, model.ProductEdit{Name: "Desk", BuyPrice: 40, Sold: true, SoldPrice: price(55.5)})

	require.NotNil(t, updated.SoldAt)
	assert.True(t, updated.SoldAt.Equal(f.clock.Now()))
	f.assertConsistent(t, p.ID)

	s, err := f.store.GetSale(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Desk", s.ProductName)
	assert.Equal(t, 15.5, s.Profit)
	assert.True(t, s.CreatedAt.Equal(f.clock.Now()))
}

func TestMissingSoldPriceWritesNothing(t *testing.T) {
	f := newInventoryFixture(t)
	p := f.create(t, model.ProductEdit{Name: "Vase", BuyPrice: 3, Sold: true, SoldPrice: price(9)})
	beforeProduct, _ := f.store.GetProduct(f.ctx, p.ID)
	beforeSale, _ := f.store.GetSale(f.ctx, p.ID)

	f.clock.Advance(time.Hour)
	for _, edit := range []model.ProductEdit{
		{Name: "Vase renamed", BuyPrice: 3, Sold: true},
		{Name: "Vase renamed", BuyPrice: 3, Sold: true, SoldPrice: price(-1)},
	} {
		_, err := f.svc.UpdateProduct(f.ctx, p.ID, edit, operator)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, CodeMissingSoldPrice, verr.Code)
	}

	afterProduct, _ := f.store.GetProduct(f.ctx, p.ID)
	afterSale, _ := f.store.GetSale(f.ctx, p.ID)
	assert.Equal(t, beforeProduct, afterProduct)
	assert.Equal(t, beforeSale, afterSale)
}

func TestCreateWithoutSoldPriceFails(t *testing.T) {
	f := newInventoryFixture(t)

	_, err := f.svc.CreateProduct(f.ctx, model.ProductEdit{Name: "Rug", Sold: true}, operator)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeMissingSoldPrice, verr.Code)
	products, _ := f.store.ListProducts(f.ctx)
	sales, _ := f.store.ListSales(f.ctx)
	assert.Empty(t, products)
	assert.Empty(t, sales)
}

func TestInvalidFieldsRejected(t *testing.T) {
	f := newInventoryFixture(t)

	_, err := f.svc.CreateProduct(f.ctx, model.ProductEdit{Name: "", BuyPrice: 1}, operator)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeInvalidField, verr.Code)
	assert.Equal(t, "name", verr.Field)

	_, err = f.svc.CreateProduct(f.ctx, model.ProductEdit{Name: "x", BuyPrice: -2}, operator)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "buy_price", verr.Field)
}

func TestEditWhileSoldKeepsSaleTimestamps(t *testing.T) {
	f := newInventoryFixture(t)
	p := f.create(t, model.ProductEdit{Name: "Bike", BuyPrice: 100})
	f.clock.Advance(time.Hour)
	f.update(t, p.ID, model.ProductEdit{Name: "Bike", BuyPrice: 100, Sold: true, SoldPrice: price(150)})
	firstSale, err := f.store.GetSale(f.ctx, p.ID)
	require.NoError(t, err)
	firstProduct, _ := f.store.GetProduct(f.ctx, p.ID)

	f.clock.Advance(24 * time.Hour)
	updated := f.update(t, p.ID, model.ProductEdit{
		Name: "Road bike", BuyPrice: 100, Sold: true, SoldPrice: price(160), Description: "blue",
	})

	sale, err := f.store.GetSale(f.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, sale.SoldAt.Equal(*firstSale.SoldAt))
	assert.True(t, sale.CreatedAt.Equal(firstSale.CreatedAt))
	assert.True(t, sale.UpdatedAt.Equal(f.clock.Now()))
	assert.Equal(t, "Road bike", sale.ProductName)
	assert.Equal(t, 60.0, sale.Profit)

	assert.True(t, updated.SoldAt.Equal(*firstProduct.SoldAt))
	assert.True(t, updated.UpdatedAt.Equal(f.clock.Now()))
	assert.Equal(t, "blue", updated.Description)
	f.assertConsistent(t, p.ID)
}

func TestRevertAndResell(t *testing.T) {
	f := newInventoryFixture(t)
	p := f.create(t, model.ProductEdit{Name: "Phone", BuyPrice: 50, Sold: true, SoldPrice: price(70)})
	firstSale, err := f.store.GetSale(f.ctx, p.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	reverted := f.update(t, p.ID, model.ProductEdit{Name: "Phone", BuyPrice: 50, SoldPrice: price(70)})
	assert.False(t, reverted.Sold)
	assert.Nil(t, reverted.SoldAt)
	assert.Nil(t, reverted.SoldPrice)
	f.assertConsistent(t, p.ID)

	f.clock.Advance(48 * time.Hour)
	f.update(t, p.ID, model.ProductEdit{Name: "Phone", BuyPrice: 50, Sold: true, SoldPrice: price(65)})

	resold, err := f.store.GetSale(f.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, resold.SoldAt.After(*firstSale.SoldAt))
	assert.True(t, resold.SoldAt.Equal(f.clock.Now()))
	assert.Equal(t, 15.0, resold.Profit)
	f.assertConsistent(t, p.ID)
}

func TestUnsoldEditLeavesSoldAtAlone(t *testing.T) {
	f := newInventoryFixture(t)
	p := f.create(t, model.ProductEdit{Name: "Book", BuyPrice: 2})

	f.clock.Advance(time.Minute)
	updated := f.update(t, p.ID, model.ProductEdit{Name: "Old book", BuyPrice: 2.5})

	assert.Nil(t, updated.SoldAt)
	assert.Equal(t, 2.5, updated.BuyPrice)
	f.assertConsistent(t, p.ID)
}

func TestImageURLOnlyReplacedWhenGiven(t *testing.T) {
	f := newInventoryFixture(t)
	url := "https://cdn/img.png"
	p := f.create(t, model.ProductEdit{Name: "Mug", BuyPrice: 1, NewImageURL: &url})

	updated := f.update(t, p.ID, model.ProductEdit{Name: "Mug", BuyPrice: 1})

	assert.Equal(t, url, updated.ImageURL)
}

func TestUpdateRemovesStrayDuplicates(t *testing.T) {
	f := newInventoryFixture(t)
	p := f.create(t, model.ProductEdit{Name: "Camera", BuyPrice: 80, Sold: true, SoldPrice: price(120)})
	f.plantStraySale(t, "legacy-1", p.ID)
	f.plantStraySale(t, "legacy-2", p.ID)

	f.update(t, p.ID, model.ProductEdit{Name: "Camera", BuyPrice: 80, Sold: true, SoldPrice: price(125)})

	sales, err := f.store.ListSalesByProduct(f.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, p.ID, sales[0].ID)
}

func TestCommitFailureSurfacesAndLeavesStateUnchanged(t *testing.T) {
	f := newInventoryFixture(t)
	p := f.create(t, model.ProductEdit{Name: "Table", BuyPrice: 30})
	before, _ := f.store.GetProduct(f.ctx, p.ID)

	offline := errors.New("offline")
	f.store.FailNextCommit(offline)
	_, err := f.svc.UpdateProduct(f.ctx, p.ID, model.ProductEdit{Name: "Table", BuyPrice: 30, Sold: true, SoldPrice: price(45)}, operator)

	var cerr *CommitError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, offline)

	after, _ := f.store.GetProduct(f.ctx, p.ID)
	assert.Equal(t, before, after)
	f.assertConsistent(t, p.ID)
}

func TestUpdateUnknownProduct(t *testing.T) {
	f := newInventoryFixture(t)

	_, err := f.svc.UpdateProduct(f.ctx, "missing", model.ProductEdit{Name: "x"}, operator)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestDeleteProductRemovesAllSales(t *testing.T) {
	f := newInventoryFixture(t)
	p := f.create(t, model.ProductEdit{Name: "Lens", BuyPrice: 10, Sold: true, SoldPrice: price(20)})
	f.plantStraySale(t, "legacy-lens", p.ID)

	require.NoError(t, f.svc.DeleteProduct(f.ctx, p.ID, operator))

	_, err := f.store.GetProduct(f.ctx, p.ID)
	assert.ErrorIs(t, err, repository.ErrDocumentNotFound)
	sales, err := f.store.ListSalesByProduct(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.ErrorIs(t, f.svc.DeleteProduct(f.ctx, p.ID, operator), ErrProductNotFound)
}

// brokenSalesQuery fails the duplicate lookup used by reconciliation only.
type brokenSalesQuery struct {
	*repository.MemoryStore
}

func (b brokenSalesQuery) ListSalesByProduct(context.Context, string) ([]model.Sale, error) {
	return nil, errors.New("index unavailable")
}

func TestReconciliationFailureIsSwallowed(t *testing.T) {
	f := newInventoryFixture(t)
	broken := brokenSalesQuery{f.store}
	svc := NewInventoryService(broken, NewInlineQueue(NewReconciler(broken)), nil)
	p := f.create(t, model.ProductEdit{Name: "Radio", BuyPrice: 5})
	f.plantStraySale(t, "legacy-radio", p.ID)

	updated, err := svc.UpdateProduct(f.ctx, p.ID, model.ProductEdit{Name: "Radio", BuyPrice: 5, Sold: true, SoldPrice: price(9)}, operator)

	require.NoError(t, err)
	assert.True(t, updated.Sold)
	f.assertConsistent(t, p.ID)

	// the stray survives until a later edit succeeds in reconciling
	sales, _ := f.store.ListSalesByProduct(f.ctx, p.ID)
	assert.Len(t, sales, 2)
	f.update(t, p.ID, model.ProductEdit{Name: "Radio", BuyPrice: 5, Sold: true, SoldPrice: price(9)})
	sales, _ = f.store.ListSalesByProduct(f.ctx, p.ID)
	assert.Len(t, sales, 1)
}
