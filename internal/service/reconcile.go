package service

import (
	"context"
	"errors"

	"go-resale-dashboard/internal/monitoring"
	"go-resale-dashboard/internal/repository"

	"github.com/rs/zerolog/log"
)

// ReconcileQueue schedules a duplicate-sale cleanup for a product id.
type ReconcileQueue interface {
	Enqueue(ctx context.Context, productID string) error
}

// Reconciler removes sale documents that share a product id with, but are not,
// the canonical sale. Running it again or concurrently is harmless.
type Reconciler struct {
	store repository.EntityStore
}

func NewReconciler(store repository.EntityStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile deletes stray sales of productID. When the product itself is gone
// every sale pointing at it is removed, canonical one included.
func (r *Reconciler) Reconcile(ctx context.Context, productID string) (int, error) {
	sales, err := r.store.ListSalesByProduct(ctx, productID)
	if err != nil {
		return 0, &ReconciliationError{ProductID: productID, Err: err}
	}
	if len(sales) == 0 {
		return 0, nil
	}

	productGone := false
	if _, err := r.store.GetProduct(ctx, productID); err != nil {
		if !errors.Is(err, repository.ErrDocumentNotFound) {
			return 0, &ReconciliationError{ProductID: productID, Err: err}
		}
		productGone = true
	}

	var writes []repository.Write
	for _, s := range sales {
		if !s.IsCanonical() || productGone {
			writes = append(writes, repository.Write{
				Op:         repository.OpDelete,
				Collection: repository.CollectionSales,
				ID:         s.ID,
			})
		}
	}
	if len(writes) == 0 {
		return 0, nil
	}

	if err := r.store.Commit(ctx, writes); err != nil {
		return 0, &ReconciliationError{ProductID: productID, Err: err}
	}
	monitoring.RecordDuplicatesDeleted(len(writes))
	log.Info().
		Str("product_id", productID).
		Int("deleted", len(writes)).
		Bool("product_gone", productGone).
		Msg("reconcile: removed stray sales")
	return len(writes), nil
}

// Handle runs Reconcile and swallows its failure after logging it. The next
// edit of the same product schedules another attempt.
func (r *Reconciler) Handle(ctx context.Context, productID string) {
	if _, err := r.Reconcile(ctx, productID); err != nil {
		monitoring.RecordReconcileFailure()
		log.Warn().Err(err).Str("product_id", productID).Msg("reconcile: cleanup failed, will retry on next edit")
	}
}

// InlineQueue reconciles synchronously in the caller's goroutine.
type InlineQueue struct {
	reconciler *Reconciler
}

func NewInlineQueue(r *Reconciler) *InlineQueue {
	return &InlineQueue{reconciler: r}
}

func (q *InlineQueue) Enqueue(ctx context.Context, productID string) error {
	monitoring.RecordReconcileJob("inline")
	q.reconciler.Handle(ctx, productID)
	return nil
}
