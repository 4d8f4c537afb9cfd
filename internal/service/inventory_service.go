package service

import (
	"context"
	"errors"
	"fmt"

	"go-resale-dashboard/internal/model"
	"go-resale-dashboard/internal/monitoring"
	"go-resale-dashboard/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventPublisher pushes change notifications to connected clients.
type EventPublisher interface {
	Publish(payload interface{})
}

// Actor identifies who triggered a change, for notifications.
type Actor struct {
	ID    string
	Name  string
	Email string
}

type InventoryService interface {
	CreateProduct(ctx context.Context, edit model.ProductEdit, actor Actor) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, edit model.ProductEdit, actor Actor) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string, actor Actor) error
	GetAllProducts(ctx context.Context) ([]model.Product, error)
	GetAllSales(ctx context.Context) ([]model.Sale, error)
}

type inventoryService struct {
	store  repository.EntityStore
	queue  ReconcileQueue
	events EventPublisher
}

func NewInventoryService(store repository.EntityStore, queue ReconcileQueue, events EventPublisher) InventoryService {
	return &inventoryService{
		store:  store,
		queue:  queue,
		events: events,
	}
}

func (s *inventoryService) CreateProduct(ctx context.Context, edit model.ProductEdit, actor Actor) (*model.Product, error) {
	// 1. Validasi sebelum menulis apa pun
	if err := ValidateProductEdit(edit); err != nil {
		monitoring.RecordProductWrite("create", monitoring.OutcomeValidationFailed)
		return nil, err
	}

	// 2. Product baru belum punya Sale
	id := uuid.NewString()
	plan, err := PlanProductEdit(nil, id, edit, false)
	if err != nil {
		monitoring.RecordProductWrite("create", monitoring.OutcomeValidationFailed)
		return nil, err
	}

	// 3. Commit product + sale atomically
	if err := s.store.Commit(ctx, plan.Writes()); err != nil {
		monitoring.RecordProductWrite("create", monitoring.OutcomeCommitFailed)
		return nil, &CommitError{Op: "create product", Err: err}
	}
	monitoring.RecordProductWrite("create", monitoring.OutcomeCommitted)
	if edit.Sold {
		monitoring.RecordSaleTransition(plan.Transition)
	}

	product := s.reload(ctx, id)
	s.publish("product_created", id, edit.Name, actor, fmt.Sprintf("%s created product '%s'", actor.Name, edit.Name))
	return product, nil
}

// UpdateProduct applies edit to the stored product and keeps its sale in step:
// the product and sale writes commit in one batch, then stray duplicates of
// the sale are cleaned up outside the batch.
func (s *inventoryService) UpdateProduct(ctx context.Context, id string, edit model.ProductEdit, actor Actor) (*model.Product, error) {
	if err := ValidateProductEdit(edit); err != nil {
		monitoring.RecordProductWrite("update", monitoring.OutcomeValidationFailed)
		return nil, err
	}

	current, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("load product: %w", err)
	}

	saleExists := false
	if edit.Sold {
		if _, err := s.store.GetSale(ctx, id); err == nil {
			saleExists = true
		} else if !errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, fmt.Errorf("load sale: %w", err)
		}
	}

	plan, err := PlanProductEdit(current, id, edit, saleExists)
	if err != nil {
		monitoring.RecordProductWrite("update", monitoring.OutcomeValidationFailed)
		return nil, err
	}

	if err := s.store.Commit(ctx, plan.Writes()); err != nil {
		monitoring.RecordProductWrite("update", monitoring.OutcomeCommitFailed)
		return nil, &CommitError{Op: "update product", Err: err}
	}
	monitoring.RecordProductWrite("update", monitoring.OutcomeCommitted)
	if plan.Transition != "" {
		monitoring.RecordSaleTransition(plan.Transition)
	}

	s.reconcile(ctx, id)

	product := s.reload(ctx, id)
	s.publish("product_updated", id, edit.Name, actor, fmt.Sprintf("%s updated product '%s'", actor.Name, edit.Name))
	return product, nil
}

// DeleteProduct removes the product and its canonical sale together. Any
// leftover sale pointing at the product is removed by reconciliation.
func (s *inventoryService) DeleteProduct(ctx context.Context, id string, actor Actor) error {
	current, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("load product: %w", err)
	}

	writes := []repository.Write{
		{Op: repository.OpDelete, Collection: repository.CollectionProducts, ID: id},
		{Op: repository.OpDelete, Collection: repository.CollectionSales, ID: id},
	}
	if err := s.store.Commit(ctx, writes); err != nil {
		monitoring.RecordProductWrite("delete", monitoring.OutcomeCommitFailed)
		return &CommitError{Op: "delete product", Err: err}
	}
	monitoring.RecordProductWrite("delete", monitoring.OutcomeCommitted)
	if current.Sold {
		monitoring.RecordSaleTransition(monitoring.TransitionDeleted)
	}

	s.reconcile(ctx, id)
	s.publish("product_deleted", id, current.Name, actor, fmt.Sprintf("%s deleted product '%s'", actor.Name, current.Name))
	return nil
}

func (s *inventoryService) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *inventoryService) GetAllSales(ctx context.Context) ([]model.Sale, error) {
	return s.store.ListSales(ctx)
}

func (s *inventoryService) reconcile(ctx context.Context, productID string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, productID); err != nil {
		monitoring.RecordReconcileFailure()
		log.Warn().Err(err).Str("product_id", productID).Msg("reconcile: enqueue failed")
	}
}

// reload reads the committed product so server timestamps are resolved. The
// write already succeeded, so a failed read is only logged.
func (s *inventoryService) reload(ctx context.Context, id string) *model.Product {
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("product_id", id).Msg("reload after commit failed")
		return nil
	}
	return product
}

func (s *inventoryService) publish(action, productID, productName string, actor Actor, message string) {
	if s.events == nil {
		return
	}
	s.events.Publish(map[string]interface{}{
		"type":   "inventory_update",
		"action": action,
		"product": map[string]interface{}{
			"id":   productID,
			"name": productName,
		},
		"user": map[string]interface{}{
			"id":    actor.ID,
			"name":  actor.Name,
			"email": actor.Email,
		},
		"message": message,
	})
}
