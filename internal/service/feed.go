package service

import (
	"context"
	"sync"

	"go-resale-dashboard/internal/model"
	"go-resale-dashboard/internal/monitoring"
	"go-resale-dashboard/internal/repository"
)

// State is the last set of collections delivered by the store. The slices are
// shared and must be treated as read-only.
type State struct {
	Version  uint64
	Products []model.Product
	Sales    []model.Sale
	Owners   []model.Owner
}

// StateSource hands out the current snapshot without blocking on the store.
type StateSource interface {
	State() State
}

// Feed keeps the latest products, sales and owners by subscribing to the store.
type Feed struct {
	store repository.EntityStore

	mu        sync.RWMutex
	state     State
	listeners []func(repository.Snapshot)
}

func NewFeed(store repository.EntityStore) *Feed {
	return &Feed{store: store}
}

// OnChange registers fn to run after each applied snapshot. Register before Start.
func (f *Feed) OnChange(fn func(repository.Snapshot)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

// Start subscribes to all collections and returns once the initial snapshot
// is applied. Updates are consumed until ctx is cancelled.
func (f *Feed) Start(ctx context.Context) error {
	ch, err := f.store.Subscribe(ctx)
	if err != nil {
		return err
	}
	f.apply(<-ch)

	go func() {
		for snap := range ch {
			f.apply(snap)
		}
	}()
	return nil
}

// apply swaps in every collection of snap at once, so State never mixes
// collections from different commits.
func (f *Feed) apply(snap repository.Snapshot) {
	f.mu.Lock()
	for _, c := range snap.Collections {
		switch c {
		case repository.CollectionProducts:
			f.state.Products = snap.Products
		case repository.CollectionSales:
			f.state.Sales = snap.Sales
		case repository.CollectionOwners:
			f.state.Owners = snap.Owners
		}
	}
	f.state.Version = snap.Version
	listeners := f.listeners
	f.mu.Unlock()

	for _, c := range snap.Collections {
		monitoring.RecordSnapshot(string(c))
	}
	for _, fn := range listeners {
		fn(snap)
	}
}

func (f *Feed) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}
