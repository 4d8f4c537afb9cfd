package repository

import (
	"context"
	"errors"

	"go-resale-dashboard/internal/model"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDocumentExists    = errors.New("document already exists")
	ErrUnknownCollection = errors.New("unknown collection")
)

// Collection names a document collection in the entity store.
type Collection string

const (
	CollectionProducts Collection = "products"
	CollectionSales    Collection = "sales"
	CollectionOwners   Collection = "owners"
)

type WriteOp string

const (
	OpCreate WriteOp = "create"
	OpUpdate WriteOp = "update"
	OpDelete WriteOp = "delete"
)

// Write is one document mutation inside an atomic batch. Update merges Fields
// into the existing document; Delete ignores Fields and is a no-op when the
// document is missing.
type Write struct {
	Op         WriteOp
	Collection Collection
	ID         string
	Fields     map[string]interface{}
}

type serverTimestamp struct{}

// ServerTimestamp is a field value resolved to the store's clock at commit time.
var ServerTimestamp interface{} = serverTimestamp{}

// Increment is a field value that adds to the stored number at commit time.
type Increment float64

// AllCollections lists every collection of the store.
var AllCollections = []Collection{CollectionProducts, CollectionSales, CollectionOwners}

// Snapshot is the full content of the listed Collections as of one commit.
// Collections written by the same batch always arrive in the same snapshot, so
// a reader never sees a product and its sale from different commits. Version
// grows with every commit.
type Snapshot struct {
	Collections []Collection
	Version     uint64
	Products    []model.Product
	Sales       []model.Sale
	Owners      []model.Owner
}

// Has reports whether the snapshot carries c.
func (s Snapshot) Has(c Collection) bool {
	for _, have := range s.Collections {
		if have == c {
			return true
		}
	}
	return false
}

// only returns the part of s that carries the collections in want.
func (s Snapshot) only(want map[Collection]bool) Snapshot {
	out := Snapshot{Version: s.Version}
	for _, c := range s.Collections {
		if want[c] {
			out.set(c, s)
		}
	}
	return out
}

// mergeOlder fills in collections that s lacks from an older undelivered
// snapshot. The result is the state as of s.Version.
func (s Snapshot) mergeOlder(older Snapshot) Snapshot {
	for _, c := range older.Collections {
		if !s.Has(c) {
			s.set(c, older)
		}
	}
	return s
}

func (s *Snapshot) set(c Collection, from Snapshot) {
	switch c {
	case CollectionProducts:
		s.Products = from.Products
	case CollectionSales:
		s.Sales = from.Sales
	case CollectionOwners:
		s.Owners = from.Owners
	}
	s.Collections = append(s.Collections, c)
}

// EntityStore is the document database consumed by the services.
type EntityStore interface {
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetSale(ctx context.Context, id string) (*model.Sale, error)
	ListSales(ctx context.Context) ([]model.Sale, error)
	ListSalesByProduct(ctx context.Context, productID string) ([]model.Sale, error)
	GetOwner(ctx context.Context, id string) (*model.Owner, error)
	ListOwners(ctx context.Context) ([]model.Owner, error)

	// Commit applies all writes atomically: either every write is visible
	// afterwards or none is.
	Commit(ctx context.Context, writes []Write) error

	// Subscribe delivers the current snapshot of the given collections (all of
	// them when none is given) and then one snapshot per commit touching any
	// of them, until ctx is cancelled. A slow reader receives the newest state
	// with older undelivered collections merged in.
	Subscribe(ctx context.Context, collections ...Collection) (<-chan Snapshot, error)
}

func touchedCollections(writes []Write) []Collection {
	seen := make(map[Collection]bool, 3)
	var out []Collection
	for _, w := range writes {
		if !seen[w.Collection] {
			seen[w.Collection] = true
			out = append(out, w.Collection)
		}
	}
	return out
}
