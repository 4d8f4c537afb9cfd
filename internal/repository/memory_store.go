package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-resale-dashboard/internal/model"

	"github.com/rs/zerolog/log"
)

type document map[string]interface{}

// MemoryStore is an in-process EntityStore. Documents are kept as field maps
// so that partial updates behave like they do against the database.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[Collection]map[string]document
	version  uint64
	now      func() time.Time
	failNext error
	broker   *broker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: map[Collection]map[string]document{
			CollectionProducts: {},
			CollectionSales:    {},
			CollectionOwners:   {},
		},
		now:    func() time.Time { return time.Now().UTC() },
		broker: newBroker(),
	}
}

// SetClock replaces the clock used to resolve ServerTimestamp.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// FailNextCommit makes the next Commit return err without applying anything.
func (s *MemoryStore) FailNextCommit(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *MemoryStore) Commit(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		s.mu.Unlock()
		return err
	}

	now := s.now()
	staged := make(map[Collection]map[string]document)
	for _, w := range writes {
		coll, ok := staged[w.Collection]
		if !ok {
			current, known := s.docs[w.Collection]
			if !known {
				s.mu.Unlock()
				return fmt.Errorf("%w: %s", ErrUnknownCollection, w.Collection)
			}
			coll = make(map[string]document, len(current))
			for id, d := range current {
				coll[id] = d
			}
			staged[w.Collection] = coll
		}

		switch w.Op {
		case OpCreate:
			if _, exists := coll[w.ID]; exists {
				s.mu.Unlock()
				return fmt.Errorf("%w: %s/%s", ErrDocumentExists, w.Collection, w.ID)
			}
			doc := make(document, len(w.Fields)+1)
			for k, v := range w.Fields {
				doc[k] = resolveValue(nil, v, now)
			}
			doc[model.FieldID] = w.ID
			coll[w.ID] = doc
		case OpUpdate:
			existing, exists := coll[w.ID]
			if !exists {
				s.mu.Unlock()
				return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, w.Collection, w.ID)
			}
			doc := make(document, len(existing)+len(w.Fields))
			for k, v := range existing {
				doc[k] = v
			}
			for k, v := range w.Fields {
				doc[k] = resolveValue(existing[k], v, now)
			}
			coll[w.ID] = doc
		case OpDelete:
			delete(coll, w.ID)
		default:
			s.mu.Unlock()
			return fmt.Errorf("unsupported write op %q", w.Op)
		}
	}

	for c, coll := range staged {
		s.docs[c] = coll
	}
	s.version++

	// Publishing under the write lock keeps versions in commit order.
	if wanted := s.broker.wanted(touchedCollections(writes)); len(wanted) > 0 {
		if snap, err := s.snapshotLocked(wanted); err != nil {
			log.Warn().Err(err).Uint64("version", s.version).Msg("snapshot after commit failed")
		} else {
			s.broker.publish(snap)
		}
	}
	s.mu.Unlock()
	return nil
}

func resolveValue(current, v interface{}, now time.Time) interface{} {
	switch val := v.(type) {
	case serverTimestamp:
		return now
	case Increment:
		base, _ := current.(float64)
		return base + float64(val)
	case *float64:
		if val == nil {
			return nil
		}
		return *val
	case *time.Time:
		if val == nil {
			return nil
		}
		return *val
	default:
		return v
	}
}

func (s *MemoryStore) Subscribe(ctx context.Context, collections ...Collection) (<-chan Snapshot, error) {
	want, err := wantSet(collections)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	initial, err := s.snapshotLocked(setMembers(want))
	if err != nil {
		return nil, err
	}
	return s.broker.subscribe(ctx, want, initial), nil
}

// snapshotLocked reads the given collections. s.mu must be held.
func (s *MemoryStore) snapshotLocked(collections []Collection) (Snapshot, error) {
	snap := Snapshot{Version: s.version}
	for _, c := range collections {
		var err error
		switch c {
		case CollectionProducts:
			snap.Products, err = listDocs[model.Product](s.docs[c], nil)
		case CollectionSales:
			snap.Sales, err = listDocs[model.Sale](s.docs[c], nil)
		case CollectionOwners:
			snap.Owners, err = listDocs[model.Owner](s.docs[c], nil)
		default:
			err = fmt.Errorf("%w: %s", ErrUnknownCollection, c)
		}
		if err != nil {
			return Snapshot{}, err
		}
		snap.Collections = append(snap.Collections, c)
	}
	return snap, nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*model.Product, error) {
	return getDoc[model.Product](s, CollectionProducts, id)
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]model.Product, error) {
	return list[model.Product](s, CollectionProducts, nil)
}

func (s *MemoryStore) GetSale(_ context.Context, id string) (*model.Sale, error) {
	return getDoc[model.Sale](s, CollectionSales, id)
}

func (s *MemoryStore) ListSales(_ context.Context) ([]model.Sale, error) {
	return list[model.Sale](s, CollectionSales, nil)
}

func (s *MemoryStore) ListSalesByProduct(_ context.Context, productID string) ([]model.Sale, error) {
	return list[model.Sale](s, CollectionSales, func(d document) bool {
		pid, _ := d[model.FieldProductID].(string)
		return pid == productID
	})
}

func (s *MemoryStore) GetOwner(_ context.Context, id string) (*model.Owner, error) {
	return getDoc[model.Owner](s, CollectionOwners, id)
}

func (s *MemoryStore) ListOwners(_ context.Context) ([]model.Owner, error) {
	return list[model.Owner](s, CollectionOwners, nil)
}

func getDoc[T any](s *MemoryStore, c Collection, id string) (*T, error) {
	s.mu.RLock()
	doc, ok := s.docs[c][id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, c, id)
	}
	var out T
	if err := decodeDoc(doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func list[T any](s *MemoryStore, c Collection, match func(document) bool) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listDocs[T](s.docs[c], match)
}

// listDocs returns matching documents ordered by created_at then id. Committed
// documents are never mutated in place, so decoding them needs no copy.
func listDocs[T any](coll map[string]document, match func(document) bool) ([]T, error) {
	docs := make([]document, 0, len(coll))
	for _, d := range coll {
		if match == nil || match(d) {
			docs = append(docs, d)
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		ti, _ := docs[i][model.FieldCreatedAt].(time.Time)
		tj, _ := docs[j][model.FieldCreatedAt].(time.Time)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		idi, _ := docs[i][model.FieldID].(string)
		idj, _ := docs[j][model.FieldID].(string)
		return idi < idj
	})

	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := decodeDoc(d, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeDoc(doc document, out interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
