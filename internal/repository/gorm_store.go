package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go-resale-dashboard/internal/model"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// GormStore is the EntityStore backed by Postgres. A batch runs inside one
// database transaction and server timestamps resolve to the database clock.
//
// Commits are serialized in-process so each one can read its own snapshot
// inside the transaction and publish it in version order.
type GormStore struct {
	db       *gorm.DB
	commitMu sync.Mutex
	version  uint64
	broker   *broker
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, broker: newBroker()}
}

// Migrate creates or updates the document tables.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&model.Product{}, &model.Sale{}, &model.Owner{})
}

func collectionModel(c Collection) (interface{}, error) {
	switch c {
	case CollectionProducts:
		return &model.Product{}, nil
	case CollectionSales:
		return &model.Sale{}, nil
	case CollectionOwners:
		return &model.Owner{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
}

func (s *GormStore) Commit(ctx context.Context, writes []Write) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	wanted := s.broker.wanted(touchedCollections(writes))
	var (
		snap    Snapshot
		snapErr error
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, w := range writes {
			if err := applyWrite(tx, w); err != nil {
				return err
			}
		}
		if len(wanted) > 0 {
			snap, snapErr = readSnapshot(tx, wanted)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.version++
	if len(wanted) == 0 {
		return nil
	}
	if snapErr != nil {
		log.Warn().Err(snapErr).Uint64("version", s.version).Msg("snapshot after commit failed")
		return nil
	}
	snap.Version = s.version
	s.broker.publish(snap)
	return nil
}

func applyWrite(tx *gorm.DB, w Write) error {
	m, err := collectionModel(w.Collection)
	if err != nil {
		return err
	}

	switch w.Op {
	case OpCreate:
		fields := gormFields(w.Fields, true)
		fields[model.FieldID] = w.ID
		var count int64
		if err := tx.Model(m).Where("id = ?", w.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s/%s", ErrDocumentExists, w.Collection, w.ID)
		}
		return tx.Model(m).Create(fields).Error
	case OpUpdate:
		res := tx.Model(m).Where("id = ?", w.ID).Updates(gormFields(w.Fields, false))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, w.Collection, w.ID)
		}
		return nil
	case OpDelete:
		return tx.Where("id = ?", w.ID).Delete(m).Error
	}
	return fmt.Errorf("unsupported write op %q", w.Op)
}

// gormFields swaps sentinel values for SQL expressions.
func gormFields(fields map[string]interface{}, create bool) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		switch val := v.(type) {
		case serverTimestamp:
			out[k] = gorm.Expr("CURRENT_TIMESTAMP")
		case Increment:
			if create {
				out[k] = float64(val)
			} else {
				out[k] = gorm.Expr("COALESCE("+k+", 0) + ?", float64(val))
			}
		default:
			out[k] = v
		}
	}
	return out
}

func (s *GormStore) Subscribe(ctx context.Context, collections ...Collection) (<-chan Snapshot, error) {
	want, err := wantSet(collections)
	if err != nil {
		return nil, err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	initial, err := readSnapshot(s.db.WithContext(ctx), setMembers(want))
	if err != nil {
		return nil, err
	}
	initial.Version = s.version
	return s.broker.subscribe(ctx, want, initial), nil
}

// readSnapshot lists the given collections through db, which may be a
// transaction.
func readSnapshot(db *gorm.DB, collections []Collection) (Snapshot, error) {
	var snap Snapshot
	for _, c := range collections {
		var err error
		switch c {
		case CollectionProducts:
			err = db.Order("created_at ASC, id ASC").Find(&snap.Products).Error
		case CollectionSales:
			err = db.Order("created_at ASC, id ASC").Find(&snap.Sales).Error
		case CollectionOwners:
			err = db.Order("created_at ASC, id ASC").Find(&snap.Owners).Error
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

func notFound(err error, c Collection, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, c, id)
	}
	return err
}

func (s *GormStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var product model.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, notFound(err, CollectionProducts, id)
	}
	return &product, nil
}

func (s *GormStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&products).Error
	return products, err
}

func (s *GormStore) GetSale(ctx context.Context, id string) (*model.Sale, error) {
	var sale model.Sale
	if err := s.db.WithContext(ctx).First(&sale, "id = ?", id).Error; err != nil {
		return nil, notFound(err, CollectionSales, id)
	}
	return &sale, nil
}

func (s *GormStore) ListSales(ctx context.Context) ([]model.Sale, error) {
	var sales []model.Sale
	err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&sales).Error
	return sales, err
}

func (s *GormStore) ListSalesByProduct(ctx context.Context, productID string) ([]model.Sale, error) {
	var sales []model.Sale
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Find(&sales).Error
	return sales, err
}

func (s *GormStore) GetOwner(ctx context.Context, id string) (*model.Owner, error) {
	var owner model.Owner
	if err := s.db.WithContext(ctx).First(&owner, "id = ?", id).Error; err != nil {
		return nil, notFound(err, CollectionOwners, id)
	}
	return &owner, nil
}

func (s *GormStore) ListOwners(ctx context.Context) ([]model.Owner, error) {
	var owners []model.Owner
	err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&owners).Error
	return owners, err
}
