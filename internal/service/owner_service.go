package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-resale-dashboard/internal/model"
	"go-resale-dashboard/internal/monitoring"
	"go-resale-dashboard/internal/repository"
	"go-resale-dashboard/pkg/validator"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type OwnerService interface {
	ListOwners(ctx context.Context) ([]model.Owner, error)
	AddContribution(ctx context.Context, ownerID string, req model.ContributionRequest, actor Actor) (*model.Owner, error)
	SeedDefaults(ctx context.Context, names []string) (int, error)
}

type ownerService struct {
	store  repository.EntityStore
	events EventPublisher
}

func NewOwnerService(store repository.EntityStore, events EventPublisher) OwnerService {
	return &ownerService{store: store, events: events}
}

func (s *ownerService) ListOwners(ctx context.Context) ([]model.Owner, error) {
	return s.store.ListOwners(ctx)
}

// AddContribution raises an owner's contribution by req.Amount. The increment
// is applied by the store so concurrent additions are not lost.
func (s *ownerService) AddContribution(ctx context.Context, ownerID string, req model.ContributionRequest, actor Actor) (*model.Owner, error) {
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return nil, &ValidationError{Code: CodeInvalidContribution, Field: errs[0].FailedField, Tag: errs[0].Tag}
	}

	owner, err := s.store.GetOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrDocumentNotFound) {
			return nil, ErrOwnerNotFound
		}
		return nil, fmt.Errorf("load owner: %w", err)
	}

	err = s.store.Commit(ctx, []repository.Write{{
		Op:         repository.OpUpdate,
		Collection: repository.CollectionOwners,
		ID:         ownerID,
		Fields: map[string]interface{}{
			model.FieldContributionAmount: repository.Increment(req.Amount),
			model.FieldUpdatedAt:          repository.ServerTimestamp,
		},
	}})
	if err != nil {
		return nil, &CommitError{Op: "add contribution", Err: err}
	}
	monitoring.OwnerContributionsTotal.Inc()

	updated, err := s.store.GetOwner(ctx, ownerID)
	if err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID).Msg("reload after commit failed")
		updated = nil
	}

	if s.events != nil {
		s.events.Publish(map[string]interface{}{
			"type":     "owner_update",
			"action":   "contribution_added",
			"owner_id": ownerID,
			"amount":   req.Amount,
			"message":  fmt.Sprintf("%s added %.2f to %s", actor.Name, req.Amount, owner.Name),
		})
	}
	return updated, nil
}

// SeedDefaults creates the roster with zero contribution, but only while the
// owner collection is empty. It returns how many owners were created.
func (s *ownerService) SeedDefaults(ctx context.Context, names []string) (int, error) {
	existing, err := s.store.ListOwners(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	var writes []repository.Write
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		writes = append(writes, repository.Write{
			Op:         repository.OpCreate,
			Collection: repository.CollectionOwners,
			ID:         uuid.NewString(),
			Fields: map[string]interface{}{
				model.FieldName:               name,
				model.FieldContributionAmount: 0.0,
				model.FieldCreatedAt:          repository.ServerTimestamp,
				model.FieldUpdatedAt:          repository.ServerTimestamp,
			},
		})
	}
	if len(writes) == 0 {
		return 0, nil
	}
	if err := s.store.Commit(ctx, writes); err != nil {
		return 0, &CommitError{Op: "seed owners", Err: err}
	}
	return len(writes), nil
}
