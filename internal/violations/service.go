package violations

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/mtvts/mtvts/internal/platform/cache"
	"github.com/mtvts/mtvts/internal/shared"
)

// Service exposes catalog reads and admin edits.
type Service struct {
	repo   Repository
	cache  *catalogCache
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService builds the catalog service. store may be nil to disable caching.
func NewService(repo Repository, store *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: newCatalogCache(store), logger: logger}
}

// SetAudit attaches an audit recorder for admin edits.
func (s *Service) SetAudit(audit shared.AuditRecorder) {
	s.audit = audit
}

// ListTypes returns the distinct violation types in sorted order.
func (s *Service) ListTypes(ctx context.Context) ([]string, error) {
	types, err := fetch(ctx, s.cache, "types", s.repo.ListTypes)
	if err != nil {
		return nil, err
	}
	if types == nil {
		types = []string{}
	}
	return types, nil
}

// List returns catalog entries filtered by type and free-text query.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Violation, error) {
	req = req.normalized()
	items, err := fetch(ctx, s.cache, req.cacheSuffix(), func(ctx context.Context) ([]Violation, error) {
		return s.repo.List(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Violation{}
	}
	return items, nil
}

// Get returns one catalog entry.
func (s *Service) Get(ctx context.Context, id int64) (*Violation, error) {
	if id <= 0 {
		return nil, shared.NewValidationError("id", "must be greater than 0")
	}
	return s.repo.Get(ctx, id)
}

// GetMany resolves ids, failing with NotFound naming the first missing id.
func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]Violation, error) {
	items, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Violation, len(items))
	for _, v := range items {
		byID[v.ID] = v
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, shared.NotFoundf("violation %d", id)
		}
	}
	return byID, nil
}

// Create adds a catalog entry.
func (s *Service) Create(ctx context.Context, req UpsertRequest, actorID int64) (*Violation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	v, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, "violation.create", v, actorID)
	return v, nil
}

// Update replaces a catalog entry. Issued tickets keep their snapshot fines.
func (s *Service) Update(ctx context.Context, id int64, req UpsertRequest, actorID int64) (*Violation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	v, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, "violation.update", v, actorID)
	return v, nil
}

func (s *Service) afterWrite(ctx context.Context, action string, v *Violation, actorID int64) {
	if err := s.cache.invalidate(ctx); err != nil {
		s.logger.Warn("violation cache invalidate failed", slog.Any("error", err))
	}
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "violation",
		EntityID: strconv.FormatInt(v.ID, 10),
		Meta:     map[string]any{"name": v.Name, "fine": v.Fine.StringFixed(2)},
	})
	if err != nil {
		s.logger.Warn("violation audit failed", slog.Any("error", err), slog.Int64("violation_id", v.ID))
	}
}
