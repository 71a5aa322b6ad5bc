package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtvts/mtvts/internal/platform/cache"
)

// CacheNamespace prefixes every report cache key.
const CacheNamespace = "reports"

// Service builds dashboard reports and caches the overview.
type Service struct {
	repo   Repository
	cache  *cache.Versioned
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewService creates the report service. store may be nil to disable caching.
func NewService(repo Repository, store *cache.Versioned, logger *slog.Logger, loc *time.Location) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, cache: store, logger: logger, loc: loc, now: time.Now}
}

// Location returns the business time zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Invalidate bumps the cache version so the next overview is recomputed.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	_, err := s.cache.Bump(ctx)
	return err
}

// Overview returns the summary, the top violations by collections and the daily trend.
func (s *Service) Overview(ctx context.Context, r Range) (*Overview, error) {
	var key string
	if s.cache != nil {
		k, err := s.cache.Key(ctx, "overview:"+r.key()+":"+s.today().Format("20060102"))
		if err == nil {
			key = k
			var cached Overview
			if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
				return &cached, nil
			}
		} else {
			s.logger.Warn("report cache key", slog.Any("error", err))
		}
	}

	overview, err := s.compute(ctx, r)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, overview); err != nil {
			s.logger.Warn("report cache set", slog.Any("error", err))
		}
	}
	return overview, nil
}

func (s *Service) compute(ctx context.Context, r Range) (*Overview, error) {
	if !r.Bounded() {
		r = Range{}
	}
	summary, err := s.repo.TicketCounts(ctx, r)
	if err != nil {
		return nil, err
	}
	summary.TotalCollections, err = s.repo.Collections(ctx, r.From, r.To)
	if err != nil {
		return nil, err
	}
	start := s.today()
	end := start.AddDate(0, 0, 1)
	summary.TodayCollections, err = s.repo.Collections(ctx, &start, &end)
	if err != nil {
		return nil, err
	}
	byViolation, err := s.repo.ByViolation(ctx, r, TopViolations)
	if err != nil {
		return nil, err
	}
	daily, err := s.repo.Daily(ctx, r, s.loc)
	if err != nil {
		return nil, err
	}
	return &Overview{Summary: summary, ByViolation: byViolation, Daily: daily}, nil
}

// Warm computes and caches the overview for the current month.
func (s *Service) Warm(ctx context.Context) error {
	start := s.today()
	from := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, s.loc)
	to := start.AddDate(0, 0, 1)
	_, err := s.Overview(ctx, Range{From: &from, To: &to})
	return err
}

// AdminStats returns today's citation count and the number of enforcers.
func (s *Service) AdminStats(ctx context.Context) (AdminStats, error) {
	start := s.today()
	citations, err := s.repo.CitationsBetween(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		return AdminStats{}, err
	}
	enforcers, err := s.repo.CountEnforcers(ctx)
	if err != nil {
		return AdminStats{}, err
	}
	return AdminStats{TotalCitationsToday: citations, TotalEnforcers: enforcers}, nil
}

func (s *Service) today() time.Time {
	local := s.now().In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}
