package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/arsview/internal/domain"
	"github.com/mmcdole/arsview/internal/poller"
)

// QueryService submits queries, watches their progress and keeps the
// local record of past queries and their results.
type QueryService struct {
	source domain.Aggregator
	store  domain.Store
	poller *poller.Poller
	logger *slog.Logger
	now    func() time.Time
}

// NewQueryService creates a new query service
func NewQueryService(source domain.Aggregator, store domain.Store, p *poller.Poller, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		source: source,
		store:  store,
		poller: p,
		logger: logger,
		now:    time.Now,
	}
}

// Submit sends a new query to the aggregator and records it locally
func (s *QueryService) Submit(ctx context.Context, text string) (domain.Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Query{}, fmt.Errorf("empty query text: %w", domain.ErrInvalidQuery)
	}

	q, err := s.source.Submit(ctx, text)
	if err != nil {
		s.logger.Error("failed to submit query", "error", err)
		return domain.Query{}, err
	}
	if q.Text == "" {
		q.Text = text
	}
	if q.SubmittedAt.IsZero() {
		q.SubmittedAt = s.now()
	}

	if err := s.store.SaveQuery(q); err != nil {
		s.logger.Warn("failed to record query", "query", q.ID, "error", err)
	}
	s.logger.Info("submitted query", "query", q.ID)
	return q, nil
}

// Open returns the record of a known query and any results cached for it.
// An ID never seen locally still opens; its text is unknown until the
// aggregator answers.
func (s *QueryService) Open(ctx context.Context, id string) (domain.Query, []domain.Result, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Query{}, nil, fmt.Errorf("empty query id: %w", domain.ErrInvalidQuery)
	}
	if err := ctx.Err(); err != nil {
		return domain.Query{}, nil, err
	}

	q, ok := s.store.GetQuery(id)
	if !ok {
		s.logger.Debug("query not cached", "query", id)
		q = domain.Query{ID: id, Status: domain.StatusRunning}
	}

	results, ok := s.store.GetResults(id)
	if ok {
		s.logger.Debug("cache hit", "query", id, "results", len(results))
	}
	return q, results, nil
}

// Watch polls queryID on behalf of sessionID and streams the updates.
// The channel is closed when polling completes or ctx is cancelled.
func (s *QueryService) Watch(ctx context.Context, sessionID, queryID string) <-chan poller.Update {
	out := make(chan poller.Update)
	in := make(chan poller.Update)

	go func() {
		defer close(in)
		err := s.poller.Run(ctx, sessionID, queryID, in)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("polling stopped", "query", queryID, "error", err)
		}
	}()

	go func() {
		defer close(out)
		recorded := false
		for u := range in {
			if !recorded && u.Snapshot.Status != domain.StatusRunning {
				s.recordCompletion(queryID, u.Snapshot.Status)
				recorded = true
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// recordCompletion marks a query finished in the local record
func (s *QueryService) recordCompletion(queryID string, status domain.RunStatus) {
	q, ok := s.store.GetQuery(queryID)
	if !ok {
		q = domain.Query{ID: queryID}
	}
	q.Status = status
	q.CompletedAt = s.now()
	if err := s.store.SaveQuery(q); err != nil {
		s.logger.Warn("failed to record completion", "query", queryID, "error", err)
	}
}

// Remember caches the merged result list shown for a query
func (s *QueryService) Remember(queryID string, results []domain.Result) error {
	if err := s.store.SaveResults(queryID, results, s.now()); err != nil {
		s.logger.Warn("failed to cache results", "query", queryID, "error", err)
		return err
	}
	s.logger.Debug("cached results", "query", queryID, "count", len(results))
	return nil
}

// Recent returns up to limit past queries, newest first
func (s *QueryService) Recent(limit int) []domain.Query {
	return s.store.RecentQueries(limit)
}

// Forget drops a query and its results from the local record
func (s *QueryService) Forget(queryID string) {
	s.store.InvalidateQuery(queryID)
	s.logger.Info("forgot query", "query", queryID)
}

// ClearCache drops every cached query and result
func (s *QueryService) ClearCache() {
	s.store.InvalidateAll()
	s.logger.Info("cache cleared")
}
