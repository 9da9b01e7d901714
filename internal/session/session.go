// Package session orchestrates one search flow end to end: builder to
// catalog client to view state store, with an in-flight guard so two
// searches can never race result sets into the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rkm/stac-area-search/internal/catalog"
	"github.com/rkm/stac-area-search/internal/drawsession"
	"github.com/rkm/stac-area-search/internal/metrics"
	"github.com/rkm/stac-area-search/internal/search"
	"github.com/rkm/stac-area-search/internal/viewstate"
)

// ErrSearchInFlight is returned when a submission arrives while another
// search is outstanding. The caller should surface it and let the user
// wait; nothing is sent upstream.
var ErrSearchInFlight = errors.New("search already in flight")

// Searcher is the catalog client surface the session needs.
type Searcher interface {
	Search(ctx context.Context, req *search.Request) (*catalog.ResultSet, error)
}

// Session owns the submission flow. Failures leave the view state exactly
// as it was; the in-flight guard is released on every path.
type Session struct {
	builder     *search.Builder
	client      Searcher
	store       *viewstate.Store
	coordinator *drawsession.Coordinator
	logger      *slog.Logger
	metrics     *metrics.Provider

	searching atomic.Bool
}

// New creates a Session. The coordinator is optional: callers that supply
// areas directly (e.g. the HTTP facade) can leave it nil.
func New(builder *search.Builder, client Searcher, store *viewstate.Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		builder: builder,
		client:  client,
		store:   store,
		logger:  logger,
	}
}

// WithCoordinator attaches a draw-session coordinator for SubmitDrawn.
func (s *Session) WithCoordinator(c *drawsession.Coordinator) *Session {
	s.coordinator = c
	return s
}

// WithMetrics sets the metrics provider.
func (s *Session) WithMetrics(m *metrics.Provider) *Session {
	s.metrics = m
	return s
}

// IsSearching reports whether a submission is outstanding.
func (s *Session) IsSearching() bool {
	return s.searching.Load()
}

// Submit runs one guarded search: validates input, queries the catalog,
// and installs the results. Overlapping submissions are rejected with
// ErrSearchInFlight before anything is sent.
func (s *Session) Submit(ctx context.Context, collection string, area search.Area, dr search.DateRange) error {
	if !s.searching.CompareAndSwap(false, true) {
		s.count(metrics.OutcomeRejected)
		return ErrSearchInFlight
	}
	defer s.searching.Store(false)

	start := time.Now()

	req, err := s.builder.Build(collection, area, dr)
	if err != nil {
		s.count(metrics.OutcomeValidation)
		return err
	}

	token := s.store.BeginSearch()

	// The drawing affordance is only relevant pre-submission.
	if s.coordinator != nil {
		s.coordinator.Submitted()
	}

	s.logger.InfoContext(ctx, "submitting search",
		"collection", collection,
		"datetime", req.Datetime,
		"token", token,
	)

	rs, err := s.client.Search(ctx, req)
	if err != nil {
		s.count(outcomeForError(err))
		s.logger.ErrorContext(ctx, "search failed",
			"collection", collection,
			"error", err,
		)
		return err
	}

	if err := s.store.ReplaceResults(token, rs); err != nil {
		s.count(metrics.OutcomeStale)
		s.logger.WarnContext(ctx, "discarding stale search result",
			"token", token,
		)
		return fmt.Errorf("search superseded: %w", err)
	}

	s.count(metrics.OutcomeOK)
	s.observeDuration(time.Since(start))
	s.logger.InfoContext(ctx, "search completed",
		"collection", collection,
		"items", len(rs.Items),
		"matched", rs.Matched,
		"dropped", rs.Dropped,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// SubmitDrawn submits using the area captured by the draw-session
// coordinator.
func (s *Session) SubmitDrawn(ctx context.Context, collection string, dr search.DateRange) error {
	if s.coordinator == nil {
		return fmt.Errorf("%w: no draw session configured", search.ErrValidation)
	}

	area, ok := s.coordinator.Area()
	if !ok {
		return fmt.Errorf("%w: %w", search.ErrValidation, search.ErrNoArea)
	}

	return s.Submit(ctx, collection, area, dr)
}

func (s *Session) count(outcome string) {
	if s.metrics != nil {
		s.metrics.SearchesTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Session) observeDuration(d time.Duration) {
	if s.metrics != nil {
		s.metrics.SearchDuration.Observe(d.Seconds())
	}
}

func outcomeForError(err error) string {
	switch {
	case errors.Is(err, catalog.ErrMalformedResponse):
		return metrics.OutcomeMalformed
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeUnavailable
	}
}
