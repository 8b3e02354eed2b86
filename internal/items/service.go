// Package items orchestrates fetching and scoring. It owns the request
// cache: concurrent requests for the same time range share one underlying
// fetch, and the completed result replays to late subscribers without
// refetching.
package items

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/conversationai/harassment-manager/internal/auth"
	"github.com/conversationai/harassment-manager/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrNotAuthenticated is returned when FetchItems is called while the
// session is signed out. No network I/O is attempted.
var ErrNotAuthenticated = errors.New("not authenticated")

// DefaultScoreRequestsPerSecond bounds the scoring fan-out; the Perspective
// API default quota is one request per second per project.
const DefaultScoreRequestsPerSecond = 1

// ItemSource fetches the raw items for a time range. Implementations handle
// their own pagination and retry policy.
type ItemSource interface {
	GetMentions(ctx context.Context, userID string, start, end time.Time) ([]models.SocialMediaItem, error)
}

// Scorer scores a single comment's text.
type Scorer interface {
	Score(ctx context.Context, text string) (map[string]float64, error)
}

// PendingFetch is the shared handle for one fetch-and-score pipeline. Every
// caller that requested the same time range holds the same handle; Wait
// returns the final value (or error) to all of them, past and future.
type PendingFetch struct {
	done  chan struct{}
	items []models.ScoredItem
	err   error
}

// Wait blocks until the pipeline completes or the caller's context ends.
func (p *PendingFetch) Wait(ctx context.Context) ([]models.ScoredItem, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return p.items, p.err
	}
}

// Done exposes completion for select loops.
func (p *PendingFetch) Done() <-chan struct{} {
	return p.done
}

// Service deduplicates fetches by time range, scores items through a rate
// limiter, and tracks how many raw items have been fetched this session.
// The cache map and counter are mutex-guarded; handlers and the scheduler
// call in from different goroutines.
type Service struct {
	source  ItemSource
	scorer  Scorer
	session *auth.Session
	limiter *rate.Limiter

	mu           sync.Mutex
	cache        map[string]*PendingFetch
	fetchedCount int
}

// NewService creates the orchestrator and subscribes it to auth-state
// transitions: signing out clears the cache and resets the fetch counter.
func NewService(source ItemSource, scorer Scorer, session *auth.Session, scoreRequestsPerSecond float64) *Service {
	if scoreRequestsPerSecond <= 0 {
		scoreRequestsPerSecond = DefaultScoreRequestsPerSecond
	}
	s := &Service{
		source:  source,
		scorer:  scorer,
		session: session,
		limiter: rate.NewLimiter(rate.Limit(scoreRequestsPerSecond), 1),
		cache:   make(map[string]*PendingFetch),
	}
	session.Observe(func(signedIn bool) {
		if !signedIn {
			s.reset()
		}
	})
	return s
}

// FetchItems returns the shared handle for the given time range, starting
// the fetch-and-score pipeline if no identical request is in flight or
// cached. Fails immediately while signed out.
func (s *Service) FetchItems(startMs, endMs int64) (*PendingFetch, error) {
	if !s.session.SignedIn() {
		return nil, ErrNotAuthenticated
	}

	key := cacheKey(startMs, endMs)
	s.mu.Lock()
	if pending, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return pending, nil
	}
	pending := &PendingFetch{done: make(chan struct{})}
	s.cache[key] = pending
	s.mu.Unlock()

	go s.run(key, pending, startMs, endMs)
	return pending, nil
}

// FetchedItemCount returns the running total of raw items fetched since
// sign-in, for progress reporting.
func (s *Service) FetchedItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchedCount
}

// CachedRangeCount returns the number of cached or in-flight time ranges.
func (s *Service) CachedRangeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

func (s *Service) run(key string, pending *PendingFetch, startMs, endMs int64) {
	ctx := context.Background()
	userID := s.session.UserID()

	raw, err := s.source.GetMentions(ctx, userID, time.UnixMilli(startMs), time.UnixMilli(endMs))
	if err != nil {
		s.fail(key, pending, fmt.Errorf("fetch failed for range %s: %w", key, err))
		return
	}

	s.mu.Lock()
	s.fetchedCount += len(raw)
	s.mu.Unlock()

	scored, err := s.scoreAll(ctx, raw)
	if err != nil {
		s.fail(key, pending, fmt.Errorf("scoring failed for range %s: %w", key, err))
		return
	}

	pending.items = scored
	close(pending.done)
}

// scoreAll fans out one scoring call per item through the rate limiter and
// aggregates the results in input order. A single scoring failure fails the
// whole batch: callers never see a half-scored list.
func (s *Service) scoreAll(ctx context.Context, raw []models.SocialMediaItem) ([]models.ScoredItem, error) {
	scored := make([]models.ScoredItem, len(raw))
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	for i, item := range raw {
		// Admission control: each call waits for window capacity before
		// its goroutine launches, so the steady-state request rate is
		// bounded regardless of batch size.
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		wg.Add(1)
		go func(i int, item models.SocialMediaItem) {
			defer wg.Done()
			scores, err := s.scorer.Score(ctx, item.Text)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			scored[i] = models.ScoredItem{Item: item, Scores: scores}
		}(i, item)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return scored, nil
}

// fail evicts the cache entry before publishing the error, so the next call
// for the same range retries instead of replaying the failure.
func (s *Service) fail(key string, pending *PendingFetch, err error) {
	s.mu.Lock()
	if s.cache[key] == pending {
		delete(s.cache, key)
	}
	s.mu.Unlock()

	logrus.Errorf("Fetch pipeline failed: %v", err)
	pending.err = err
	close(pending.done)
}

// reset clears all cached requests and the fetch counter. Runs on sign-out.
func (s *Service) reset() {
	s.mu.Lock()
	s.cache = make(map[string]*PendingFetch)
	s.fetchedCount = 0
	s.mu.Unlock()
	logrus.Debug("Item request cache cleared")
}

func cacheKey(startMs, endMs int64) string {
	return fmt.Sprintf("%d_%d", startMs, endMs)
}
