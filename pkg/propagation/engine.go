package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mesh-intelligence/magsav/pkg/projection"
	"github.com/mesh-intelligence/magsav/pkg/types"
)

// DefaultConcurrency bounds the number of updates in flight.
const DefaultConcurrency = 4

// Observer is told about each update, each invalidation and each finished
// batch.
type Observer interface {
	RecordUpdated(kind types.Kind, err error)
	CacheInvalidated(kind types.Kind, err error)
	BatchFinished(result types.BulkUpdateResult, elapsed time.Duration)
}

// Request describes one propagation.
type Request struct {
	Kind types.Kind

	// Edited is the full edited record.
	Edited types.Record

	// OriginID identifies the edited record. When it is among the matches it
	// receives Edited in full rather than the projection.
	OriginID string

	Criterion types.MatchCriterion
	Policy    projection.Policy

	// ArtifactKey, when set, is invalidated once after the batch.
	ArtifactKey string
}

// Option configures an Engine.
type Option func(*Engine)

// WithInvalidator sets the cache invalidator for shared artifacts.
func WithInvalidator(c types.CacheInvalidator) Option {
	return func(e *Engine) { e.invalidator = c }
}

// WithConfirmer sets who approves a batch. Without one, every batch that
// would touch matched records is declined.
func WithConfirmer(c types.Confirmer) Option {
	return func(e *Engine) { e.confirmer = c }
}

// WithNotifier sets where warnings and summaries are reported.
func WithNotifier(n types.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithConcurrency bounds the number of concurrent updates. Values below one
// are ignored.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithRateLimit throttles updates to limit per second with the given burst.
// A zero limit disables throttling.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(e *Engine) {
		if limit <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine runs propagation requests.
type Engine struct {
	dir         types.Directory
	persist     types.Persistence
	invalidator types.CacheInvalidator
	confirmer   types.Confirmer
	notifier    types.Notifier
	observer    Observer
	logger      *slog.Logger
	concurrency int
	limiter     *rate.Limiter
}

// New returns an engine that finds matches in dir and writes through persist.
func New(dir types.Directory, persist types.Persistence, opts ...Option) *Engine {
	e := &Engine{
		dir:     dir,
		persist: persist,
		confirmer: types.ConfirmerFunc(func(context.Context, types.ConfirmRequest) (bool, error) {
			return false, nil
		}),
		notifier:    types.NotifierFunc(func(types.Notice) {}),
		logger:      slog.Default(),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type target struct {
	id     string
	fields types.Record
}

// Propagate runs one request. It never returns an error: every failure is
// folded into the result and reported through the notifier.
func (e *Engine) Propagate(ctx context.Context, req Request) (res types.BulkUpdateResult) {
	start := time.Now()
	res = types.BulkUpdateResult{Kind: req.Kind, Criterion: req.Criterion}
	defer func() {
		if e.observer != nil {
			e.observer.BatchFinished(res, time.Since(start))
		}
	}()
	log := e.logger.With("kind", req.Kind, "criterion", req.Criterion.String())

	if req.Criterion.IsEmpty() {
		log.Warn("propagation refused, empty criterion")
		e.notifier.Notify(types.Notice{
			Level:   types.NoticeWarning,
			Title:   "Nothing to match",
			Message: fmt.Sprintf("The %s value is empty; no similar records can be found.", req.Criterion.Field),
		})
		res.Outcome = types.OutcomeRefusedEmptyCriterion
		res.Err = types.ErrEmptyCriterion
		return res
	}

	matches, err := e.dir.FindMatching(ctx, req.Kind, req.Criterion)
	if err != nil {
		log.Error("lookup failed", "error", err)
		e.notifier.Notify(types.Notice{
			Level:   types.NoticeError,
			Title:   "Lookup failed",
			Message: fmt.Sprintf("Could not search for similar %s records: %v", req.Kind, err),
		})
		res.Outcome = types.OutcomeLookupFailed
		res.Err = fmt.Errorf("find matching %s: %w", req.Kind, err)
		return res
	}

	var targets []target
	if len(matches) == 0 {
		res.Outcome = types.OutcomeAppliedToSelf
		targets = []target{{id: req.OriginID, fields: req.Edited.Clone()}}
	} else {
		ok, err := e.confirmer.Confirm(ctx, types.ConfirmRequest{
			Kind:      req.Kind,
			Criterion: req.Criterion,
			Count:     len(matches),
			Message:   fmt.Sprintf("Apply these changes to %d %s records with %s?", len(matches), req.Kind, req.Criterion),
		})
		if err != nil || !ok {
			log.Info("propagation declined", "matches", len(matches), "error", err)
			res.Outcome = types.OutcomeDeclined
			res.Err = types.ErrDeclined
			if err != nil {
				res.Err = fmt.Errorf("%w: %w", types.ErrDeclined, err)
			}
			return res
		}
		res.Outcome = types.OutcomeApplied
		shared := req.Policy.Project(req.Edited)
		targets = make([]target, len(matches))
		for i, m := range matches {
			fields := shared
			if req.OriginID != "" && m.ID == req.OriginID {
				fields = req.Edited
			}
			targets[i] = target{id: m.ID, fields: fields.Clone()}
		}
	}

	errs := e.fanOut(ctx, req.Kind, targets)
	res.Attempted = len(targets)
	for i, t := range targets {
		if errs[i] != nil {
			res.Failures = append(res.Failures, types.Failure{RecordID: t.id, Message: errs[i].Error()})
			continue
		}
		res.Succeeded++
	}

	if req.ArtifactKey != "" && e.invalidator != nil {
		err := e.invalidator.Invalidate(ctx, req.ArtifactKey)
		if e.observer != nil {
			e.observer.CacheInvalidated(req.Kind, err)
		}
		if err != nil {
			log.Warn("cache invalidation failed", "key", req.ArtifactKey, "error", err)
			e.notifier.Notify(types.Notice{
				Level:   types.NoticeWarning,
				Title:   "Cache not refreshed",
				Message: fmt.Sprintf("Cached copies of %s could not be cleared: %v", req.ArtifactKey, err),
			})
		} else {
			res.Invalidated = true
		}
	}

	level := types.NoticeInfo
	if len(res.Failures) > 0 {
		level = types.NoticeWarning
	}
	log.Info("propagation finished", "outcome", res.Outcome, "attempted", res.Attempted, "succeeded", res.Succeeded)
	e.notifier.Notify(types.Notice{
		Level:   level,
		Title:   "Update complete",
		Message: fmt.Sprintf("%d of %d %s records updated.", res.Succeeded, res.Attempted, req.Kind),
	})
	return res
}

// fanOut runs one update per target and returns their errors in target
// order.
func (e *Engine) fanOut(ctx context.Context, kind types.Kind, targets []target) []error {
	errs := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, t := range targets {
		g.Go(func() error {
			errs[i] = e.update(ctx, kind, t)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (e *Engine) update(ctx context.Context, kind types.Kind, t target) error {
	if t.id == "" {
		return types.ErrMissingID
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	err := e.persist.Update(ctx, t.id, t.fields)
	if e.observer != nil {
		e.observer.RecordUpdated(kind, err)
	}
	if err != nil {
		e.logger.Debug("record update failed", "kind", kind, "id", t.id, "error", err)
	}
	return err
}
