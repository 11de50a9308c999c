// Package dispatcher memoizes pose edits by image content and angles.
//
// For a given key at most one editor call is in flight at a time, and a
// successful result is served from the store until its TTL elapses.
// Failures reach callers as entity.Failure values, never as Go errors.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"HeadTurner/internal/entity"
	"HeadTurner/pkg/prompt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultTTL     = time.Hour
	DefaultTimeout = 60 * time.Second
)

// Editor is the external capability that applies an instruction to an image.
type Editor interface {
	EditImage(ctx context.Context, image entity.Image, instruction string) (*entity.Image, error)
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type Option func(*Dispatcher)

type Dispatcher struct {
	editor     Editor
	store      Store
	clock      Clock
	ttl        time.Duration
	failureTTL time.Duration
	timeout    time.Duration
	limiter    *rate.Limiter
	log        *logrus.Logger
	group      singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	shared      atomic.Int64
	editorCalls atomic.Int64
	failures    atomic.Int64
}

// Stats counts each caller once: served from the store (Hits), or joined
// a flight another caller started (Shared). Misses counts flights that went
// to the editor.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Shared      int64 `json:"shared"`
	EditorCalls int64 `json:"editor_calls"`
	Failures    int64 `json:"failures"`
}

func New(editor Editor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		editor:  editor,
		clock:   ClockFunc(time.Now),
		ttl:     DefaultTTL,
		timeout: DefaultTimeout,
		log:     logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.store == nil {
		d.store = NewMemoryStore(0)
	}

	return d
}

func WithStore(store Store) Option {
	return func(d *Dispatcher) {
		d.store = store
	}
}

func WithClock(clock Clock) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithFailureTTL memoizes refusals and provider errors for ttl. Zero keeps
// failures out of the store so the next request retries.
func WithFailureTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		if ttl >= 0 {
			d.failureTTL = ttl
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLimiter paces outbound editor calls. Calls over the limit fail fast
// with a rate-limit failure instead of queueing.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(d *Dispatcher) {
		d.limiter = limiter
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.log = logger
		}
	}
}

func (d *Dispatcher) RequestPose(ctx context.Context, req entity.PoseRequest) entity.PoseResult {
	key := NewKey(req).String()

	if res, ok := d.lookup(ctx, key); ok {
		d.hits.Add(1)
		d.log.WithFields(logrus.Fields{
			"key":    key,
			"cached": true,
		}).Debug("Pose served from cache")
		return res
	}

	// The flight outlives the caller that started it; other callers may
	// still be waiting on it.
	flightCtx := context.WithoutCancel(ctx)
	ch := d.group.DoChan(key, func() (interface{}, error) {
		// A flight that finished between lookup and DoChan has already
		// stored its result.
		if res, ok := d.lookup(flightCtx, key); ok {
			d.hits.Add(1)
			return res, nil
		}
		d.misses.Add(1)

		res := d.call(flightCtx, req)
		d.remember(flightCtx, key, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		d.failures.Add(1)
		return entity.PoseResult{
			Failure:   toFailure(fmt.Errorf("waiting for pose: %w", ctx.Err())),
			Prompt:    prompt.Compile(req.Yaw, req.Pitch),
			CreatedAt: d.clock.Now(),
		}
	case r := <-ch:
		if r.Shared {
			d.shared.Add(1)
		}
		return r.Val.(entity.PoseResult)
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Hits:        d.hits.Load(),
		Misses:      d.misses.Load(),
		Shared:      d.shared.Load(),
		EditorCalls: d.editorCalls.Load(),
		Failures:    d.failures.Load(),
	}
}

// Forget drops any stored result for the request.
func (d *Dispatcher) Forget(ctx context.Context, req entity.PoseRequest) error {
	return d.store.Delete(ctx, NewKey(req).String())
}

// Janitor sweeps expired entries every interval until ctx is done. It is a
// no-op for stores that cannot sweep.
func (d *Dispatcher) Janitor(ctx context.Context, interval time.Duration) {
	sweeper, ok := d.store.(Sweeper)
	if !ok || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sweeper.Sweep(d.clock.Now()); n > 0 {
				d.log.WithField("removed", n).Debug("Swept expired pose entries")
			}
		}
	}
}

func (d *Dispatcher) lookup(ctx context.Context, key string) (entity.PoseResult, bool) {
	entry, ok := d.store.Get(ctx, key)
	if !ok {
		return entity.PoseResult{}, false
	}

	// Expired entries are left in place: a concurrent flight may already
	// have replaced this one, and the next Set or Sweep drops it anyway.
	if entry.Expired(d.clock.Now()) {
		return entity.PoseResult{}, false
	}

	res := entry.Result
	res.Cached = true
	return res, true
}

func (d *Dispatcher) call(ctx context.Context, req entity.PoseRequest) entity.PoseResult {
	instruction := prompt.Compile(req.Yaw, req.Pitch)
	res := entity.PoseResult{Prompt: instruction}

	if d.limiter != nil && !d.limiter.Allow() {
		res.Failure = toFailure(ErrRateLimited)
		res.CreatedAt = d.clock.Now()
		d.failures.Add(1)
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.editorCalls.Add(1)
	start := time.Now()
	img, err := d.edit(ctx, req.Image, instruction)
	res.CreatedAt = d.clock.Now()

	if err == nil && (img == nil || len(img.Data) == 0) {
		err = ErrNoImage
	}

	fields := logrus.Fields{
		"yaw":        req.Yaw,
		"pitch":      req.Pitch,
		"latency_ms": time.Since(start).Milliseconds(),
	}

	if err != nil {
		res.Failure = toFailure(err)
		d.failures.Add(1)
		fields["error"] = err.Error()
		fields["kind"] = res.Failure.Kind
		d.log.WithFields(fields).Warn("Pose edit failed")
		return res
	}

	res.Image = img
	d.log.WithFields(fields).Info("Pose edit completed")
	return res
}

// edit runs the editor so that neither a hung provider nor a panic can
// escape the timeout.
func (d *Dispatcher) edit(ctx context.Context, image entity.Image, instruction string) (*entity.Image, error) {
	type outcome struct {
		img *entity.Image
		err error
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("editor panic: %v", r)}
			}
		}()
		img, err := d.editor.EditImage(ctx, image, instruction)
		done <- outcome{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, o.err)
		}
		return o.img, o.err
	}
}

func (d *Dispatcher) remember(ctx context.Context, key string, res entity.PoseResult) {
	ttl := d.ttl
	if res.Failure != nil {
		if res.Failure.Kind == entity.FailureTimeout || res.Failure.Kind == entity.FailureRateLimited {
			return
		}
		ttl = d.failureTTL
	}
	if ttl <= 0 {
		return
	}

	now := d.clock.Now()
	entry := &Entry{
		Key:       key,
		Result:    res,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := d.store.Set(ctx, entry); err != nil {
		d.log.WithField("key", key).Warnf("Failed to store pose entry: %v", err)
	}
}
