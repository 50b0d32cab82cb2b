package render

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/vitalsd/internal/logger"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
)

// Frame is the result of one render cycle.
type Frame struct {
	Rendered time.Time
	Chart    Chart
	PNG      []byte
}

// Observer receives timings of the render cycle. Implementations must be
// safe for use from two goroutines.
type Observer interface {
	SnapshotTaken(elapsed time.Duration, measurements int)
	FrameRendered(elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) SnapshotTaken(time.Duration, int)  {}
func (nopObserver) FrameRendered(time.Duration, error) {}

type ConsumerOption func(*Consumer)

func WithObserver(o Observer) ConsumerOption {
	return func(c *Consumer) {
		c.observer = o
	}
}

// Consumer is the single reader of the store. On each refresh signal it takes
// exactly one snapshot and hands it to a drawing worker, so rendering never
// holds up the signal loop. The mailbox holds one snapshot; a newer snapshot
// replaces one the worker has not picked up yet.
type Consumer struct {
	store    telemetry.Snapshotter
	renderer Renderer
	opts     Options
	observer Observer

	mailbox    chan telemetry.Snapshot
	latest     atomic.Pointer[Frame]
	superseded atomic.Uint64
}

func NewConsumer(store telemetry.Snapshotter, renderer Renderer, opts Options, options ...ConsumerOption) (*Consumer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c := &Consumer{
		store:    store,
		renderer: renderer,
		opts:     opts,
		observer: nopObserver{},
		mailbox:  make(chan telemetry.Snapshot, 1),
	}
	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// Run handles signals until ctx is cancelled, then waits for the worker.
func (c *Consumer) Run(ctx context.Context, signals <-chan struct{}) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.work(ctx)
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
			c.OnRefresh()
		}
	}
}

// OnRefresh takes one snapshot and queues it for drawing.
func (c *Consumer) OnRefresh() {
	start := time.Now()
	snap := c.store.Snapshot()
	c.observer.SnapshotTaken(time.Since(start), snap.Total())

	for {
		select {
		case c.mailbox <- snap:
			return
		default:
		}

		select {
		case <-c.mailbox:
			c.superseded.Add(1)
			logger.Debug().Msg("Render worker busy, pending snapshot replaced")
		default:
		}
	}
}

// Latest returns the most recent frame, or nil before the first one.
func (c *Consumer) Latest() *Frame {
	return c.latest.Load()
}

// Superseded returns how many snapshots were replaced before being drawn.
func (c *Consumer) Superseded() uint64 {
	return c.superseded.Load()
}

func (c *Consumer) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-c.mailbox:
			c.draw(snap)
		}
	}
}

func (c *Consumer) draw(snap telemetry.Snapshot) {
	start := time.Now()
	chart := NewChart(snap, c.opts)

	img, err := c.renderer.Render(chart)
	c.observer.FrameRendered(time.Since(start), err)
	if err != nil {
		logger.ErrorWithCode(err).Msg("Failed to render chart")
		return
	}

	c.latest.Store(&Frame{
		Rendered: time.Now(),
		Chart:    chart,
		PNG:      img,
	})
}
