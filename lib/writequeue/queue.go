// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package writequeue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/padfs/lib/clock"
)

// DefaultWindow is the debounce window when Options.Window is zero.
const DefaultWindow = 100 * time.Millisecond

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("write queue closed")

// Kind classifies an operation.
type Kind int

const (
	Create Kind = iota
	Change
	Delete
)

func (k Kind) String() string {
	switch k {
	case Create:
		return "create"
	case Change:
		return "change"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Op is one requested mutation of a file in a store. Content is
// ignored for Delete.
type Op struct {
	Kind     Kind
	StoreID  string
	Filename string
	Content  string
}

// FileChange is the collapsed value for one filename.
type FileChange struct {
	Content string
	Deleted bool
}

// Batch is everything to apply to one store in one remote call.
type Batch struct {
	StoreID string
	Files   map[string]FileChange

	// Ops counts the operations folded into Files.
	Ops int
}

// Filenames returns the batch's filenames in sorted order.
func (b Batch) Filenames() []string {
	names := make([]string, 0, len(b.Files))
	for name := range b.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flusher applies a batch to its store.
type Flusher interface {
	FlushBatch(ctx context.Context, batch Batch) error
}

// FlusherFunc adapts a function to Flusher.
type FlusherFunc func(ctx context.Context, batch Batch) error

func (f FlusherFunc) FlushBatch(ctx context.Context, batch Batch) error { return f(ctx, batch) }

// Observer receives the outcome of every flushed batch.
type Observer func(batch Batch, duration time.Duration, err error)

// Options configures a Queue.
type Options struct {
	Flusher Flusher
	Clock   clock.Clock
	Window  time.Duration

	// Observer, if set, is called after each flush and before the
	// batch's futures resolve.
	Observer Observer

	Logger *slog.Logger
}

// Queue is a debounced, per-store serializing write buffer.
type Queue struct {
	flusher  Flusher
	clock    clock.Clock
	window   time.Duration
	observer Observer
	logger   *slog.Logger

	mu         sync.Mutex
	buffer     []pending
	timer      *clock.Timer
	generation uint64
	lanes      map[string]*lane
	closed     bool

	// active counts running lane workers; idle is closed when it
	// drops to zero.
	active int
	idle   chan struct{}
}

type pending struct {
	op   Op
	done chan error
}

// group is one collapsed batch together with the futures it settles.
type group struct {
	batch   Batch
	waiters []chan error
}

// lane serializes the groups of a single store.
type lane struct {
	queue   []group
	running bool
}

// New returns a Queue. Options.Flusher is required.
func New(options Options) *Queue {
	if options.Flusher == nil {
		panic("writequeue: Options.Flusher is required")
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Window <= 0 {
		options.Window = DefaultWindow
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Queue{
		flusher:  options.Flusher,
		clock:    options.Clock,
		window:   options.Window,
		observer: options.Observer,
		logger:   options.Logger,
		lanes:    make(map[string]*lane),
	}
}

// Submit buffers op and returns its future. The channel receives
// exactly one value, nil on success, once the batch carrying op has
// been flushed.
func (q *Queue) Submit(op Op) <-chan error {
	return q.SubmitAll(op)[0]
}

// SubmitAll buffers ops together, so they always share a window, and
// returns their futures in order.
func (q *Queue) SubmitAll(ops ...Op) []<-chan error {
	futures := make([]<-chan error, len(ops))

	q.mu.Lock()
	defer q.mu.Unlock()
	for i, op := range ops {
		done := make(chan error, 1)
		futures[i] = done
		if q.closed {
			done <- ErrClosed
			continue
		}
		q.buffer = append(q.buffer, pending{op: op, done: done})
	}
	if q.closed || len(ops) == 0 {
		return futures
	}
	q.generation++
	generation := q.generation
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = q.clock.AfterFunc(q.window, func() { q.windowClosed(generation) })
	return futures
}

// Enqueue submits op and waits for its result. Cancelling ctx stops
// the wait; the operation itself stays queued.
func (q *Queue) Enqueue(ctx context.Context, op Op) error {
	select {
	case err := <-q.Submit(op):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Await waits for every future and returns the first error.
func Await(ctx context.Context, futures ...<-chan error) error {
	var first error
	for _, future := range futures {
		select {
		case err := <-future:
			if err != nil && first == nil {
				first = err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return first
}

// windowClosed runs when a debounce timer fires. A timer superseded
// by a later Submit does nothing.
func (q *Queue) windowClosed(generation uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if generation != q.generation {
		return
	}
	q.drainLocked()
}

// drainLocked moves the buffer into the per-store lanes and starts
// idle lane workers. Caller holds q.mu.
func (q *Queue) drainLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	if len(q.buffer) == 0 {
		return
	}
	drained := q.buffer
	q.buffer = nil

	for _, group := range collapse(drained) {
		storeLane, ok := q.lanes[group.batch.StoreID]
		if !ok {
			storeLane = &lane{}
			q.lanes[group.batch.StoreID] = storeLane
		}
		storeLane.queue = append(storeLane.queue, group)
		if !storeLane.running {
			storeLane.running = true
			if q.active == 0 {
				q.idle = make(chan struct{})
			}
			q.active++
			go q.runLane(group.batch.StoreID, storeLane)
		}
	}
}

// collapse groups operations by store in order of first appearance and
// keeps the last value per filename.
func collapse(drained []pending) []group {
	var groups []group
	index := make(map[string]int)
	for _, item := range drained {
		position, ok := index[item.op.StoreID]
		if !ok {
			position = len(groups)
			index[item.op.StoreID] = position
			groups = append(groups, group{batch: Batch{
				StoreID: item.op.StoreID,
				Files:   make(map[string]FileChange),
			}})
		}
		current := &groups[position]
		if item.op.Kind == Delete {
			current.batch.Files[item.op.Filename] = FileChange{Deleted: true}
		} else {
			current.batch.Files[item.op.Filename] = FileChange{Content: item.op.Content}
		}
		current.batch.Ops++
		current.waiters = append(current.waiters, item.done)
	}
	return groups
}

// runLane flushes one store's groups until its lane is empty.
func (q *Queue) runLane(storeID string, storeLane *lane) {
	for {
		q.mu.Lock()
		if len(storeLane.queue) == 0 {
			storeLane.running = false
			delete(q.lanes, storeID)
			q.active--
			if q.active == 0 {
				close(q.idle)
			}
			q.mu.Unlock()
			return
		}
		next := storeLane.queue[0]
		storeLane.queue = storeLane.queue[1:]
		q.mu.Unlock()

		q.flush(next)
	}
}

func (q *Queue) flush(next group) {
	started := q.clock.Now()
	err := q.flusher.FlushBatch(context.Background(), next.batch)
	elapsed := q.clock.Now().Sub(started)
	if err != nil {
		err = fmt.Errorf("flushing %d files to store %s: %w", len(next.batch.Files), next.batch.StoreID, err)
		q.logger.Warn("write batch failed",
			"store", next.batch.StoreID,
			"files", len(next.batch.Files),
			"ops", next.batch.Ops,
			"error", err,
		)
	} else {
		q.logger.Debug("write batch flushed",
			"store", next.batch.StoreID,
			"files", len(next.batch.Files),
			"ops", next.batch.Ops,
			"duration", elapsed,
		)
	}
	if q.observer != nil {
		q.observer(next.batch, elapsed, err)
	}
	for _, waiter := range next.waiters {
		waiter <- err
	}
}

// Flush closes the current window immediately and waits until every
// lane has drained.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	q.generation++
	q.drainLocked()
	if q.active == 0 {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes what is buffered and rejects later submissions.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return q.Flush(ctx)
}
