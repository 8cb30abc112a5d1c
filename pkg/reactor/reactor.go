// Package reactor runs timers and cross-goroutine callbacks on a single
// dispatch goroutine. Everything that mutates printer state is scheduled
// here so handlers never race each other.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package reactor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"idleguard/pkg/log"
)

// Wake times in seconds on the reactor's monotonic clock.
const (
	NOW   = 0.0
	NEVER = 9999999999999999.0
)

// DefaultQueueSize bounds callbacks waiting to be run on the loop.
const DefaultQueueSize = 256

var (
	ErrReactorClosed = errors.New("reactor: reactor closed")
	ErrQueueFull     = errors.New("reactor: async queue full")
	ErrRunning       = errors.New("reactor: already running")
)

// TimerCallback receives the event time and returns the next wake time.
// Return NEVER to park the timer.
type TimerCallback func(eventtime float64) float64

// Timer is a registered timer.
type Timer struct {
	id       uint64
	callback TimerCallback
	oneshot  bool

	mu        sync.Mutex
	waketime  float64
	isRunning bool
}

// Waketime returns the timer's current wake time.
func (t *Timer) Waketime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waketime
}

// Completion carries the result of a callback run on the loop.
type Completion struct {
	reactor *Reactor
	result  interface{}
	done    chan struct{}
	once    sync.Once
}

// Test reports whether the completion has a result.
func (c *Completion) Test() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Complete sets the result and wakes waiters. Later calls are ignored.
func (c *Completion) Complete(result interface{}) {
	c.once.Do(func() {
		c.result = result
		close(c.done)
	})
}

// Wait blocks until the completion is done or the timeout expires, in
// which case timeoutResult is returned.
func (c *Completion) Wait(timeout time.Duration, timeoutResult interface{}) interface{} {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-c.done:
		return c.result
	case <-t.C:
		return timeoutResult
	case <-c.reactor.done:
		return timeoutResult
	}
}

// WaitContext blocks until the completion is done, ctx ends or the reactor
// stops.
func (c *Completion) WaitContext(ctx context.Context) (interface{}, error) {
	select {
	case <-c.done:
		return c.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.reactor.done:
		select {
		case <-c.done:
			return c.result, nil
		default:
			return nil, ErrReactorClosed
		}
	}
}

// Reactor manages timers and the async callback queue.
type Reactor struct {
	mu          sync.Mutex
	timers      []*Timer
	nextTimerID atomic.Uint64
	nextWake    float64

	asyncQueue chan func(eventtime float64)
	wake       chan struct{}

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc

	startTime time.Time
	logger    *log.Logger
}

// New creates a reactor with the default queue size.
func New() *Reactor {
	return NewWithQueue(DefaultQueueSize)
}

func NewWithQueue(size int) *Reactor {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Reactor{
		nextWake:   NEVER,
		asyncQueue: make(chan func(float64), size),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		startTime:  time.Now(),
		logger:     log.GetLogger("reactor"),
	}
}

// Monotonic returns seconds since the reactor was created.
func (r *Reactor) Monotonic() float64 {
	return time.Since(r.startTime).Seconds()
}

func (r *Reactor) kick() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// RegisterTimer adds a timer. It may be called from any goroutine.
func (r *Reactor) RegisterTimer(callback TimerCallback, waketime float64) *Timer {
	timer := &Timer{
		id:       r.nextTimerID.Add(1),
		callback: callback,
		waketime: waketime,
	}
	r.mu.Lock()
	r.timers = append(r.timers, timer)
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	r.mu.Unlock()
	r.kick()
	return timer
}

// UnregisterTimer removes a timer.
func (r *Reactor) UnregisterTimer(timer *Timer) {
	timer.mu.Lock()
	timer.waketime = NEVER
	timer.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.timers {
		if t.id == timer.id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			break
		}
	}
}

// UpdateTimer moves a timer's wake time. Updates from inside the timer's
// own callback are ignored; return the new time instead.
func (r *Reactor) UpdateTimer(timer *Timer, waketime float64) {
	timer.mu.Lock()
	if timer.isRunning {
		timer.mu.Unlock()
		return
	}
	timer.waketime = waketime
	timer.mu.Unlock()

	r.mu.Lock()
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	r.mu.Unlock()
	r.kick()
}

// Completion creates a new Completion object.
func (r *Reactor) Completion() *Completion {
	return &Completion{reactor: r, done: make(chan struct{})}
}

// RegisterCallback runs callback once at waketime and completes the
// returned Completion with its result.
func (r *Reactor) RegisterCallback(callback func(eventtime float64) interface{}, waketime float64) *Completion {
	completion := r.Completion()
	fire := func(eventtime float64) float64 {
		completion.Complete(callback(eventtime))
		return NEVER
	}
	timer := &Timer{
		id:       r.nextTimerID.Add(1),
		callback: fire,
		waketime: waketime,
		oneshot:  true,
	}
	r.mu.Lock()
	r.timers = append(r.timers, timer)
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	r.mu.Unlock()
	r.kick()
	return completion
}

// RegisterAsyncCallback queues callback to run on the loop. When the queue
// is full the completion is completed with ErrQueueFull.
func (r *Reactor) RegisterAsyncCallback(callback func(eventtime float64) interface{}) *Completion {
	completion := r.Completion()
	select {
	case r.asyncQueue <- func(eventtime float64) {
		completion.Complete(callback(eventtime))
	}:
		r.kick()
	default:
		completion.Complete(ErrQueueFull)
	}
	return completion
}

// Pause sleeps until waketime or until the reactor stops.
func (r *Reactor) Pause(waketime float64) float64 {
	now := r.Monotonic()
	if waketime <= now {
		return now
	}
	if waketime >= NEVER {
		<-r.done
		return r.Monotonic()
	}
	t := time.NewTimer(time.Duration((waketime - now) * float64(time.Second)))
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.done:
	}
	return r.Monotonic()
}

// Run dispatches timers and callbacks until ctx is cancelled or End is
// called. It returns nil on a clean stop.
func (r *Reactor) Run(ctx context.Context) error {
	if r.running.Swap(true) {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer r.stop()

	r.logger.Debug("dispatch loop started")
	for {
		eventtime := r.Monotonic()
		r.processAsyncCallbacks(eventtime)
		delay := r.checkTimers(eventtime)
		if delay <= 0 {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if delay > 1 {
			delay = 1
		}
		t := time.NewTimer(time.Duration(delay * float64(time.Second)))
		select {
		case <-t.C:
		case <-r.wake:
		case <-ctx.Done():
			t.Stop()
			r.logger.Debug("dispatch loop stopped")
			return nil
		}
		t.Stop()
	}
}

// End stops a running reactor.
func (r *Reactor) End() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	} else {
		r.stop()
	}
}

// Done is closed once the reactor has stopped.
func (r *Reactor) Done() <-chan struct{} {
	return r.done
}

func (r *Reactor) stop() {
	r.stopOnce.Do(func() {
		r.running.Store(false)
		close(r.done)
	})
}

func (r *Reactor) processAsyncCallbacks(eventtime float64) {
	for {
		select {
		case fn := <-r.asyncQueue:
			fn(eventtime)
		default:
			return
		}
	}
}

// checkTimers fires due timers and returns the delay until the next one.
func (r *Reactor) checkTimers(eventtime float64) float64 {
	r.mu.Lock()
	if eventtime < r.nextWake {
		delay := r.nextWake - eventtime
		r.mu.Unlock()
		return delay
	}
	timers := append([]*Timer(nil), r.timers...)
	r.nextWake = NEVER
	r.mu.Unlock()

	next := NEVER
	var fired []*Timer
	for _, timer := range timers {
		timer.mu.Lock()
		if eventtime >= timer.waketime {
			timer.waketime = NEVER
			timer.isRunning = true
			timer.mu.Unlock()

			newWaketime := timer.callback(eventtime)

			timer.mu.Lock()
			timer.isRunning = false
			if newWaketime < timer.waketime {
				timer.waketime = newWaketime
			}
			if timer.oneshot {
				fired = append(fired, timer)
			}
		}
		if timer.waketime < next {
			next = timer.waketime
		}
		timer.mu.Unlock()
	}

	for _, timer := range fired {
		r.UnregisterTimer(timer)
	}

	r.mu.Lock()
	if next < r.nextWake {
		r.nextWake = next
	}
	delay := r.nextWake - eventtime
	r.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	return delay
}
