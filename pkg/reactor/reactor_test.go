package reactor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// start runs r in the background and returns a function that stops it and
// waits for the loop to exit.
func start(t *testing.T, r *Reactor) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("reactor did not stop")
		}
	}
}

func TestMonotonic(t *testing.T) {
	r := New()
	t1 := r.Monotonic()
	time.Sleep(10 * time.Millisecond)
	if t2 := r.Monotonic(); t2 <= t1 {
		t.Errorf("monotonic time not increasing: %f <= %f", t2, t1)
	}
}

func TestTimer(t *testing.T) {
	r := New()
	var called atomic.Int32
	r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return NEVER
	}, NOW)

	stop := start(t, r)
	time.Sleep(50 * time.Millisecond)
	stop()

	if called.Load() != 1 {
		t.Errorf("timer callback called %d times, want 1", called.Load())
	}
}

func TestTimerRepeat(t *testing.T) {
	r := New()
	var called atomic.Int32
	r.RegisterTimer(func(eventtime float64) float64 {
		if called.Add(1) < 3 {
			return eventtime + 0.01
		}
		return NEVER
	}, NOW)

	stop := start(t, r)
	time.Sleep(150 * time.Millisecond)
	stop()

	if called.Load() != 3 {
		t.Errorf("timer callback called %d times, want 3", called.Load())
	}
}

func TestUnregisterTimer(t *testing.T) {
	r := New()
	var called atomic.Int32
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return NEVER
	}, r.Monotonic()+0.05)
	r.UnregisterTimer(timer)

	stop := start(t, r)
	time.Sleep(100 * time.Millisecond)
	stop()

	if called.Load() != 0 {
		t.Errorf("timer callback called %d times after unregister", called.Load())
	}
}

func TestUpdateTimerWakesLoop(t *testing.T) {
	r := New()
	fired := make(chan struct{}, 1)
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		fired <- struct{}{}
		return NEVER
	}, NEVER)

	stop := start(t, r)
	defer stop()
	r.UpdateTimer(timer, NOW)

	select {
	case <-fired:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("updated timer did not fire")
	}
}

func TestCompletion(t *testing.T) {
	r := New()
	comp := r.Completion()
	if comp.Test() {
		t.Error("completion should not be done yet")
	}
	comp.Complete("result")
	comp.Complete("ignored")
	if !comp.Test() {
		t.Error("completion should be done")
	}
	if got := comp.Wait(time.Second, nil); got != "result" {
		t.Errorf("got %v, want result", got)
	}
}

func TestCompletionWaitTimeout(t *testing.T) {
	comp := New().Completion()
	start := time.Now()
	if got := comp.Wait(30*time.Millisecond, "timeout"); got != "timeout" {
		t.Errorf("got %v, want timeout", got)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("returned after %v", elapsed)
	}
}

func TestRegisterCallback(t *testing.T) {
	r := New()
	completion := r.RegisterCallback(func(eventtime float64) interface{} {
		return "callback result"
	}, NOW)

	stop := start(t, r)
	defer stop()

	got, err := completion.WaitContext(context.Background())
	if err != nil || got != "callback result" {
		t.Errorf("got %v, %v", got, err)
	}
	time.Sleep(10 * time.Millisecond)
	r.mu.Lock()
	n := len(r.timers)
	r.mu.Unlock()
	if n != 0 {
		t.Errorf("one-shot timer left registered: %d timers", n)
	}
}

func TestRegisterAsyncCallback(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()

	var runs atomic.Int32
	for i := 0; i < 10; i++ {
		comp := r.RegisterAsyncCallback(func(eventtime float64) interface{} {
			return runs.Add(1)
		})
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if _, err := comp.WaitContext(ctx); err != nil {
			t.Fatalf("callback %d: %v", i, err)
		}
		cancel()
	}
	if runs.Load() != 10 {
		t.Errorf("got %d runs, want 10", runs.Load())
	}
}

func TestRegisterAsyncCallbackQueueFull(t *testing.T) {
	r := NewWithQueue(1)
	r.RegisterAsyncCallback(func(float64) interface{} { return nil })
	comp := r.RegisterAsyncCallback(func(float64) interface{} { return nil })
	if got := comp.Wait(time.Second, nil); got != ErrQueueFull {
		t.Errorf("got %v, want ErrQueueFull", got)
	}
}

func TestWaitContextAfterStop(t *testing.T) {
	r := New()
	stop := start(t, r)
	stop()

	comp := r.Completion()
	if _, err := comp.WaitContext(context.Background()); !errors.Is(err, ErrReactorClosed) {
		t.Errorf("got %v, want ErrReactorClosed", err)
	}
}

func TestRunTwice(t *testing.T) {
	r := New()
	stop := start(t, r)
	defer stop()
	time.Sleep(10 * time.Millisecond)
	if err := r.Run(context.Background()); !errors.Is(err, ErrRunning) {
		t.Errorf("got %v, want ErrRunning", err)
	}
}

func TestEnd(t *testing.T) {
	r := New()
	errc := make(chan error, 1)
	go func() { errc <- r.Run(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	r.End()
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("End did not stop the reactor")
	}
	if err := <-errc; err != nil {
		t.Errorf("got %v", err)
	}
}

func TestPause(t *testing.T) {
	r := New()
	waketime := r.Monotonic() + 0.03
	if got := r.Pause(waketime); got < waketime {
		t.Errorf("Pause returned too early: %f < %f", got, waketime)
	}
	now := r.Monotonic()
	if got := r.Pause(now - 1); got < now {
		t.Errorf("Pause should return the current time, got %f < %f", got, now)
	}
}
