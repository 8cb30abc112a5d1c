// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package history

import (
	"context"
	"sync/atomic"

	"idleguard/pkg/idle"
	"idleguard/pkg/log"
)

// DefaultQueueSize bounds events waiting for the database.
const DefaultQueueSize = 64

// Writer is an idle.Recorder that hands events to a Store from its own
// goroutine.
type Writer struct {
	store   *Store
	queue   chan idle.Event
	logger  *log.Logger
	dropped atomic.Uint64
}

func NewWriter(store *Store, size int) *Writer {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Writer{
		store:  store,
		queue:  make(chan idle.Event, size),
		logger: log.GetLogger("history"),
	}
}

// Record queues an event. When the queue is full the event is dropped.
func (w *Writer) Record(ev idle.Event) {
	select {
	case w.queue <- ev:
	default:
		w.dropped.Add(1)
		w.logger.WithField("kind", ev.Kind).Warn("history queue full, event dropped")
	}
}

// Dropped returns the number of events lost to a full queue.
func (w *Writer) Dropped() uint64 {
	return w.dropped.Load()
}

// Run writes queued events until ctx is done, then flushes what is left.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-w.queue:
			w.write(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-w.queue:
					w.write(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (w *Writer) write(ev idle.Event) {
	if err := w.store.Append(context.Background(), ev); err != nil {
		w.logger.WithError(err).Error("failed to store event %s", ev.ID)
	}
}
