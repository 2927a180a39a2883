// Copyright (c) 2026 Alexander G.
// Author: Alexander G. (Samsonix)
// License: MIT
// Project: EyesOn SIM Management System - Pelephone API Simulator

package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// EventType represents different types of simulator events
type EventType string

const (
	EventJobCreated   EventType = "JOB_CREATED"
	EventJobCompleted EventType = "JOB_COMPLETED"
	EventSimUpdated   EventType = "SIM_UPDATED"
	EventSimsReset    EventType = "SIMS_RESET"
)

// Event represents a simulator event
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Stats holds aggregated event statistics
type Stats struct {
	Timestamp   time.Time           `json:"timestamp"`
	Total       int64               `json:"total"`
	ByType      map[EventType]int64 `json:"by_type"`
	Subscribers int                 `json:"subscribers"`
}

// Broadcaster fans every event out to all subscribers. Each subscriber has its
// own buffered channel; a full channel drops the event for that subscriber only.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}

	totalEvents int64
	statsByType sync.Map // EventType -> *int64
	nextID      uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new client and returns its dedicated event channel.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 256)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	count := len(b.subscribers)
	b.mu.Unlock()
	log.Printf("[SSE] Subscriber added (total: %d)", count)
	return ch
}

// Unsubscribe removes a client channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subscribers, ch)
	count := len(b.subscribers)
	close(ch)
	b.mu.Unlock()
	log.Printf("[SSE] Subscriber removed (total: %d)", count)
}

// Emit sends an event to ALL subscribed clients (fan-out). Safe on a nil receiver.
func (b *Broadcaster) Emit(eventType EventType, data any) {
	if b == nil {
		return
	}
	event := Event{
		ID:        fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), atomic.AddUint64(&b.nextID, 1)),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	atomic.AddInt64(&b.totalEvents, 1)
	if ptr, ok := b.statsByType.Load(eventType); ok {
		atomic.AddInt64(ptr.(*int64), 1)
	} else {
		n := new(int64)
		actual, _ := b.statsByType.LoadOrStore(eventType, n)
		atomic.AddInt64(actual.(*int64), 1)
	}

	b.mu.RLock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			log.Printf("[SSE] Warning: subscriber channel full, dropping event %s", eventType)
		}
	}
	b.mu.RUnlock()
}

// Stats returns current aggregated event statistics.
func (b *Broadcaster) Stats() Stats {
	byType := make(map[EventType]int64)
	b.statsByType.Range(func(key, value any) bool {
		byType[key.(EventType)] = atomic.LoadInt64(value.(*int64))
		return true
	})

	b.mu.RLock()
	subs := len(b.subscribers)
	b.mu.RUnlock()

	return Stats{
		Timestamp:   time.Now(),
		Total:       atomic.LoadInt64(&b.totalEvents),
		ByType:      byType,
		Subscribers: subs,
	}
}

// Handler establishes an SSE connection with a client.
func (b *Broadcaster) Handler(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	ch := b.Subscribe()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer b.Unsubscribe(ch)

		fmt.Fprintf(w, "event: connection\ndata: %q\n\n", "ok")
		if err := w.Flush(); err != nil {
			return
		}

		keepAlive := time.NewTicker(15 * time.Second)
		defer keepAlive.Stop()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					log.Printf("[SSE] Error marshalling event: %v", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
				if err := w.Flush(); err != nil {
					log.Printf("[SSE] Error flushing to client, likely disconnected: %v", err)
					return
				}
			case <-keepAlive.C:
				fmt.Fprintf(w, ": keep-alive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}
