// Package events provides the in-process job lifecycle event bus
package events

import (
	"context"
	"sync"

	"github.com/celestiaorg/reelcast/internal/logger"
)

// EventType represents the type of job lifecycle event
type EventType string

const (
	// EventJobCreated is emitted when a job is stored
	EventJobCreated EventType = "job_created"
	// EventJobStarted is emitted when a job first moves to processing
	EventJobStarted EventType = "job_started"
	// EventSceneCompleted is emitted when a scene result is appended
	EventSceneCompleted EventType = "scene_completed"
	// EventOperationSubmitted is emitted when a remote operation is submitted
	EventOperationSubmitted EventType = "operation_submitted"
	// EventJobCompleted is emitted when the final video is recorded
	EventJobCompleted EventType = "job_completed"
	// EventJobFailed is emitted when a job transitions to failed
	EventJobFailed EventType = "job_failed"
	// EventJobRetried is emitted when a failed job is moved back to processing
	EventJobRetried EventType = "job_retried"
	// EventChannelSize is the buffer size for the event channel
	EventChannelSize = 256
)

// Event represents a job lifecycle event
type Event struct {
	Type        EventType // The type of event
	JobID       string    // The job ID
	Attempt     int       // The job attempt the event belongs to
	TotalScenes int       // Number of scenes requested
	SceneIndex  int       // Scene the event refers to, when relevant
	Operation   string    // Remote operation kind, when relevant
	Reason      string    // Failure reason, when relevant
}

// Handler is a function that handles an event
type Handler func(context.Context, Event) error

// Bus fans published events out to subscribed handlers
type Bus struct {
	handlers   map[EventType][]Handler
	handlersMu sync.RWMutex
	eventChan  chan Event
	inflight   sync.WaitGroup
}

// NewBus creates an event bus. Call Start to begin delivery.
func NewBus() *Bus {
	return &Bus{
		handlers:  make(map[EventType][]Handler),
		eventChan: make(chan Event, EventChannelSize),
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	logger.Debugf("📝 Registered handler for event type: %s", eventType)
}

// Publish sends an event to be processed
func (b *Bus) Publish(event Event) {
	b.inflight.Add(1)
	b.eventChan <- event
	logger.Debugf("📢 Published event: %s (Job: %s)", event.Type, event.JobID)
}

// Start starts the event processing loop
func (b *Bus) Start(ctx context.Context) {
	go b.processEvents(ctx)
	logger.Info("🎯 Started event processing loop")
}

// Wait blocks until every published event has been handled
func (b *Bus) Wait() {
	b.inflight.Wait()
}

// processEvents handles events in the background
func (b *Bus) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("🛑 Stopping event processing loop")
			return
		case event := <-b.eventChan:
			b.handlersMu.RLock()
			eventHandlers := b.handlers[event.Type]
			b.handlersMu.RUnlock()

			var wg sync.WaitGroup
			for _, handler := range eventHandlers {
				wg.Add(1)
				go func(h Handler, e Event) {
					defer wg.Done()
					if err := h(ctx, e); err != nil {
						logger.Errorf("❌ Failed to handle event %s for job %s: %v", e.Type, e.JobID, err)
					}
				}(handler, event)
			}
			go func() {
				wg.Wait()
				b.inflight.Done()
			}()
		}
	}
}
