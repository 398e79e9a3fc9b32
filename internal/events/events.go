package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dualpane/rc/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// Job lifecycle events, published by the job manager on the UI goroutine
	EventJobStarted      EventType = "job_started"       // Job registered, worker spawned
	EventJobScanComplete EventType = "job_scan_complete" // Totals known
	EventJobProgress     EventType = "job_progress"      // Bytes/files advanced
	EventJobConflict     EventType = "job_conflict"      // Worker waits for a conflict decision
	EventJobPaused       EventType = "job_paused"        // Pause flag set
	EventJobResumed      EventType = "job_resumed"       // Pause flag cleared
	EventJobCompleted    EventType = "job_completed"     // Successfully completed
	EventJobFailed       EventType = "job_failed"        // Failed with error
	EventJobCancelled    EventType = "job_cancelled"     // Cancelled by user or conflict prompt
	EventJobDismissed    EventType = "job_dismissed"     // Terminal job removed from the list

	// Pane events
	EventPaneLoaded EventType = "pane_loaded" // Async directory load applied
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// JobEvent represents a job lifecycle change
type JobEvent struct {
	BaseEvent
	JobID          uint64
	JobType        string // "copy", "move", "delete", "rename"
	Description    string
	TotalBytes     int64
	ProcessedBytes int64
	FilesProcessed int64
	TotalFiles     int64
	Speed          float64 // bytes/sec, most recent throughput sample
	FilePath       string  // conflicting path for EventJobConflict
	Error          string  // message for EventJobFailed
}

// PaneEvent represents a directory load applied to a pane
type PaneEvent struct {
	BaseEvent
	Path    string
	Entries int
	Error   error
}

// NewJobEvent builds a JobEvent stamped with the current time.
func NewJobEvent(eventType EventType, jobID uint64, jobType string) *JobEvent {
	return &JobEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Time:      time.Now(),
		},
		JobID:   jobID,
		JobType: jobType,
	}
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers without blocking.
// A subscriber whose buffer is full misses the event; the drop is counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// Unsubscribe removes a subscription channel from a specific event type
// This prevents memory leaks from abandoned subscriptions
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
