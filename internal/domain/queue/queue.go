package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Priority represents the priority tier of a queue item.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

// Rank returns the sort rank of the priority; lower drains first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// ParsePriority parses a string to a Priority, defaulting to MEDIUM.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Item is one pending unit of work. Ephemeral: it exists only while the
// work is outstanding and is removed on completion or terminal failure.
type Item struct {
	ID          uuid.UUID
	ExecutionID uuid.UUID
	Priority    Priority
	RetryCount  int
	MaxRetries  int
	CreatedAt   time.Time
}

// NewItem creates a queue item for an execution.
func NewItem(executionID uuid.UUID, priority Priority, maxRetries int) *Item {
	return &Item{
		ID:          uuid.New(),
		ExecutionID: executionID,
		Priority:    priority,
		MaxRetries:  maxRetries,
		CreatedAt:   time.Now().UTC(),
	}
}

// Queue is a passive, in-memory priority queue drained by the orchestrator.
// Ordering is a total order by priority tier with ties broken by insertion
// order. A processing set guards against double-dispatch. The queue never
// blocks a submitter.
type Queue struct {
	mu         sync.Mutex
	items      []*Item
	processing map[uuid.UUID]struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{processing: make(map[uuid.UUID]struct{})}
}

// Enqueue appends the item and re-sorts by priority. The sort is stable so
// equal-priority items keep insertion order.
func (q *Queue) Enqueue(item *Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].Priority.Rank() < q.items[j].Priority.Rank()
	})
}

// Dequeue returns the first item not already processing and marks it
// processing. Returns nil when the queue is empty or everything is in
// flight.
func (q *Queue) Dequeue() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if _, busy := q.processing[item.ID]; busy {
			continue
		}
		q.processing[item.ID] = struct{}{}
		return item
	}
	return nil
}

// Complete removes the item from the queue and the processing set,
// regardless of outcome.
func (q *Queue) Complete(itemID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, itemID)
	for i, item := range q.items {
		if item.ID == itemID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Len returns the number of items outstanding, including in-flight ones.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns the number of items not currently processing.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - len(q.processing)
}
