package server

import (
	"sync"

	"github.com/watt-toolkit/relay/pkg/relay/netio"
)

// TaskTag says what a Task asks of the worker that pops it.
type TaskTag uint8

const (
	// TaskNormal carries an accepted connection.
	TaskNormal TaskTag = iota

	// TaskPlaceholder marks a failed accept. The worker backs off and moves on.
	TaskPlaceholder

	// TaskHalt tells exactly one worker to exit.
	TaskHalt
)

var taskTagNames = [...]string{
	TaskNormal:      "normal",
	TaskPlaceholder: "placeholder",
	TaskHalt:        "halt",
}

func (t TaskTag) String() string {
	if int(t) < len(taskTagNames) {
		return taskTagNames[t]
	}
	return "invalid"
}

// Task is one unit of work handed from the Producer to a Worker. It is
// consumed exactly once and never mutated after it is pushed.
type Task struct {
	Sock *netio.ClientSocket
	Tag  TaskTag
}

// Queue is a bounded FIFO shared by one producer and many consumers. Pop
// suspends on a condition variable while the queue is empty; each successful
// TryPush wakes one waiter.
type Queue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond

	// ring storage
	items []Task
	head  int
	size  int
}

// NewQueue returns a queue holding at most capacity tasks.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{items: make([]Task, capacity)}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// TryPush appends t unless the queue is full.
func (q *Queue) TryPush(t Task) bool {
	q.mu.Lock()
	if q.size == len(q.items) {
		q.mu.Unlock()
		return false
	}
	q.items[(q.head+q.size)%len(q.items)] = t
	q.size++
	q.mu.Unlock()

	q.nonEmpty.Signal()
	return true
}

// Pop removes the oldest task, blocking until one is available.
func (q *Queue) Pop() Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 {
		q.nonEmpty.Wait()
	}
	t := q.items[q.head]
	q.items[q.head] = Task{}
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return t
}

// ClearAll discards every pending task and returns them so the caller can
// release their connections.
func (q *Queue) ClearAll() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := make([]Task, 0, q.size)
	for q.size > 0 {
		dropped = append(dropped, q.items[q.head])
		q.items[q.head] = Task{}
		q.head = (q.head + 1) % len(q.items)
		q.size--
	}
	q.head = 0
	return dropped
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the fixed capacity.
func (q *Queue) Cap() int {
	return len(q.items)
}
