package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watt-toolkit/relay/pkg/relay/netio"
)

// marker builds a distinguishable task without a real connection.
func marker(i int) Task {
	return Task{Tag: TaskTag(i % 2), Sock: netio.NewClientSocket(nil, 0)}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(8)
	pushed := make([]*netio.ClientSocket, 0, 8)
	for i := 0; i < 8; i++ {
		task := marker(i)
		pushed = append(pushed, task.Sock)
		require.True(t, q.TryPush(task))
	}
	assert.False(t, q.TryPush(marker(99)), "push into a full queue must fail")
	assert.Equal(t, 8, q.Len())

	for i := 0; i < 8; i++ {
		got := q.Pop()
		if got.Sock != pushed[i] {
			t.Fatalf("Pop() #%d returned the wrong task", i)
		}
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueWrapsAround(t *testing.T) {
	q := NewQueue(3)
	next := 0
	var want []*netio.ClientSocket
	for round := 0; round < 5; round++ {
		for q.Len() < q.Cap() {
			task := marker(next)
			next++
			want = append(want, task.Sock)
			require.True(t, q.TryPush(task))
		}
		got := q.Pop()
		require.Same(t, want[0], got.Sock)
		want = want[1:]
	}
}

func TestQueueClearAll(t *testing.T) {
	q := NewQueue(4)
	q.TryPush(marker(1))
	q.TryPush(marker(2))
	q.TryPush(marker(3))

	dropped := q.ClearAll()
	assert.Len(t, dropped, 3)
	assert.Equal(t, 0, q.Len())

	// Usable after clearing, and FIFO from a fresh head.
	first, second := marker(4), marker(5)
	q.TryPush(first)
	q.TryPush(second)
	assert.Same(t, first.Sock, q.Pop().Sock)
	assert.Same(t, second.Sock, q.Pop().Sock)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue(1)
	got := make(chan Task, 1)
	go func() { got <- q.Pop() }()

	select {
	case <-got:
		t.Fatal("Pop returned from an empty queue")
	case <-time.After(30 * time.Millisecond):
	}

	q.TryPush(Task{Tag: TaskHalt})
	select {
	case task := <-got:
		assert.Equal(t, TaskHalt, task.Tag)
	case <-time.After(time.Second):
		t.Fatal("Pop was not woken by TryPush")
	}
}

func TestQueueConcurrentDeliveryExactlyOnce(t *testing.T) {
	const (
		consumers = 8
		items     = 2000
	)
	q := NewQueue(16)

	var (
		mu   sync.Mutex
		seen = make(map[*netio.ClientSocket]int, items)
		wg   sync.WaitGroup
	)
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task := q.Pop()
				if task.Tag == TaskHalt {
					return
				}
				mu.Lock()
				seen[task.Sock]++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < items; i++ {
		task := Task{Tag: TaskNormal, Sock: netio.NewClientSocket(nil, 0)}
		for !q.TryPush(task) {
			time.Sleep(time.Microsecond)
		}
	}
	for c := 0; c < consumers; c++ {
		for !q.TryPush(Task{Tag: TaskHalt}) {
			time.Sleep(time.Microsecond)
		}
	}
	wg.Wait()

	assert.Len(t, seen, items)
	for _, n := range seen {
		if n != 1 {
			t.Fatalf("task delivered %d times, want 1", n)
		}
	}
}

func TestTaskTagString(t *testing.T) {
	tests := map[TaskTag]string{
		TaskNormal:      "normal",
		TaskPlaceholder: "placeholder",
		TaskHalt:        "halt",
		TaskTag(7):      "invalid",
	}
	for tag, want := range tests {
		if got := tag.String(); got != want {
			t.Errorf("TaskTag(%d).String() = %q, want %q", tag, got, want)
		}
	}
}
