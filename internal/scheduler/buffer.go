package scheduler

import (
	"container/heap"

	"github.com/gatherly/notify/internal/domain"
)

// bufferItem wraps a queued message with an admission sequence number used as
// the final tie-breaker, so ordering is total even for equal timestamps.
type bufferItem struct {
	msg *domain.QueuedMessage
	seq uint64
}

// messageHeap orders by priority weight descending, then original enqueue
// time ascending, then admission sequence. A requeue keeps the original
// enqueue time, so it re-sorts into its priority bucket without losing its
// FIFO position.
type messageHeap []*bufferItem

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	wi, wj := h[i].msg.Priority.Weight(), h[j].msg.Priority.Weight()
	if wi != wj {
		return wi > wj
	}
	if !h[i].msg.EnqueuedAt.Equal(h[j].msg.EnqueuedAt) {
		return h[i].msg.EnqueuedAt.Before(h[j].msg.EnqueuedAt)
	}
	return h[i].seq < h[j].seq
}

func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *messageHeap) Push(x any) {
	*h = append(*h, x.(*bufferItem))
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// buffer is the priority queue of waiting messages. Not safe for concurrent
// use; the scheduler serializes access through its own lock.
type buffer struct {
	heap       messageHeap
	seq        uint64
	byPriority map[domain.Priority]int
}

func newBuffer() *buffer {
	return &buffer{byPriority: make(map[domain.Priority]int)}
}

func (b *buffer) push(msg *domain.QueuedMessage) {
	b.seq++
	heap.Push(&b.heap, &bufferItem{msg: msg, seq: b.seq})
	b.byPriority[msg.Priority]++
}

func (b *buffer) pop() *domain.QueuedMessage {
	if b.heap.Len() == 0 {
		return nil
	}
	item := heap.Pop(&b.heap).(*bufferItem)
	b.byPriority[item.msg.Priority]--
	return item.msg
}

// peek returns the highest-priority message without removing it.
func (b *buffer) peek() *domain.QueuedMessage {
	if b.heap.Len() == 0 {
		return nil
	}
	return b.heap[0].msg
}

func (b *buffer) len() int { return b.heap.Len() }

func (b *buffer) clear() {
	b.heap = nil
	b.byPriority = make(map[domain.Priority]int)
}

func (b *buffer) countByPriority() map[domain.Priority]int {
	counts := make(map[domain.Priority]int, len(b.byPriority))
	for p, n := range b.byPriority {
		if n > 0 {
			counts[p] = n
		}
	}
	return counts
}
