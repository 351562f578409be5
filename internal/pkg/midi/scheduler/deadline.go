package scheduler

import (
	"container/heap"
	"time"

	"github.com/gethiox/strummer/internal/pkg/midi"
)

// key identifies a sounding note, re-triggering the same key replaces its deadline.
type key struct {
	note     uint8
	channels midi.ChannelSet
}

type entry struct {
	key      key
	started  time.Time
	deadline time.Time
	index    int
}

// deadlines is a min-heap of pending releases ordered by deadline.
type deadlines []*entry

func (d deadlines) Len() int { return len(d) }

func (d deadlines) Less(i, j int) bool {
	return d[i].deadline.Before(d[j].deadline)
}

func (d deadlines) Swap(i, j int) {
	d[i], d[j] = d[j], d[i]
	d[i].index = i
	d[j].index = j
}

func (d *deadlines) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*d)
	*d = append(*d, e)
}

func (d *deadlines) Pop() interface{} {
	old := *d
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*d = old[:n-1]
	return e
}

// table couples the heap with key lookup, it is not synchronized.
type table struct {
	heap    deadlines
	entries map[key]*entry
}

func newTable() *table {
	return &table{entries: make(map[key]*entry)}
}

// arm sets deadline for key, returns true when previous deadline got replaced.
func (t *table) arm(k key, now, deadline time.Time) bool {
	if e, ok := t.entries[k]; ok {
		e.started = now
		e.deadline = deadline
		heap.Fix(&t.heap, e.index)
		return true
	}
	e := &entry{key: k, started: now, deadline: deadline}
	heap.Push(&t.heap, e)
	t.entries[k] = e
	return false
}

func (t *table) cancel(k key) bool {
	e, ok := t.entries[k]
	if !ok {
		return false
	}
	heap.Remove(&t.heap, e.index)
	delete(t.entries, k)
	return true
}

// next returns the earliest deadline.
func (t *table) next() (time.Time, bool) {
	if len(t.heap) == 0 {
		return time.Time{}, false
	}
	return t.heap[0].deadline, true
}

// expire removes and returns every entry with deadline not after now, earliest first.
func (t *table) expire(now time.Time) []key {
	var expired []key
	for len(t.heap) > 0 && !t.heap[0].deadline.After(now) {
		e := heap.Pop(&t.heap).(*entry)
		delete(t.entries, e.key)
		expired = append(expired, e.key)
	}
	return expired
}

func (t *table) drain() []key {
	var keys = make([]key, 0, len(t.heap))
	for len(t.heap) > 0 {
		e := heap.Pop(&t.heap).(*entry)
		delete(t.entries, e.key)
		keys = append(keys, e.key)
	}
	return keys
}

func (t *table) len() int {
	return len(t.heap)
}
