package ingest

import (
	"container/list"
)

// DefaultDedupSoftCap is the default soft cap on the dedup set before
// oldest-half eviction kicks in (spec.md §4.4 step 5).
const DefaultDedupSoftCap = 50_000

// DedupSet is an insertion-ordered set of dedup keys with oldest-half
// eviction on overflow (spec.md §9 "Dedup set growth policy": "implement
// with an insertion-ordered container"). Single-writer, no locking — it
// is only ever touched by the ingestion task.
type DedupSet struct {
	softCap int
	order   *list.List
	index   map[string]*list.Element
}

// NewDedupSet creates a DedupSet with the given soft cap. A non-positive
// cap falls back to DefaultDedupSoftCap.
func NewDedupSet(softCap int) *DedupSet {
	if softCap <= 0 {
		softCap = DefaultDedupSoftCap
	}
	return &DedupSet{
		softCap: softCap,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
}

// SeenOrAdd reports whether key was already present; if not, it inserts
// it and triggers eviction if the soft cap was exceeded.
func (d *DedupSet) SeenOrAdd(key string) bool {
	if _, ok := d.index[key]; ok {
		return true
	}
	el := d.order.PushBack(key)
	d.index[key] = el

	if d.order.Len() > d.softCap {
		d.evictOldestHalf()
	}
	return false
}

// Size returns the current number of tracked keys.
func (d *DedupSet) Size() int {
	return d.order.Len()
}

// evictOldestHalf drops the oldest half of entries in insertion order
// (spec.md §8 Testable Property 13).
func (d *DedupSet) evictOldestHalf() {
	toEvict := d.order.Len() / 2
	for i := 0; i < toEvict; i++ {
		front := d.order.Front()
		if front == nil {
			return
		}
		d.order.Remove(front)
		delete(d.index, front.Value.(string))
	}
}
