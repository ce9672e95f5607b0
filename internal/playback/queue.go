package playback

import (
	"container/heap"
	"slices"
	"time"
)

// pendingRelease is a key waiting to be let go at a wall-clock instant. While
// the queue is frozen only left is meaningful.
type pendingRelease struct {
	due  time.Time
	left time.Duration
	key  string
	seq  uint64
}

type releaseHeap []pendingRelease

func (h releaseHeap) Len() int { return len(h) }
func (h releaseHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h releaseHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *releaseHeap) Push(x any)   { *h = append(*h, x.(pendingRelease)) }
func (h *releaseHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// releaseQueue orders pending releases by due time, insertion order breaking
// ties. Freezing converts every due time into a remaining duration so a pause
// does not eat into the hold.
type releaseQueue struct {
	h      releaseHeap
	seq    uint64
	frozen bool
}

func (q *releaseQueue) Len() int { return q.h.Len() }

func (q *releaseQueue) push(due time.Time, key string) {
	q.seq++
	heap.Push(&q.h, pendingRelease{due: due, key: key, seq: q.seq})
}

// next reports the earliest due time.
func (q *releaseQueue) next() (time.Time, bool) {
	if q.frozen || q.h.Len() == 0 {
		return time.Time{}, false
	}
	return q.h[0].due, true
}

// popDue removes and returns the earliest release if it is due at now.
func (q *releaseQueue) popDue(now time.Time) (string, bool) {
	if q.frozen || q.h.Len() == 0 || now.Before(q.h[0].due) {
		return "", false
	}
	pr := heap.Pop(&q.h).(pendingRelease)
	return pr.key, true
}

func (q *releaseQueue) freeze(now time.Time) {
	if q.frozen {
		return
	}
	for i := range q.h {
		q.h[i].left = max(0, q.h[i].due.Sub(now))
	}
	q.frozen = true
}

func (q *releaseQueue) thaw(now time.Time) {
	if !q.frozen {
		return
	}
	for i := range q.h {
		q.h[i].due = now.Add(q.h[i].left)
		q.h[i].left = 0
	}
	q.frozen = false
	heap.Init(&q.h)
}

// rescale keeps every release's remaining virtual time constant across a
// speed change from -> to.
func (q *releaseQueue) rescale(now time.Time, from, to float64) {
	if from == to || to <= 0 {
		return
	}
	f := from / to
	for i := range q.h {
		if q.frozen {
			q.h[i].left = time.Duration(float64(q.h[i].left) * f)
			continue
		}
		rem := max(0, q.h[i].due.Sub(now))
		q.h[i].due = now.Add(time.Duration(float64(rem) * f))
	}
	if !q.frozen {
		heap.Init(&q.h)
	}
}

// count is how many releases of key are still queued.
func (q *releaseQueue) count(key string) int {
	n := 0
	for _, pr := range q.h {
		if pr.key == key {
			n++
		}
	}
	return n
}

// drain empties the queue and returns its keys in due order.
func (q *releaseQueue) drain() []string {
	items := q.sorted()
	q.h = q.h[:0]
	q.frozen = false
	keys := make([]string, len(items))
	for i, pr := range items {
		keys[i] = pr.key
	}
	return keys
}

// pending lists what is left to release and how long until each fires.
func (q *releaseQueue) pending(now time.Time) []Pending {
	items := q.sorted()
	out := make([]Pending, len(items))
	for i, pr := range items {
		rem := pr.left
		if !q.frozen {
			rem = max(0, pr.due.Sub(now))
		}
		out[i] = Pending{Key: pr.key, Remaining: rem}
	}
	return out
}

func (q *releaseQueue) sorted() []pendingRelease {
	items := slices.Clone(q.h)
	slices.SortStableFunc(items, func(a, b pendingRelease) int {
		if q.frozen && a.left != b.left {
			if a.left < b.left {
				return -1
			}
			return 1
		}
		if !q.frozen && !a.due.Equal(b.due) {
			return a.due.Compare(b.due)
		}
		if a.seq < b.seq {
			return -1
		}
		if a.seq > b.seq {
			return 1
		}
		return 0
	})
	return items
}
