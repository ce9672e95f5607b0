package playback

import (
	"slices"
	"testing"
	"time"

	"github.com/chase3718/autohold/internal/score"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestReleaseQueueOrder(t *testing.T) {
	var q releaseQueue
	q.push(t0.Add(ms(300)), "C")
	q.push(t0.Add(ms(100)), "A")
	q.push(t0.Add(ms(100)), "B")
	q.push(t0.Add(ms(200)), "D")

	if got := q.drain(); !slices.Equal(got, []string{"A", "B", "D", "C"}) {
		t.Errorf("drain() = %v, want [A B D C]", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len() after drain = %d, want 0", q.Len())
	}
}

func TestReleaseQueuePopDue(t *testing.T) {
	var q releaseQueue
	q.push(t0.Add(ms(50)), "A")
	q.push(t0.Add(ms(100)), "B")

	if _, ok := q.popDue(t0.Add(ms(49))); ok {
		t.Fatal("popDue before due time returned a key")
	}
	if k, ok := q.popDue(t0.Add(ms(50))); !ok || k != "A" {
		t.Errorf("popDue(50ms) = %q, %v, want A, true", k, ok)
	}
	if k, ok := q.popDue(t0.Add(ms(500))); !ok || k != "B" {
		t.Errorf("popDue(500ms) = %q, %v, want B, true", k, ok)
	}
}

func TestReleaseQueueRescale(t *testing.T) {
	var q releaseQueue
	q.push(t0.Add(ms(100)), "A")
	q.push(t0.Add(ms(400)), "B")

	// Remaining virtual time is remaining wall time times the old speed, so
	// doubling the speed halves the wait.
	q.rescale(t0, 1, 2)
	want := []Pending{{"A", ms(50)}, {"B", ms(200)}}
	if got := q.pending(t0); !slices.Equal(got, want) {
		t.Errorf("pending after 1->2 = %v, want %v", got, want)
	}

	now := t0.Add(ms(20))
	q.rescale(now, 2, 0.5)
	want = []Pending{{"A", ms(120)}, {"B", ms(720)}}
	if got := q.pending(now); !slices.Equal(got, want) {
		t.Errorf("pending after 2->0.5 = %v, want %v", got, want)
	}
}

func TestReleaseQueueFreezeThaw(t *testing.T) {
	var q releaseQueue
	q.push(t0.Add(ms(100)), "A")
	q.push(t0.Add(ms(300)), "B")

	q.freeze(t0.Add(ms(40)))
	if _, ok := q.popDue(t0.Add(time.Hour)); ok {
		t.Fatal("frozen queue released a key")
	}
	if _, ok := q.next(); ok {
		t.Error("frozen queue reported a due time")
	}

	later := t0.Add(time.Minute)
	want := []Pending{{"A", ms(60)}, {"B", ms(260)}}
	if got := q.pending(later); !slices.Equal(got, want) {
		t.Errorf("frozen pending = %v, want %v", got, want)
	}

	q.thaw(later)
	if got := q.pending(later); !slices.Equal(got, want) {
		t.Errorf("thawed pending = %v, want %v", got, want)
	}
	if d, _ := q.next(); !d.Equal(later.Add(ms(60))) {
		t.Errorf("next() = %v, want %v", d, later.Add(ms(60)))
	}
}

func TestReleaseQueueFreezeThawNoElapsed(t *testing.T) {
	var q releaseQueue
	q.push(t0.Add(ms(100)), "A")
	q.push(t0.Add(ms(250)), "B")
	now := t0.Add(ms(10))
	before := q.pending(now)

	q.freeze(now)
	q.thaw(now)

	if got := q.pending(now); !slices.Equal(got, before) {
		t.Errorf("pending = %v, want %v", got, before)
	}
}

func TestReleaseQueueRescaleWhileFrozen(t *testing.T) {
	var q releaseQueue
	q.push(t0.Add(ms(100)), "A")
	q.freeze(t0)
	q.rescale(t0, 1, 4)
	q.thaw(t0.Add(time.Second))

	want := []Pending{{"A", ms(25)}}
	if got := q.pending(t0.Add(time.Second)); !slices.Equal(got, want) {
		t.Errorf("pending = %v, want %v", got, want)
	}
}

func TestPairReleases(t *testing.T) {
	events := []score.Event{
		{Time: 0, Kind: score.Press, Key: "Y"},
		{Time: 1000, Kind: score.Press, Key: "Y"},
		{Time: 1000, Kind: score.Press, Key: "U"},
		{Time: 1020, Kind: score.Release, Key: "Y"},
		{Time: 1770, Kind: score.Release, Key: "Y"},
		{Time: 3000, Kind: score.Press, Key: "I"},
	}
	got := pairReleases(events, 600)

	// Overlapping presses of one key both pair with the first release after
	// them; a press with nothing after it falls back to the default hold.
	want := map[int]int64{0: 1020, 1: 1020, 2: 1600, 5: 3600}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("pair[%d] = %d, want %d", i, got[i], w)
		}
	}
}

func TestReleaseQueueCount(t *testing.T) {
	var q releaseQueue
	q.push(t0.Add(ms(40)), "A")
	q.push(t0.Add(ms(40)), "A")
	q.push(t0.Add(ms(90)), "B")

	if got := q.count("A"); got != 2 {
		t.Errorf("count(A) = %d, want 2", got)
	}
	q.popDue(t0.Add(ms(40)))
	if got := q.count("A"); got != 1 {
		t.Errorf("count(A) after one release = %d, want 1", got)
	}
	if got := q.count("C"); got != 0 {
		t.Errorf("count(C) = %d, want 0", got)
	}
}
