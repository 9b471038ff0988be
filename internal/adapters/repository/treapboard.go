package repository

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/qualtrack/internal/domain/identity"
	"github.com/okian/qualtrack/internal/domain/model"
	"github.com/okian/qualtrack/pkg/metrics"
)

// Treap-based, in-memory Board implementation. One treap per segment.
//
// Ordering: time ASC, then key ASC (deterministic). In-order traversal
// produces the ranking list from fastest to slowest.

// hundredths is a swim time in fixed-point hundredths of a second.
type hundredths int64

func toHundredths(sec float64) hundredths {
	return hundredths(math.Round(sec * 100))
}

func (h hundredths) seconds() float64 { return float64(h) / 100 }

// record stores the fixed-point time plus display metadata for a swimmer's best.
type record struct {
	time  hundredths
	name  string
	tiref string
	club  string
	date  string
}

// treap node
type node struct {
	key   string
	time  hundredths
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aTime, aKey) ranks before (bTime, bKey).
func less(aTime hundredths, aKey string, bTime hundredths, bKey string) bool {
	if aTime != bTime {
		return aTime < bTime
	}
	return aKey < bKey
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, key string, t hundredths) *node {
	if n == nil {
		return &node{key: key, time: t, prio: rand.Uint64(), size: 1}
	}
	if less(t, key, n.time, n.key) {
		n.left = insert(n.left, key, t)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key, t)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, key string, t hundredths) *node {
	if n == nil {
		return nil
	}
	switch {
	case t == n.time && key == n.key:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, key, t)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, key, t)
		}
	case less(t, key, n.time, n.key):
		n.left = deleteNode(n.left, key, t)
	default:
		n.right = deleteNode(n.right, key, t)
	}
	fix(n)
	return n
}

// countFaster returns how many nodes hold a time strictly below t.
func countFaster(n *node, t hundredths) int {
	c := 0
	for n != nil {
		if n.time < t {
			c += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return c
}

// kth returns the k-th node in rank order (1-based).
func kth(n *node, k int) *node {
	for n != nil {
		ls := nsize(n.left)
		switch {
		case k <= ls:
			n = n.left
		case k == ls+1:
			return n
		default:
			k -= ls + 1
			n = n.right
		}
	}
	return nil
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

type tree struct {
	root   *node
	byKey  map[string]record
	byName map[string]string // normalised name -> key
}

func newTree() *tree {
	return &tree{byKey: make(map[string]record), byName: make(map[string]string)}
}

func (t *tree) put(key string, rec record) bool {
	if old, ok := t.byKey[key]; ok {
		if rec.time >= old.time {
			return false
		}
		t.root = deleteNode(t.root, key, old.time)
	}
	t.byKey[key] = rec
	t.byName[identity.NormalizeName(rec.name)] = key
	t.root = insert(t.root, key, rec.time)
	return true
}

func (t *tree) entry(key string) Entry {
	rec := t.byKey[key]
	return Entry{
		Rank:  1 + countFaster(t.root, rec.time),
		Key:   key,
		Name:  rec.name,
		Tiref: rec.tiref,
		Club:  rec.club,
		Time:  rec.time.seconds(),
		Date:  rec.date,
	}
}

// TreapBoard keeps the live ranking list of every segment.
type TreapBoard struct {
	mu       sync.RWMutex
	segments map[string]*tree
	keyer    identity.Keyer
}

// NewTreapBoard constructs an empty board.
func NewTreapBoard(opts ...Option) *TreapBoard {
	b := &TreapBoard{
		segments: make(map[string]*tree),
		keyer:    identity.TirefThenName,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func toRecord(row model.RankedSwimmer) (record, bool) {
	sec, ok := row.Time.Get()
	if !ok || sec < 0 {
		return record{}, false
	}
	return record{time: toHundredths(sec), name: row.Name, tiref: row.Tiref, club: row.Club, date: row.Date}, true
}

// Replace implements Board.Replace. Rows without a valid time are skipped; a swimmer listed
// twice keeps the faster time.
func (b *TreapBoard) Replace(_ context.Context, seg model.Segment, rows []model.RankedSwimmer) (int, error) {
	t := newTree()
	for _, row := range rows {
		rec, ok := toRecord(row)
		if !ok {
			metrics.RecordErrorByComponent("repository", "invalid_time")
			continue
		}
		t.put(b.keyer.Key(row.Name, row.Tiref), rec)
	}

	b.mu.Lock()
	b.segments[seg.Key()] = t
	total := b.totalLocked()
	b.mu.Unlock()

	metrics.UpdateBoardEntries(total)
	return len(t.byKey), nil
}

// Rank returns the competition rank of a swimmer in O(log n).
// id matches a tiref first, then a display name.
func (b *TreapBoard) Rank(_ context.Context, seg model.Segment, id string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency("board_rank", float64(time.Since(start).Milliseconds()))
	}()

	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.segments[seg.Key()]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	if key := b.keyer.Key("", id); key != "" {
		if _, ok := t.byKey[key]; ok {
			return t.entry(key), nil
		}
	}
	if key, ok := t.byName[identity.NormalizeName(id)]; ok {
		return t.entry(key), nil
	}
	metrics.RecordErrorByComponent("repository", "not_found")
	return Entry{}, ErrNotFound
}

// TopN returns the top N entries ordered by time asc. Equal times share a rank.
func (b *TreapBoard) TopN(_ context.Context, seg model.Segment, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency("board_top", float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.segments[seg.Key()]
	if !ok {
		return []Entry{}, nil
	}
	nodes := make([]*node, 0, min(n, len(t.byKey)))
	collectTopN(t.root, n, &nodes)

	out := make([]Entry, 0, len(nodes))
	for i, nd := range nodes {
		e := t.entry(nd.key)
		if i > 0 && nodes[i-1].time == nd.time {
			e.Rank = out[i-1].Rank
		} else {
			e.Rank = i + 1
		}
		out = append(out, e)
	}
	return out, nil
}

// NthTime returns the N-th fastest time of a segment.
func (b *TreapBoard) NthTime(_ context.Context, seg model.Segment, n int) (model.Seconds, error) {
	if n < 1 {
		return model.None(), ErrInvalidLimit
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.segments[seg.Key()]
	if !ok {
		return model.None(), nil
	}
	nd := kth(t.root, n)
	if nd == nil {
		return model.None(), nil
	}
	return model.Some(nd.time.seconds()), nil
}

// Count returns the number of swimmers held for a segment.
func (b *TreapBoard) Count(_ context.Context, seg model.Segment) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t, ok := b.segments[seg.Key()]; ok {
		return len(t.byKey)
	}
	return 0
}

// Total returns the number of swimmers held across all segments.
func (b *TreapBoard) Total(_ context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.totalLocked()
}

func (b *TreapBoard) totalLocked() int {
	total := 0
	for _, t := range b.segments {
		total += len(t.byKey)
	}
	return total
}
