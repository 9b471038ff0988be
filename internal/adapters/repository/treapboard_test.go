package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/qualtrack/internal/domain/model"
)

var seg = model.Segment{Event: "100 Free", AgeGroup: "14", Sex: "F"}

func row(name, tiref string, t float64) model.RankedSwimmer {
	return model.RankedSwimmer{Name: name, Tiref: tiref, Time: model.Some(t), Club: "Tonbridge SC"}
}

func TestTreapBoard_BasicOperations(t *testing.T) {
	ctx := context.Background()
	b := NewTreapBoard()

	if count := b.Count(ctx, seg); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	n, err := b.Replace(ctx, seg, []model.RankedSwimmer{row("Alice", "100", 61.23)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row kept, got %d", n)
	}

	entry, err := b.Rank(ctx, seg, "100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 || entry.Time != 61.23 || entry.Name != "Alice" {
		t.Errorf("unexpected entry %+v", entry)
	}

	byName, err := b.Rank(ctx, seg, "  alice ")
	if err != nil {
		t.Fatalf("lookup by name: %v", err)
	}
	if byName.Key != entry.Key {
		t.Errorf("expected %s, got %s", entry.Key, byName.Key)
	}

	if _, err := b.Rank(ctx, seg, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	other := model.Segment{Event: "200 Free", AgeGroup: "14", Sex: "F"}
	if _, err := b.Rank(ctx, other, "100"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown segment, got %v", err)
	}
}

func TestTreapBoard_KeepsFastest(t *testing.T) {
	ctx := context.Background()
	b := NewTreapBoard()

	n, err := b.Replace(ctx, seg, []model.RankedSwimmer{
		row("Alice", "100", 62.0),
		row("Alice", "100", 63.0),
		row("Alice", "100", 61.5),
		row("Alice", "100", 62.0),
		{Name: "Ghost"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || b.Count(ctx, seg) != 1 {
		t.Errorf("expected 1 swimmer, got %d", b.Count(ctx, seg))
	}
	e, _ := b.Rank(ctx, seg, "100")
	if e.Time != 61.5 {
		t.Errorf("expected 61.5, got %v", e.Time)
	}
	if _, err := b.Rank(ctx, seg, "Ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("a row without a time must be skipped, got %v", err)
	}
}

func TestTreapBoard_CompetitionRanks(t *testing.T) {
	ctx := context.Background()
	b := NewTreapBoard()

	n, err := b.Replace(ctx, seg, []model.RankedSwimmer{
		row("Dee", "4", 63.0),
		row("Bea", "2", 61.0),
		row("Cat", "3", 61.0),
		row("Ann", "1", 60.0),
		{Name: "NoTime"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("expected 4 rows kept, got %d", n)
	}

	top, err := b.TopN(ctx, seg, 10)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, 0, len(top))
	for _, e := range top {
		got = append(got, fmt.Sprintf("%d:%s", e.Rank, e.Name))
	}
	want := []string{"1:Ann", "2:Bea", "2:Cat", "4:Dee"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	cat, _ := b.Rank(ctx, seg, "3")
	if cat.Rank != 2 {
		t.Errorf("expected tied rank 2, got %d", cat.Rank)
	}

	third, err := b.NthTime(ctx, seg, 3)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := third.Get(); !ok || v != 61.0 {
		t.Errorf("expected 61.0, got %+v", third)
	}
	if fifth, _ := b.NthTime(ctx, seg, 5); fifth.Valid {
		t.Errorf("expected none past the end, got %+v", fifth)
	}

	if _, err := b.TopN(ctx, seg, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := b.NthTime(ctx, seg, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}

	n, _ = b.Replace(ctx, seg, []model.RankedSwimmer{row("Eve", "5", 59.0)})
	if n != 1 || b.Count(ctx, seg) != 1 {
		t.Errorf("replace must discard previous rows, count %d", b.Count(ctx, seg))
	}
}

func TestTreapBoard_OrderMatchesSort(t *testing.T) {
	ctx := context.Background()
	b := NewTreapBoard()
	r := rand.New(rand.NewSource(7))

	best := map[string]float64{}
	rows := make([]model.RankedSwimmer, 0, 2000)
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("%d", r.Intn(300))
		tm := float64(5500+r.Intn(1000)) / 100
		rows = append(rows, row("S"+id, id, tm))
		if old, ok := best[id]; !ok || tm < old {
			best[id] = tm
		}
	}
	if _, err := b.Replace(ctx, seg, rows); err != nil {
		t.Fatal(err)
	}

	times := make([]float64, 0, len(best))
	for _, v := range best {
		times = append(times, v)
	}
	sort.Float64s(times)

	top, err := b.TopN(ctx, seg, len(best))
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != len(best) {
		t.Fatalf("expected %d entries, got %d", len(best), len(top))
	}
	for i, e := range top {
		if e.Time != times[i] {
			t.Fatalf("position %d: expected %v, got %v", i, times[i], e.Time)
		}
		if e.Time != best[e.Tiref] {
			t.Fatalf("swimmer %s: expected best %v, got %v", e.Tiref, best[e.Tiref], e.Time)
		}
		want := 1 + sort.SearchFloat64s(times, e.Time)
		if e.Rank != want {
			t.Fatalf("swimmer %s: expected rank %d, got %d", e.Tiref, want, e.Rank)
		}
	}
}

func TestTreapBoard_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	b := NewTreapBoard()
	segs := []model.Segment{seg, {Event: "50 Fly", AgeGroup: "15", Sex: "M"}}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s := segs[i%len(segs)]
				id := fmt.Sprintf("%d-%d", w, i%25)
				_, _ = b.Replace(ctx, s, []model.RankedSwimmer{row("S"+id, id, 60+float64(i%50)/10)})
				_, _ = b.NthTime(ctx, s, 1)
				_, _ = b.TopN(ctx, s, 5)
				_, _ = b.Rank(ctx, s, id)
			}
		}(w)
	}
	wg.Wait()

	if total := b.Total(ctx); total != b.Count(ctx, segs[0])+b.Count(ctx, segs[1]) {
		t.Errorf("total %d does not match per-segment counts", total)
	}
}
