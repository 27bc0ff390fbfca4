package vectorstore

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_UpsertOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	points := testPoints("a", "b")
	if err := store.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	points[0].Payload.Text = "replaced"
	if err := store.Upsert(ctx, "docs", points); err != nil {
		t.Fatalf("Upsert() second error = %v", err)
	}

	n, _ := store.Count(ctx, "docs")
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
	p, ok := store.Get("docs", "a")
	if !ok || p.Payload.Text != "replaced" {
		t.Errorf("Get(a) = %+v, %v", p, ok)
	}
}

func TestMemoryStore_SearchOrdersBySimilarity(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Upsert(ctx, "docs", []Point{
		{ID: "x", Vec: []float32{1, 0}, Payload: Payload{Source: "s", Text: "east"}},
		{ID: "y", Vec: []float32{0, 1}, Payload: Payload{Source: "s", Text: "north"}},
		{ID: "z", Vec: []float32{1, 1}, Payload: Payload{Source: "s", Text: "north-east"}},
	})

	results, err := store.Search(ctx, "docs", []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].Text != "east" || results[1].Text != "north-east" {
		t.Errorf("Search() order = %q, %q", results[0].Text, results[1].Text)
	}
}

func TestMemoryStore_SearchFewerThanK(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Upsert(ctx, "docs", testPoints("a"))

	results, err := store.Search(ctx, "docs", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Search() returned %d results, want 1", len(results))
	}

	empty, err := store.Search(ctx, "other", []float32{1, 0}, 3)
	if err != nil || len(empty) != 0 {
		t.Errorf("Search() on empty collection = %v, %v", empty, err)
	}
}

func TestMemoryStore_SearchInvalidK(t *testing.T) {
	_, err := NewMemoryStore().Search(context.Background(), "docs", []float32{1}, 0)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Search() k=0 error = %v, want ErrInvalidArgument", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Upsert(ctx, "docs", testPoints("a", "b", "c"))

	if err := store.Delete(ctx, "docs", []string{"b", "missing"}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := store.Get("docs", "b"); ok {
		t.Error("Delete() left point b")
	}
	n, _ := store.Count(ctx, "docs")
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestNewPoints_LengthMismatch(t *testing.T) {
	_, err := NewPoints([]string{"a", "b"}, [][]float32{{1}}, []Payload{{}, {}})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewPoints() error = %v, want ErrInvalidArgument", err)
	}

	points, err := NewPoints([]string{"a"}, [][]float32{{1}}, []Payload{{Source: "s", Text: "t"}})
	if err != nil || len(points) != 1 || points[0].Payload.Text != "t" {
		t.Errorf("NewPoints() = %v, %v", points, err)
	}
}
