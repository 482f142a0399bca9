package profile

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"strider/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewStore(db, zerolog.Nop())
}

func TestAdd(t *testing.T) {
	store := newTestStore(t)

	m, err := store.Add("prefers flights departing after 10am", SourceManual)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if m.ID == "" {
		t.Error("memory ID is empty")
	}
	if m.Source != SourceManual {
		t.Errorf("source = %q, want %q", m.Source, SourceManual)
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestAdd_EmptyContent(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Add("   ", SourceAgent); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("error = %v, want ErrEmptyContent", err)
	}
}

func TestAdd_DefaultSource(t *testing.T) {
	store := newTestStore(t)

	m, err := store.Add("lives in Berlin", "")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if m.Source != SourceManual {
		t.Errorf("source = %q, want %q", m.Source, SourceManual)
	}
}

func TestRecent(t *testing.T) {
	store := newTestStore(t)

	contents := []string{"first fact", "second fact", "third fact"}
	for _, c := range contents {
		if _, err := store.Add(c, SourceManual); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		// created_at drives the ordering
		time.Sleep(2 * time.Millisecond)
	}

	memories, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(memories) != 2 {
		t.Fatalf("len(memories) = %d, want 2", len(memories))
	}
	if memories[0].Content != "third fact" {
		t.Errorf("first result = %q, want %q", memories[0].Content, "third fact")
	}
}

func TestSearch(t *testing.T) {
	store := newTestStore(t)

	facts := []string{
		"prefers aisle seats on long flights",
		"works at a robotics startup",
		"usually books flights with Star Alliance airlines",
	}
	for _, f := range facts {
		if _, err := store.Add(f, SourceManual); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	results, err := store.Search("book a flight to Tokyo with aisle seat", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(results) == 0 {
		t.Fatal("no results")
	}
	for _, r := range results {
		if r.Content == "works at a robotics startup" {
			t.Errorf("unrelated memory returned: %q", r.Content)
		}
	}
}

func TestSearch_RanksByTermHits(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Add("enjoys hiking", SourceManual); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := store.Add("enjoys hiking in the alps every summer", SourceManual); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := store.Search("hiking alps summer", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Content != "enjoys hiking in the alps every summer" {
		t.Errorf("top result = %q, want the memory with more matching terms", results[0].Content)
	}
}

func TestSearch_EmptyQueryFallsBackToRecent(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Add("some fact", SourceManual); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := store.Search("", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1", len(results))
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	m, err := store.Add("temporary fact", SourceAgent)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := store.Delete(m.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if err := store.Delete(m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"Book a flight!", []string{"book", "flight"}},
		{"", nil},
		{"a I x", nil},
		{"Star-Alliance, airlines.", []string{"star-alliance", "airlines"}},
	}

	for _, tt := range tests {
		got := tokenize(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("tokenize(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}
