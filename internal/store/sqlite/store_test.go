package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/ordering"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/store"
	"github.com/roach88/listorder/internal/store/storetest"
)

// createTestStore opens a fresh database file in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentCollection {
		c, err := createTestStore(t).Collection("tasks")
		if err != nil {
			t.Fatalf("Collection() failed: %v", err)
		}
		return c
	})
}

func TestOrderingOnSQLite(t *testing.T) {
	ctx := context.Background()
	c, err := createTestStore(t).Collection("tasks")
	if err != nil {
		t.Fatalf("Collection() failed: %v", err)
	}
	list, err := ordering.New(c, ordering.Config{Scope: []string{"parent_id"}})
	if err != nil {
		t.Fatalf("ordering.New() failed: %v", err)
	}

	docs := make([]*ir.Document, 3)
	for i := range docs {
		docs[i] = &ir.Document{ID: string(rune('a' + i)), Fields: ir.Object{"parent_id": ir.Int(1)}}
		if err := list.BeforeCreate(ctx, docs[i]); err != nil {
			t.Fatalf("BeforeCreate(%s) failed: %v", docs[i].ID, err)
		}
		if err := c.Insert(ctx, docs[i]); err != nil {
			t.Fatalf("Insert(%s) failed: %v", docs[i].ID, err)
		}
	}
	if err := list.MoveToBottom(ctx, docs[0]); err != nil {
		t.Fatalf("MoveToBottom() failed: %v", err)
	}

	got, err := c.Find(ctx, query.Query{
		Filter: query.Equals{Field: "parent_id", Value: ir.Int(1)},
		Sort:   []query.Order{query.Asc(ordering.DefaultColumn)},
	})
	if err != nil {
		t.Fatalf("Find() failed: %v", err)
	}
	want := []string{"b", "c", "a"}
	if len(got) != len(want) {
		t.Fatalf("Find() returned %d records, want %d", len(got), len(want))
	}
	for i, d := range got {
		p, _ := d.Int(ordering.DefaultColumn)
		if d.ID != want[i] || p != int64(i+1) {
			t.Errorf("record %d = %s at %d, want %s at %d", i, d.ID, p, want[i], i+1)
		}
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='documents'").Scan(&name)
	if err != nil {
		t.Errorf("documents table not found after idempotent opens: %v", err)
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	c, _ := s1.Collection("tasks")
	if err := c.Insert(ctx, &ir.Document{ID: "a", Fields: ir.Object{"position": ir.Int(1)}}); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()
	c, _ = s2.Collection("tasks")
	doc, err := c.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() after reopen failed: %v", err)
	}
	if n, _ := doc.Int("position"); n != 1 {
		t.Errorf("position = %d, want 1", n)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"user_version": "1",
	}
	for name, want := range checks {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	s.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("Open() accepted a database from a newer schema")
	}
}

func TestCollectionsShareTableButNotRows(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	tasks, _ := s.Collection("tasks")
	notes, _ := s.Collection("notes")

	if err := tasks.Insert(ctx, &ir.Document{ID: "a", Fields: ir.Object{"position": ir.Int(1)}}); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	if err := notes.Insert(ctx, &ir.Document{ID: "a", Fields: ir.Object{"position": ir.Int(1)}}); err != nil {
		t.Fatalf("same id in another collection must be allowed: %v", err)
	}

	n, err := notes.IncrementField(ctx, nil, "position")
	if err != nil {
		t.Fatalf("IncrementField() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("IncrementField() changed %d rows, want 1", n)
	}
	doc, _ := tasks.Get(ctx, "a")
	if p, _ := doc.Int("position"); p != 1 {
		t.Errorf("tasks position = %d, want 1 (untouched)", p)
	}
}

func TestEnsureIndex(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	c, _ := s.Collection("tasks")
	idx := c.(store.Indexer)

	for i := 0; i < 2; i++ {
		if err := idx.EnsureIndex(ctx, "position"); err != nil {
			t.Fatalf("EnsureIndex() call %d failed: %v", i, err)
		}
	}

	var name string
	err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_documents_position'").Scan(&name)
	if err != nil {
		t.Errorf("index not created: %v", err)
	}

	if err := idx.EnsureIndex(ctx, "bad name"); err == nil {
		t.Error("EnsureIndex() accepted an invalid field name")
	}
}
