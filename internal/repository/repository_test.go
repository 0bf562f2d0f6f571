package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/lock"
	"github.com/roach88/listorder/internal/ordering"
	"github.com/roach88/listorder/internal/store"
	"github.com/roach88/listorder/internal/store/memory"
	"github.com/roach88/listorder/internal/store/sqlite"
)

type backend struct {
	name string
	open func(t *testing.T) store.DocumentCollection
}

var backends = []backend{
	{"memory", func(t *testing.T) store.DocumentCollection {
		c, err := memory.New().Collection("tasks")
		require.NoError(t, err)
		return c
	}},
	{"sqlite", func(t *testing.T) store.DocumentCollection {
		s, err := sqlite.Open(filepath.Join(t.TempDir(), "tasks.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		c, err := s.Collection("tasks")
		require.NoError(t, err)
		return c
	}},
}

var taskList = ordering.Config{Column: "position", Scope: []string{"project"}}

func newRepo(t *testing.T, coll store.DocumentCollection, opts ...ordering.Option) *Repository {
	t.Helper()
	repo, err := New(coll, taskList, opts...)
	require.NoError(t, err)
	return repo
}

func titles(docs []*ir.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		v, _ := d.Get("title")
		s, _ := v.(ir.String)
		out[i] = string(s)
	}
	return out
}

func project(name string) ir.Object {
	return ir.Object{"project": ir.String(name)}
}

func createTasks(t *testing.T, repo *Repository, proj string, names ...string) []*ir.Document {
	t.Helper()
	docs := make([]*ir.Document, len(names))
	for i, n := range names {
		doc, err := repo.Create(context.Background(), ir.Object{"project": ir.String(proj), "title": ir.String(n)})
		require.NoError(t, err)
		docs[i] = doc
	}
	return docs
}

func TestRepository_Lifecycle(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t, b.open(t))
			require.NoError(t, repo.EnsureIndexes(ctx))

			docs := createTasks(t, repo, "alpha", "a", "b", "c", "d")
			createTasks(t, repo, "beta", "x", "y")

			for i, d := range docs {
				pos, ok := repo.List().Position(d)
				require.True(t, ok)
				assert.Equal(t, int64(i+1), pos)
			}

			ordered, err := repo.Ordered(ctx, project("alpha"))
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c", "d"}, titles(ordered))

			require.NoError(t, repo.Destroy(ctx, docs[1]))
			_, err = repo.Get(ctx, docs[1].ID)
			assert.True(t, IsNotFound(err))

			ordered, err = repo.Ordered(ctx, project("alpha"))
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c", "d"}, titles(ordered))

			report, err := repo.CheckIntegrity(ctx, project("alpha"))
			require.NoError(t, err)
			assert.True(t, report.OK(), "%+v", report)
			assert.Equal(t, 3, report.Count)
			assert.Equal(t, int64(3), report.Bottom)

			beta, err := repo.Ordered(ctx, project("beta"))
			require.NoError(t, err)
			assert.Equal(t, []string{"x", "y"}, titles(beta))
		})
	}
}

func TestRepository_CreateAssignsV7IDs(t *testing.T) {
	repo := newRepo(t, backends[0].open(t))
	docs := createTasks(t, repo, "alpha", "a", "b")

	for _, d := range docs {
		parsed, err := uuid.Parse(d.ID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
	}
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
}

func TestRepository_CreateIgnoresSuppliedPosition(t *testing.T) {
	repo := newRepo(t, backends[0].open(t))
	createTasks(t, repo, "alpha", "a")

	doc, err := repo.Create(context.Background(), ir.Object{
		"project":  ir.String("alpha"),
		"title":    ir.String("b"),
		"position": ir.Int(40),
	})
	require.NoError(t, err)
	pos, _ := repo.List().Position(doc)
	assert.Equal(t, int64(2), pos)
}

func TestRepository_ApplyReloadsStaleRecord(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepo(t, b.open(t), ordering.WithLocker(lock.NewMutex()))
			docs := createTasks(t, repo, "alpha", "a", "b", "c")

			// docs[2] in memory still says position 3 after this.
			_, err := repo.Apply(ctx, docs[2].ID, repo.List().MoveToTop)
			require.NoError(t, err)

			stale := docs[2]
			moved, err := repo.Apply(ctx, stale.ID, repo.List().MoveToBottom)
			require.NoError(t, err)
			pos, _ := repo.List().Position(moved)
			assert.Equal(t, int64(3), pos)

			ordered, err := repo.Ordered(ctx, project("alpha"))
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, titles(ordered))
		})
	}
}

func TestRepository_ApplyMissing(t *testing.T) {
	repo := newRepo(t, backends[0].open(t))
	_, err := repo.Apply(context.Background(), "nope", repo.List().MoveToTop)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRepository_DestroyAfterRemove(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, backends[0].open(t))
	docs := createTasks(t, repo, "alpha", "a", "b", "c", "d")

	_, err := repo.Apply(ctx, docs[1].ID, repo.List().RemoveFromList)
	require.NoError(t, err)
	require.NoError(t, repo.Destroy(ctx, docs[1]))

	report, err := repo.CheckIntegrity(ctx, project("alpha"))
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report)
	assert.Equal(t, 3, report.Count)
}

func TestRepository_Unlisted(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, backends[0].open(t))
	docs := createTasks(t, repo, "alpha", "a", "b")

	_, err := repo.Apply(ctx, docs[0].ID, repo.List().RemoveFromList)
	require.NoError(t, err)

	unlisted, err := repo.Unlisted(ctx, project("alpha"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, titles(unlisted))

	ordered, err := repo.Ordered(ctx, project("alpha"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, titles(ordered))
}

func TestCheckIntegrity_ReportsDamage(t *testing.T) {
	ctx := context.Background()
	coll := backends[0].open(t)
	repo := newRepo(t, coll)
	docs := createTasks(t, repo, "alpha", "a", "b", "c", "d", "e")

	// Corrupt the partition behind the engine's back.
	require.NoError(t, coll.SetField(ctx, docs[1].ID, "position", ir.Int(4)))
	require.NoError(t, coll.SetField(ctx, docs[2].ID, "position", ir.Int(0)))
	require.NoError(t, coll.SetField(ctx, docs[4].ID, "position", ir.Int(7)))

	report, err := repo.CheckIntegrity(ctx, project("alpha"))
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, 5, report.Count)
	assert.Equal(t, int64(7), report.Bottom)
	assert.Equal(t, []int64{2, 3, 5, 6}, report.Gaps)
	require.Len(t, report.Duplicates, 1)
	assert.Equal(t, int64(4), report.Duplicates[0].Position)
	assert.ElementsMatch(t, []string{docs[1].ID, docs[3].ID}, report.Duplicates[0].IDs)
	assert.Equal(t, []string{docs[2].ID}, report.OutOfRange)
}

func TestCheckIntegrity_EmptyScope(t *testing.T) {
	repo := newRepo(t, backends[0].open(t))
	report, err := repo.CheckIntegrity(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Zero(t, report.Count)
	assert.Equal(t, ir.Object{}, report.Scope)
}

func TestCheckAll_ReportsEachPartition(t *testing.T) {
	ctx := context.Background()
	coll := backends[0].open(t)
	repo := newRepo(t, coll)
	createTasks(t, repo, "beta", "x", "y")
	createTasks(t, repo, "alpha", "a", "b", "c")
	beta, err := repo.Ordered(ctx, project("beta"))
	require.NoError(t, err)
	require.NoError(t, coll.SetField(ctx, beta[1].ID, "position", ir.Int(3)))

	reports, err := repo.CheckAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, project("alpha"), reports[0].Scope)
	assert.True(t, reports[0].OK())
	assert.Equal(t, 3, reports[0].Count)

	assert.Equal(t, project("beta"), reports[1].Scope)
	assert.False(t, reports[1].OK())
	assert.Equal(t, []int64{2}, reports[1].Gaps)
}

type indexRecorder struct {
	store.DocumentCollection
	fields []string
}

func (r *indexRecorder) EnsureIndex(_ context.Context, field string) error {
	r.fields = append(r.fields, field)
	return nil
}

func TestEnsureIndexes(t *testing.T) {
	rec := &indexRecorder{DocumentCollection: backends[0].open(t)}
	repo, err := New(rec, ordering.Config{Column: "pos", Scope: []string{"project", "kind"}})
	require.NoError(t, err)

	require.NoError(t, repo.EnsureIndexes(context.Background()))
	assert.Equal(t, []string{"pos", "project", "kind"}, rec.fields)

	// Collections without index support are skipped.
	plain := newRepo(t, backends[0].open(t))
	assert.NoError(t, plain.EnsureIndexes(context.Background()))
}
