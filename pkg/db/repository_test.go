package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/brightpath-solar/siteimg/pkg/report"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_CreateAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := &Record{
		RunID:  "run-1",
		Tool:   "fetch",
		Name:   "hero-1.jpg",
		Path:   "public/images/hero/hero-1.jpg",
		Format: "jpeg",
		Status: StatusSucceeded,
		Size:   2048,
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("failed to create record: %v", err)
	}
	if rec.ID == 0 {
		t.Error("expected ID to be set")
	}

	records, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := records[0]; got.Name != rec.Name || got.Path != rec.Path || got.Size != rec.Size {
		t.Errorf("retrieved record mismatch: got %+v, want %+v", got, rec)
	}
}

func TestRepository_RecordOutcomes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	r := report.New("optimize")
	r.Add(
		report.Succeeded(report.Artifact{Name: "panel.webp", Path: "out/panel.webp", Format: "webp"}, 100),
		report.Failed(report.Artifact{Name: "panel-400w.jpg", Format: "jpeg", Width: 400}, errors.New("encode failed")),
	)
	r.Persist(ctx, repo)

	records, err := repo.ListByRun(ctx, r.RunID)
	if err != nil {
		t.Fatalf("failed to list run: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].Status != StatusFailed || records[1].ErrorMessage != "encode failed" || records[1].Width != 400 {
		t.Errorf("unexpected failed record: %+v", records[1])
	}
}

func TestRepository_ListLimitAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		repo.Create(ctx, &Record{RunID: "run", Tool: "fetch", Name: name, Status: StatusSucceeded})
	}

	records, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Name != "c.jpg" {
		t.Errorf("expected newest first, got %s", records[0].Name)
	}
}

func TestRepository_DeleteByPath(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	repo.Create(ctx, &Record{RunID: "r1", Tool: "fetch", Name: "hero-1.jpg", Path: "hero/hero-1.jpg", Status: StatusSucceeded})
	repo.Create(ctx, &Record{RunID: "r2", Tool: "fetch", Name: "hero-1.jpg", Path: "hero/hero-1.jpg", Status: StatusSucceeded})
	repo.Create(ctx, &Record{RunID: "r2", Tool: "fetch", Name: "hero-2.jpg", Path: "hero/hero-2.jpg", Status: StatusSucceeded})

	n, err := repo.DeleteByPath(ctx, "hero/hero-1.jpg")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows deleted, got %d", n)
	}

	records, _ := repo.List(ctx, 0)
	if len(records) != 1 {
		t.Errorf("expected 1 remaining record, got %d", len(records))
	}
}
