//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"structsearch/internal/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "structsearch.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer store.Close()

	organism := model.OrganismRecord{
		VersionedRecord: CurrentVersion(),
		ID:              "o1",
		RunID:           "r1",
		Rank:            1,
		Sites:           []model.SiteRecord{{Element: "O"}},
		Unevaluable:     true,
	}
	if err := store.SaveOrganism(ctx, organism); err != nil {
		t.Fatalf("save organism: %v", err)
	}
	first := model.OrganismRecord{VersionedRecord: CurrentVersion(), ID: "o0", RunID: "r1", Rank: 0}
	if err := store.SaveOrganism(ctx, first); err != nil {
		t.Fatalf("save organism: %v", err)
	}

	loaded, ok, err := store.GetOrganism(ctx, "o1")
	if err != nil || !ok {
		t.Fatalf("get organism: ok=%t err=%v", ok, err)
	}
	if !loaded.Unevaluable || len(loaded.Sites) != 1 {
		t.Fatalf("unexpected organism: %+v", loaded)
	}

	listed, err := store.ListOrganisms(ctx, "r1")
	if err != nil {
		t.Fatalf("list organisms: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != "o0" {
		t.Fatalf("unexpected list: %+v", listed)
	}

	run := model.RunRecord{VersionedRecord: CurrentVersion(), ID: "r1", StartedAt: time.Now().UTC(), Seed: 3}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Seed != 3 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "structsearch.db")

	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	run := model.RunRecord{VersionedRecord: CurrentVersion(), ID: "r1", StartedAt: time.Now().UTC()}
	if err := first.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewSQLiteStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	if _, ok, err := second.GetRun(ctx, "r1"); err != nil || !ok {
		t.Fatalf("expected persisted run, ok=%t err=%v", ok, err)
	}
}
