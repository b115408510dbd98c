package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}

func TestDecodeOrganismFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("organism_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	organism, err := DecodeOrganism(data)
	if err != nil {
		t.Fatalf("decode organism: %v", err)
	}
	if organism.ID != "org-water" || organism.RunID != "run-1" {
		t.Fatalf("unexpected identity: %+v", organism)
	}
	if len(organism.Sites) != 3 || organism.Sites[1].Element != "H" {
		t.Fatalf("unexpected sites: %+v", organism.Sites)
	}
	if organism.EnergyPerAtom != -4.1 || organism.Unevaluable {
		t.Fatalf("unexpected evaluation: %+v", organism)
	}

	encoded, err := EncodeOrganism(organism)
	if err != nil {
		t.Fatalf("encode organism: %v", err)
	}
	again, err := DecodeOrganism(encoded)
	if err != nil {
		t.Fatalf("decode re-encoded organism: %v", err)
	}
	if again.Lattice != organism.Lattice || again.Composition != organism.Composition {
		t.Fatalf("re-encoded organism differs: %+v", again)
	}
}

func TestDecodeRunFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("run_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	run, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.Seed != 7 || run.Engine != "pairpot" || run.BestOrganismID != "org-water" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if len(run.OrganismIDs) != 2 {
		t.Fatalf("expected 2 organism ids, got %d", len(run.OrganismIDs))
	}
	if run.FinishedAt.Sub(run.StartedAt).Seconds() != 55 {
		t.Fatalf("unexpected timestamps: %s .. %s", run.StartedAt, run.FinishedAt)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	data, err := os.ReadFile(fixturePath("organism_v0.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if _, err := DecodeOrganism(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
	if _, err := DecodeRun([]byte(`{"schema_version":1,"codec_version":9}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
	if _, err := DecodeRun([]byte(`{`)); err == nil {
		t.Fatal("expected syntax error")
	}
}
