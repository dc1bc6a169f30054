package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"retroparquet/internal/normalize"
	"retroparquet/internal/schema"
	"retroparquet/internal/writer"
)

func scheduleEntity(t *testing.T, files []string) Entity {
	t.Helper()
	ent, err := schema.Build("schedule", []schema.Column{
		{Name: "date", Type: schema.RelDate, Nullable: true},
		{Name: "double_header", Type: schema.RelSmallInt, Nullable: true},
		{Name: "visiting_team", Type: schema.RelChar, Nullable: true},
		{Name: "home_team", Type: schema.RelChar, Nullable: true},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return Entity{
		Name:   "schedule",
		Files:  files,
		Rules:  normalize.Rules{Dedupe: true},
		Schema: ent,
	}
}

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRun_DedupAcrossFiles(t *testing.T) {
	src := t.TempDir()
	a := writeSource(t, src, "1901.txt", "19010415,0,CLE,PHA\n")
	b := writeSource(t, src, "1901b.txt", "19010415,0,CLE,PHA\n19010416,0,BOS,NYA\n")

	out := t.TempDir()
	sum, err := Run(context.Background(), []Entity{scheduleEntity(t, []string{a, b})}, Options{Job: "test", OutDir: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if failed := sum.Failed(); len(failed) != 0 {
		t.Fatalf("failed entities: %+v", failed)
	}

	r := sum.Results[0]
	if r.Rows != 2 {
		t.Fatalf("rows: got %d want 2", r.Rows)
	}
	if r.Stats.Duplicates != 1 {
		t.Fatalf("duplicates: got %d want 1", r.Stats.Duplicates)
	}
	if _, err := os.Stat(filepath.Join(out, "schedule.parquet")); err != nil {
		t.Fatalf("artifact: %v", err)
	}
}

func TestRun_Idempotent(t *testing.T) {
	src := t.TempDir()
	f := writeSource(t, src, "1901.txt", "19010415,0,CLE,PHA\n19010416,1,BOS,NYA\n")
	out := t.TempDir()
	ents := []Entity{scheduleEntity(t, []string{f})}

	if _, err := Run(context.Background(), ents, Options{Job: "test", OutDir: out}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, err := os.ReadFile(filepath.Join(out, "schedule.parquet"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}

	if _, err := Run(context.Background(), ents, Options{Job: "test", OutDir: out}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(out, "schedule.parquet"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Fatalf("artifact changed across identical runs (%d vs %d bytes)", len(first), len(second))
	}
}

func TestRun_EntityFailureIsolated(t *testing.T) {
	src := t.TempDir()
	good := writeSource(t, src, "good.txt", "19010415,0,CLE,PHA\n")
	bad := writeSource(t, src, "bad.txt", "notadate,0,CLE,PHA\n")

	goodEnt := scheduleEntity(t, []string{good})
	badEnt := scheduleEntity(t, []string{bad})
	badEnt.Name = "broken"

	out := t.TempDir()
	sum, err := Run(context.Background(), []Entity{badEnt, goodEnt}, Options{Job: "test", OutDir: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	failed := sum.Failed()
	if len(failed) != 1 || failed[0].Entity != "broken" {
		t.Fatalf("failed: got %+v want one failure for broken", failed)
	}
	if sum.Results[1].Err != nil {
		t.Fatalf("sibling entity failed: %v", sum.Results[1].Err)
	}
	if sum.Results[1].Rows != 1 {
		t.Fatalf("sibling rows: got %d want 1", sum.Results[1].Rows)
	}
	if _, err := os.Stat(filepath.Join(out, "broken.parquet")); !os.IsNotExist(err) {
		t.Fatalf("broken artifact should not exist: %v", err)
	}
}

func TestRun_Parallel(t *testing.T) {
	src := t.TempDir()
	a := writeSource(t, src, "a.txt", "19010415,0,CLE,PHA\n")
	b := writeSource(t, src, "b.txt", "19020415,0,BOS,NYA\n")

	ea := scheduleEntity(t, []string{a})
	eb := scheduleEntity(t, []string{b})
	eb.Name = "schedule2"

	out := t.TempDir()
	sum, err := Run(context.Background(), []Entity{ea, eb}, Options{Job: "test", OutDir: out, Parallel: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if failed := sum.Failed(); len(failed) != 0 {
		t.Fatalf("failed entities: %+v", failed)
	}
	for i, want := range []string{"schedule", "schedule2"} {
		if sum.Results[i].Entity != want {
			t.Fatalf("result order: got %s want %s", sum.Results[i].Entity, want)
		}
	}
}

func TestRun_DeltaKeyOrdersArtifact(t *testing.T) {
	src := t.TempDir()
	f := writeSource(t, src, "roster.txt", "1903,a\n1901,b\n1902,c\n")

	ent, err := schema.Build("roster", []schema.Column{
		{Name: "year", Type: schema.RelInteger, Nullable: true},
		{Name: "player_id", Type: schema.RelChar, Nullable: true},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	e := Entity{
		Name:   "roster",
		Files:  []string{f},
		Schema: ent,
		Policy: writer.Policy{DeltaKey: "year"},
	}

	out := t.TempDir()
	sum, err := Run(context.Background(), []Entity{e}, Options{Job: "test", OutDir: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if failed := sum.Failed(); len(failed) != 0 {
		t.Fatalf("failed entities: %+v", failed)
	}
	if sum.Results[0].Rows != 3 {
		t.Fatalf("rows: got %d want 3", sum.Results[0].Rows)
	}
}
