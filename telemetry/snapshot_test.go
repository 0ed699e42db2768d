package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/wealthsim/config"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	report := Summarize(StepInput{Time: 0, Population: buildPopulation(), StatePool: 25})
	snapshot := &Snapshot{
		Version: SnapshotVersion,
		RunID:   "run 1",
		RNGSeed: 42,
		Config:  config.MustDefault(),
		Reports: []StepReport{report},
		Bookmarks: []Bookmark{
			{Type: BookmarkConcentration, Time: 0, Description: "Test bookmark"},
		},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if filepath.Base(path) != "snapshot_42_run_1.json" {
		t.Errorf("unexpected filename %s", filepath.Base(path))
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if loaded.RNGSeed != 42 || loaded.RunID != "run 1" {
		t.Errorf("header = %d/%q", loaded.RNGSeed, loaded.RunID)
	}
	if loaded.Config.TotalPopulation != snapshot.Config.TotalPopulation {
		t.Errorf("config population = %d", loaded.Config.TotalPopulation)
	}
	if len(loaded.Reports) != 1 || len(loaded.Bookmarks) != 1 {
		t.Fatalf("reports/bookmarks = %d/%d", len(loaded.Reports), len(loaded.Bookmarks))
	}

	got := loaded.FinalReport()
	if got.Population != report.Population || got.StateCollections != 25 {
		t.Errorf("final report = %+v", got)
	}
	if got.WealthByDecile[10] != report.WealthByDecile[10] {
		t.Errorf("decile map lost: %v", got.WealthByDecile)
	}
	if float64(got.RatioTopBottom) != float64(report.RatioTopBottom) {
		t.Errorf("ratio = %v, want %v", got.RatioTopBottom, report.RatioTopBottom)
	}
}

func TestSnapshotInfRatioRoundTrip(t *testing.T) {
	snapshot := &Snapshot{
		Version: SnapshotVersion,
		RNGSeed: 7,
		Reports: []StepReport{Summarize(StepInput{})},
	}
	path, err := SaveSnapshot(snapshot, t.TempDir())
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if !loaded.Reports[0].RatioTopBottom.IsInf() {
		t.Error("inf ratio lost in round trip")
	}
}

func TestLoadSnapshotVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadSnapshot(path)
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("expected version error, got %v", err)
	}
}

func TestLoadSnapshotMissing(t *testing.T) {
	if _, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFinalReportEmpty(t *testing.T) {
	if (&Snapshot{}).FinalReport() != nil {
		t.Error("empty snapshot should have no final report")
	}
}

func TestFirstDivergence(t *testing.T) {
	a := Summarize(StepInput{Time: 0, Population: buildPopulation(), StatePool: 25})
	b := Summarize(StepInput{Time: 1, Population: buildPopulation(), StatePool: 30})
	changed := b
	changed.StateCollections = 31

	tests := []struct {
		name      string
		want, got []StepReport
		expect    int
	}{
		{"identical", []StepReport{a, b}, []StepReport{a, b}, -1},
		{"empty", nil, nil, -1},
		{"second differs", []StepReport{a, b}, []StepReport{a, changed}, 1},
		{"shorter", []StepReport{a, b}, []StepReport{a}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstDivergence(tt.want, tt.got); got != tt.expect {
				t.Errorf("FirstDivergence = %d, want %d", got, tt.expect)
			}
		})
	}
}
