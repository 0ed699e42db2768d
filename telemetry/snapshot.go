package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/wealthsim/config"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds a finished run: its seed, configuration and report series.
// Replaying the same seed and config reproduces the reports exactly.
type Snapshot struct {
	Version int            `json:"version"`
	RunID   string         `json:"run_id,omitempty"`
	RNGSeed uint64         `json:"rng_seed"`
	Config  *config.Config `json:"config"`

	Reports   []StepReport `json:"reports"`
	Bookmarks []Bookmark   `json:"bookmarks,omitempty"`
}

// FinalReport returns the last report, or nil for an empty run.
func (s *Snapshot) FinalReport() *StepReport {
	if len(s.Reports) == 0 {
		return nil
	}
	return &s.Reports[len(s.Reports)-1]
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.RNGSeed)
	if snapshot.RunID != "" {
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.RNGSeed, strings.ReplaceAll(snapshot.RunID, " ", "_"))
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}

// FirstDivergence returns the index of the first report that differs
// between want and got when encoded, or -1 when the series match.
func FirstDivergence(want, got []StepReport) int {
	n := min(len(want), len(got))
	for i := 0; i < n; i++ {
		a, errA := json.Marshal(&want[i])
		b, errB := json.Marshal(&got[i])
		if errA != nil || errB != nil || !bytes.Equal(a, b) {
			return i
		}
	}
	if len(want) != len(got) {
		return n
	}
	return -1
}
