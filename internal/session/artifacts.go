package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"bugbot/internal/logging"
	"bugbot/internal/types"
)

// saveArtifacts writes the trace and output files for this session,
// numbered so repeated runs never overwrite prior sessions. Both files
// share one index.
func (r *Runner) saveArtifacts(output types.SessionOutput) error {
	tracesDir := filepath.Join(r.resultsDir, "traces")
	outputsDir := filepath.Join(r.resultsDir, "outputs")
	for _, dir := range []string{tracesDir, outputsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create artifacts directory: %w", err)
		}
	}

	n := nextArtifactIndex(tracesDir, outputsDir)

	tracePath := filepath.Join(tracesDir, fmt.Sprintf("trace_%d.json", n))
	if err := writeJSON(tracePath, r.orch.Trace()); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}

	outputPath := filepath.Join(outputsDir, fmt.Sprintf("output_%d.json", n))
	if err := writeJSON(outputPath, output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logging.Session("artifacts saved: %s, %s", tracePath, outputPath)
	return nil
}

// nextArtifactIndex returns one past the highest index present in
// either directory, starting at 1.
func nextArtifactIndex(tracesDir, outputsDir string) int {
	max := 0
	scan := func(dir, pattern string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			var n int
			if _, err := fmt.Sscanf(entry.Name(), pattern, &n); err == nil && n > max {
				max = n
			}
		}
	}
	scan(tracesDir, "trace_%d.json")
	scan(outputsDir, "output_%d.json")
	return max + 1
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
