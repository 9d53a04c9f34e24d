// File: internal/artifacts/artifacts.go

// Package artifacts manages per-run diagnostic output: a timestamped run
// directory holding checkpoint screenshots and the run summary. Booking runs
// are unattended and usually happen at 07:00, so the artifact trail is how
// failures get diagnosed after the fact.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fairwaylabs/teesnipe/internal/config"
)

// Store is a run-scoped artifact directory.
type Store struct {
	runID       string
	dir         string
	screenshots bool
	logger      *zap.Logger
	seq         atomic.Uint32
}

// NewStore creates the run directory under cfg.Dir with its screenshots/
// subdirectory.
func NewStore(cfg config.ArtifactsConfig, now time.Time, logger *zap.Logger) (*Store, error) {
	dir := filepath.Join(cfg.Dir, "run_"+now.Format("20060102_150405"))
	if err := os.MkdirAll(filepath.Join(dir, "screenshots"), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	s := &Store{
		runID:       uuid.NewString(),
		dir:         dir,
		screenshots: cfg.Screenshots,
		logger:      logger.Named("artifacts"),
	}
	s.logger.Info("Artifact store ready.", zap.String("run_id", s.runID), zap.String("dir", dir))
	return s, nil
}

// RunID returns the unique identifier for this run.
func (s *Store) RunID() string { return s.runID }

// Dir returns the run directory.
func (s *Store) Dir() string { return s.dir }

// SaveSummary writes the run outcome as pretty-printed JSON at the top of
// the run directory.
func (s *Store) SaveSummary(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run summary: %w", err)
	}
	path := filepath.Join(s.dir, "summary.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write run summary: %w", err)
	}
	return path, nil
}

// SaveScreenshot writes PNG bytes under screenshots/ with a sequence prefix
// so the files sort in capture order. Returns the written path. When
// screenshots are disabled the call is a no-op.
func (s *Store) SaveScreenshot(label string, png []byte) (string, error) {
	if !s.screenshots {
		return "", nil
	}
	name := fmt.Sprintf("%03d_%s.png", s.seq.Add(1), label)
	path := filepath.Join(s.dir, "screenshots", name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot %s: %w", name, err)
	}
	s.logger.Debug("Screenshot saved.", zap.String("path", path))
	return path, nil
}
