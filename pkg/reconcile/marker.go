package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const markerFile = "declined-call.json"

// Marker records a terminal call decision made in an execution context that
// could not reach the live session manager (a notification action handled by
// a separate process). It survives until the reconciler claims it.
type Marker struct {
	RemoteParticipantID string    `json:"remoteParticipantId"`
	RecordedAt          time.Time `json:"recordedAt"`
}

// MarkerStore persists at most one decline marker under dir. Writes go
// through a temp file and rename so a crashed writer never leaves a torn
// marker; reads claim the file by renaming it away first, so two concurrent
// readers cannot both observe the same decision.
type MarkerStore struct {
	dir string
}

func NewMarkerStore(dir string) *MarkerStore {
	return &MarkerStore{dir: dir}
}

func (s *MarkerStore) path() string {
	return filepath.Join(s.dir, markerFile)
}

// Write records the decline decision, replacing any previous marker.
func (s *MarkerStore) Write(m Marker) error {
	if m.RemoteParticipantID == "" {
		return errors.New("marker requires a remote participant id")
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now()
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create marker dir: %w", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, markerFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp marker: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close marker: %w", err)
	}
	if err := os.Rename(tmpName, s.path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish marker: %w", err)
	}
	return nil
}

// ReadAndClear atomically claims the recorded marker. The second return is
// false when no decision is pending.
func (s *MarkerStore) ReadAndClear() (Marker, bool, error) {
	claim := s.path() + ".claim"
	err := os.Rename(s.path(), claim)
	if errors.Is(err, fs.ErrNotExist) {
		return Marker{}, false, nil
	}
	if err != nil {
		return Marker{}, false, fmt.Errorf("failed to claim marker: %w", err)
	}
	defer os.Remove(claim)

	data, err := os.ReadFile(claim)
	if err != nil {
		return Marker{}, false, fmt.Errorf("failed to read marker: %w", err)
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return Marker{}, false, fmt.Errorf("failed to unmarshal marker: %w", err)
	}
	return m, true, nil
}
