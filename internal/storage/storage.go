package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ArtifactStore places task artifacts at their permanent, task-scoped
// locations: the admitted source on one side, processed variants on the
// other.
type ArtifactStore interface {
	RelocateSource(taskID, sourceLocation string) (string, error)
	VariantDir(taskID string) (string, error)
}

var _ ArtifactStore = (*LocalArtifactStore)(nil)

// LocalArtifactStore keeps artifacts on the local filesystem under
// <root>/tasks/<taskID>/.
type LocalArtifactStore struct {
	root string
}

func NewLocalArtifactStore(root string) *LocalArtifactStore {
	return &LocalArtifactStore{root: root}
}

// RelocateSource moves the source file into the task's directory and returns
// the new location. Rename is attempted first; a copy-then-remove fallback
// covers cross-device moves (upload tmpdir on a different mount than root).
func (s *LocalArtifactStore) RelocateSource(taskID, sourceLocation string) (string, error) {
	dir := filepath.Join(s.root, "tasks", taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create task dir: %w", err)
	}

	dest := filepath.Join(dir, "source"+filepath.Ext(sourceLocation))
	if err := os.Rename(sourceLocation, dest); err != nil {
		if copyErr := copyFile(sourceLocation, dest); copyErr != nil {
			return "", fmt.Errorf("relocate %s: %w", sourceLocation, copyErr)
		}
		os.Remove(sourceLocation)
	}
	return dest, nil
}

// VariantDir returns the directory processed outputs for a task are written
// to, creating it if needed.
func (s *LocalArtifactStore) VariantDir(taskID string) (string, error) {
	dir := filepath.Join(s.root, "tasks", taskID, "variants")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create variant dir: %w", err)
	}
	return dir, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}
