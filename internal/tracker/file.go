// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tracker

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-intake/internal/fsutil"
	"github.com/pdiddy/paper-intake/pkg/types"
)

// fileVersion is the tracker format version written by Persist.
const fileVersion = 1

// trackerFile is the on-disk YAML layout.
type trackerFile struct {
	Version int                          `yaml:"version"`
	LastRun *types.RunStats              `yaml:"last_run,omitempty"`
	Papers  map[string]types.PaperRecord `yaml:"papers"`
}

// FileStore is a Store backed by a YAML file that is replaced atomically on
// every Persist.
type FileStore struct {
	records
	path string
}

// Open loads the tracker at path. A missing or empty file yields an empty
// store. A file that does not parse, has an unsupported version, or holds
// an invalid record returns a *CorruptionError.
func Open(path string) (*FileStore, error) {
	fs := &FileStore{records: newRecords(), path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fs, nil
		}
		return nil, fmt.Errorf("reading tracker %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fs, nil
	}

	var tf trackerFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, &CorruptionError{Path: path, Reason: "invalid YAML", Err: err}
	}
	if tf.Version > fileVersion {
		return nil, &CorruptionError{Path: path, Reason: fmt.Sprintf("unsupported version %d", tf.Version)}
	}

	for key, rec := range tf.Papers {
		if key == "" || rec.Key != key {
			return nil, &CorruptionError{Path: path, Reason: fmt.Sprintf("record key %q does not match entry %q", rec.Key, key)}
		}
		if !rec.Status.Valid() {
			return nil, &CorruptionError{Path: path, Reason: fmt.Sprintf("record %s has unknown status %q", key, rec.Status)}
		}
		fs.papers[key] = rec
	}
	fs.lastRun = tf.LastRun
	return fs, nil
}

// Path returns the tracker file path.
func (f *FileStore) Path() string { return f.path }

// Persist writes the store to a temporary file in the same directory,
// syncs it, and renames it over the tracker file. A crash at any point
// leaves either the previous or the new file, never a partial one.
func (f *FileStore) Persist() error {
	tf := trackerFile{
		Version: fileVersion,
		LastRun: f.lastRun,
		Papers:  f.papers,
	}
	data, err := yaml.Marshal(&tf)
	if err != nil {
		return fmt.Errorf("marshaling tracker: %w", err)
	}
	return fsutil.WriteFileAtomic(f.path, data)
}
