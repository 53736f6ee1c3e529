package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// DefaultModelFile is the serialized model file name.
	DefaultModelFile = "random_forest_model.json"

	// DefaultMetadataFile is the metadata record file name.
	DefaultMetadataFile = "model_info.json"
)

// FileStore keeps the artifacts as two flat files in a directory.
type FileStore struct {
	dir          string
	modelFile    string
	metadataFile string
}

// NewFileStore creates a store rooted at dir using the default file names.
// An empty dir means the process working directory.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{
		dir:          dir,
		modelFile:    DefaultModelFile,
		metadataFile: DefaultMetadataFile,
	}
}

// ModelPath returns the path of the serialized model.
func (s *FileStore) ModelPath() string {
	return filepath.Join(s.dir, s.modelFile)
}

// MetadataPath returns the path of the metadata record.
func (s *FileStore) MetadataPath() string {
	return filepath.Join(s.dir, s.metadataFile)
}

// Save writes the model and then the metadata. Each file is written to a
// temporary file first and renamed into place.
func (s *FileStore) Save(ctx context.Context, a Artifacts) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	modelData, err := encodeModel(a.Model)
	if err != nil {
		return err
	}
	metadataData, err := encodeMetadata(a.Metadata)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	if err := writeFileAtomic(s.ModelPath(), modelData); err != nil {
		return err
	}
	if err := writeFileAtomic(s.MetadataPath(), metadataData); err != nil {
		return err
	}
	return nil
}

// Load reads both files. A missing model file means nothing was trained yet.
func (s *FileStore) Load(ctx context.Context) (Artifacts, bool, error) {
	if err := ctx.Err(); err != nil {
		return Artifacts{}, false, err
	}

	modelData, err := os.ReadFile(s.ModelPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifacts{}, false, nil
		}
		return Artifacts{}, false, fmt.Errorf("failed to read model: %w", err)
	}

	metadataData, err := os.ReadFile(s.MetadataPath())
	if err != nil {
		return Artifacts{}, false, fmt.Errorf("failed to read metadata: %w", err)
	}

	artifacts, err := decode(modelData, metadataData)
	if err != nil {
		return Artifacts{}, false, err
	}
	return artifacts, true, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}
