package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// YAMLFile is a YAML document on disk that is replaced atomically on save.
// A crash mid-save leaves either the previous or the new content, never a
// partial file.
type YAMLFile struct {
	Path string
}

// NewYAMLFile returns a YAMLFile for name inside dir.
func NewYAMLFile(dir, name string) *YAMLFile {
	return &YAMLFile{Path: filepath.Join(dir, name)}
}

// Load decodes the file into v. It reports false without error when the
// file does not exist yet, leaving v untouched.
func (f *YAMLFile) Load(v any) (bool, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}

	if err := yaml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", f.Path, err)
	}
	return true, nil
}

// Save encodes v and replaces the file with it.
func (f *YAMLFile) Save(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(f.Path), err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(f.Path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(f.Path), err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", filepath.Base(f.Path), err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		cleanup()
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, f.Path); err != nil {
		cleanup()
		return fmt.Errorf("failed to save %s: %w", filepath.Base(f.Path), err)
	}

	return nil
}
