package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/stepimport/internal/core"
)

// ErrSessionNotFound is returned when no manifest exists for a batch.
var ErrSessionNotFound = errors.New("import session not found")

// ErrFileTooLarge is returned when an upload exceeds the size limit.
var ErrFileTooLarge = errors.New("file too large")

// Manifest records the parameters of an import that must survive between
// step invocations.
type Manifest struct {
	BatchID   string            `yaml:"batch_id" json:"batch_id"`
	Entity    string            `yaml:"entity" json:"entity"`
	FileName  string            `yaml:"file_name" json:"file_name"`
	PerStep   int               `yaml:"per_step" json:"per_step"`
	Mapping   core.FieldMapping `yaml:"mapping,omitempty" json:"mapping,omitempty"`
	Rows      int               `yaml:"rows" json:"rows"`
	CreatedBy string            `yaml:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt time.Time         `yaml:"created_at" json:"created_at"`
}

// Workspace stores uploaded files and their manifests in one directory,
// as {batch}.csv and {batch}.yaml.
type Workspace struct {
	dir     string
	maxSize int64
}

// NewWorkspace creates dir if needed. maxSize <= 0 disables the size limit.
func NewWorkspace(dir string, maxSize int64) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Workspace{dir: dir, maxSize: maxSize}, nil
}

// NewBatchID returns a fresh batch id.
func NewBatchID() string {
	return uuid.NewString()
}

// CheckBatchID rejects batch ids that are not UUIDs, which keeps them usable
// as file names and store keys.
func CheckBatchID(batchID string) error {
	if _, err := uuid.Parse(batchID); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, batchID)
	}
	return nil
}

func (w *Workspace) dataPath(batchID string) string {
	return filepath.Join(w.dir, batchID+".csv")
}

func (w *Workspace) manifestPath(batchID string) string {
	return filepath.Join(w.dir, batchID+".yaml")
}

// SaveUpload copies r to the batch's data file and returns the bytes written.
func (w *Workspace) SaveUpload(batchID string, r io.Reader) (int64, error) {
	if err := CheckBatchID(batchID); err != nil {
		return 0, err
	}

	path := w.dataPath(batchID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}

	if w.maxSize > 0 {
		r = io.LimitReader(r, w.maxSize+1)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && w.maxSize > 0 && n > w.maxSize {
		err = fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, w.maxSize)
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

// OpenSource parses the data file of a batch.
func (w *Workspace) OpenSource(batchID string) (*CSV, error) {
	if err := CheckBatchID(batchID); err != nil {
		return nil, err
	}
	src, err := Open(w.dataPath(batchID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, batchID)
	}
	return src, err
}

// SaveManifest writes m atomically.
func (w *Workspace) SaveManifest(m Manifest) error {
	if err := CheckBatchID(m.BatchID); err != nil {
		return err
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tmp, err := os.CreateTemp(w.dir, m.BatchID+".*.tmp")
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.manifestPath(m.BatchID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads the manifest of a batch.
func (w *Workspace) LoadManifest(batchID string) (Manifest, error) {
	if err := CheckBatchID(batchID); err != nil {
		return Manifest{}, err
	}

	data, err := os.ReadFile(w.manifestPath(batchID))
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, fmt.Errorf("%w: %s", ErrSessionNotFound, batchID)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// Remove deletes the data file and manifest of a batch. Missing files are
// ignored.
func (w *Workspace) Remove(batchID string) error {
	if err := CheckBatchID(batchID); err != nil {
		return err
	}
	for _, p := range []string{w.dataPath(batchID), w.manifestPath(batchID)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}
