package model

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"riskstrat/internal/domain/patient"
	"riskstrat/internal/ml"
	"riskstrat/pkg/errors"
	"riskstrat/pkg/logger"
)

const (
	artifactPrefix = "risk_model_"
	artifactExt    = ".bin.gz"
	metaExt        = ".meta.json"
)

// artifact is the gob wire form of a Set
type artifact struct {
	ID           string
	Version      string
	CreatedAt    time.Time
	FeatureNames []string
	Scaler       ml.StandardScaler
	Regressors   map[int]ml.Regressor
	Champion     string
	Params       map[string]float64
	Metrics      map[int]ml.Score
	Importances  []Importance
}

// Meta is the human-readable sidecar written next to each artifact
type Meta struct {
	ID           string              `json:"id"`
	Version      string              `json:"version"`
	CreatedAt    time.Time           `json:"created_at"`
	FeatureNames []string            `json:"feature_names"`
	Horizons     []string            `json:"horizons"`
	Champion     string              `json:"champion"`
	Params       map[string]float64  `json:"params"`
	Metrics      map[string]ml.Score `json:"metrics"`
	Importances  []Importance        `json:"importances"`
	Path         string              `json:"-"`
}

// FileStore persists sets as gzip-compressed gob blobs in a directory
type FileStore struct {
	dir string
	log *logger.Logger
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, log: logger.Get().Component("model_store")}
}

// Dir returns the artifact directory
func (fs *FileStore) Dir() string { return fs.dir }

// ArtifactPath returns where a version is stored
func (fs *FileStore) ArtifactPath(version string) string {
	return filepath.Join(fs.dir, artifactPrefix+version+artifactExt)
}

// Save writes the artifact and its sidecar, returning the artifact path.
// An existing version is never overwritten.
func (fs *FileStore) Save(s *Set) (string, error) {
	if s.external {
		return "", errors.Wrap(errors.ErrInvalidInput, "external model sets are not persisted")
	}
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create artifact dir")
	}

	path := fs.ArtifactPath(s.version)
	if _, err := os.Stat(path); err == nil {
		return "", errors.Wrapf(errors.ErrAlreadyExists, "model version %s in %s", s.version, fs.dir)
	}
	if err := writeGob(path, toArtifact(s)); err != nil {
		return "", err
	}

	meta := s.Meta()
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal sidecar")
	}
	metaPath := strings.TrimSuffix(path, artifactExt) + metaExt
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write sidecar")
	}

	fs.log.Infow("Saved model set", "version", s.version, "champion", s.champion, "path", path)
	return path, nil
}

func writeGob(path string, a *artifact) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create artifact")
	}
	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(a); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "encode artifact")
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "flush artifact")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close artifact")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "publish artifact")
	}
	return nil
}

// Load reads a set from an artifact path
func (fs *FileStore) Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "artifact %s", path)
		}
		return nil, errors.Wrap(err, "open artifact")
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "read artifact")
	}
	defer zr.Close()

	var a artifact
	if err := gob.NewDecoder(zr).Decode(&a); err != nil {
		return nil, errors.Wrap(err, "decode artifact")
	}
	return fromArtifact(&a)
}

// Latest loads the newest artifact in the directory
func (fs *FileStore) Latest() (*Set, error) {
	metas, err := fs.List()
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no model artifacts in %s", fs.dir)
	}
	return fs.Load(metas[0].Path)
}

// List returns sidecars of stored artifacts, newest first.
// Artifacts without a readable sidecar are listed by version only.
func (fs *FileStore) List() ([]Meta, error) {
	matches, err := filepath.Glob(filepath.Join(fs.dir, artifactPrefix+"*"+artifactExt))
	if err != nil {
		return nil, errors.Wrap(err, "list artifacts")
	}
	metas := make([]Meta, 0, len(matches))
	for _, path := range matches {
		base := filepath.Base(path)
		version := strings.TrimSuffix(strings.TrimPrefix(base, artifactPrefix), artifactExt)
		meta := Meta{Version: version}
		if data, err := os.ReadFile(strings.TrimSuffix(path, artifactExt) + metaExt); err == nil {
			if err := json.Unmarshal(data, &meta); err != nil {
				fs.log.Warnw("Unreadable sidecar", "path", path, "error", err)
			}
		}
		meta.Path = path
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Version > metas[j].Version })
	return metas, nil
}

// Meta describes the set for the sidecar and registries
func (s *Set) Meta() Meta {
	m := Meta{
		ID:           s.id.String(),
		Version:      s.version,
		CreatedAt:    s.createdAt,
		FeatureNames: s.FeatureNames(),
		Horizons:     patient.TargetColumns(),
		Champion:     s.champion,
		Params:       s.Params(),
		Metrics:      make(map[string]ml.Score, len(s.metrics)),
		Importances:  s.Importances(),
	}
	for h, sc := range s.metrics {
		m.Metrics[h.Target()] = sc
	}
	return m
}

func toArtifact(s *Set) *artifact {
	a := &artifact{
		ID:           s.id.String(),
		Version:      s.version,
		CreatedAt:    s.createdAt,
		FeatureNames: s.FeatureNames(),
		Scaler:       *cloneScaler(s.scaler),
		Regressors:   make(map[int]ml.Regressor, len(s.regressors)),
		Champion:     s.champion,
		Params:       s.Params(),
		Metrics:      make(map[int]ml.Score, len(s.metrics)),
		Importances:  s.Importances(),
	}
	for h, r := range s.regressors {
		a.Regressors[int(h)] = r
	}
	for h, m := range s.metrics {
		a.Metrics[int(h)] = m
	}
	return a
}

func fromArtifact(a *artifact) (*Set, error) {
	spec := Spec{
		FeatureNames: a.FeatureNames,
		Scaler:       &a.Scaler,
		Regressors:   make(map[patient.Horizon]ml.Regressor, len(a.Regressors)),
		Champion:     a.Champion,
		Params:       a.Params,
		Metrics:      make(map[patient.Horizon]ml.Score, len(a.Metrics)),
		Importances:  a.Importances,
		CreatedAt:    a.CreatedAt,
	}
	for h, r := range a.Regressors {
		spec.Regressors[patient.Horizon(h)] = r
	}
	for h, m := range a.Metrics {
		spec.Metrics[patient.Horizon(h)] = m
	}
	s, err := New(spec)
	if err != nil {
		return nil, errors.Wrap(err, "rebuild model set")
	}
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return nil, errors.Wrap(err, "parse model set id")
	}
	s.id = id
	s.version = a.Version
	return s, nil
}

// Registry records published model sets outside the artifact directory
type Registry interface {
	Register(ctx context.Context, meta Meta, activate bool) error
	Active(ctx context.Context) (*Meta, error)
}
