package storage

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when a persisted artifact does not exist
var ErrNotFound = errors.New("artifact not found")

// Kind groups artifacts into subdirectories of the artifact root
type Kind string

const (
	KindClean     Kind = "data/clean"
	KindProcessed Kind = "data/processed"
	KindModels    Kind = "models"
	KindReports   Kind = "reports"
)

// Well known artifact names
const (
	CleanedDataset     = "cleaned_dataset.csv"
	LabelEncoders      = "label_encoders.json"
	Scaler             = "scaler.json"
	Transformer        = "preprocess.json"
	ServingModel       = "threat_detection_model.gob"
	XTrain             = "X_train.gob"
	XTest              = "X_test.gob"
	YTrain             = "y_train.gob"
	YTest              = "y_test.gob"
	ClassReport        = "classification_report.json"
	ConfusionMatrixPNG = "confusion_matrix.png"
	ROCCurvePNG        = "roc_curve.png"
)

// ArtifactStore resolves artifact paths under a base directory
type ArtifactStore struct {
	basePath string
}

// NewArtifactStore creates the artifact layout under basePath
func NewArtifactStore(basePath string) (*ArtifactStore, error) {
	dirs := make([]string, 0, 4)
	for _, kind := range []Kind{KindClean, KindProcessed, KindModels, KindReports} {
		dirs = append(dirs, filepath.Join(basePath, string(kind)))
	}
	if err := EnsureDirs(dirs...); err != nil {
		return nil, err
	}
	return &ArtifactStore{basePath: basePath}, nil
}

// BasePath returns the artifact root
func (s *ArtifactStore) BasePath() string {
	return s.basePath
}

// Dir returns the directory holding artifacts of the given kind
func (s *ArtifactStore) Dir(kind Kind) string {
	return filepath.Join(s.basePath, string(kind))
}

// Path returns the full path of a named artifact
func (s *ArtifactStore) Path(kind Kind, name string) string {
	return filepath.Join(s.basePath, string(kind), name)
}

// EnsureDirs creates directories if they don't exist
func EnsureDirs(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(p, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", p, err)
		}
	}
	return nil
}

// SaveGob gob-encodes v to path, creating parent directories
func SaveGob(path string, v interface{}) error {
	return writeFile(path, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(v)
	})
}

// LoadGob decodes a gob artifact into v
func LoadGob(path string, v interface{}) error {
	return readFile(path, func(f *os.File) error {
		return gob.NewDecoder(f).Decode(v)
	})
}

// SaveJSON writes v as indented JSON to path, creating parent directories
func SaveJSON(path string, v interface{}) error {
	return writeFile(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// LoadJSON decodes a JSON artifact into v
func LoadJSON(path string, v interface{}) error {
	return readFile(path, func(f *os.File) error {
		return json.NewDecoder(f).Decode(v)
	})
}

func writeFile(path string, encode func(*os.File) error) error {
	if err := EnsureDirs(filepath.Dir(path)); err != nil {
		return err
	}

	// Write to a temp file first so readers never observe a partial artifact
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := encode(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func readFile(path string, decode func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := decode(f); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
