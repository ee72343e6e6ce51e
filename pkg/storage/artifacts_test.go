package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string
	Values []float64
}

func TestArtifactStore(t *testing.T) {
	base := filepath.Join(t.TempDir(), "outputs")
	store, err := NewArtifactStore(base)
	require.NoError(t, err)

	for _, kind := range []Kind{KindClean, KindProcessed, KindModels, KindReports} {
		info, err := os.Stat(store.Dir(kind))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.Equal(t, filepath.Join(base, "models", Scaler), store.Path(KindModels, Scaler))
}

func TestGobRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "sample.gob")
	in := sample{Name: "x", Values: []float64{1, 2.5}}
	require.NoError(t, SaveGob(path, in))

	var out sample
	require.NoError(t, LoadGob(path, &out))
	assert.Equal(t, in, out)

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestSaveJSONIndents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, SaveJSON(path, map[string]float64{"accuracy": 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"accuracy\": 1\n}\n", string(data))

	var out map[string]float64
	require.NoError(t, LoadJSON(path, &out))
	assert.Equal(t, 1.0, out["accuracy"])
}

func TestLoadMissing(t *testing.T) {
	var out sample
	err := LoadGob(filepath.Join(t.TempDir(), "missing.gob"), &out)
	assert.ErrorIs(t, err, ErrNotFound)

	err = LoadJSON(filepath.Join(t.TempDir(), "missing.json"), &out)
	assert.ErrorIs(t, err, ErrNotFound)
}
