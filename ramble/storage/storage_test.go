package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreRoundTrip(t *testing.T) {
	s := NewMemStore()
	s.Add("edge", []string{"1", "2"}, []string{"2", "3"})

	rows, err := s.Load("edge", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	require.NoError(t, s.Store("path", nil, [][]string{{"1", "3"}, {"1", "2"}}))
	n, err := s.Size("path")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, [][]string{{"1", "2"}, {"1", "3"}}, s.Rows("path"))

	_, err = s.Size("missing")
	assert.Error(t, err)
}

func TestDirStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "edge.facts"), []byte("1\t2\n2\t3\n"), 0o644))

	s := NewDirStore(dir, dir)
	rows, err := s.Load("edge", nil)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}, {"2", "3"}}, rows)

	require.NoError(t, s.Store("path", nil, [][]string{{"1", "3"}}))
	data, err := os.ReadFile(filepath.Join(dir, "path.csv"))
	require.NoError(t, err)
	assert.Equal(t, "1\t3\n", string(data))
}

func TestDirStoreMissingInputIsEmpty(t *testing.T) {
	s := NewDirStore(t.TempDir(), t.TempDir())
	rows, err := s.Load("absent", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDirStoreParamsOverrideDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.tsv"), []byte("a,b\n"), 0o644))

	s := NewDirStore(dir, dir)
	params := map[string]string{"filename": "custom.tsv", "delimiter": ","}
	rows, err := s.Load("edge", params)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, rows)

	require.NoError(t, s.Store("edge", params, [][]string{{"x", "y"}}))
	data, err := os.ReadFile(filepath.Join(dir, "custom.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "x,y\n", string(data))
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	s, err := OpenBadger(filepath.Join(t.TempDir(), "facts.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Store("edge", nil, [][]string{{"1", "2"}, {"2", "3"}}))
	n, err := s.Size("edge")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := s.Load("edge", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]string{{"1", "2"}, {"2", "3"}}, rows)

	// Relations are namespaced: an unrelated prefix must not leak.
	rows, err = s.Load("edge2", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
