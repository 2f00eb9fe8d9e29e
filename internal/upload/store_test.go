package upload

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, max int64) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "uploads"), max)
	require.NoError(t, err)
	return s
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestSaveAndRemove(t *testing.T) {
	s := newStore(t, 1024)

	f, err := s.Save(strings.NewReader("pixels"), "scan.PNG")
	require.NoError(t, err)
	assert.Equal(t, s.Dir(), filepath.Dir(f.Path))
	assert.Equal(t, ".png", filepath.Ext(f.Path))
	assert.Equal(t, int64(6), f.Size)

	data, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	require.NoError(t, f.Remove())
	_, err = os.Stat(f.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.NoError(t, f.Remove())
}

func TestSaveUsesUniqueNames(t *testing.T) {
	s := newStore(t, 1024)

	a, err := s.Save(strings.NewReader("a"), "x.jpg")
	require.NoError(t, err)
	b, err := s.Save(strings.NewReader("b"), "x.jpg")
	require.NoError(t, err)

	assert.NotEqual(t, a.Path, b.Path)
	assert.Equal(t, 2, dirEntries(t, s.Dir()))
}

func TestSaveRejectsExtension(t *testing.T) {
	s := newStore(t, 1024)

	for _, name := range []string{"scan.gif", "scan", "scan.png.exe"} {
		_, err := s.Save(strings.NewReader("x"), name)
		assert.ErrorIs(t, err, ErrExtension, name)
	}
	assert.Zero(t, dirEntries(t, s.Dir()))
}

func TestSaveRejectsOversize(t *testing.T) {
	s := newStore(t, 4)

	_, err := s.Save(bytes.NewReader([]byte("12345")), "big.jpeg")
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Zero(t, dirEntries(t, s.Dir()))

	f, err := s.Save(bytes.NewReader([]byte("1234")), "fits.jpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(4), f.Size)
}

func TestSaveRejectsEmpty(t *testing.T) {
	s := newStore(t, 4)

	_, err := s.Save(bytes.NewReader(nil), "empty.png")
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Zero(t, dirEntries(t, s.Dir()))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("png"))
	assert.Equal(t, "image/jpeg", ContentType("jpeg"))
	assert.Equal(t, "application/octet-stream", ContentType(""))
}
