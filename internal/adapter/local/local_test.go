package local

import (
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ning0612/drivesync/internal/domain"
)

// TestResolvePath tests target path resolution
func TestResolvePath(t *testing.T) {
	tests := []struct {
		path     string
		fallback string
		expected string
	}{
		{"./out/", "report.txt", "./out/report.txt"},
		{"./out/custom.txt", "report.txt", "./out/custom.txt"},
		{"./out", "report.txt", "./out/report.txt"},
		{"", "report.txt", "./report.txt"},
		{"   ", "report.txt", "   /report.txt"},
		{" notes.txt ", "report.txt", " notes.txt "},
		{"out /", "report.txt", "out /report.txt"},
		{".", "report.txt", "./report.txt"},
		{"out", "report.txt", "out/report.txt"},
		{"custom.txt", "report.txt", "custom.txt"},
		{"C:\\data\\", "report.txt", "C:\\data\\report.txt"},
		{"C:\\data", "report.txt", "C:\\data\\report.txt"},
		{"C:\\data\\file.csv", "report.txt", "C:\\data\\file.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolvePath(tt.path, tt.fallback))
		})
	}
}

func TestStore_WriteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs)

	path, err := s.WriteFile("exports/", "data.json", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, "exports/data.json", path)

	data, err := s.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	// No temp file left behind
	exists, err := afero.Exists(fs, path+".drivesync.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_WriteFile_Overwrite(t *testing.T) {
	s := New(afero.NewMemMapFs())

	_, err := s.WriteFile("a.txt", "ignored", []byte("first"))
	require.NoError(t, err)
	_, err = s.WriteFile("a.txt", "ignored", []byte("second"))
	require.NoError(t, err)

	data, err := s.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestStore_WriteFile_ReadOnlyFs(t *testing.T) {
	s := New(afero.NewReadOnlyFs(afero.NewMemMapFs()))

	_, err := s.WriteFile("out/", "a.txt", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLocalIO)
}

func TestStore_Create(t *testing.T) {
	s := New(afero.NewMemMapFs())

	f, path, err := s.Create("downloads", "movie.mp4")
	require.NoError(t, err)
	assert.Equal(t, "downloads/movie.mp4", path)

	_, err = f.Write([]byte("stream"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := s.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "stream", string(data))
}

func TestStore_ReadFile_Missing(t *testing.T) {
	s := New(afero.NewMemMapFs())

	_, err := s.ReadFile("missing.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLocalIO)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_Remove(t *testing.T) {
	s := New(afero.NewMemMapFs())

	_, err := s.WriteFile("a.txt", "", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Remove("a.txt"))
	require.NoError(t, s.Remove("a.txt"), "removing a missing file is not an error")
}

func TestNew_DefaultsToOsFs(t *testing.T) {
	s := New(nil)
	_, ok := s.Fs().(*afero.OsFs)
	assert.True(t, ok)
}
