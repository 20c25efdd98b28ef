package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthaus/photoshoot-bot/internal/provider"
)

func TestSaveWritesFile(t *testing.T) {
	store := NewStore(t.TempDir())

	art, err := store.Save("file-abc", 2, &provider.Image{Bytes: []byte("png-bytes"), Mime: "image/png"})
	require.NoError(t, err)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "image/png", art.Mime)

	name := filepath.Base(art.Path)
	assert.True(t, strings.HasPrefix(name, "photoshoot_file-abc_2p_"))
	assert.True(t, strings.HasSuffix(name, ".png"))
}

func TestSaveRejectsEmptyImage(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Save("k", 1, nil)
	assert.Error(t, err)

	_, err = store.Save("k", 1, &provider.Image{})
	assert.Error(t, err)
}

func TestSaveNamesNeverCollide(t *testing.T) {
	store := NewStore(t.TempDir())
	img := &provider.Image{Bytes: []byte("x"), Mime: "image/jpeg"}

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		art, err := store.Save("same-key", 1, img)
		require.NoError(t, err)
		require.False(t, seen[art.Path], "path reused: %s", art.Path)
		seen[art.Path] = true
	}
}

func TestSaveSanitizesKey(t *testing.T) {
	store := NewStore(t.TempDir())

	art, err := store.Save("id/with:odd chars?", 1, &provider.Image{Bytes: []byte("x"), Mime: "image/webp"})
	require.NoError(t, err)

	name := filepath.Base(art.Path)
	assert.NotContains(t, name, "/odd")
	assert.NotContains(t, name, ":")
	assert.NotContains(t, name, " ")
	assert.True(t, strings.HasSuffix(name, ".webp"))
}

func TestSaveExtensionFallback(t *testing.T) {
	store := NewStore(t.TempDir())

	art, err := store.Save("k", 1, &provider.Image{Bytes: []byte("x"), Mime: "application/octet-stream"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(art.Path, ".jpg"))
}
