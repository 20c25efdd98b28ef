// Package artifact persists generated images to local files and hands out
// collision-free paths for them.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/arthaus/photoshoot-bot/internal/provider"
)

const maxKeyLength = 48

type Store struct {
	dir string
}

// Artifact points at one persisted image.
type Artifact struct {
	Path string
	Mime string
}

// NewStore writes artifacts under dir, defaulting to the system temp
// directory. Cleanup of old artifacts is a reaper's job, not ours.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Store{dir: dir}
}

// Save writes the image to a fresh file. The name embeds a sanitized source
// key and the source photo count for traceability plus a random suffix, so
// concurrent or repeated requests for the same inputs never overwrite each
// other.
func (s *Store) Save(sourceKey string, sourceCount int, img *provider.Image) (*Artifact, error) {
	if img == nil || len(img.Bytes) == 0 {
		return nil, fmt.Errorf("no image data to save")
	}

	name := fmt.Sprintf("photoshoot_%s_%dp_%s%s", sanitizeKey(sourceKey), sourceCount, uuid.NewString(), extensionForMime(img.Mime))
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, img.Bytes, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	return &Artifact{Path: path, Mime: img.Mime}, nil
}

func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxKeyLength {
			break
		}
	}
	if b.Len() == 0 {
		return "src"
	}
	return b.String()
}

func extensionForMime(mime string) string {
	switch {
	case strings.Contains(mime, "png"):
		return ".png"
	case strings.Contains(mime, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
