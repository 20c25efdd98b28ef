package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBaseURL(t *testing.T) {
	const fallback = "https://api.apiyi.com"

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", fallback},
		{"full url", "https://api.example.com", "https://api.example.com"},
		{"trailing slash", "https://api.example.com/", "https://api.example.com"},
		{"no scheme", "api.example.com", "https://api.example.com"},
		{"whitespace", "  https://api.example.com  ", "https://api.example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeBaseURL(tc.in, fallback))
		})
	}
}

func TestArchiveEnabled(t *testing.T) {
	assert.False(t, Config{}.ArchiveEnabled())
	assert.True(t, Config{S3Bucket: "photos"}.ArchiveEnabled())
}
