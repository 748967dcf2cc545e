package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cvdub/mr-rippah/spotify/types"
)

type DownloadsDir string

func DownloadsDirFrom(d string) DownloadsDir {
	return DownloadsDir(d)
}

// AllocateUnique creates and returns <dir>/<name>, probing "<name> (1)",
// "<name> (2)", ... when the plain name is taken. Single-process tool, so a
// stat-then-create race with other callers is out of scope.
func (dir DownloadsDir) AllocateUnique(name string) (string, error) {
	if err := os.MkdirAll(dir.path(), 0o755); nil != err {
		return "", fmt.Errorf("failed to create downloads directory: %v", err)
	}

	candidate := filepath.Join(dir.path(), SanitizeName(name))
	if _, err := os.Stat(candidate); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat directory candidate: %v", err)
		}
		if err := os.Mkdir(candidate, 0o755); nil != err {
			return "", fmt.Errorf("failed to create directory: %v", err)
		}

		return candidate, nil
	}

	for i := 1; ; i++ {
		numbered := fmt.Sprintf("%s (%d)", candidate, i)
		if _, err := os.Stat(numbered); nil != err {
			if !errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("failed to stat directory candidate: %v", err)
			}
			if err := os.Mkdir(numbered, 0o755); nil != err {
				return "", fmt.Errorf("failed to create directory: %v", err)
			}

			return numbered, nil
		}
	}
}

func (dir DownloadsDir) path() string {
	return string(dir)
}

// TrackPath derives the deterministic output location for a track:
// <dir>/<album artist>/<album>/<NN> - <title>.mp3.
func TrackPath(dir string, meta types.TrackMetadata) string {
	fileName := fmt.Sprintf("%02d - %s.mp3", meta.TrackNumber, SanitizeName(meta.Title))

	return filepath.Join(
		dir,
		SanitizeName(meta.AlbumArtist),
		SanitizeName(meta.Album),
		fileName,
	)
}

// SanitizeName strips characters that would split a tag value into extra
// path segments.
func SanitizeName(s string) string {
	s = strings.ReplaceAll(s, string(filepath.Separator), "-")
	s = strings.ReplaceAll(s, "\x00", "")
	if s == "" {
		return "_"
	}

	return s
}
