package audio

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"
)

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".wav":  {},
	".wave": {},
	".flac": {},
	".ogg":  {},
	".oga":  {},
	".opus": {},
	".m4a":  {},
	".aac":  {},
	".aif":  {},
	".aiff": {},
	".wma":  {},
	".alac": {},
}

// IsAudioFile reports whether path looks like audio, first by extension and
// then by sniffing the container for a known tag format.
func IsAudioFile(path string) bool {
	if _, ok := audioExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, fileType, err := tag.Identify(f)
	if err != nil {
		return false
	}
	return fileType != tag.UnknownFileType && fileType != ""
}

// Title returns the embedded title tag, falling back to the file name.
func Title(path string) string {
	fallback := filepath.Base(path)
	f, err := os.Open(path)
	if err != nil {
		return fallback
	}
	defer f.Close()
	m, err := tag.ReadFrom(f)
	if err != nil {
		return fallback
	}
	title := strings.TrimSpace(m.Title())
	if title == "" {
		return fallback
	}
	if artist := strings.TrimSpace(m.Artist()); artist != "" {
		return artist + " - " + title
	}
	return title
}

// Collect expands directories recursively and keeps only audio files.
// Explicit file arguments keep their order; files found inside a directory
// are sorted by path. Duplicates are dropped.
func Collect(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			if IsAudioFile(p) {
				add(p)
			}
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if IsAudioFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
		sort.Strings(found)
		for _, path := range found {
			add(path)
		}
	}
	return out, nil
}
