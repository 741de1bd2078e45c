package pipeline

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/conneroisu/weft/internal/errors"
)

// Expand reads every file matched by patterns, in pattern order and sorted
// within each pattern. Files matched by more than one pattern are read once.
// Matches whose relative path matches an exclude pattern are dropped.
//
// Zero matches across all patterns returns a SourceReadError.
func Expand(fsys afero.Fs, patterns, exclude []string) ([]*File, error) {
	iofs := afero.NewIOFS(fsys)
	seen := make(map[string]bool)
	var files []*File

	for _, raw := range patterns {
		pattern := cleanPattern(raw)
		base, _ := doublestar.SplitPattern(pattern)

		matches, err := doublestar.Glob(iofs, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.NewTransformError(errors.ErrCodeReadFailed,
				fmt.Sprintf("cannot expand %s", raw), err)
		}
		sort.Strings(matches)

		for _, match := range matches {
			if seen[match] {
				continue
			}
			rel := relativeTo(base, match)
			if excluded(rel, exclude) {
				continue
			}
			seen[match] = true

			contents, err := afero.ReadFile(fsys, filepath.FromSlash(match))
			if err != nil {
				return nil, errors.NewTransformError(errors.ErrCodeReadFailed,
					"cannot read source", err).WithLocation(match, 0, 0)
			}
			files = append(files, &File{Path: rel, Source: match, Contents: contents})
		}
	}

	if len(files) == 0 {
		return nil, errors.NewSourceReadError(strings.Join(patterns, ", "))
	}
	return files, nil
}

func cleanPattern(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

func relativeTo(base, match string) string {
	if base == "." || base == "" {
		return match
	}
	return strings.TrimPrefix(match, base+"/")
}

func excluded(rel string, exclude []string) bool {
	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
