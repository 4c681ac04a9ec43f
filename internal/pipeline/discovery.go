package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/teavision/internal/utils"
)

// DiscoverImages expands files and directories into supported image paths.
// Directories are walked recursively only when recursive is set. Exclude
// patterns are matched against base names with filepath.Match.
func DiscoverImages(args []string, recursive bool, exclude []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if include(arg, exclude) {
				files = append(files, arg)
			}
			continue
		}

		found, err := discoverInDirectory(arg, recursive, exclude)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func discoverInDirectory(dir string, recursive bool, exclude []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if include(path, exclude) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

func include(path string, exclude []string) bool {
	if !utils.IsSupportedImage(path) {
		return false
	}
	base := filepath.Base(path)
	for _, pattern := range exclude {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}
	return true
}

// SourcesFromPaths wraps file paths as batch sources.
func SourcesFromPaths(paths []string) []Source {
	sources := make([]Source, len(paths))
	for i, p := range paths {
		sources[i] = Source{Name: filepath.Base(p), Path: p}
	}
	return sources
}
