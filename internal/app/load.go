package app

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/quakeworks/srcmodel/internal/sml"
)

// modelExtension is the suffix of source model files found when a
// configured path is a directory.
const modelExtension = ".hcl"

// expandPaths resolves the configured paths into concrete files. A file
// path is taken as is; a directory is walked recursively for files with
// the given extension, in lexical order. A directory without any match is
// an error, as is a path that does not exist.
func expandPaths(paths []string, ext string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve model path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found := 0
		err = filepath.WalkDir(path, func(sub string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
				files = append(files, sub)
				found++
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", path, err)
		}
		if found == 0 {
			return nil, fmt.Errorf("no %s files under %s", ext, path)
		}
	}
	return files, nil
}

// loadModel parses one model file and returns its source_model root. The
// file must hold exactly one top-level block of that tag.
func loadModel(path string) (*sml.Node, error) {
	nodes, err := sml.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, fmt.Errorf("%s: expected one top-level block, found %d", path, len(nodes))
	}
	root := nodes[0]
	if root.Tag != "source_model" {
		return nil, fmt.Errorf("%s: top-level block is %s, want source_model", path, root.Tag)
	}
	return root, nil
}
