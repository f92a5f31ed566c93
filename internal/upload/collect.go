package upload

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bartdeslagmulder/now-cli/internal/model"
)

// ignored names are never part of a deployment
var ignored = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	".DS_Store":    true,
}

// Collector gathers the files of a deployment
type Collector struct {
	// FollowLinks includes symlinks that point at regular files, with the
	// content of their target. Linked directories are not descended into.
	FollowLinks bool
}

// Collect walks paths with the default Collector
func Collect(paths []string) ([]model.File, error) {
	return (&Collector{}).Collect(paths)
}

// Collect walks paths and returns every regular file with its SHA-1. With a
// single directory, names are relative to it; otherwise they are relative to
// each path's parent.
func (c *Collector) Collect(paths []string) ([]model.File, error) {
	var files []model.File

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", root, err)
		}

		base := filepath.Dir(root)
		if len(paths) == 1 && info.IsDir() {
			base = root
		}

		if !info.IsDir() {
			f, err := describe(root, base, info)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ignored[d.Name()] && path != root {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			info, err := c.regular(path, d)
			if err != nil || info == nil {
				return err
			}
			f, err := describe(path, base, info)
			if err != nil {
				return err
			}
			files = append(files, f)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", root, err)
		}
	}

	return files, nil
}

// regular returns the file info to record for d, or nil to skip it
func (c *Collector) regular(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 && c.FollowLinks {
		info, err := os.Stat(path)
		if err != nil {
			// dangling
			return nil, nil
		}
		if !info.Mode().IsRegular() {
			return nil, nil
		}
		return info, nil
	}
	if !d.Type().IsRegular() {
		return nil, nil
	}
	return d.Info()
}

func describe(path, base string, info fs.FileInfo) (model.File, error) {
	sum, err := hashFile(path)
	if err != nil {
		return model.File{}, err
	}
	name, err := filepath.Rel(base, path)
	if err != nil {
		return model.File{}, fmt.Errorf("failed to name %s: %w", path, err)
	}
	return model.File{
		Path: path,
		Name: filepath.ToSlash(name),
		SHA:  sum,
		Size: info.Size(),
		Mode: uint32(info.Mode().Perm()),
	}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
