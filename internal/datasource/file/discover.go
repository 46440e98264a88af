package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrwils/sparkifydb-pg/internal/etlerr"
)

// DefaultExt is the extension of song and log data files.
const DefaultExt = ".json"

// Discover walks root recursively and returns the absolute paths of all
// regular files whose name ends in ext, in lexical walk order. Names starting
// with "." are skipped, matching a "*"+ext glob. Files are not opened.
//
// An empty ext selects DefaultExt. A missing, unreadable or non-directory
// root, or an unreadable directory below it, yields *etlerr.DiscoveryError.
// A root with no matching files yields an empty, non-nil slice.
func Discover(root, ext string) ([]string, error) {
	if ext == "" {
		ext = DefaultExt
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &etlerr.DiscoveryError{Root: root, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &etlerr.DiscoveryError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &etlerr.DiscoveryError{Root: root, Err: errors.New("not a directory")}
	}

	// WalkDir does not follow a symlinked root; walk its target and report
	// paths under the name the caller gave.
	target, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, &etlerr.DiscoveryError{Root: root, Err: err}
	}

	out := []string{}
	walkErr := filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(target, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.Join(abs, rel))
		return nil
	})
	if walkErr != nil {
		return nil, &etlerr.DiscoveryError{Root: root, Err: fmt.Errorf("walk: %w", walkErr)}
	}
	return out, nil
}
