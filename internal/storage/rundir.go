// Package storage owns the run directory: the durable record of every header
// produced during a run and the exchange medium with external modules.
//
// Layout:
//
//	<run_dir>/
//	  inputs/      design headers (header_*.msgpack) seeding identification
//	  identified/  decision headers and bodies produced by identification
//	  staged/      the one decision model handed to exploration modules
//	  explored/    solution headers streamed back by exploration
//	  accumulated.{json,msgpack}
//
// Every header is written twice, as JSON and as msgpack, under the naming
// scheme header_<prefix>_<category>_<suffix>.{json,msgpack}. Bodies use the
// body_ prefix. A pair is either fully on disk or not at all.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Area is one of the run directory's subdirectories.
type Area string

const (
	AreaInputs     Area = "inputs"
	AreaIdentified Area = "identified"
	AreaStaged     Area = "staged"
	AreaExplored   Area = "explored"
)

// Areas lists every subdirectory created by OpenRunDir.
var Areas = []Area{AreaInputs, AreaIdentified, AreaStaged, AreaExplored}

const (
	textExt   = ".json"
	binaryExt = ".msgpack"

	headerKind = "header"
	bodyKind   = "body"

	accumulatedName = "accumulated"
)

// RunDir is an opened run directory.
type RunDir struct {
	root string
}

// OpenRunDir creates (if needed) and opens the run directory at path.
func OpenRunDir(path string) (*RunDir, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("run directory path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	for _, area := range Areas {
		if err := os.MkdirAll(filepath.Join(abs, string(area)), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create run directory %s: %w", area, err)
		}
	}
	return &RunDir{root: abs}, nil
}

// Root returns the absolute run directory path.
func (r *RunDir) Root() string {
	return r.root
}

// Path returns the absolute path of area.
func (r *RunDir) Path(area Area) string {
	return filepath.Join(r.root, string(area))
}

// Resolve makes a path reported by a module absolute. Relative paths are
// tried against the working directory first, then against the run directory.
func (r *RunDir) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	if _, err := os.Stat(p); err == nil {
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
	}
	return filepath.Join(r.root, p)
}

// FileName builds header_<prefix>_<category>_<suffix><ext> (or body_...).
// Characters that cannot appear in a file name are replaced by '_'.
func FileName(kind, prefix, category, suffix, ext string) string {
	return fmt.Sprintf("%s_%s_%s_%s%s", kind, sanitize(prefix), sanitize(category), sanitize(suffix), ext)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '.', r == '+':
			return r
		default:
			return '_'
		}
	}, s)
}

// isHeaderFile reports whether name is a binary header file.
func isHeaderFile(name string) bool {
	return strings.HasPrefix(name, headerKind) && strings.HasSuffix(name, binaryExt)
}
