package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// readFile decodes a single file, picking the decoder by extension.
func readFile[T any](path string) (T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var v T
	if strings.EqualFold(filepath.Ext(path), textExt) {
		v, err = types.DecodeText[T](data)
	} else {
		v, err = types.DecodeBinary[T](data)
	}
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ReadDecisionHeader loads one decision header from path (msgpack, or JSON
// when the file ends in .json).
func ReadDecisionHeader(path string) (types.DecisionHeader, error) {
	h, err := readFile[types.DecisionHeader](path)
	if err != nil {
		return types.DecisionHeader{}, err
	}
	if err := h.Validate(); err != nil {
		return types.DecisionHeader{}, fmt.Errorf("%s: %w", path, err)
	}
	return h.Normalize(), nil
}

// ReadDesignHeader loads one design header from path.
func ReadDesignHeader(path string) (types.DesignHeader, error) {
	h, err := readFile[types.DesignHeader](path)
	if err != nil {
		return types.DesignHeader{}, err
	}
	if err := h.Validate(); err != nil {
		return types.DesignHeader{}, fmt.Errorf("%s: %w", path, err)
	}
	return h.Normalize(), nil
}

// ReadBody loads the full model a decision header points at.
func ReadBody[T any](h types.DecisionHeader) (T, error) {
	var zero T
	if h.BodyPath == nil || *h.BodyPath == "" {
		return zero, fmt.Errorf("decision header %s has no body", h.Category)
	}
	return readFile[T](*h.BodyPath)
}

// IsModelFile reports whether path has one of the model encodings' extensions.
func IsModelFile(path string) bool {
	ext := filepath.Ext(path)
	return strings.EqualFold(ext, textExt) || strings.EqualFold(ext, binaryExt)
}

// ReadModel decodes the model stored at path (msgpack, or JSON when the file
// ends in .json).
func ReadModel[T any](path string) (T, error) {
	return readFile[T](path)
}

// headerFiles lists the binary header files of dir in name order. A missing
// directory has no headers.
func headerFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isHeaderFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDecisionHeaders reads every header*.msgpack file in area. Files that fail
// to decode are skipped with a warning. Headers equal to one already loaded
// are dropped.
func (r *RunDir) LoadDecisionHeaders(area Area) ([]types.DecisionHeader, error) {
	paths, err := headerFiles(r.Path(area))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(paths))
	headers := make([]types.DecisionHeader, 0, len(paths))
	for _, path := range paths {
		h, err := ReadDecisionHeader(path)
		if err != nil {
			slog.Warn("dropping undecodable decision header", "path", path, "error", err)
			continue
		}
		key := h.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		headers = append(headers, h)
	}
	return headers, nil
}

// LoadDesignHeaders reads every design header in inputs/.
func (r *RunDir) LoadDesignHeaders() ([]types.DesignHeader, error) {
	paths, err := headerFiles(r.Path(AreaInputs))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(paths))
	headers := make([]types.DesignHeader, 0, len(paths))
	for _, path := range paths {
		h, err := ReadDesignHeader(path)
		if err != nil {
			slog.Warn("dropping undecodable design header", "path", path, "error", err)
			continue
		}
		key := h.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		headers = append(headers, h)
	}
	return headers, nil
}

// LoadAccumulated reads the snapshot written by SaveAccumulated. It returns
// nil, nil when no snapshot exists.
func (r *RunDir) LoadAccumulated() ([]types.DecisionHeader, error) {
	path := filepath.Join(r.root, accumulatedName+binaryExt)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return readFile[[]types.DecisionHeader](path)
}
