package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// writePair stores v as <dir>/<base>.json and <dir>/<base>.msgpack and returns
// the binary path. Both encodings are produced before anything touches the
// disk; on any write failure neither file is left behind.
func writePair[T any](dir, base string, v T) (string, error) {
	text, err := types.EncodeText(v)
	if err != nil {
		return "", err
	}
	bin, err := types.EncodeBinary(v)
	if err != nil {
		return "", err
	}

	textPath := filepath.Join(dir, base+textExt)
	binPath := filepath.Join(dir, base+binaryExt)

	if err := writeAtomic(textPath, text); err != nil {
		return "", err
	}
	if err := writeAtomic(binPath, bin); err != nil {
		_ = os.Remove(textPath)
		return "", err
	}
	return binPath, nil
}

// writeAtomic writes data to a temporary sibling and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteDecisionHeader persists h in area and returns the path of its binary
// encoding.
func (r *RunDir) WriteDecisionHeader(area Area, prefix, suffix string, h types.DecisionHeader) (string, error) {
	if err := h.Validate(); err != nil {
		return "", err
	}
	base := FileName(headerKind, prefix, h.Category, suffix, "")
	return writePair(r.Path(area), base, h)
}

// WriteDesignHeader persists h under inputs/ and returns the path of its binary
// encoding.
func (r *RunDir) WriteDesignHeader(prefix, suffix string, h types.DesignHeader) (string, error) {
	if err := h.Validate(); err != nil {
		return "", err
	}
	base := FileName(headerKind, prefix, h.Category, suffix, "")
	return writePair(r.Path(AreaInputs), base, h)
}

// WriteDecisionModel persists the full body of m next to its header. The
// returned header carries the body's binary path.
func (r *RunDir) WriteDecisionModel(area Area, prefix, suffix string, m types.DecisionModel) (types.DecisionHeader, string, error) {
	h := m.Header()
	if err := h.Validate(); err != nil {
		return types.DecisionHeader{}, "", err
	}

	bodyBase := FileName(bodyKind, prefix, h.Category, suffix, "")
	bodyPath, err := writePair(r.Path(area), bodyBase, m)
	if err != nil {
		return types.DecisionHeader{}, "", err
	}

	h = h.WithBodyPath(bodyPath)
	headerPath, err := r.WriteDecisionHeader(area, prefix, suffix, h)
	if err != nil {
		removePair(bodyPath)
		return types.DecisionHeader{}, "", err
	}
	return h, headerPath, nil
}

// SaveAccumulated replaces the consolidated accumulated-header snapshot.
func (r *RunDir) SaveAccumulated(headers []types.DecisionHeader) error {
	if headers == nil {
		headers = []types.DecisionHeader{}
	}
	_, err := writePair(r.root, accumulatedName, headers)
	return err
}

// StageForExploration clears staged/ and places h there (with a copy of its
// body, if any) for exploration modules to pick up. It returns the staged
// header as written.
func (r *RunDir) StageForExploration(h types.DecisionHeader) (types.DecisionHeader, error) {
	dir := r.Path(AreaStaged)
	if err := clearDir(dir); err != nil {
		return types.DecisionHeader{}, err
	}

	staged := h
	if h.BodyPath != nil && *h.BodyPath != "" {
		dst, err := r.stageBody(*h.BodyPath, h.Category)
		if err != nil {
			return types.DecisionHeader{}, err
		}
		staged = h.WithBodyPath(dst)
	}

	if _, err := r.WriteDecisionHeader(AreaStaged, "0", "staged", staged); err != nil {
		return types.DecisionHeader{}, err
	}
	return staged, nil
}

// stageBody copies both encodings of a body into staged/.
func (r *RunDir) stageBody(binPath, category string) (string, error) {
	base := FileName(bodyKind, "0", category, "staged", "")
	dst := filepath.Join(r.Path(AreaStaged), base+binaryExt)

	bin, err := os.ReadFile(binPath)
	if err != nil {
		return "", fmt.Errorf("failed to read body %s: %w", binPath, err)
	}
	if err := writeAtomic(dst, bin); err != nil {
		return "", err
	}

	textSrc := strings.TrimSuffix(binPath, binaryExt) + textExt
	if text, err := os.ReadFile(textSrc); err == nil {
		if err := writeAtomic(filepath.Join(r.Path(AreaStaged), base+textExt), text); err != nil {
			_ = os.Remove(dst)
			return "", err
		}
	}
	return dst, nil
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0o755)
		}
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clear %s: %w", dir, err)
		}
	}
	return nil
}

func removePair(binPath string) {
	_ = os.Remove(binPath)
	_ = os.Remove(strings.TrimSuffix(binPath, binaryExt) + textExt)
}
