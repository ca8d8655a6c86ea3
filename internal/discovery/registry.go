package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// Kind says how a module is launched.
type Kind int

const (
	// NativeBinary modules are executed directly.
	NativeBinary Kind = iota
	// JvmArchive modules are executed as `<java> -jar <path>`.
	JvmArchive
)

func (k Kind) String() string {
	switch k {
	case NativeBinary:
		return "native"
	case JvmArchive:
		return "jar"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DefaultJava is the JVM launcher used when none is configured.
const DefaultJava = "java"

// Module is one discovered module.
type Module struct {
	// Path is the resolved (symlink-free, absolute) location of the file.
	Path string
	Kind Kind
}

// ID returns the module's display name: the base name of its resolved path.
func (m Module) ID() string {
	return filepath.Base(m.Path)
}

// Argv returns the full argument vector used to run the module with args.
func (m Module) Argv(java string, args ...string) []string {
	if m.Kind == JvmArchive {
		if java == "" {
			java = DefaultJava
		}
		return append([]string{java, "-jar", m.Path}, args...)
	}
	return append([]string{m.Path}, args...)
}

// Command builds the process for running the module with args. The process is
// bound to ctx: cancelling ctx kills it.
func (m Module) Command(ctx context.Context, java string, args ...string) *exec.Cmd {
	argv := m.Argv(java, args...)
	return exec.CommandContext(ctx, argv[0], argv[1:]...)
}

func (m Module) String() string {
	return fmt.Sprintf("%s (%s)", m.ID(), m.Kind)
}

// Registry holds the modules of one kind of role (identification or
// exploration), keyed by resolved path.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// Add registers m. It reports false when a module with the same resolved path
// is already present.
func (r *Registry) Add(m Module) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[m.Path]; exists {
		return false
	}
	r.modules[m.Path] = m
	return true
}

// Get looks a module up by resolved path. IDs are display names only: two
// modules may share one.
func (r *Registry) Get(path string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[path]
	return m, ok
}

// Modules returns all registered modules sorted by path.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}

// Scan builds a registry from the files directly inside dir.
func Scan(dir string) *Registry {
	reg := NewRegistry()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("module directory unreadable", "dir", dir, "error", err)
		} else {
			slog.Debug("module directory missing", "dir", dir)
		}
		return reg
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		m, ok := classify(path)
		if !ok {
			continue
		}
		if !reg.Add(m) {
			slog.Debug("duplicate module ignored", "path", path, "resolved", m.Path)
		}
	}
	return reg
}

// classify resolves path and decides whether it is a runnable module.
func classify(path string) (Module, bool) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		slog.Debug("skipping unresolvable entry", "path", path, "error", err)
		return Module{}, false
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return Module{}, false
	}

	if strings.EqualFold(filepath.Ext(resolved), ".jar") {
		return Module{Path: resolved, Kind: JvmArchive}, true
	}
	if isExecutable(resolved, info) {
		return Module{Path: resolved, Kind: NativeBinary}, true
	}
	return Module{}, false
}

func isExecutable(path string, info os.FileInfo) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(filepath.Ext(path), ".exe")
	}
	return info.Mode().Perm()&0o111 != 0
}
