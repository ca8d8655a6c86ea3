package identification

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/forsyde/idesyde-orchestrator/internal/discovery"
	"github.com/forsyde/idesyde-orchestrator/internal/storage"
	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// Response is the structured answer a module may print instead of bare
// header paths, as a single JSON object on its first non-blank stdout line.
type Response struct {
	Protocol string   `json:"protocol"`
	Headers  []string `json:"headers"`
}

// ExternalModule runs a discovered program as an identification module:
//
//	<module> --no-integration <run_dir> <step>
//	java -jar <module.jar> --no-integration <run_dir> <step>
//
// The program writes new headers under <run_dir>/identified/ and prints their
// paths on stdout, one per line, or a Response.
type ExternalModule struct {
	Module discovery.Module
	Java   string
}

// NewExternalModule wraps a discovered module; java launches JVM archives.
func NewExternalModule(m discovery.Module, java string) *ExternalModule {
	return &ExternalModule{Module: m, Java: java}
}

// FromRegistry wraps every module of reg.
func FromRegistry(reg *discovery.Registry, java string) []Module {
	var modules []Module
	for _, m := range reg.Modules() {
		modules = append(modules, NewExternalModule(m, java))
	}
	return modules
}

// ID returns the module's file name.
func (m *ExternalModule) ID() string {
	return m.Module.ID()
}

// Identify runs the program once and loads the headers it reports. Headers
// that cannot be decoded are dropped with a warning; everything else that
// goes wrong is returned as a *ModuleError.
func (m *ExternalModule) Identify(ctx context.Context, req StepRequest) ([]types.DecisionHeader, error) {
	root := req.RunDir.Root()
	cmd := m.Module.Command(ctx, m.Java, "--no-integration", root, strconv.Itoa(req.Step))
	cmd.WaitDelay = time.Second

	var stdout bytes.Buffer
	stderr := discovery.NewTail(0)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	slog.Debug("invoking identification module", "module", m.ID(), "step", req.Step, "args", cmd.Args)

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &ModuleError{ModuleID: m.ID(), Step: req.Step, ExitCode: exitCode, Stderr: stderr.String(), Err: err}
	}

	paths, err := ParseResponse(stdout.Bytes())
	if err != nil {
		return nil, &ModuleError{ModuleID: m.ID(), Step: req.Step, ExitCode: 0, Stderr: stderr.String(), Err: err}
	}

	headers := make([]types.DecisionHeader, 0, len(paths))
	for _, p := range paths {
		path := req.RunDir.Resolve(p)
		h, err := storage.ReadDecisionHeader(path)
		if err != nil {
			slog.Warn("dropping header reported by module", "module", m.ID(), "step", req.Step, "path", path, "error", err)
			continue
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// ParseResponse extracts header paths from a module's stdout. A first
// non-blank line starting with '{' is decoded as a Response; otherwise every
// non-blank line is a path.
func ParseResponse(stdout []byte) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read module output: %w", err)
	}
	if len(lines) == 0 {
		return nil, nil
	}

	if strings.HasPrefix(lines[0], "{") {
		var resp Response
		if err := json.Unmarshal([]byte(lines[0]), &resp); err != nil {
			return nil, fmt.Errorf("malformed module response: %w", err)
		}
		if !semver.IsValid(resp.Protocol) || semver.Major(resp.Protocol) != semver.Major(ProtocolVersion) {
			return nil, fmt.Errorf("%w: %q (want %s)", ErrProtocolVersion, resp.Protocol, semver.Major(ProtocolVersion))
		}
		return resp.Headers, nil
	}
	return lines, nil
}
