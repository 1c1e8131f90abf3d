package ktlint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"klint/pkg/reporter"
)

// ExecEngine runs the ktlint command line tool
type ExecEngine struct {
	// Binary is the ktlint executable, "ktlint" when empty
	Binary string
}

// NewExecEngine creates an engine for the given binary
func NewExecEngine(binary string) *ExecEngine {
	return &ExecEngine{Binary: binary}
}

func (e *ExecEngine) binary() string {
	if e.Binary == "" {
		return "ktlint"
	}
	return e.Binary
}

func (e *ExecEngine) Lint(ctx context.Context, req Request) ([]reporter.Violation, error) {
	if len(req.Files) == 0 {
		return nil, nil
	}
	args := append([]string{"--reporter=json"}, req.Files...)
	out, err := e.run(ctx, req.ProjectDir, args)
	if err != nil {
		return nil, err
	}
	return ParseJSON(out, req.ProjectDir)
}

func (e *ExecEngine) Format(ctx context.Context, req Request) (FormatResult, error) {
	if len(req.Files) == 0 {
		return FormatResult{}, nil
	}

	before := make(map[string][]byte, len(req.Files))
	for _, f := range req.Files {
		content, err := os.ReadFile(f)
		if err != nil {
			return FormatResult{}, fmt.Errorf("failed to read %s: %w", f, err)
		}
		before[f] = content
	}

	args := append([]string{"-F", "--reporter=json"}, req.Files...)
	out, err := e.run(ctx, req.ProjectDir, args)
	if err != nil {
		return FormatResult{}, err
	}
	remaining, err := ParseJSON(out, req.ProjectDir)
	if err != nil {
		return FormatResult{}, err
	}

	var rewritten []string
	for _, f := range req.Files {
		after, err := os.ReadFile(f)
		if err != nil {
			return FormatResult{}, fmt.Errorf("failed to read %s: %w", f, err)
		}
		if !bytes.Equal(before[f], after) {
			rewritten = append(rewritten, f)
		}
	}
	return FormatResult{Rewritten: rewritten, Remaining: remaining}, nil
}

func (e *ExecEngine) ApplyToIdea(ctx context.Context, projectDir string, global bool) error {
	flag := "--apply-to-idea-project"
	if global {
		flag = "--apply-to-idea"
	}
	_, err := e.run(ctx, projectDir, []string{flag, "-y"})
	return err
}

// run executes ktlint. Exit code 1 with output on stdout means violations were
// found, which is not an error here.
func (e *ExecEngine) run(ctx context.Context, dir string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.binary(), args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && stdout.Len() > 0 {
			return stdout.Bytes(), nil
		}
		return nil, fmt.Errorf("ktlint failed: %w\nOutput: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type jsonFile struct {
	File   string `json:"file"`
	Errors []struct {
		Line    int    `json:"line"`
		Column  int    `json:"column"`
		Message string `json:"message"`
		Rule    string `json:"rule"`
	} `json:"errors"`
}

// ParseJSON parses ktlint's json reporter output. File paths are made
// relative to projectDir when they are inside it.
func ParseJSON(data []byte, projectDir string) ([]reporter.Violation, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var files []jsonFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("failed to parse ktlint output: %w", err)
	}

	var violations []reporter.Violation
	for _, f := range files {
		path := relativize(f.File, projectDir)
		for _, e := range f.Errors {
			violations = append(violations, reporter.Violation{
				File:    path,
				Line:    e.Line,
				Col:     e.Column,
				Message: e.Message,
				Rule:    e.Rule,
			})
		}
	}
	return reporter.SortViolations(violations), nil
}

func relativize(path, projectDir string) string {
	native := filepath.FromSlash(path)
	if projectDir == "" {
		return filepath.ToSlash(native)
	}
	if !filepath.IsAbs(native) {
		native = filepath.Join(projectDir, native)
	}
	rel, err := filepath.Rel(projectDir, native)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(native)
	}
	return filepath.ToSlash(rel)
}
