package tasks

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"klint/pkg/fingerprint"
	"klint/pkg/graph"
	"klint/pkg/incremental"
)

// ideaStylePaths are the entries under .idea that ktlint writes code style into
var ideaStylePaths = []string{"codeStyles", "inspectionProfiles", "codeStyleSettings.xml"}

// ApplyToIdeaTask writes ktlint's code style into IntelliJ IDEA settings, for
// the project or for the user. It does not look at source sets.
type ApplyToIdeaTask struct {
	name   string
	global bool
	env    *environment
}

func (t *ApplyToIdeaTask) ID() string {
	return t.name
}

func (t *ApplyToIdeaTask) Description() string {
	if t.global {
		return "Adds ktlint rules to the global IntelliJ IDEA settings."
	}
	return "Adds ktlint rules to the IntelliJ IDEA project."
}

func (t *ApplyToIdeaTask) Visible() bool {
	return true
}

func (t *ApplyToIdeaTask) Dependencies() []graph.Task {
	return nil
}

// Global reports whether the task targets the user's IDE settings
func (t *ApplyToIdeaTask) Global() bool {
	return t.global
}

func (t *ApplyToIdeaTask) Execute(ctx context.Context, deps []graph.ExecutionResult) graph.TaskResult {
	return t.env.evaluator.Run(ctx, t)
}

// Name implements incremental.Work
func (t *ApplyToIdeaTask) Name() string {
	return t.name
}

func (t *ApplyToIdeaTask) Fingerprint(ctx context.Context) (fingerprint.Fingerprint, error) {
	var styleFiles []string
	root := filepath.Join(t.env.settings.ProjectDir, fingerprint.StyleConfigName)
	if info, err := os.Stat(root); err == nil && info.Mode().IsRegular() {
		styleFiles = append(styleFiles, root)
	}
	digests, err := t.env.hasher.Digest(ctx, styleFiles)
	if err != nil {
		return "", err
	}

	kind := "apply-to-idea"
	if t.global {
		kind = "apply-to-idea-globally"
	}
	return fingerprint.Compute(fingerprint.Inputs{
		Task:          t.name,
		Kind:          kind,
		StyleConfigs:  digests,
		LinterVersion: t.env.settings.LinterVersion,
	}), nil
}

// Outputs lists the code style files currently present in the project's .idea
// directory. The global task writes outside the project and declares none.
func (t *ApplyToIdeaTask) Outputs() []string {
	if t.global {
		return nil
	}

	ideaDir := filepath.Join(t.env.settings.ProjectDir, ".idea")
	var out []string
	for _, entry := range ideaStylePaths {
		path := filepath.Join(ideaDir, entry)
		_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.Type().IsRegular() {
				out = append(out, p)
			}
			return nil
		})
	}
	sort.Strings(out)
	return out
}

// Cacheable is false: IDE settings are machine specific
func (t *ApplyToIdeaTask) Cacheable() bool {
	return false
}

func (t *ApplyToIdeaTask) Perform(ctx context.Context) (incremental.Verdict, error) {
	if err := t.env.engine.ApplyToIdea(ctx, t.env.settings.ProjectDir, t.global); err != nil {
		return incremental.Verdict{}, err
	}
	if t.global {
		return incremental.Verdict{Summary: "applied code style to global IDE settings"}, nil
	}
	return incremental.Verdict{Summary: "applied code style to project IDE settings"}, nil
}
