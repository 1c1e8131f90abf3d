package tasks

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"klint/pkg/fingerprint"
	"klint/pkg/graph"
	"klint/pkg/incremental"
	"klint/pkg/ktlint"
	"klint/pkg/reporter"
	"klint/pkg/sourceset"
)

// environment is what every task of one plan shares
type environment struct {
	settings  Settings
	engine    ktlint.Engine
	evaluator *incremental.Evaluator
	hasher    *fingerprint.Engine
	resolver  *sourceset.Resolver
	reports   *reporter.Manager
	logger    *slog.Logger
}

// Builder assembles the task graph
type Builder struct {
	Settings  Settings
	Engine    ktlint.Engine
	Evaluator *incremental.Evaluator
	Hasher    *fingerprint.Engine
	Logger    *slog.Logger
}

// Plan is a built task graph with typed handles to its tasks
type Plan struct {
	Graph               *graph.Graph
	Sets                []*sourceset.SourceSet
	CheckAll            *AggregateTask
	FormatAll           *AggregateTask
	ApplyToIdea         *ApplyToIdeaTask
	ApplyToIdeaGlobally *ApplyToIdeaTask
	// Check and Format are keyed by source set name
	Check  map[string]*CheckTask
	Format map[string]*FormatTask
	// Settings the plan was built with
	Settings Settings
}

// Build validates the settings and creates a check and a format task for every
// source set, the aggregates over them and the two IDE meta tasks. A version
// gate failure is returned before any task exists.
func (b *Builder) Build(sets []*sourceset.SourceSet) (*Plan, error) {
	if err := b.Settings.Validate(); err != nil {
		return nil, err
	}
	if b.Engine == nil || b.Evaluator == nil || b.Hasher == nil {
		return nil, fmt.Errorf("builder needs an engine, an evaluator and a hasher")
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	env := &environment{
		settings:  b.Settings,
		engine:    b.Engine,
		evaluator: b.Evaluator,
		hasher:    b.Hasher,
		resolver:  sourceset.NewResolver(b.Settings.ProjectDir),
		reports:   reporter.NewManager(b.Settings.reportsDir()),
		logger:    logger,
	}

	ordered := make([]*sourceset.SourceSet, len(sets))
	copy(ordered, sets)
	sourceset.SortSets(ordered)

	plan := &Plan{
		Graph:    graph.NewGraph(),
		Sets:     ordered,
		Check:    make(map[string]*CheckTask),
		Format:   make(map[string]*FormatTask),
		Settings: b.Settings,
	}

	var checks, formats []graph.Task
	for _, set := range ordered {
		if _, dup := plan.Check[set.Name]; dup {
			return nil, fmt.Errorf("duplicate source set %s", set.Name)
		}
		lock := &sync.Mutex{}
		check := &CheckTask{lintTask{name: CheckName(set), kind: kindCheck, set: set, env: env, setLock: lock}}
		format := &FormatTask{lintTask{name: FormatName(set), kind: kindFormat, set: set, env: env, setLock: lock}}
		plan.Check[set.Name] = check
		plan.Format[set.Name] = format
		checks = append(checks, check)
		formats = append(formats, format)
	}

	plan.CheckAll = &AggregateTask{
		name:        CheckAllName,
		description: "Runs ktlint on all kotlin sources in this project.",
		children:    checks,
	}
	plan.FormatAll = &AggregateTask{
		name:        FormatAllName,
		description: "Formats all kotlin sources in this project with ktlint.",
		children:    formats,
	}
	plan.ApplyToIdea = &ApplyToIdeaTask{name: ApplyToIdeaName, env: env}
	plan.ApplyToIdeaGlobally = &ApplyToIdeaTask{name: ApplyToIdeaGloballyName, global: true, env: env}

	var all []graph.Task
	all = append(all, checks...)
	all = append(all, formats...)
	all = append(all, plan.CheckAll, plan.FormatAll, plan.ApplyToIdea, plan.ApplyToIdeaGlobally)
	for _, task := range all {
		if err := plan.Graph.AddTask(task); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// List returns the tasks for a task listing sorted by name. Only the
// aggregates and meta tasks are listed unless all is set.
func (p *Plan) List(all bool) []graph.Task {
	var out []graph.Task
	for _, task := range p.Graph.GetTasks() {
		if all || task.Visible() {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Select returns the sub-graph needed to run the named tasks
func (p *Plan) Select(names ...string) (*graph.Graph, error) {
	return p.Graph.Select(names...)
}
