package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"klint/pkg/graph"
	"klint/pkg/tasks"
)

const appVersion = "1.0.0"

type CLI struct {
	Dir               string `short:"C" help:"Project directory (defaults to the nearest Gradle project above the current directory)"`
	Parallel          int    `short:"j" help:"Number of parallel workers for task execution" default:"8"`
	BuildCache        string `help:"Directory of a local build cache shared between checkouts"`
	Verbose           bool   `short:"v" help:"Enable debug logging and task timings"`
	MetricsFile       string `help:"Write prometheus metrics of the run to this file"`
	PruneStaleReports bool   `help:"Remove reports left behind by reporters that are no longer enabled"`

	Tasks       TasksCmd       `cmd:"" help:"List the available tasks"`
	Run         RunCmd         `cmd:"" help:"Run the named tasks and their dependencies"`
	Check       CheckCmd       `cmd:"" help:"Check all source sets (ktlintCheck)"`
	Format      FormatCmd      `cmd:"" help:"Format all source sets (ktlintFormat)"`
	ApplyToIdea ApplyToIdeaCmd `cmd:"" name:"apply-to-idea" help:"Generate IDE code style files from the ktlint rules"`
	Deps        DepsCmd        `cmd:"" help:"Show the resolved ktlint artifact"`
	Version     VersionCmd     `cmd:"" help:"Show version information"`
}

type TasksCmd struct {
	All bool `help:"Also list the per source set tasks"`
}

type RunCmd struct {
	Tasks []string `arg:"" help:"Task names, e.g. ktlintMainSourceSetCheck"`
}

type CheckCmd struct {
	Watch bool `short:"w" help:"Check again whenever Kotlin sources or .editorconfig files change"`
}

type FormatCmd struct{}

type ApplyToIdeaCmd struct {
	Global bool `help:"Apply to every IDE project of the user instead of this one"`
}

type DepsCmd struct{}

type VersionCmd struct{}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("klint"),
		kong.Description("Incremental ktlint checks for Kotlin projects."),
		kong.UsageOnError(),
	)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch ctx.Command() {
	case "version":
		fmt.Printf("klint version %s\n", appVersion)
	case "tasks":
		err = runTasks(runCtx, &cli)
	case "run <tasks>":
		err = runNamed(runCtx, &cli, cli.Run.Tasks...)
	case "check":
		if cli.Check.Watch {
			err = runWatch(runCtx, &cli)
		} else {
			err = runNamed(runCtx, &cli, tasks.CheckAllName)
		}
	case "format":
		err = runNamed(runCtx, &cli, tasks.FormatAllName)
	case "apply-to-idea":
		name := tasks.ApplyToIdeaName
		if cli.ApplyToIdea.Global {
			name = tasks.ApplyToIdeaGloballyName
		}
		err = runNamed(runCtx, &cli, name)
	case "deps":
		err = runDeps(runCtx, &cli)
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}

	if err != nil {
		// failed tasks were already reported by the console summary
		var failed *graph.FailedTasksError
		if !errors.As(err, &failed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
