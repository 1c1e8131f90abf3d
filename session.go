package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"klint/pkg/buildcache"
	"klint/pkg/config"
	"klint/pkg/console"
	"klint/pkg/fingerprint"
	"klint/pkg/gradle"
	"klint/pkg/graph"
	"klint/pkg/incremental"
	"klint/pkg/ktlint"
	"klint/pkg/metrics"
	"klint/pkg/record"
	"klint/pkg/tasks"
	"klint/pkg/watch"
)

// session holds everything one invocation wires together
type session struct {
	cli      *CLI
	logger   *slog.Logger
	printer  *console.Printer
	metrics  *metrics.Metrics
	config   *config.Config
	resolved *config.Resolved
	hasher   *fingerprint.Engine
	plan     *tasks.Plan
	closers  []io.Closer
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("build", uuid.NewString())
}

// resolveProjectDir returns the absolute project directory
func resolveProjectDir(dir string) (string, error) {
	if dir != "" {
		return filepath.Abs(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return gradle.FindProjectRoot(wd)
}

// loadConfig finds the project and resolves its configuration
func loadConfig(cli *CLI, logger *slog.Logger) (*config.Config, *config.Resolved, error) {
	dir, err := resolveProjectDir(cli.Dir)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadConfiguration(dir)
	if err != nil {
		return nil, nil, err
	}
	resolved, err := cfg.Resolve(dir, logger)
	if err != nil {
		return nil, nil, err
	}
	resolved.Settings.PruneStaleReports = cli.PruneStaleReports

	logger.Debug("resolved configuration",
		"project", dir,
		"ktlint", resolved.Settings.LinterVersion,
		"versionSource", resolved.VersionSource,
		"reporters", len(resolved.Settings.Reporters),
		"files", cfg.Files)
	return cfg, resolved, nil
}

// openSession resolves the configuration and builds the task plan. A
// configuration or version gate error is returned before anything runs.
func openSession(ctx context.Context, cli *CLI) (*session, error) {
	logger := newLogger(cli.Verbose)
	slog.SetDefault(logger)

	cfg, resolved, err := loadConfig(cli, logger)
	if err != nil {
		return nil, err
	}
	dir := resolved.Settings.ProjectDir

	s := &session{
		cli:      cli,
		logger:   logger,
		printer:  console.NewStdoutPrinter(cli.Verbose),
		metrics:  metrics.New(),
		config:   cfg,
		resolved: resolved,
	}
	s.printer.ShowViolations = resolved.Settings.OutputToConsole

	sets, err := cfg.ResolveSourceSets(dir)
	if err != nil {
		return nil, err
	}

	store, err := openStore(dir, cfg.Records.Backend, logger)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, store)

	cache, err := openCache(ctx, dir, cfg.BuildCache, cli.BuildCache)
	if err != nil {
		s.Close()
		return nil, err
	}
	if closer, ok := cache.(io.Closer); ok {
		s.closers = append(s.closers, closer)
	}

	s.hasher, err = fingerprint.NewEngine(dir)
	if err != nil {
		s.Close()
		return nil, err
	}

	builder := &tasks.Builder{
		Settings:  resolved.Settings,
		Engine:    ktlint.NewExecEngine(resolved.KtlintBinary),
		Evaluator: incremental.NewEvaluator(dir, store, cache, logger),
		Hasher:    s.hasher,
		Logger:    logger,
	}
	s.plan, err = builder.Build(sets)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// openStore opens the task record store selected by backend
func openStore(projectDir, backend string, logger *slog.Logger) (record.Store, error) {
	switch backend {
	case "", "file":
		return record.NewFileStore(filepath.Join(projectDir, record.DefaultDir)), nil
	case "badger":
		store, err := record.OpenBadger(record.BadgerConfig{
			Path:   filepath.Join(projectDir, record.DefaultBadgerDir),
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown record backend %q", backend)
	}
}

// openCache selects the shared build cache. The --build-cache flag wins; then
// s3, gcs and a local directory, in that order, when the cache is enabled.
func openCache(ctx context.Context, projectDir string, cfg config.BuildCache, dirFlag string) (buildcache.Cache, error) {
	if dirFlag != "" {
		return buildcache.NewDirCache(absUnder(projectDir, dirFlag)), nil
	}
	if !cfg.Enabled {
		return nil, nil
	}

	switch {
	case cfg.S3 != nil:
		c, err := buildcache.NewS3Cache(*cfg.S3)
		if err != nil {
			return nil, err
		}
		return c, nil
	case cfg.GCS != nil:
		c, err := buildcache.NewGCSCache(ctx, *cfg.GCS)
		if err != nil {
			return nil, err
		}
		return c, nil
	case cfg.Dir != "":
		return buildcache.NewDirCache(absUnder(projectDir, cfg.Dir)), nil
	}

	userCache, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return buildcache.NewDirCache(filepath.Join(userCache, "klint", "build-cache")), nil
}

func absUnder(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// Close releases the record store and cache clients
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Warn("failed to close", "error", err)
		}
	}
	s.closers = nil
}

// execute runs the named tasks and their dependencies, then prints a summary
// and writes metrics when requested
func (s *session) execute(ctx context.Context, names ...string) error {
	g, err := s.plan.Select(names...)
	if err != nil {
		return err
	}

	progress := func(task graph.Task, finished bool, res graph.ExecutionResult) {
		s.printer.Progress(task, finished, res)
		s.metrics.Progress(task, finished, res)
	}

	start := time.Now()
	results, runErr := graph.NewRunner(s.cli.Parallel, progress).Execute(ctx, g)
	elapsed := time.Since(start)

	s.printer.Summary(results, elapsed)
	s.metrics.Finish(elapsed)
	if s.cli.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.cli.MetricsFile); err != nil {
			s.logger.Warn("failed to write metrics", "error", err)
		}
	}
	return runErr
}

func runNamed(ctx context.Context, cli *CLI, names ...string) error {
	s, err := openSession(ctx, cli)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.execute(ctx, names...)
}

func runTasks(ctx context.Context, cli *CLI) error {
	s, err := openSession(ctx, cli)
	if err != nil {
		return err
	}
	defer s.Close()

	s.printer.TaskListing(s.plan.List(cli.Tasks.All))
	return nil
}

func runDeps(_ context.Context, cli *CLI) error {
	logger := newLogger(cli.Verbose)
	_, resolved, err := loadConfig(cli, logger)
	if err != nil {
		return err
	}
	fmt.Printf("ktlint\n\\--- %s\n", ktlint.Coordinate(resolved.Settings.LinterVersion))
	return nil
}

// runWatch checks once and then again after every batch of relevant changes
// until interrupted
func runWatch(ctx context.Context, cli *CLI) error {
	s, err := openSession(ctx, cli)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.execute(ctx, tasks.CheckAllName); err != nil && ctx.Err() == nil {
		s.logger.Debug("check failed", "error", err)
	}

	w, err := watch.New([]string{s.resolved.Settings.ProjectDir}, watch.DefaultOptions(), s.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	s.printer.Infof("\nWatching %s for changes. Press Ctrl+C to stop.", s.resolved.Settings.ProjectDir)
	return w.Run(ctx, func(ctx context.Context, changed []string) {
		s.hasher.Forget(changed)
		s.printer.Infof("\n%d file(s) changed", len(changed))
		if err := s.execute(ctx, tasks.CheckAllName); err != nil && ctx.Err() == nil {
			s.logger.Debug("check failed", "error", err)
		}
	})
}
