package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"klint/pkg/gradle"
	"klint/pkg/reporter"
	"klint/pkg/sourceset"
	"klint/pkg/tasks"
	"klint/pkg/version"
)

// Resolved is the configuration turned into the values the tool runs with
type Resolved struct {
	Settings tasks.Settings
	// VersionSource names where the linter version came from
	VersionSource string
	KtlintBinary  string
}

// Resolve combines the merged klint.yaml values with the project's Gradle
// build script and version catalog. klint.yaml wins over the build script,
// which wins over the catalog; built-in defaults come last.
func (c *Config) Resolve(projectDir string, logger *slog.Logger) (*Resolved, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var ext gradle.KtlintExtension
	if buildFile := gradle.FindBuildFile(abs); buildFile != "" {
		info, err := gradle.ParseBuildFile(buildFile)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", buildFile, err)
		}
		ext = info.Ktlint
	}

	res := &Resolved{KtlintBinary: c.KtlintBinary}
	linterVersion := c.Version
	res.VersionSource = FileName
	if linterVersion == "" && ext.Version != "" {
		linterVersion, res.VersionSource = ext.Version, "build script"
	}
	if linterVersion == "" {
		catalog, err := gradle.LoadVersionCatalog(abs)
		if err != nil {
			return nil, err
		}
		if v := catalog.KtlintVersion(); v != "" {
			linterVersion, res.VersionSource = v, gradle.CatalogPath
		}
	}
	if linterVersion == "" {
		linterVersion, res.VersionSource = version.DefaultVersion, "default"
	}

	names := c.Reporters
	if names == nil {
		names = ext.Reporters
	}
	if names == nil {
		names = []string{reporter.Plain.String()}
	}
	requested, err := reporter.ParseTypes(names)
	if err != nil {
		return nil, err
	}
	var reporters []reporter.Type
	for _, t := range requested {
		if !t.AvailableFor(linterVersion) {
			logger.Warn("reporter is not available for the configured ktlint version",
				"reporter", t.String(), "since", t.AvailableSince(), "version", linterVersion)
			continue
		}
		reporters = append(reporters, t)
	}

	filters, err := sourceset.NewFilters(c.Filter.Include, c.Filter.Exclude)
	if err != nil {
		return nil, err
	}

	res.Settings = tasks.Settings{
		ProjectDir:      abs,
		LinterVersion:   linterVersion,
		MinVersion:      c.MinVersion,
		Reporters:       reporters,
		Filters:         filters,
		ReportsDir:      c.ReportsDir,
		IgnoreFailures:  boolOr(c.IgnoreFailures, ext.IgnoreFailures, false),
		OutputToConsole: boolOr(c.OutputToConsole, ext.OutputToConsole, true),
	}
	return res, nil
}

// ResolveSourceSets discovers the project's source sets and adds the configured
// extra directories. A configured source set that was not discovered is created.
func (c *Config) ResolveSourceSets(projectDir string) ([]*sourceset.SourceSet, error) {
	sets, err := sourceset.Discover(projectDir)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*sourceset.SourceSet, len(sets))
	for _, s := range sets {
		byName[s.Name] = s
	}
	for name, cfg := range c.SourceSets {
		set, ok := byName[name]
		if !ok {
			set = sourceset.New(name)
			byName[name] = set
			sets = append(sets, set)
		}
		for _, dir := range cfg.SrcDirs {
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(projectDir, filepath.FromSlash(dir))
			}
			set.AddRoot(dir)
		}
	}

	sourceset.SortSets(sets)
	return sets, nil
}

// boolOr returns the first value that is set, or def
func boolOr(primary, secondary *bool, def bool) bool {
	if primary != nil {
		return *primary
	}
	if secondary != nil {
		return *secondary
	}
	return def
}
