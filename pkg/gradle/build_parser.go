package gradle

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// PluginID is the Gradle plugin id of the ktlint gradle plugin
const PluginID = "org.jlleitschuh.gradle.ktlint"

// BuildFiles are the Gradle build scripts looked at, in order of preference
var BuildFiles = []string{"build.gradle.kts", "build.gradle"}

// KtlintExtension holds the values set in a build script's `ktlint { }` block.
// Unset values are nil or empty.
type KtlintExtension struct {
	Version         string
	IgnoreFailures  *bool
	OutputToConsole *bool
	Reporters       []string
}

// BuildInfo contains parsed information from a Gradle build file
type BuildInfo struct {
	ProjectDir string
	BuildFile  string
	Plugins    []string
	Ktlint     KtlintExtension
}

var (
	pluginRegex   = regexp.MustCompile(`^\s*(id|kotlin)\s*\(?\s*["']([^"']+)["']\s*\)?`)
	stringSetting = regexp.MustCompile(`^\s*(version)\s*(?:=\s*|\.set\(\s*)["']([^"']+)["']`)
	boolSetting   = regexp.MustCompile(`^\s*(ignoreFailures|outputToConsole)\s*(?:=\s*|\.set\(\s*)(true|false)`)
	reporterRegex = regexp.MustCompile(`ReporterType\.([A-Z_]+)`)
)

// FindBuildFile returns the build script in dir, or "" when there is none
func FindBuildFile(dir string) string {
	for _, name := range BuildFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ParseBuildFile parses a build.gradle(.kts) file and extracts the plugins and
// the ktlint extension settings
func ParseBuildFile(buildFilePath string) (*BuildInfo, error) {
	file, err := os.Open(buildFilePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info := &BuildInfo{
		ProjectDir: filepath.Dir(buildFilePath),
		BuildFile:  buildFilePath,
		Plugins:    []string{},
	}

	scanner := bufio.NewScanner(file)
	block := ""
	depth := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		if block == "" {
			switch {
			case strings.HasPrefix(line, "plugins {"):
				block = "plugins"
			case strings.HasPrefix(line, "ktlint {"):
				block = "ktlint"
			}
			if block != "" {
				depth = strings.Count(line, "{") - strings.Count(line, "}")
				if depth <= 0 {
					block = ""
				}
				continue
			}
		}

		switch block {
		case "plugins":
			if matches := pluginRegex.FindStringSubmatch(line); matches != nil {
				info.Plugins = append(info.Plugins, matches[2])
			}
		case "ktlint":
			if depth == 1 {
				parseKtlintLine(line, &info.Ktlint)
			}
			for _, m := range reporterRegex.FindAllStringSubmatch(line, -1) {
				info.Ktlint.Reporters = append(info.Ktlint.Reporters, m[1])
			}
		}

		if block != "" {
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			if depth <= 0 {
				block = ""
			}
		}
	}

	return info, scanner.Err()
}

func parseKtlintLine(line string, ext *KtlintExtension) {
	if m := stringSetting.FindStringSubmatch(line); m != nil {
		ext.Version = m[2]
		return
	}
	if m := boolSetting.FindStringSubmatch(line); m != nil {
		value, _ := strconv.ParseBool(m[2])
		switch m[1] {
		case "ignoreFailures":
			ext.IgnoreFailures = &value
		case "outputToConsole":
			ext.OutputToConsole = &value
		}
	}
}

// HasPlugin checks if a specific plugin is configured
func (b *BuildInfo) HasPlugin(pluginID string) bool {
	for _, plugin := range b.Plugins {
		if plugin == pluginID {
			return true
		}
	}
	return false
}
