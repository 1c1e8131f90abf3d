package gradle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// CatalogPath is the default version catalog location inside a project
const CatalogPath = "gradle/libs.versions.toml"

// ktlintModules are the Maven modules a catalog may declare ktlint under
var ktlintModules = []string{
	"com.pinterest:ktlint",
	"com.pinterest.ktlint:ktlint-cli",
	"com.github.shyiko:ktlint",
}

// VersionCatalog contains version information from a Gradle version catalog
type VersionCatalog struct {
	// Versions maps version reference names to version strings
	Versions map[string]string
	// Libraries maps library reference names to their coordinates
	Libraries map[string]LibraryCoordinate
	// Plugins maps plugin reference names to their information
	Plugins map[string]PluginCoordinate
}

// LibraryCoordinate represents a library dependency coordinate
type LibraryCoordinate struct {
	Group   string
	Name    string
	Version string
	Module  string // full module coordinate like "group:name"
}

// PluginCoordinate represents a plugin coordinate
type PluginCoordinate struct {
	ID      string
	Version string
}

// LoadVersionCatalog reads gradle/libs.versions.toml under projectDir. A
// missing catalog returns nil without error.
func LoadVersionCatalog(projectDir string) (*VersionCatalog, error) {
	path := filepath.Join(projectDir, filepath.FromSlash(CatalogPath))
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read version catalog: %w", err)
	}
	catalog, err := ParseVersionCatalog(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse version catalog at %s: %w", path, err)
	}
	return catalog, nil
}

type catalogFile struct {
	Versions  map[string]any `toml:"versions"`
	Libraries map[string]any `toml:"libraries"`
	Plugins   map[string]any `toml:"plugins"`
}

// ParseVersionCatalog parses the TOML content of a version catalog
func ParseVersionCatalog(content []byte) (*VersionCatalog, error) {
	var file catalogFile
	if err := toml.Unmarshal(content, &file); err != nil {
		return nil, err
	}

	catalog := &VersionCatalog{
		Versions:  make(map[string]string),
		Libraries: make(map[string]LibraryCoordinate),
		Plugins:   make(map[string]PluginCoordinate),
	}

	for key, value := range file.Versions {
		if v := versionValue(value); v != "" {
			catalog.Versions[key] = v
		}
	}
	for key, value := range file.Libraries {
		if lib := parseLibrary(value, catalog.Versions); lib != nil {
			catalog.Libraries[key] = *lib
		}
	}
	for key, value := range file.Plugins {
		if plugin := parsePlugin(value, catalog.Versions); plugin != nil {
			catalog.Plugins[key] = *plugin
		}
	}
	return catalog, nil
}

// KtlintVersion returns the ktlint version declared in the catalog: the
// "ktlint" version entry, or the version of a library pointing at ktlint
func (c *VersionCatalog) KtlintVersion() string {
	if c == nil {
		return ""
	}
	if v := c.Versions["ktlint"]; v != "" {
		return v
	}
	for _, lib := range c.Libraries {
		for _, module := range ktlintModules {
			if lib.Module == module && lib.Version != "" {
				return lib.Version
			}
		}
	}
	return ""
}

// versionValue handles both `x = "1.0"` and rich versions `x = { strictly = "1.0" }`
func versionValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"strictly", "require", "prefer"} {
			if s, ok := v[key].(string); ok {
				return s
			}
		}
	}
	return ""
}

// resolveVersion reads "version" or "version.ref" from a table entry. go-toml
// decodes the dotted key version.ref into a nested table.
func resolveVersion(table map[string]any, versions map[string]string) string {
	switch v := table["version"].(type) {
	case string:
		return v
	case map[string]any:
		if ref, ok := v["ref"].(string); ok {
			return versions[ref]
		}
		return versionValue(v)
	}
	return ""
}

// parseLibrary handles "group:name:version", { module = "group:name", ... }
// and { group = "g", name = "n", ... }
func parseLibrary(value any, versions map[string]string) *LibraryCoordinate {
	switch v := value.(type) {
	case string:
		parts := strings.Split(v, ":")
		if len(parts) < 2 {
			return nil
		}
		lib := &LibraryCoordinate{Group: parts[0], Name: parts[1], Module: parts[0] + ":" + parts[1]}
		if len(parts) >= 3 {
			lib.Version = parts[2]
		}
		return lib
	case map[string]any:
		lib := &LibraryCoordinate{Version: resolveVersion(v, versions)}
		if module, ok := v["module"].(string); ok {
			lib.Module = module
			if parts := strings.Split(module, ":"); len(parts) >= 2 {
				lib.Group = parts[0]
				lib.Name = parts[1]
			}
		} else {
			lib.Group, _ = v["group"].(string)
			lib.Name, _ = v["name"].(string)
			if lib.Group == "" || lib.Name == "" {
				return nil
			}
			lib.Module = lib.Group + ":" + lib.Name
		}
		return lib
	}
	return nil
}

func parsePlugin(value any, versions map[string]string) *PluginCoordinate {
	switch v := value.(type) {
	case string:
		parts := strings.SplitN(v, ":", 2)
		plugin := &PluginCoordinate{ID: parts[0]}
		if len(parts) == 2 {
			plugin.Version = parts[1]
		}
		return plugin
	case map[string]any:
		id, _ := v["id"].(string)
		if id == "" {
			return nil
		}
		return &PluginCoordinate{ID: id, Version: resolveVersion(v, versions)}
	}
	return nil
}
