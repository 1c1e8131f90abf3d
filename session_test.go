package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"klint/pkg/buildcache"
	"klint/pkg/config"
	"klint/pkg/record"
)

func TestOpenCacheSelection(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cache, err := openCache(ctx, dir, config.BuildCache{}, "")
	if err != nil {
		t.Fatalf("openCache failed: %v", err)
	}
	if cache != nil {
		t.Fatalf("Expected no cache when disabled, got %T", cache)
	}

	cache, err = openCache(ctx, dir, config.BuildCache{}, "shared-cache")
	if err != nil {
		t.Fatalf("openCache failed: %v", err)
	}
	dc, ok := cache.(*buildcache.DirCache)
	if !ok {
		t.Fatalf("Expected *buildcache.DirCache, got %T", cache)
	}
	if dc.Dir != filepath.Join(dir, "shared-cache") {
		t.Errorf("Expected flag directory under the project, got %s", dc.Dir)
	}

	cache, err = openCache(ctx, dir, config.BuildCache{Enabled: true, Dir: "/var/cache/klint"}, "")
	if err != nil {
		t.Fatalf("openCache failed: %v", err)
	}
	if dc := cache.(*buildcache.DirCache); dc.Dir != "/var/cache/klint" {
		t.Errorf("Expected configured directory, got %s", dc.Dir)
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	store, err := openStore(dir, "", nil)
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	fs, ok := store.(*record.FileStore)
	if !ok {
		t.Fatalf("Expected *record.FileStore, got %T", store)
	}
	if fs.Dir != filepath.Join(dir, record.DefaultDir) {
		t.Errorf("Unexpected record directory %s", fs.Dir)
	}

	if _, err := openStore(dir, "mongo", nil); err == nil {
		t.Error("Expected an error for an unknown backend")
	}
}

func TestResolveProjectDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "src", "main", "kotlin")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("Failed to create dirs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "build.gradle.kts"), []byte("plugins {}\n"), 0644); err != nil {
		t.Fatalf("Failed to write build file: %v", err)
	}

	got, err := resolveProjectDir(nested)
	if err != nil {
		t.Fatalf("resolveProjectDir failed: %v", err)
	}
	if got != nested {
		t.Errorf("An explicit directory is used as is, got %s", got)
	}

	wd, _ := os.Getwd()
	defer os.Chdir(wd)
	if err := os.Chdir(nested); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	got, err = resolveProjectDir("")
	if err != nil {
		t.Fatalf("resolveProjectDir failed: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	if resolved, _ := filepath.EvalSymlinks(got); resolved != want {
		t.Errorf("Expected the Gradle project root %s, got %s", want, got)
	}
}
