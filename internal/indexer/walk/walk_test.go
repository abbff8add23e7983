package walk

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWalkSkipsBuiltinExcludedDirs(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "main.go"), "package main")
	mustMkdir(t, filepath.Join(root, "node_modules"))
	mustWrite(t, filepath.Join(root, "node_modules", "pkg.js"), "module.exports = {}")

	entries, err := Walk(root, Options{})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	for _, e := range entries {
		if e.RelPath == "node_modules" || e.RelPath == "node_modules/pkg.js" {
			t.Fatalf("expected node_modules to be excluded, found %s", e.RelPath)
		}
	}
}

func TestWalkRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, ".gitignore"), "build\nsecret.txt\n")
	mustMkdir(t, filepath.Join(root, "build"))
	mustWrite(t, filepath.Join(root, "build", "out.bin"), "x")
	mustWrite(t, filepath.Join(root, "secret.txt"), "shh")
	mustWrite(t, filepath.Join(root, "main.go"), "package main")

	entries, err := Walk(root, Options{RespectGitignore: true})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	var sawMain, sawSecret, sawBuild bool
	for _, e := range entries {
		switch e.RelPath {
		case "main.go":
			sawMain = true
		case "secret.txt":
			sawSecret = true
		case "build":
			sawBuild = true
		}
	}
	if !sawMain {
		t.Fatal("expected main.go to be walked")
	}
	if sawSecret || sawBuild {
		t.Fatal("expected gitignored entries to be skipped")
	}
}

func TestWalkUserExcludePatterns(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "app.generated.go"), "package main")
	mustWrite(t, filepath.Join(root, "app.go"), "package main")

	entries, err := Walk(root, Options{Exclude: []string{"*.generated.go"}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	var sawGenerated, sawApp bool
	for _, e := range entries {
		if e.RelPath == "app.generated.go" {
			sawGenerated = true
		}
		if e.RelPath == "app.go" {
			sawApp = true
		}
	}
	if sawGenerated {
		t.Fatal("expected generated file to be excluded")
	}
	if !sawApp {
		t.Fatal("expected app.go to be walked")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
