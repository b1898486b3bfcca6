package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	outDir := t.TempDir()
	otherDir := t.TempDir()

	stepsDir := filepath.Join(outDir, "steps")
	if err := os.MkdirAll(stepsDir, 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		allowedDirs []string
		wantErr     bool
		errContains string
	}{
		{
			name:        "snapshot inside output dir",
			path:        filepath.Join(outDir, "network0.json"),
			allowedDirs: []string{outDir},
		},
		{
			name:        "snapshot in subdirectory",
			path:        filepath.Join(stepsDir, "network1.json"),
			allowedDirs: []string{outDir},
		},
		{
			name:        "not yet created subdirectory",
			path:        filepath.Join(outDir, "later", "network2.json"),
			allowedDirs: []string{outDir},
		},
		{
			name:        "exactly the output dir",
			path:        outDir,
			allowedDirs: []string{outDir},
		},
		{
			name:        "traversal with dot-dot",
			path:        filepath.Join(outDir, "..", "etc", "passwd"),
			allowedDirs: []string{outDir},
			wantErr:     true,
			errContains: "outside allowed directories",
		},
		{
			name:        "absolute path elsewhere",
			path:        filepath.Join(otherDir, "network0.json"),
			allowedDirs: []string{outDir},
			wantErr:     true,
			errContains: "outside allowed directories",
		},
		{
			name:        "null byte",
			path:        filepath.Join(outDir, "net\x00work.json"),
			allowedDirs: []string{outDir},
			wantErr:     true,
			errContains: "null byte",
		},
		{
			name:        "empty path",
			allowedDirs: []string{outDir},
			wantErr:     true,
			errContains: "empty",
		},
		{
			name:        "no allowed dirs",
			path:        filepath.Join(outDir, "network0.json"),
			allowedDirs: nil,
			wantErr:     true,
			errContains: "no allowed directories",
		},
		{
			name:        "matches second allowed dir",
			path:        filepath.Join(otherDir, "network0.json"),
			allowedDirs: []string{outDir, otherDir},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.allowedDirs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidatePath() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestValidatePath_SymlinkOutside(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on Windows")
	}

	outDir := t.TempDir()
	elsewhere := t.TempDir()
	link := filepath.Join(outDir, "escape")
	if err := os.Symlink(elsewhere, link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	err := ValidatePath(filepath.Join(link, "network0.json"), []string{outDir})
	if err == nil || !strings.Contains(err.Error(), "outside allowed directories") {
		t.Errorf("ValidatePath() error = %v, want rejection", err)
	}
}

func TestOutputFile(t *testing.T) {
	dir := t.TempDir()

	path, err := OutputFile(dir, "network3.json")
	if err != nil {
		t.Fatalf("OutputFile() error = %v", err)
	}
	if path != filepath.Join(dir, "network3.json") {
		t.Errorf("OutputFile() = %q", path)
	}

	if _, err := OutputFile(dir, "../network3.json"); err == nil {
		t.Error("OutputFile() should reject a name escaping the directory")
	}
	if _, err := OutputFile(dir, ""); err == nil {
		t.Error("OutputFile() should reject an empty name")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "networkEvolution", "run")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Errorf("EnsureDir() on existing dir error = %v", err)
	}
	if err := EnsureDir(""); err == nil {
		t.Error("EnsureDir(\"\") should fail")
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"snapshot", "/home/user/networkEvolution/network3.json", ".../networkEvolution/network3.json"},
		{"deep", "/a/b/c/d/e.txt", ".../d/e.txt"},
		{"root file", "/file.txt", "file.txt"},
		{"relative", "dir/file.txt", ".../dir/file.txt"},
		{"just filename", "file.txt", "file.txt"},
		{"trailing slash cleaned", "/home/user/out/", ".../user/out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactPath(tt.input); got != tt.want {
				t.Errorf("RedactPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
