package visualization

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos     string
		wantName string
		wantArgs []string
		wantErr  bool
	}{
		{"linux", "xdg-open", []string{"http://x"}, false},
		{"darwin", "open", []string{"http://x"}, false},
		{"windows", "cmd", []string{"/c", "start", "http://x"}, false},
		{"plan9", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args, err := openCommand(tt.goos, "http://x")
			if (err != nil) != tt.wantErr {
				t.Fatalf("openCommand(%q) error = %v, wantErr %v", tt.goos, err, tt.wantErr)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if strings.Join(args, " ") != strings.Join(tt.wantArgs, " ") {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestFileURL(t *testing.T) {
	dir := t.TempDir()
	got, err := FileURL(filepath.Join(dir, "network0.json.html"))
	if err != nil {
		t.Fatalf("FileURL() error = %v", err)
	}
	if !strings.HasPrefix(got, "file://") || !strings.HasSuffix(got, "/network0.json.html") {
		t.Errorf("FileURL() = %q", got)
	}
}
