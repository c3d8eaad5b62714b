package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BrandonDHaskell/rollcall/internal/config"
	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cameras.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadCameras(t *testing.T) {
	path := writeFile(t, `
[[camera]]
id = "door-in"
name = "Main entrance"
direction = "entry"
threshold = 0.9

[[camera]]
id = "door-out"
direction = "EXIT"

[[camera]]
id = "hall"
`)
	cams, err := config.LoadCameras(path)
	if err != nil {
		t.Fatalf("LoadCameras: %v", err)
	}
	if len(cams) != 3 {
		t.Fatalf("got %d cameras", len(cams))
	}
	if cams[0].Name != "Main entrance" || *cams[0].Threshold != 0.9 || !cams[0].Known {
		t.Errorf("cams[0] = %+v", cams[0])
	}
	if cams[1].Direction != types.DirectionExit || cams[1].Threshold != nil {
		t.Errorf("cams[1] = %+v", cams[1])
	}
	if cams[2].Direction != types.DirectionEntry {
		t.Errorf("cams[2] direction = %q", cams[2].Direction)
	}
}

func TestLoadCameras_EmptyPath(t *testing.T) {
	cams, err := config.LoadCameras("")
	if err != nil || cams != nil {
		t.Fatalf("got %v, %v", cams, err)
	}
}

func TestLoadCameras_Invalid(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"missing id", "[[camera]]\nname = \"x\"\n", "id is required"},
		{"bad direction", "[[camera]]\nid = \"c\"\ndirection = \"up\"\n", "direction"},
		{"bad threshold", "[[camera]]\nid = \"c\"\nthreshold = 2.0\n", "threshold"},
		{"duplicate", "[[camera]]\nid = \"c\"\n[[camera]]\nid = \"c\"\n", "more than once"},
		{"unknown key", "[[camera]]\nid = \"c\"\nzoom = 3\n", "parse camera file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadCameras(writeFile(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}
