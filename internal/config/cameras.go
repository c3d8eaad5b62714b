package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/types"
)

// CameraFile is the on-disk camera inventory:
//
//	[[camera]]
//	id = "door-in"
//	name = "Main entrance"
//	direction = "entry"
//	threshold = 0.9
type CameraFile struct {
	Cameras []CameraEntry `toml:"camera"`
}

type CameraEntry struct {
	ID        string   `toml:"id"`
	Name      string   `toml:"name"`
	Direction string   `toml:"direction"`
	Threshold *float64 `toml:"threshold"`
}

// LoadCameras parses the inventory at path. An empty path yields no cameras.
func LoadCameras(path string) ([]types.Camera, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open camera file: %w", err)
	}
	defer file.Close()

	var cf CameraFile
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cf); err != nil {
		return nil, fmt.Errorf("parse camera file: %w", err)
	}
	return cf.toCameras()
}

func (cf CameraFile) toCameras() ([]types.Camera, error) {
	seen := make(map[string]struct{}, len(cf.Cameras))
	out := make([]types.Camera, 0, len(cf.Cameras))
	var errs []error
	for i, c := range cf.Cameras {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("camera[%d]: id is required", i))
			continue
		}
		if _, dup := seen[id]; dup {
			errs = append(errs, fmt.Errorf("camera %s: listed more than once", id))
			continue
		}
		seen[id] = struct{}{}

		dir := types.Direction(strings.ToLower(strings.TrimSpace(c.Direction)))
		if dir == "" {
			dir = types.DirectionEntry
		}
		if !dir.Valid() {
			errs = append(errs, fmt.Errorf("camera %s: direction must be entry or exit", id))
			continue
		}
		if c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 1) {
			errs = append(errs, fmt.Errorf("camera %s: threshold must be between 0 and 1", id))
			continue
		}
		out = append(out, types.Camera{
			ID:        id,
			Name:      strings.TrimSpace(c.Name),
			Direction: dir,
			Threshold: c.Threshold,
			Known:     true,
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}
