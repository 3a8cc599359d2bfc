package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mlundquist/saga-engine/pkg/world"
)

// World definitions are YAML files under <dataDir>/worlds, one per variant,
// named <id>.yaml.

func (r *RedisStorage) worldPath(id string) (string, error) {
	// Prevent directory traversal through the world id.
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid world id %q", id)
	}
	return filepath.Join(r.dataDir, "worlds", id+".yaml"), nil
}

func (r *RedisStorage) GetWorld(_ context.Context, id string) (*world.World, error) {
	path, err := r.worldPath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read world %q: %w", id, err)
	}

	return decodeWorld(id, data)
}

func (r *RedisStorage) ListWorlds(_ context.Context) ([]*world.World, error) {
	dir := filepath.Join(r.dataDir, "worlds")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list worlds: %w", err)
	}

	var worlds []*world.World
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".yaml")
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			r.logger.Warn("Failed to read world file", "file", entry.Name(), "error", err)
			continue
		}
		w, err := decodeWorld(id, data)
		if err != nil {
			r.logger.Warn("Skipping invalid world file", "file", entry.Name(), "error", err)
			continue
		}
		worlds = append(worlds, w)
	}

	sort.Slice(worlds, func(i, j int) bool { return worlds[i].ID < worlds[j].ID })
	return worlds, nil
}

// decodeWorld parses and validates one world definition. The filename is
// authoritative for the id.
func decodeWorld(id string, data []byte) (*world.World, error) {
	var w world.World
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse world %q: %w", id, err)
	}
	w.ID = id
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}
