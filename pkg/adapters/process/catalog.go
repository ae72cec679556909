package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/ports"
	"gopkg.in/yaml.v3"
)

// CatalogFile represents the structure of games.yaml.
type CatalogFile struct {
	Games []ports.Game `yaml:"games" json:"games"`
}

// LoadGames reads a catalog file (YAML or JSON) and returns the games keyed by ID.
// A missing file is an empty catalog.
func LoadGames(path string) (map[string]ports.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]ports.Game{}, nil
		}
		return nil, fmt.Errorf("failed to read game catalog: %w", err)
	}

	var cfg CatalogFile
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	games := make(map[string]ports.Game)
	for _, game := range cfg.Games {
		if game.ID == "" || game.Path == "" {
			continue
		}
		games[game.ID] = game
	}

	return games, nil
}

// Catalog resolves game identifiers against configured entries, then against
// story files directly inside a games directory. It implements ports.GameCatalog.
type Catalog struct {
	dir   string
	games map[string]ports.Game
}

// NewCatalog creates a Catalog rooted at dir. Relative entry paths are joined to dir.
func NewCatalog(dir string, games map[string]ports.Game) *Catalog {
	c := &Catalog{dir: dir, games: make(map[string]ports.Game, len(games))}
	for id, game := range games {
		if !filepath.IsAbs(game.Path) && dir != "" {
			game.Path = filepath.Join(dir, game.Path)
		}
		game.ID = id
		c.games[id] = game
	}
	return c
}

// Resolve returns the game for id, or domain.ErrGameNotFound.
func (c *Catalog) Resolve(id string) (ports.Game, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ports.Game{}, fmt.Errorf("%w: empty game id", domain.ErrGameNotFound)
	}

	if game, ok := c.games[id]; ok {
		if !isStoryFile(game.Path) {
			return ports.Game{}, fmt.Errorf("%w: %s: file %s is missing", domain.ErrGameNotFound, id, game.Path)
		}
		return game, nil
	}

	// Only bare file names inside dir; no traversal.
	if c.dir == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") || isCatalogFile(id) {
		return ports.Game{}, fmt.Errorf("%w: %s", domain.ErrGameNotFound, id)
	}
	path := filepath.Join(c.dir, id)
	if !isStoryFile(path) {
		return ports.Game{}, fmt.Errorf("%w: %s", domain.ErrGameNotFound, id)
	}
	return ports.Game{ID: id, Path: path}, nil
}

// List returns configured games plus story files found in dir, sorted by ID.
func (c *Catalog) List() ([]ports.Game, error) {
	seen := make(map[string]bool, len(c.games))
	list := make([]ports.Game, 0, len(c.games))
	for _, game := range c.games {
		seen[game.ID] = true
		list = append(list, game)
	}

	if c.dir != "" {
		entries, err := os.ReadDir(c.dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to list games directory: %w", err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || isCatalogFile(name) || seen[name] {
				continue
			}
			list = append(list, ports.Game{ID: name, Path: filepath.Join(c.dir, name)})
		}
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func isStoryFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isCatalogFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
