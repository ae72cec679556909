package ports

// Game describes a playable story file.
type Game struct {
	ID          string `json:"id" yaml:"id"`
	Path        string `json:"path" yaml:"file"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// GameCatalog resolves game identifiers.
type GameCatalog interface {
	// Resolve returns the game for id, or domain.ErrGameNotFound.
	Resolve(id string) (Game, error)

	// List returns every known game, sorted by ID.
	List() ([]Game, error)
}
