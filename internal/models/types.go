package models

// Difficulty selects how the target article is chosen.
type Difficulty string

const (
	DifficultyEasy Difficulty = "easy"
	DifficultyHard Difficulty = "hard"
)

// Valid reports whether d is one of the two playable difficulties.
func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyHard
}

// GameState is the full state of one game, reconstructed from request
// parameters on every page view and never stored server-side.
type GameState struct {
	CurrentPage     string
	TargetPage      string
	ClicksRemaining int
	Difficulty      Difficulty
	StartedAtMillis int64
}

// LinkEntry is one navigable link in the lightweight link-list response.
type LinkEntry struct {
	Title  string `json:"title"`
	Href   string `json:"href"`
	Clicks int    `json:"clicks"`
}

// CategoryFile is the on-disk shape of data/categories.json.
type CategoryFile struct {
	Categories []Category `json:"categories"`
}

// Category is a named set of candidate hard-mode target titles.
type Category struct {
	Name  string   `json:"name"`
	Pages []string `json:"pages"`
}
