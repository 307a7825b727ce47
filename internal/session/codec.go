package session

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"wikirally/internal/models"
)

var (
	ErrInvalidTitle      = errors.New("invalid title")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
)

// ValidationError reports which request field failed validation.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s=%q", e.Err, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Titles may use ASCII alphanumerics, hiragana, katakana, CJK ideographs,
// whitespace, hyphen, underscore and parentheses.
var titlePattern = regexp.MustCompile(`^[a-zA-Z0-9\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}\s\-_()]+$`)

const (
	maxInputLen = 200
	maxTitleLen = 100
)

// Codec converts game state to and from flat request parameters. Both
// directions are pure; the same state always encodes to the same URL.
type Codec struct {
	GamePath      string
	GameOverPath  string
	DefaultPage   string
	DefaultTarget string
	InitialClicks int
}

// Sanitize trims, HTML-escapes, strips angle brackets and quotes, and caps
// the length of player-supplied text.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '\'':
			return -1
		}
		return r
	}, text)
	text = html.EscapeString(text)
	if utf8.RuneCountInString(text) > maxInputLen {
		text = string([]rune(text)[:maxInputLen])
	}
	return strings.TrimSpace(text)
}

// ValidTitle reports whether title matches the article-title allowlist.
func ValidTitle(title string) bool {
	if title == "" {
		return false
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return false
	}
	return titlePattern.MatchString(title)
}

// Decode reconstructs a GameState from request query parameters.
// A missing or unparsable clicks value falls back to the initial budget
// rather than failing the request; titles and difficulty are strict.
func (c *Codec) Decode(q url.Values) (models.GameState, error) {
	difficulty := models.Difficulty(q.Get("difficulty"))
	if difficulty == "" {
		difficulty = models.DifficultyEasy
	}
	if !difficulty.Valid() {
		return models.GameState{}, &ValidationError{Field: "difficulty", Value: q.Get("difficulty"), Err: ErrInvalidDifficulty}
	}

	page := Sanitize(q.Get("page"))
	if page == "" {
		page = c.DefaultPage
	}
	target := Sanitize(q.Get("mytarget"))
	if target == "" {
		target = c.DefaultTarget
	}
	if !ValidTitle(page) {
		return models.GameState{}, &ValidationError{Field: "page", Value: page, Err: ErrInvalidTitle}
	}
	if !ValidTitle(target) {
		return models.GameState{}, &ValidationError{Field: "mytarget", Value: target, Err: ErrInvalidTitle}
	}

	clicks, err := strconv.Atoi(q.Get("clicks"))
	if err != nil {
		clicks = c.InitialClicks
	}

	startedAt, err := strconv.ParseInt(q.Get("start_time"), 10, 64)
	if err != nil {
		startedAt = 0
	}

	return models.GameState{
		CurrentPage:     page,
		TargetPage:      target,
		ClicksRemaining: clicks,
		Difficulty:      difficulty,
		StartedAtMillis: startedAt,
	}, nil
}

// Encode renders a game state as a relative game URL. This is the wire
// contract with the routing layer: page, clicks, mytarget, difficulty and
// start_time, in stable encoded order.
func (c *Codec) Encode(st models.GameState) string {
	v := url.Values{}
	v.Set("page", st.CurrentPage)
	v.Set("clicks", strconv.Itoa(st.ClicksRemaining))
	v.Set("mytarget", st.TargetPage)
	v.Set("difficulty", string(st.Difficulty))
	v.Set("start_time", strconv.FormatInt(st.StartedAtMillis, 10))
	return c.GamePath + "?" + v.Encode()
}

// SuccessorURL computes the URL a navigable link should carry: one click is
// consumed, the target is reachable regardless of the remaining budget, and
// an exhausted budget lands on the game-over page.
func (c *Codec) SuccessorURL(title string, st models.GameState) string {
	next := st.ClicksRemaining - 1
	succ := st
	succ.CurrentPage = title
	succ.ClicksRemaining = next
	if title == st.TargetPage {
		return c.Encode(succ)
	}
	if next <= 0 {
		return c.GameOverPath
	}
	return c.Encode(succ)
}
