package game

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/samber/lo"

	"wikirally/internal/util"
)

const maxStartRetries = 10

// RandomTitleProvider supplies random article titles, typically from the
// upstream wiki API.
type RandomTitleProvider interface {
	RandomTitle(ctx context.Context) (string, error)
}

// Picker chooses the target and start articles for a new game.
type Picker struct {
	Provider RandomTitleProvider

	// EasyTarget is the fixed easy-mode destination; EasyFallback is a
	// guaranteed-distinct start page when the random draw keeps colliding.
	EasyTarget   string
	EasyFallback string

	// FallbackTitle is returned when the provider fails outright.
	FallbackTitle string

	// HardPages is the flattened union of every hard-mode category.
	HardPages []string
}

// Target picks the destination article for the given difficulty.
func (p *Picker) Target(hard bool) string {
	if !hard {
		return p.EasyTarget
	}
	return p.randomHardPage("")
}

// StartPage draws a random start article distinct from target, retrying a
// bounded number of times before falling back to a deterministic choice.
func (p *Picker) StartPage(ctx context.Context, target string, hard bool) string {
	start := p.randomTitle(ctx)
	for attempts := 0; start == target && attempts < maxStartRetries; attempts++ {
		start = p.randomTitle(ctx)
	}
	if start != target {
		return start
	}

	util.LogWarn("Random start page collided with target %q %d times, using fallback", target, maxStartRetries)
	if !hard {
		return p.EasyFallback
	}
	return p.randomHardPage(target)
}

func (p *Picker) randomTitle(ctx context.Context) string {
	title, err := p.Provider.RandomTitle(ctx)
	if err != nil {
		util.LogWarn("Random title lookup failed: %v, using fallback %q", err, p.FallbackTitle)
		return p.FallbackTitle
	}
	return title
}

// randomHardPage draws uniformly from the hard-mode union, optionally
// excluding one title.
func (p *Picker) randomHardPage(exclude string) string {
	pages := p.HardPages
	if exclude != "" {
		pages = lo.Filter(pages, func(page string, _ int) bool {
			return page != exclude
		})
	}
	if len(pages) == 0 {
		return p.FallbackTitle
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pages))))
	if err != nil {
		util.LogWarn("Error generating random number: %v, using fallback", err)
		return pages[0]
	}
	return pages[n.Int64()]
}
