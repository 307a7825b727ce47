package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"wikirally/internal/cache"
	"wikirally/internal/game"
	"wikirally/internal/links"
	"wikirally/internal/session"
	"wikirally/internal/wiki"
)

type RateLimiterWithTime struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

type App struct {
	Codec    *session.Codec
	Rewriter *links.Rewriter
	Wiki     *wiki.Client
	Picker   *game.Picker

	PageCache *cache.Store[string]
	LinkCache *cache.Store[[]string]

	InitialClicks int
	IsProduction  bool
	StartTime     time.Time

	BaseURL           string
	WikiOrigin        string
	StaticCacheAge    time.Duration
	APICacheAge       time.Duration
	KeepAliveInterval time.Duration

	RateLimitBurst int
	RateLimiterTTL time.Duration
	LimiterMap     map[string]*RateLimiterWithTime
	LimiterMutex   sync.RWMutex
}
