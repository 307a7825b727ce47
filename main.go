package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	"wikirally/internal/cache"
	"wikirally/internal/game"
	"wikirally/internal/links"
	"wikirally/internal/models"
	"wikirally/internal/session"
	"wikirally/internal/util"
	"wikirally/internal/wiki"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.LogInfo("Starting Wikirally in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	categories, err := loadCategories("data/categories.json")
	if err != nil {
		util.LogFatal("Failed to load hard mode categories: %v", err)
	}
	hardPages := lo.FlatMap(categories, func(cat models.Category, _ int) []string {
		return cat.Pages
	})
	util.LogInfo("Loaded %d hard mode pages from %d categories", len(hardPages), len(categories))

	apiURL := util.GetEnvStr("WIKI_API_URL", "https://ja.wikipedia.org/w/api.php")
	targetTitle := util.GetEnvStr("TARGET_TITLE", DefaultTargetTitle)
	initialClicks := util.GetEnvInt("INITIAL_CLICKS", DefaultInitialClicks)
	cacheTTL := util.GetEnvDuration("CACHE_TTL", 5*time.Minute)

	wikiClient := wiki.NewClient(
		apiURL,
		util.GetEnvStr("USER_AGENT", "WikirallyBot/1.0 (https://example.com)"),
		util.GetEnvDuration("PARSE_TIMEOUT", 2*time.Second),
		util.GetEnvDuration("RANDOM_TIMEOUT", 5*time.Second),
	)

	codec := &session.Codec{
		GamePath:      RouteGame,
		GameOverPath:  RouteGameOver,
		DefaultPage:   targetTitle,
		DefaultTarget: targetTitle,
		InitialClicks: initialClicks,
	}

	linkCache := cache.New[[]string](cacheTTL)

	app := &App{
		Codec: codec,
		Rewriter: &links.Rewriter{
			Codec:            codec,
			LinkSets:         linkCache,
			ArticlePrefix:    ArticlePathPrefix,
			ExcludedPrefixes: excludedPrefixes,
		},
		Wiki: wikiClient,
		Picker: &game.Picker{
			Provider:      wikiClient,
			EasyTarget:    targetTitle,
			EasyFallback:  DefaultStartFallback,
			FallbackTitle: targetTitle,
			HardPages:     hardPages,
		},
		PageCache:         cache.New[string](cacheTTL),
		LinkCache:         linkCache,
		InitialClicks:     initialClicks,
		IsProduction:      isProduction,
		StartTime:         time.Now(),
		BaseURL:           util.GetEnvStr("BASE_URL", "http://localhost:8080"),
		WikiOrigin:        originOf(apiURL),
		StaticCacheAge:    util.GetEnvDuration("STATIC_CACHE_AGE", time.Hour),
		APICacheAge:       util.GetEnvDuration("API_CACHE_AGE", 5*time.Minute),
		KeepAliveInterval: util.GetEnvDuration("KEEPALIVE_INTERVAL", 15*time.Minute),
		RateLimitBurst:    util.GetEnvInt("RATE_LIMIT_BURST", 10),
		RateLimiterTTL:    util.GetEnvDuration("RATE_LIMITER_TTL", time.Hour),
		LimiterMap:        make(map[string]*RateLimiterWithTime),
	}

	router := app.newRouter()

	app.startCleanupRoutines()
	if isProduction {
		app.startKeepAlive()
	}

	app.startServer(router)
}

func (app *App) newRouter() *gin.Engine {
	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(app.securityHeadersMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"})))
	router.Use(app.applyCacheHeaders)

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	router.LoadHTMLGlob("templates/*.html")
	if util.DirExists("static") {
		router.Static("/static", "./static")
	}

	router.GET(RouteOpening, app.openingHandler)
	router.GET(RouteStartGame, app.rateLimitMiddleware(rateLimitStartPerMinute), app.startGameHandler)
	router.GET(RouteReset, app.rateLimitMiddleware(rateLimitStartPerMinute), app.startGameHandler)
	router.GET(RouteGame, app.rateLimitMiddleware(rateLimitGamePerMinute), app.gameHandler)
	router.GET(RouteGameData, app.rateLimitMiddleware(rateLimitGameDataPerMinute), app.gameDataHandler)
	router.GET(RouteGameClear, app.gameClearHandler)
	router.GET(RouteGameOver, app.gameOverHandler)
	router.GET(RouteHealthz, app.healthzHandler)

	return router
}

func (app *App) applyCacheHeaders(c *gin.Context) {
	switch {
	case strings.HasPrefix(c.Request.URL.Path, "/static/"):
		cachecontrol.New(cachecontrol.Config{
			Public: true,
			MaxAge: cachecontrol.Duration(app.StaticCacheAge),
		})(c)
		c.Header("Vary", "Accept-Encoding")
	case c.Request.URL.Path == RouteGameData:
		cachecontrol.New(cachecontrol.Config{
			Private: true,
			MaxAge:  cachecontrol.Duration(app.APICacheAge),
		})(c)
	default:
		cachecontrol.New(cachecontrol.Config{
			NoStore:        true,
			NoCache:        true,
			MustRevalidate: true,
		})(c)
	}
}

func (app *App) startServer(router *gin.Engine) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}

func (app *App) startCleanupRoutines() {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			if removed := app.PageCache.Sweep() + app.LinkCache.Sweep(); removed > 0 {
				util.LogInfo("Swept %d stale cache entries", removed)
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			app.cleanupStaleRateLimiters()
		}
	}()

	util.LogInfo("Started cleanup routines for caches and rate limiters")
}

// startKeepAlive pings our own health endpoint so free-tier hosting does not
// idle the process out. Shares no state with the request path.
func (app *App) startKeepAlive() {
	client := &http.Client{Timeout: 10 * time.Second}
	go func() {
		ticker := time.NewTicker(app.KeepAliveInterval)
		defer ticker.Stop()

		for range ticker.C {
			resp, err := client.Get(app.BaseURL + RouteHealthz)
			if err != nil {
				util.LogWarn("Keep-alive ping error: %v", err)
				continue
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				util.LogInfo("Keep-alive ping successful")
			} else {
				util.LogWarn("Keep-alive ping failed with status: %d", resp.StatusCode)
			}
		}
	}()
	util.LogInfo("Keep-alive pinger started (every %v)", app.KeepAliveInterval)
}

func loadCategories(path string) ([]models.Category, error) {
	util.LogInfo("Loading hard mode categories from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file models.CategoryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	categories := lo.Filter(file.Categories, func(cat models.Category, _ int) bool {
		if len(cat.Pages) == 0 {
			util.LogWarn("Skipping category %q: no pages", cat.Name)
			return false
		}
		return true
	})

	return categories, nil
}

func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}
