package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wikirally/internal/cache"
	"wikirally/internal/game"
	"wikirally/internal/models"
	"wikirally/internal/session"
	"wikirally/internal/util"
)

func (app *App) openingHandler(c *gin.Context) {
	c.HTML(http.StatusOK, "opening.html", gin.H{
		"error": session.Sanitize(c.Query("error")),
	})
}

// startGameHandler begins a fresh game: pick a target for the requested
// difficulty, draw a distinct start page, and redirect into the first game
// state. /reset goes through the same flow.
func (app *App) startGameHandler(c *gin.Context) {
	difficulty := models.Difficulty(c.DefaultQuery("difficulty", string(models.DifficultyEasy)))
	if !difficulty.Valid() {
		util.LogSecurityEvent("INVALID_DIFFICULTY", fmt.Sprintf("ip=%s difficulty=%q", c.ClientIP(), c.Query("difficulty")))
		c.Redirect(http.StatusSeeOther, RouteOpening+"?"+url.Values{"error": {ErrMsgInvalidDifficulty}}.Encode())
		return
	}

	hard := difficulty == models.DifficultyHard
	target := app.Picker.Target(hard)
	start := app.Picker.StartPage(c.Request.Context(), target, hard)
	util.LogInfo("New game: start=%q target=%q difficulty=%s", start, target, difficulty)

	st := models.GameState{
		CurrentPage:     start,
		TargetPage:      target,
		ClicksRemaining: app.InitialClicks,
		Difficulty:      difficulty,
		StartedAtMillis: time.Now().UnixMilli(),
	}
	c.Redirect(http.StatusSeeOther, app.Codec.Encode(st))
}

func (app *App) gameHandler(c *gin.Context) {
	st, err := app.Codec.Decode(c.Request.URL.Query())
	if err != nil {
		c.Redirect(http.StatusSeeOther, RouteOpening+"?"+url.Values{"error": {app.decodeErrorMessage(c, err)}}.Encode())
		return
	}

	switch out := game.Evaluate(st, app.InitialClicks, time.Now()); out.Status {
	case game.StatusCleared:
		util.LogInfo("Game cleared: target=%q clicks=%d elapsed=%dms", st.TargetPage, out.UsedClicks, out.ElapsedMillis)
		v := url.Values{}
		v.Set("clicks", strconv.Itoa(out.UsedClicks))
		v.Set("time", strconv.FormatInt(out.ElapsedMillis, 10))
		v.Set("target", st.TargetPage)
		c.Redirect(http.StatusSeeOther, RouteGameClear+"?"+v.Encode())
		return
	case game.StatusOver:
		util.LogInfo("Game over: page=%q target=%q", st.CurrentPage, st.TargetPage)
		c.Redirect(http.StatusSeeOther, RouteGameOver)
		return
	}

	content := app.renderArticle(c.Request.Context(), st)
	c.HTML(http.StatusOK, "game.html", gin.H{
		"target_title":     st.TargetPage,
		"page_title":       st.CurrentPage,
		"clicks_remaining": st.ClicksRemaining,
		"difficulty":       string(st.Difficulty),
		"parsed_html":      template.HTML(content),
	})
}

// gameDataHandler is the lightweight JSON variant of gameHandler, used for
// preloading: same state decoding and terminal checks, but it returns the
// flat link list instead of the rewritten document.
func (app *App) gameDataHandler(c *gin.Context) {
	st, err := app.Codec.Decode(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": app.decodeErrorMessage(c, err)})
		return
	}

	switch out := game.Evaluate(st, app.InitialClicks, time.Now()); out.Status {
	case game.StatusCleared:
		c.JSON(http.StatusOK, gin.H{
			"status": "clear",
			"clicks": out.UsedClicks,
			"time":   out.ElapsedMillis,
			"target": st.TargetPage,
		})
		return
	case game.StatusOver:
		c.JSON(http.StatusOK, gin.H{"status": "over"})
		return
	}

	raw, err := app.loadArticle(c.Request.Context(), st.CurrentPage)
	if err != nil {
		util.LogSecurityEvent("WIKI_API_ERROR", fmt.Sprintf("page=%q err=%v", st.CurrentPage, err))
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": ErrMsgTemporary})
		return
	}

	linkList, err := app.Rewriter.Extract(raw, st)
	if err != nil {
		util.LogWarn("Link extraction failed for %q: %v", st.CurrentPage, err)
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": ErrMsgTemporary})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "success",
		"page_title":       st.CurrentPage,
		"target_title":     st.TargetPage,
		"clicks_remaining": st.ClicksRemaining,
		"links":            linkList,
	})
}

func (app *App) gameClearHandler(c *gin.Context) {
	c.HTML(http.StatusOK, "game_clear.html", gin.H{
		"clicks":  session.Sanitize(c.DefaultQuery("clicks", "0")),
		"time_ms": session.Sanitize(c.DefaultQuery("time", "0")),
		"target":  session.Sanitize(c.DefaultQuery("target", DefaultTargetTitle)),
	})
}

func (app *App) gameOverHandler(c *gin.Context) {
	c.HTML(http.StatusOK, "game_over.html", gin.H{})
}

func (app *App) healthzHandler(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"page_cache":      app.PageCache.Len(),
		"link_cache":      app.LinkCache.Len(),
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_sys_mb":   m.Sys / 1024 / 1024,
		"uptime":          util.FormatUptime(time.Since(app.StartTime)),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// renderArticle fetches (or reuses) the article body and rewrites its links
// for the current state. Upstream trouble degrades to a temporary-error
// body; the request itself always succeeds.
func (app *App) renderArticle(ctx context.Context, st models.GameState) string {
	raw, err := app.loadArticle(ctx, st.CurrentPage)
	if err != nil {
		util.LogSecurityEvent("WIKI_API_ERROR", fmt.Sprintf("page=%q err=%v", st.CurrentPage, err))
		return errorArticleHTML
	}
	rewritten, err := app.Rewriter.Rewrite(raw, st)
	if err != nil {
		util.LogWarn("Link rewrite failed for %q: %v", st.CurrentPage, err)
		return errorArticleHTML
	}
	return rewritten
}

func (app *App) loadArticle(ctx context.Context, title string) (string, error) {
	key := cache.Key(title)
	if raw, ok := app.PageCache.Get(key); ok {
		util.LogInfo("Using cached article for page: %s", title)
		return raw, nil
	}
	raw, err := app.Wiki.FetchArticle(ctx, title)
	if err != nil {
		return "", err
	}
	app.PageCache.Put(key, raw)
	return raw, nil
}

func (app *App) decodeErrorMessage(c *gin.Context, err error) string {
	var ve *session.ValidationError
	if errors.As(err, &ve) {
		switch {
		case errors.Is(ve.Err, session.ErrInvalidDifficulty):
			util.LogSecurityEvent("INVALID_DIFFICULTY", fmt.Sprintf("ip=%s value=%q", c.ClientIP(), ve.Value))
			return ErrMsgInvalidDifficulty
		case ve.Field == "page":
			util.LogSecurityEvent("INVALID_PAGE_TITLE", fmt.Sprintf("ip=%s value=%q", c.ClientIP(), ve.Value))
			return ErrMsgInvalidPageTitle
		default:
			util.LogSecurityEvent("INVALID_TARGET_TITLE", fmt.Sprintf("ip=%s value=%q", c.ClientIP(), ve.Value))
			return ErrMsgInvalidTargetTitle
		}
	}
	util.LogWarn("State decode failed: %v", err)
	return ErrMsgTemporary
}
