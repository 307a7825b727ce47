package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"wikirally/internal/cache"
	"wikirally/internal/game"
	"wikirally/internal/links"
	"wikirally/internal/session"
	"wikirally/internal/wiki"
)

const upstreamArticle = `{"parse":{"text":{"*":"<p><a href=\"/wiki/%E5%AF%8C%E5%A3%AB%E5%B1%B1\">fuji</a> <a href=\"https://example.com/\">ext</a></p>"}}}`

func newUpstreamStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "parse":
			w.Write([]byte(upstreamArticle))
		case "query":
			w.Write([]byte(`{"query":{"random":[{"title":"富士山"}]}}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func newTestApp(upstreamURL string) *App {
	codec := &session.Codec{
		GamePath:      RouteGame,
		GameOverPath:  RouteGameOver,
		DefaultPage:   DefaultTargetTitle,
		DefaultTarget: DefaultTargetTitle,
		InitialClicks: DefaultInitialClicks,
	}
	wikiClient := wiki.NewClient(upstreamURL, "wikirally-test/1.0", 2*time.Second, 2*time.Second)
	linkCache := cache.New[[]string](5 * time.Minute)

	return &App{
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
			EasyTarget:    DefaultTargetTitle,
			EasyFallback:  DefaultStartFallback,
			FallbackTitle: DefaultTargetTitle,
			HardPages:     []string{"ライオン", "寿司", "東京"},
		},
		PageCache:      cache.New[string](5 * time.Minute),
		LinkCache:      linkCache,
		InitialClicks:  DefaultInitialClicks,
		StartTime:      time.Now(),
		BaseURL:        "http://localhost:8080",
		WikiOrigin:     "https://ja.wikipedia.org",
		StaticCacheAge: time.Hour,
		APICacheAge:    5 * time.Minute,
		RateLimitBurst: 100,
		RateLimiterTTL: time.Hour,
		LimiterMap:     make(map[string]*RateLimiterWithTime),
	}
}

func serve(t *testing.T, app *App, target string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := app.newRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestOpeningHandler(t *testing.T) {
	upstream := newUpstreamStub(t)
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/start_game?difficulty=easy") {
		t.Error("opening page should link to easy mode start")
	}
}

func TestStartGameRedirect(t *testing.T) {
	upstream := newUpstreamStub(t)
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/start_game?difficulty=easy")
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Path != RouteGame {
		t.Errorf("expected redirect into the game, got %q", loc.Path)
	}
	q := loc.Query()
	if q.Get("page") != "富士山" || q.Get("mytarget") != DefaultTargetTitle || q.Get("clicks") != "6" {
		t.Errorf("unexpected initial state: %v", q)
	}
	if q.Get("start_time") == "" || q.Get("start_time") == "0" {
		t.Error("start_time should be a fresh timestamp")
	}
}

func TestStartGameInvalidDifficulty(t *testing.T) {
	upstream := newUpstreamStub(t)
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/start_game?difficulty=nightmare")
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Location"), "error=") {
		t.Error("invalid difficulty should redirect to the opening with an error tag")
	}
}

func TestGameHandlerInProgress(t *testing.T) {
	upstream := newUpstreamStub(t)
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/game?page=%E6%9D%B1%E4%BA%AC&clicks=6&mytarget=%E3%83%8D%E3%82%B3&difficulty=easy&start_time=1700000000000")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "javascript:void(0);") {
		t.Error("external links should be disabled in the rendered page")
	}
	if !strings.Contains(body, "clicks=5") {
		t.Error("navigable links should carry the decremented click count")
	}
}

func TestGameHandlerCleared(t *testing.T) {
	upstream := newUpstreamStub(t)
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/game?page=%E3%83%8D%E3%82%B3&clicks=1&mytarget=%E3%83%8D%E3%82%B3&difficulty=easy&start_time=0")
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Path != RouteGameClear {
		t.Errorf("expected /gameclear, got %q", loc.Path)
	}
	if got := loc.Query().Get("clicks"); got != "5" {
		t.Errorf("expected used clicks 5, got %q", got)
	}
}

func TestGameHandlerOver(t *testing.T) {
	upstream := newUpstreamStub(t)
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/game?page=%E6%9D%B1%E4%BA%AC&clicks=0&mytarget=%E3%83%8D%E3%82%B3&difficulty=easy&start_time=0")
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != RouteGameOver {
		t.Errorf("expected /gameover, got %q", loc)
	}
}

func TestGameHandlerInvalidTitle(t *testing.T) {
	upstream := newUpstreamStub(t)
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/game?page=..%2F..%2Fetc&clicks=6&mytarget=%E3%83%8D%E3%82%B3&difficulty=easy")
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Location"), "error=") {
		t.Error("invalid title should redirect to the opening with an error tag")
	}
}

func TestGameHandlerUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":"missingtitle"}}`))
	}))
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/game?page=%E6%9D%B1%E4%BA%AC&clicks=6&mytarget=%E3%83%8D%E3%82%B3&difficulty=easy")
	if w.Code != http.StatusOK {
		t.Fatalf("upstream failure must still render, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), ErrMsgTemporary) {
		t.Error("expected the temporary-error article body")
	}
}

func TestGameDataSuccess(t *testing.T) {
	upstream := newUpstreamStub(t)
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/game_data?page=%E6%9D%B1%E4%BA%AC&clicks=6&mytarget=%E3%83%8D%E3%82%B3&difficulty=easy&start_time=0")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Status string `json:"status"`
		Links  []struct {
			Title  string `json:"title"`
			Href   string `json:"href"`
			Clicks int    `json:"clicks"`
		} `json:"links"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "success" {
		t.Fatalf("expected success, got %q", resp.Status)
	}
	if len(resp.Links) != 1 || resp.Links[0].Title != "富士山" || resp.Links[0].Clicks != 5 {
		t.Errorf("unexpected link list: %+v", resp.Links)
	}
}

func TestGameDataClear(t *testing.T) {
	upstream := newUpstreamStub(t)
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/game_data?page=%E3%83%8D%E3%82%B3&clicks=2&mytarget=%E3%83%8D%E3%82%B3&difficulty=easy&start_time=0")
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "clear" {
		t.Errorf("expected clear, got %v", resp["status"])
	}
	if resp["clicks"] != float64(4) {
		t.Errorf("expected 4 used clicks, got %v", resp["clicks"])
	}
}

func TestHealthz(t *testing.T) {
	upstream := newUpstreamStub(t)
	defer upstream.Close()

	w := serve(t, newTestApp(upstream.URL), "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected ok, got %v", resp["status"])
	}
}
