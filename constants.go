package main

const (
	RouteOpening   = "/"
	RouteStartGame = "/start_game"
	RouteReset     = "/reset"
	RouteGame      = "/game"
	RouteGameData  = "/game_data"
	RouteGameClear = "/gameclear"
	RouteGameOver  = "/gameover"
	RouteHealthz   = "/healthz"
)

const (
	DefaultTargetTitle   = "ネコ"
	DefaultStartFallback = "イヌ"
	DefaultInitialClicks = 6
)

const ArticlePathPrefix = "/wiki/"

// Internal namespaces that are never game-legal navigation.
var excludedPrefixes = []string{
	"/wiki/Special:",
	"/wiki/Help:",
	"/wiki/Category:",
	"/wiki/File:",
	"/wiki/Template:",
	"/wiki/Template_talk:",
	"/wiki/Portal:",
	"/wiki/Book:",
	"/wiki/Draft:",
	"/wiki/Education_Program:",
	"/wiki/TimedText:",
	"/wiki/Wikipedia:",
	"/wiki/MediaWiki:",
	"/wiki/Module:",
	"/wiki/Gadget:",
	"/wiki/Topic:",
}

const (
	ErrMsgInvalidDifficulty  = "無効な難易度です"
	ErrMsgInvalidPageTitle   = "無効なページタイトルです"
	ErrMsgInvalidTargetTitle = "無効なターゲットタイトルです"
	ErrMsgTemporary          = "エラーが発生しました。しばらく時間をおいてから再度お試しください。"
)

// Shown in place of the article body when the upstream fetch fails.
const errorArticleHTML = `<div id="mw-content-text"><p>` + ErrMsgTemporary + `</p></div>`

const (
	rateLimitStartPerMinute    = 10
	rateLimitGamePerMinute     = 30
	rateLimitGameDataPerMinute = 60
)

type contextKey string

const requestIDKey contextKey = "request_id"
