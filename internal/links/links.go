package links

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"wikirally/internal/cache"
	"wikirally/internal/models"
	"wikirally/internal/session"
	"wikirally/internal/util"
)

// Kind classifies a hyperlink found in article HTML.
type Kind int

const (
	KindNavigable Kind = iota
	KindExternal
	KindExcluded
	KindSelf
)

// ClassifiedLink is the classification result for one anchor.
type ClassifiedLink struct {
	Kind  Kind
	Title string
	Href  string
}

const maxLinkEntries = 50

const (
	msgExternal    = "外部リンクはクリックできません。Wikipedia内のリンクのみ使用できます。"
	msgUnavailable = "このリンクは使用できません。"
	msgSelf        = "現在のページです。"
)

// Rewriter turns raw article HTML into a game-legal navigation graph: every
// anchor is classified once, then either disabled or pointed at the
// successor game state. A per-page title-set cache lets repeat views skip
// re-deriving which titles are navigable; successor URLs are always
// recomputed from the current request's state, never reused from cache.
type Rewriter struct {
	Codec            *session.Codec
	LinkSets         *cache.Store[[]string]
	ArticlePrefix    string
	ExcludedPrefixes []string
}

func (r *Rewriter) classify(href, currentPage string) ClassifiedLink {
	if !strings.HasPrefix(href, r.ArticlePrefix) {
		return ClassifiedLink{Kind: KindExternal, Href: href}
	}
	for _, prefix := range r.ExcludedPrefixes {
		if strings.HasPrefix(href, prefix) {
			return ClassifiedLink{Kind: KindExcluded, Href: href}
		}
	}
	title := strings.TrimPrefix(href, r.ArticlePrefix)
	if decoded, err := url.PathUnescape(title); err == nil {
		title = decoded
	}
	title = strings.TrimSpace(title)
	if title == currentPage {
		return ClassifiedLink{Kind: KindSelf, Title: title, Href: href}
	}
	return ClassifiedLink{Kind: KindNavigable, Title: title, Href: href}
}

// Classify parses rawHTML and returns every anchor's classification in
// document order.
func (r *Rewriter) Classify(rawHTML, currentPage string) ([]ClassifiedLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	var out []ClassifiedLink
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		out = append(out, r.classify(href, currentPage))
	})
	return out, nil
}

// Rewrite re-serializes the whole article fragment with every link either
// disabled or carrying its successor-state URL.
func (r *Rewriter) Rewrite(rawHTML string, st models.GameState) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	key := cache.Key(st.CurrentPage)
	cachedTitles, hit := r.LinkSets.Get(key)
	var navSet map[string]struct{}
	if hit {
		util.LogInfo("Using cached link set for page: %s", st.CurrentPage)
		navSet = make(map[string]struct{}, len(cachedTitles))
		for _, t := range cachedTitles {
			navSet[t] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var titles []string

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		cl := r.classify(href, st.CurrentPage)
		switch cl.Kind {
		case KindExternal:
			disable(a, msgExternal, true)
		case KindExcluded:
			disable(a, msgUnavailable, true)
		case KindSelf:
			disable(a, msgSelf, false)
		case KindNavigable:
			if hit {
				if _, ok := navSet[cl.Title]; !ok {
					disable(a, msgUnavailable, false)
					return
				}
			} else if _, dup := seen[cl.Title]; !dup {
				seen[cl.Title] = struct{}{}
				titles = append(titles, cl.Title)
			}
			a.SetAttr("href", r.Codec.SuccessorURL(cl.Title, st))
		}
	})

	if !hit {
		r.LinkSets.Put(key, titles)
	}

	inner, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	return `<div id="mw-content-text">` + inner + `</div>`, nil
}

// Extract returns the flat ordered link list for lightweight consumers,
// capped at 50 entries. Successor click counts come from the current state.
func (r *Rewriter) Extract(rawHTML string, st models.GameState) ([]models.LinkEntry, error) {
	key := cache.Key(st.CurrentPage)
	next := st.ClicksRemaining - 1

	if cachedTitles, ok := r.LinkSets.Get(key); ok {
		util.LogInfo("Using cached link set for link list: %s", st.CurrentPage)
		entries := make([]models.LinkEntry, 0, len(cachedTitles))
		for _, title := range cachedTitles {
			if title == st.CurrentPage {
				continue
			}
			entries = append(entries, models.LinkEntry{
				Title:  title,
				Href:   r.ArticlePrefix + title,
				Clicks: next,
			})
		}
		return lo.Slice(entries, 0, maxLinkEntries), nil
	}

	classified, err := r.Classify(rawHTML, st.CurrentPage)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var titles []string
	var entries []models.LinkEntry
	for _, cl := range classified {
		if cl.Kind != KindNavigable {
			continue
		}
		if _, dup := seen[cl.Title]; dup {
			continue
		}
		seen[cl.Title] = struct{}{}
		titles = append(titles, cl.Title)
		entries = append(entries, models.LinkEntry{
			Title:  cl.Title,
			Href:   r.ArticlePrefix + cl.Title,
			Clicks: next,
		})
	}

	r.LinkSets.Put(key, titles)
	return lo.Slice(entries, 0, maxLinkEntries), nil
}

func disable(a *goquery.Selection, message string, strikeThrough bool) {
	a.SetAttr("href", "javascript:void(0);")
	a.SetAttr("onclick", `alert("`+message+`"); return false;`)
	style := "color: #999; cursor: not-allowed;"
	if strikeThrough {
		style = "color: #999; cursor: not-allowed; text-decoration: line-through;"
	}
	a.SetAttr("style", style)
}
