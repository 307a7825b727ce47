package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

var (
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMalformedResponse   = errors.New("malformed upstream response")
)

// Client talks to the MediaWiki action API. The upstream is slow and
// rate-sensitive, so every call carries a short per-call timeout and the
// transport retries transient failures.
type Client struct {
	apiURL        string
	userAgent     string
	httpClient    *http.Client
	parseTimeout  time.Duration
	randomTimeout time.Duration
}

func NewClient(apiURL, userAgent string, parseTimeout, randomTimeout time.Duration) *Client {
	r := retryablehttp.NewClient()
	r.RetryMax = 3
	// Retries must fit inside the short per-call deadlines.
	r.RetryWaitMin = 100 * time.Millisecond
	r.RetryWaitMax = 500 * time.Millisecond
	r.Logger = nil
	return &Client{
		apiURL:        apiURL,
		userAgent:     userAgent,
		httpClient:    r.StandardClient(),
		parseTimeout:  parseTimeout,
		randomTimeout: randomTimeout,
	}
}

type parseResponse struct {
	Parse *struct {
		Text map[string]string `json:"text"`
	} `json:"parse"`
}

type randomResponse struct {
	Query *struct {
		Random []struct {
			Title string `json:"title"`
		} `json:"random"`
	} `json:"query"`
}

// FetchArticle returns the rendered HTML fragment for an article title.
func (c *Client) FetchArticle(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "parse")
	params.Set("page", title)
	params.Set("format", "json")
	params.Set("prop", "text")
	params.Set("redirects", "1")
	params.Set("disableeditsection", "1")
	params.Set("disabletoc", "1")
	params.Set("disablelimitreport", "1")
	params.Set("disablepp", "1")

	var resp parseResponse
	if err := c.getJSON(ctx, params, c.parseTimeout, &resp); err != nil {
		return "", err
	}
	if resp.Parse == nil {
		return "", fmt.Errorf("%w: missing parse key for %q", ErrMalformedResponse, title)
	}
	text, ok := resp.Parse.Text["*"]
	if !ok || text == "" {
		return "", fmt.Errorf("%w: missing parse.text for %q", ErrMalformedResponse, title)
	}
	return text, nil
}

// RandomTitle returns one random main-namespace article title.
func (c *Client) RandomTitle(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "random")
	params.Set("rnlimit", "1")
	params.Set("rnnamespace", "0")
	params.Set("format", "json")

	var resp randomResponse
	if err := c.getJSON(ctx, params, c.randomTimeout, &resp); err != nil {
		return "", err
	}
	if resp.Query == nil || len(resp.Query.Random) == 0 {
		return "", fmt.Errorf("%w: missing query.random", ErrMalformedResponse)
	}
	return resp.Query.Random[0].Title, nil
}

func (c *Client) getJSON(ctx context.Context, params url.Values, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
