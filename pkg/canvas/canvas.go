// Package canvas fetches quiz assignment overrides from the Canvas REST
// API. It owns authentication (bearer token or a raw browser cookie
// string), conditional GETs via ETag, and Link-header pagination, and hands
// the core a flat payload of parent records.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/canvaswatch/canvaswatch/pkg/overrides"
)

const (
	defaultPerPage = 100
	userAgent      = "canvaswatch/1.0"

	// payloadKey is the object key Canvas wraps the override list in. Some
	// deployments return a bare top-level array instead; both are accepted.
	payloadKey = "quiz_assignment_overrides"
)

// Config carries everything the client needs. It is passed in explicitly at
// construction; the client reads no ambient state.
type Config struct {
	BaseURL  string
	CourseID string
	Token    string // preferred
	Cookie   string // raw "k=v; a=b" string pasted from a browser
	PerPage  int
	Proxy    string
}

type Client struct {
	cfg    Config
	cookie string
	http   *retryablehttp.Client
}

// FetchResult is one poll's worth of data. NotModified means the server
// answered 304 to our conditional GET and Records is empty.
type FetchResult struct {
	Records     []overrides.ParentRecord
	ETag        string
	NotModified bool
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("canvas: base URL is required")
	}
	if cfg.CourseID == "" {
		return nil, errors.New("canvas: course id is required")
	}
	if cfg.Token == "" && cfg.Cookie == "" {
		return nil, errors.New("canvas: set an access token or a cookie string")
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("canvas: bad proxy url: %w", err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		rc.HTTPClient.Transport = transport
	}

	return &Client{cfg: cfg, cookie: canonicalCookie(cfg.Cookie), http: rc}, nil
}

func (c *Client) endpoint() string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/api/v1/courses/%s/quizzes/assignment_overrides?per_page=%d",
		base, c.cfg.CourseID, c.cfg.PerPage)
}

// FetchOverrides retrieves the full override payload, following pagination.
// When etag is non-empty it is sent as If-None-Match on the first request;
// a 304 short-circuits with NotModified set.
func (c *Client) FetchOverrides(ctx context.Context, etag string) (*FetchResult, error) {
	body, newETag, notModified, err := c.get(ctx, c.endpoint(), etag)
	if err != nil {
		return nil, err
	}
	if notModified {
		return &FetchResult{NotModified: true}, nil
	}

	records := ParsePayload(body.text)
	next := nextLink(body.link)
	for next != "" {
		pg, _, _, err := c.get(ctx, next, "")
		if err != nil {
			return nil, err
		}
		records = append(records, ParsePayload(pg.text)...)
		next = nextLink(pg.link)
	}

	return &FetchResult{Records: records, ETag: newETag}, nil
}

type page struct {
	text string
	link string
}

func (c *Client) get(ctx context.Context, rawURL, etag string) (*page, string, bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", false, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	} else if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		io.Copy(io.Discard, resp.Body)
		return nil, "", true, nil
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, "", false, fmt.Errorf("canvas: %s returned status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", false, err
	}
	return &page{text: string(data), link: resp.Header.Get("Link")}, resp.Header.Get("ETag"), false, nil
}

// ParsePayload extracts parent records from one page of the API response.
// Items without a quiz id come back with an empty ID so the indexer can
// count them as skipped instead of this layer silently dropping data.
func ParsePayload(body string) []overrides.ParentRecord {
	root := gjson.Parse(body)
	items := root
	if !root.IsArray() {
		items = root.Get(payloadKey)
	}

	var records []overrides.ParentRecord
	items.ForEach(func(_, item gjson.Result) bool {
		rec := overrides.ParentRecord{}
		if qid := item.Get("quiz_id"); qid.Exists() && qid.Type != gjson.Null {
			rec.ID = quizIDString(qid)
		}
		item.Get("due_dates").ForEach(func(_, d gjson.Result) bool {
			if m, ok := d.Value().(map[string]any); ok {
				rec.Children = append(rec.Children, m)
			}
			return true
		})
		records = append(records, rec)
		return true
	})
	return records
}

// quizIDString stringifies the id uniformly whether the API sent a number
// or a string.
func quizIDString(v gjson.Result) string {
	if v.Type == gjson.Number {
		return strconv.FormatInt(int64(v.Num), 10)
	}
	return v.String()
}

// canonicalCookie rebuilds a raw "k=v; a=b" cookie string into a clean
// header value, dropping malformed segments.
func canonicalCookie(raw string) string {
	pairs := ParseCookieString(raw)
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.Name+"="+p.Value)
	}
	return strings.Join(parts, "; ")
}

// Cookie is one name/value pair from a pasted browser cookie string.
type Cookie struct {
	Name  string
	Value string
}

// ParseCookieString converts "k=v; a=b; ..." into ordered pairs. Segments
// without an "=" are skipped.
func ParseCookieString(raw string) []Cookie {
	var out []Cookie
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" || !strings.Contains(part, "=") {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		out = append(out, Cookie{Name: name, Value: strings.TrimSpace(kv[1])})
	}
	return out
}

// nextLink pulls the rel="next" URL out of an RFC 5988 Link header, or ""
// when there is no next page.
func nextLink(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		urlPart := strings.TrimSpace(segments[0])
		for _, attr := range segments[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				return strings.Trim(urlPart, "<>")
			}
		}
	}
	return ""
}
