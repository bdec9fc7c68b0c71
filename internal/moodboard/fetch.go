// Package moodboard resolves reference links on mood board nodes into the
// title, description and preview image used as generation context.
package moodboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/michaelshimeles/youpac-ai-sub001/internal/canvas"
)

const (
	fetchTimeout = 10 * time.Second
	maxPageSize  = 5 << 20 // 5MB
	maxFieldLen  = 300
)

// Fetcher downloads reference pages and reads their metadata.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher creates a Fetcher. A nil client uses one with a 10s timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &Fetcher{client: client, logger: slog.Default()}
}

// Fetch returns the metadata of the page at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (canvas.Reference, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return canvas.Reference{}, fmt.Errorf("invalid reference url %q", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return canvas.Reference{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := f.client.Do(req)
	if err != nil {
		return canvas.Reference{}, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return canvas.Reference{}, fmt.Errorf("%s returned status %d", u, resp.StatusCode)
	}

	ref := canvas.Reference{URL: u.String()}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		ref.ImageURL = ref.URL
		return ref, nil
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return canvas.Reference{}, fmt.Errorf("parsing %s: %w", u, err)
	}
	m := readMeta(doc)

	ref.Title = clip(first(m["og:title"], m["twitter:title"], m["title"]))
	ref.Description = clip(first(m["og:description"], m["twitter:description"], m["description"]))
	if img := first(m["og:image"], m["twitter:image"]); img != "" {
		if abs, err := u.Parse(img); err == nil {
			ref.ImageURL = abs.String()
		}
	}
	return ref, nil
}

// Resolve fills in missing metadata for refs concurrently. References that
// cannot be fetched are returned as given.
func (f *Fetcher) Resolve(ctx context.Context, refs []canvas.Reference) []canvas.Reference {
	out := make([]canvas.Reference, len(refs))
	var wg sync.WaitGroup
	for i, r := range refs {
		out[i] = r
		if r.URL == "" || (r.Title != "" && r.Description != "") {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.Fetch(ctx, r.URL)
			if err != nil {
				f.logger.Warn("reference fetch failed", "url", r.URL, "error", err)
				return
			}
			if r.Title == "" {
				out[i].Title = got.Title
			}
			if r.Description == "" {
				out[i].Description = got.Description
			}
			if r.ImageURL == "" {
				out[i].ImageURL = got.ImageURL
			}
		}()
	}
	wg.Wait()
	return out
}

// readMeta collects <title> and <meta> values keyed by name or property.
func readMeta(doc *html.Node) map[string]string {
	m := make(map[string]string)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if _, ok := m["title"]; !ok && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					m["title"] = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				var key, content string
				for _, a := range n.Attr {
					switch strings.ToLower(a.Key) {
					case "name", "property":
						key = strings.ToLower(strings.TrimSpace(a.Val))
					case "content":
						content = strings.TrimSpace(a.Val)
					}
				}
				if key != "" && content != "" {
					if _, ok := m[key]; !ok {
						m[key] = content
					}
				}
			case "body":
				// Metadata lives in <head>.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return m
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > maxFieldLen {
		return string(r[:maxFieldLen]) + "..."
	}
	return s
}
