// Package enrich looks up song metadata (original key, tempo, BPM,
// length) from a public song-chart site. It is a best-effort capability:
// every failure mode — network, HTTP status, parsing, timeout — degrades
// to "no data". The import pipeline must never depend on its success.
package enrich

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/worshipplan/server/internal/domain"
	"github.com/worshipplan/server/internal/importer"
)

// DefaultBaseURL is the chart site queried when none is configured.
const DefaultBaseURL = "https://www.praisecharts.com"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	keyShape = regexp.MustCompile(`^[A-G][#b]?m?$`)

	jsonKey   = regexp.MustCompile(`"original_key":"([^"]+)"`)
	jsonTempo = regexp.MustCompile(`"tempo":\{[^}]*"tempo":"([^"]+)"`)
	jsonBPM   = regexp.MustCompile(`"bpm":"(\d+)"`)

	jsonLengths = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"duration":"(\d{1,2}:\d{2})"`),
		regexp.MustCompile(`(?i)"length":"(\d{1,2}:\d{2})"`),
		regexp.MustCompile(`(?i)"time":"(\d{1,2}:\d{2})"`),
		regexp.MustCompile(`(?i)"songLength":"(\d{1,2}:\d{2})"`),
	}
	jsonLengthSeconds = []*regexp.Regexp{
		regexp.MustCompile(`"duration":(\d{2,3})[,}\]]`),
		regexp.MustCompile(`"length":(\d{2,3})[,}\]]`),
		regexp.MustCompile(`"songLength":(\d{2,3})[,}\]]`),
		regexp.MustCompile(`"lengthInSeconds":(\d{2,3})[,}\]]`),
	}
	textLength = regexp.MustCompile(`(?i)(?:Duration|Length|Time)\D{0,20}(\d{1,2}:\d{2})`)
	textKey    = regexp.MustCompile(`Original Key\s+([A-G][#b♭♯]?m?)`)
)

// Chart-site tempo labels mapped to library tempo values.
var tempoLabels = map[string]string{
	"slow":     domain.TempoSlow,
	"med slow": domain.TempoMedSlow,
	"medium":   domain.TempoMedium,
	"med fast": domain.TempoMedFast,
	"fast":     domain.TempoFast,
}

// Client implements importer.Enricher against a chart site.
type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
}

// NewClient builds a client for the given base URL ("" for the default).
// The timeout bounds each HTTP request; the pipeline additionally bounds
// the whole lookup.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

// Lookup searches the chart site for the song and scrapes its detail
// page. Absence of data is the only failure signal.
func (c *Client) Lookup(ctx context.Context, title, artist string) importer.Metadata {
	if strings.TrimSpace(title) == "" {
		return importer.Metadata{}
	}

	detailURL, ok := c.findDetailPage(ctx, title, artist)
	if !ok {
		return importer.Metadata{}
	}
	page, ok := c.fetch(ctx, detailURL)
	if !ok {
		return importer.Metadata{}
	}

	meta := parseDetailPage(page)
	c.log.Debug("metadata lookup",
		"title", title,
		"key", meta.Key,
		"tempo", meta.Tempo,
	)
	return meta
}

// findDetailPage runs the search and picks the best song-detail link,
// preferring one whose link text mentions the artist.
func (c *Client) findDetailPage(ctx context.Context, title, artist string) (string, bool) {
	body, ok := c.fetch(ctx, c.base+"/search?q="+url.QueryEscape(title))
	if !ok {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", false
	}

	type link struct{ text, href string }
	var links []link
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "/songs/details/") || !strings.Contains(href, "chords") {
			return
		}
		if seen[href] {
			return
		}
		seen[href] = true
		links = append(links, link{text: strings.TrimSpace(sel.Text()), href: href})
	})
	if len(links) == 0 {
		return "", false
	}

	best := links[0].href
	if artist != "" {
		firstWord, _, _ := strings.Cut(strings.ToLower(artist), " ")
		for _, l := range links {
			if strings.Contains(strings.ToLower(l.text), firstWord) {
				best = l.href
				break
			}
		}
	}
	if strings.HasPrefix(best, "/") {
		best = c.base + best
	}
	return best, true
}

func (c *Client) fetch(ctx context.Context, rawURL string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("enrichment fetch failed", "url", rawURL, "error", err)
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	// Chart pages are well under this; the cap guards against
	// pathological responses tying up an import.
	const maxBody = 4 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", false
	}
	return string(body), true
}

// parseDetailPage extracts metadata from a song detail page, embedded
// JSON first, visible text as fallback.
func parseDetailPage(page string) importer.Metadata {
	var meta importer.Metadata

	if m := jsonKey.FindStringSubmatch(page); m != nil {
		meta.Key = normalizeKey(m[1])
	}
	if m := jsonTempo.FindStringSubmatch(page); m != nil {
		meta.Tempo = tempoLabels[strings.ToLower(strings.TrimSpace(m[1]))]
	}
	if m := jsonBPM.FindStringSubmatch(page); m != nil {
		if bpm, err := strconv.Atoi(m[1]); err == nil {
			meta.BPM = &bpm
		}
	}

	for _, pattern := range jsonLengths {
		if m := pattern.FindStringSubmatch(page); m != nil {
			meta.LengthSeconds = parseClock(m[1])
			break
		}
	}
	if meta.LengthSeconds == nil {
		for _, pattern := range jsonLengthSeconds {
			if m := pattern.FindStringSubmatch(page); m != nil {
				if secs, err := strconv.Atoi(m[1]); err == nil && secs >= 60 && secs <= 900 {
					meta.LengthSeconds = &secs
				}
				break
			}
		}
	}

	// Visible-text fallbacks for pages without the embedded JSON.
	if meta.Key == "" || meta.LengthSeconds == nil {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page)); err == nil {
			plain := doc.Text()
			if meta.Key == "" {
				if m := textKey.FindStringSubmatch(plain); m != nil {
					meta.Key = normalizeKey(m[1])
				}
			}
			if meta.LengthSeconds == nil {
				if m := textLength.FindStringSubmatch(plain); m != nil {
					meta.LengthSeconds = parseClock(m[1])
				}
			}
		}
	}

	return meta
}

// normalizeKey maps unicode accidentals to ASCII and rejects anything
// that is not key-shaped.
func normalizeKey(key string) string {
	key = strings.ReplaceAll(key, "♭", "b")
	key = strings.ReplaceAll(key, "♯", "#")
	if !keyShape.MatchString(key) {
		return ""
	}
	return key
}

// parseClock converts "M:SS" to seconds, nil when malformed.
func parseClock(s string) *int {
	mins, secs, ok := strings.Cut(s, ":")
	if !ok {
		return nil
	}
	m, err1 := strconv.Atoi(mins)
	sec, err2 := strconv.Atoi(secs)
	if err1 != nil || err2 != nil || sec > 59 {
		return nil
	}
	total := m*60 + sec
	return &total
}

