package importer

import (
	"regexp"
	"strings"
)

// Fixed-field pattern for planning-tool text exports. One match is one
// song entry:
//
//	February 1, 2026 WordServe - 1 Blessed Be Your Name Beth Redman Bb 4:48 Bill leads
//
// captured as date, service-name fragment, order, title, artist, key,
// time, and leader.
var textSongPattern = regexp.MustCompile(
	`([A-Za-z]+\s+\d{1,2},?\s+\d{4})\s+` + // date
		`([A-Za-z]+(?:\s*-)?)\s+` + // service name fragment
		`(\d+)\s+` + // order
		`(.+?)\s+` + // title, non-greedy
		`([A-Za-z][A-Za-z\s,\.]+?)\s+` + // artist
		`([A-G][b#]?m?)\s+` + // key
		`(\d{1,2}:\d{2})\s+` + // time
		`(\w+)\s*leads`) // leader

// Date shapes recognized by the line-scanning fallback.
var lineDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`(?i)(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}`),
	regexp.MustCompile(`(?i)(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+\d{1,2},?\s+\d{4}`),
}

// Words that mark a line as the service title in free-text exports.
var serviceNameIndicators = []string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday",
	"saturday", "service", "worship", "evening", "morning",
}

// parsePDFTextPattern runs the fixed-field pattern over the whole
// concatenated page text. Every match becomes one song entry; the first
// match seeds the service date and name. Fails when nothing matches.
func parsePDFTextPattern(file, text string) (RawServiceRecord, bool) {
	rec := RawServiceRecord{File: file}

	full := cleanText(text)
	for _, m := range textSongPattern.FindAllStringSubmatch(full, -1) {
		date, name, order := m[1], m[2], m[3]
		title, artist, key := m[4], m[5], m[6]
		length, leader := m[7], m[8]

		if rec.DateText == "" {
			rec.DateText = date
		}
		if rec.NameText == "" {
			rec.NameText = strings.TrimSpace(strings.ReplaceAll(name, "-", ""))
		}

		artist = strings.TrimSuffix(strings.TrimSpace(artist), ",")
		artist = strings.TrimSuffix(artist, " and")

		rec.Songs = append(rec.Songs, RawSongEntry{
			OrderText:  order,
			Title:      strings.TrimSpace(title),
			Artist:     artist,
			KeyUsed:    key,
			LengthText: length,
			LeaderText: leader,
		})
	}

	return rec, len(rec.Songs) > 0
}

// parsePDFTextLines is the last-resort strategy: scan line by line for a
// date and a service name only. It always succeeds; the empty song list
// tells the caller the document needs manual entry.
func parsePDFTextLines(file, text string) (RawServiceRecord, bool) {
	rec := RawServiceRecord{File: file}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if rec.DateText == "" {
			for _, pattern := range lineDatePatterns {
				if match := pattern.FindString(line); match != "" {
					if _, err := ParseDate(match); err == nil {
						rec.DateText = match
						break
					}
				}
			}
		}

		if rec.NameText == "" {
			lower := strings.ToLower(line)
			for _, word := range serviceNameIndicators {
				if strings.Contains(lower, word) {
					rec.NameText = truncate(line, 100)
					break
				}
			}
		}

		if rec.DateText != "" && rec.NameText != "" {
			break
		}
	}

	return rec, true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
