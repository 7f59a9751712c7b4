package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Accepted date layouts, tried in order; first match wins. Commas are
// stripped before parsing so "February 1, 2026" and "February 1 2026" hit
// the same layout.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseDate parses a source date string through the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// cleanText collapses runs of whitespace (including newlines from
// multi-line PDF cells) into single spaces and trims the ends.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var (
	leaderVerbSuffix = regexp.MustCompile(`(?i)\s*(leads?|vocals?|singing)\s*$`)
	leaderAndWord    = regexp.MustCompile(`(?i)\s+and\s+`)
	leaderAmpersand  = regexp.MustCompile(`\s*&\s*`)
)

// SplitLeaders splits free-form leader text into ordered candidate names.
// Trailing verbs are stripped, "and"/"&" are treated as commas, and empty
// fragments are discarded. The first listed leader stays first.
func SplitLeaders(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	text = leaderVerbSuffix.ReplaceAllString(text, "")
	text = leaderAndWord.ReplaceAllString(text, ", ")
	text = leaderAmpersand.ReplaceAllString(text, ", ")

	var names []string
	for _, part := range strings.Split(text, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// parseLengthSeconds parses a raw length token. "M:SS" and "MM:SS" are
// minute:second times; a bare integer is whole minutes (the CSV Length
// column). Returns nil for empty or unrecognized tokens.
func parseLengthSeconds(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if m, sec, ok := strings.Cut(s, ":"); ok {
		minutes, err1 := strconv.Atoi(strings.TrimSpace(m))
		seconds, err2 := strconv.Atoi(strings.TrimSpace(sec))
		if err1 != nil || err2 != nil || minutes < 0 || seconds < 0 || seconds > 59 {
			return nil
		}
		total := minutes*60 + seconds
		return &total
	}
	minutes, err := strconv.Atoi(s)
	if err != nil || minutes < 0 {
		return nil
	}
	total := minutes * 60
	return &total
}

// Normalize cleans and parses a raw service record. Song entries that fail
// to parse are dropped and reported as row errors; the rest of the record
// survives. A record whose date cannot be parsed is returned with a zero
// Date, which the caller treats as a skipped service.
func Normalize(raw RawServiceRecord) (NormalizedServiceRecord, []ImportError) {
	var errs []ImportError

	rec := NormalizedServiceRecord{
		File:         raw.File,
		Name:         cleanText(raw.NameText),
		BandNotes:    strings.TrimSpace(raw.BandNotes),
		ServiceNotes: strings.TrimSpace(raw.ServiceNotes),
	}

	date, err := ParseDate(raw.DateText)
	if err != nil {
		errs = append(errs, ImportError{
			Kind: KindRowParse,
			File: raw.File,
			Msg:  fmt.Sprintf("service %q: %v", rec.Name, err),
		})
	} else {
		rec.Date = date
	}

	seen := make(map[int]bool, len(raw.Songs))
	for _, song := range raw.Songs {
		order, err := strconv.Atoi(strings.TrimSpace(song.OrderText))
		if err != nil || order <= 0 {
			errs = append(errs, ImportError{
				Kind: KindRowParse,
				File: raw.File,
				Line: song.Line,
				Msg:  fmt.Sprintf("invalid song order %q", song.OrderText),
			})
			continue
		}
		if seen[order] {
			errs = append(errs, ImportError{
				Kind: KindRowParse,
				File: raw.File,
				Line: song.Line,
				Msg:  fmt.Sprintf("duplicate song order %d", order),
			})
			continue
		}
		seen[order] = true

		rec.Songs = append(rec.Songs, NormalizedSongEntry{
			Line:             song.Line,
			Order:            order,
			SongID:           strings.TrimSpace(song.SongID),
			Title:            cleanText(song.Title),
			Artist:           cleanText(song.Artist),
			DefaultKey:       strings.TrimSpace(song.DefaultKey),
			RequestedKey:     strings.TrimSpace(song.KeyUsed),
			LengthSeconds:    parseLengthSeconds(song.LengthText),
			LeaderCandidates: SplitLeaders(song.LeaderText),
			LeadPersonID:     strings.TrimSpace(song.LeadPersonID),
		})
	}

	return rec, errs
}
