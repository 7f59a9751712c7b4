package importer

import (
	"regexp"
	"strconv"
	"strings"
)

// Song orders above this are assumed to be stray numbers (durations,
// years), not positions in a set list.
const maxTableOrder = 20

var (
	keyToken  = regexp.MustCompile(`^[A-G][b#]?m?$`)
	timeToken = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

	// Date shapes probed inside table cells, in priority order.
	cellDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`[A-Za-z]+\s+\d{1,2},?\s+\d{4}`),
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	}
)

// parsePDFTables walks extracted table grids row by row. Within a row the
// "order anchor" is the first purely numeric cell no greater than
// maxTableOrder; the two cells after it are title and artist, and the
// remaining cells are scanned for key-shaped, time-shaped, and leader
// tokens. Reports failure when no row yields an anchor, so the caller
// falls back to text parsing.
func parsePDFTables(file string, tables [][][]string) (RawServiceRecord, bool) {
	rec := RawServiceRecord{File: file}

	for _, table := range tables {
		for _, row := range table {
			cells := cleanCells(row)
			if len(cells) == 0 {
				continue
			}

			if rec.DateText == "" {
				rec.DateText = probeCellDate(firstNonEmpty(cells))
			}
			if rec.NameText == "" && len(cells) > 1 {
				name := strings.TrimSpace(strings.TrimSuffix(cells[1], "-"))
				if name != "" && name != "-" {
					rec.NameText = name
				}
			}

			anchor := -1
			for i, cell := range cells {
				if !digitsOnly(cell) {
					continue
				}
				if n, err := strconv.Atoi(cell); err == nil && n <= maxTableOrder {
					anchor = i
					break
				}
			}
			if anchor < 0 {
				continue
			}

			song := RawSongEntry{OrderText: cells[anchor]}
			if anchor+1 < len(cells) {
				song.Title = cells[anchor+1]
			}
			if anchor+2 < len(cells) {
				song.Artist = cells[anchor+2]
			}
			for i := anchor + 3; i < len(cells); i++ {
				cell := cells[i]
				switch {
				case cell == "":
				case keyToken.MatchString(cell) && song.KeyUsed == "":
					song.KeyUsed = cell
				case timeToken.MatchString(cell) && song.LengthText == "":
					song.LengthText = cell
				case strings.Contains(strings.ToLower(cell), "leads"):
					song.LeaderText = cell
				case song.LeaderText == "" && i == len(cells)-1:
					// Last column is the leader when nothing said so.
					song.LeaderText = cell
				}
			}

			if song.Title != "" {
				rec.Songs = append(rec.Songs, song)
			}
		}
	}

	return rec, len(rec.Songs) > 0
}

// cleanCells joins multi-line cell text into single-space strings and
// drops fully empty rows (returns nil for them).
func cleanCells(row []string) []string {
	empty := true
	cells := make([]string, len(row))
	for i, cell := range row {
		cells[i] = cleanText(cell)
		if cells[i] != "" {
			empty = false
		}
	}
	if empty {
		return nil
	}
	return cells
}

func firstNonEmpty(cells []string) string {
	for _, cell := range cells {
		if cell != "" {
			return cell
		}
	}
	return ""
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// probeCellDate returns the first date-shaped substring of the cell that
// actually parses, or "".
func probeCellDate(cell string) string {
	if cell == "" {
		return ""
	}
	for _, pattern := range cellDatePatterns {
		match := pattern.FindString(cell)
		if match == "" {
			continue
		}
		if _, err := ParseDate(match); err == nil {
			return match
		}
	}
	return ""
}
