package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// Column labels of the CSV import schema. Labels are case-sensitive and
// must appear in the header row; column order is free.
const (
	colServiceDate    = "Service Date"
	colServiceName    = "Service Name"
	colSongOrder      = "Song Order"
	colSongID         = "Song ID"
	colSongTitle      = "Song Title"
	colSongArtist     = "Song Artist"
	colSongDefaultKey = "Song Default Key"
	colKeyUsed        = "Key Used"
	colLength         = "Length"
	colLeadPersonID   = "Lead Person ID"
	colBandNotes      = "Band Notes"
	colServiceNotes   = "Service Notes"
)

// TemplateHeader is the canonical column order, used by the template
// generator and kept here next to the labels it mirrors.
var TemplateHeader = []string{
	colServiceDate, colServiceName, colSongOrder, colSongID, colSongTitle,
	colSongArtist, colSongDefaultKey, colKeyUsed, colLength,
	colLeadPersonID, colBandNotes, colServiceNotes,
}

// The CSV schema dates are strict ISO; looser layouts are only for PDFs.
const csvDateLayout = "2006-01-02"

// parseCSV reads a row-oriented service export and groups rows into one
// RawServiceRecord per distinct (date, name) pair, in first-seen order.
// Malformed rows are reported and skipped without discarding the file;
// an unreadable file is reported as a file-format failure and yields nil.
func parseCSV(file string, data []byte, report *Report) []RawServiceRecord {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // ragged rows are handled per cell

	header, err := reader.Read()
	if err != nil {
		report.Add(KindFileFormat, file, 0, "cannot read CSV header: %v", err)
		return nil
	}
	idx := make(map[string]int, len(header))
	for i, label := range header {
		// Windows exports often carry a UTF-8 BOM on the first label.
		idx[strings.TrimSpace(strings.TrimPrefix(label, "\uFEFF"))] = i
	}

	cell := func(row []string, label string) string {
		i, ok := idx[label]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	type serviceKey struct {
		date time.Time
		name string
	}
	var order []serviceKey
	records := make(map[serviceKey]*RawServiceRecord)

	line := 1
	for {
		line++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Add(KindRowParse, file, line, "unreadable row: %v", err)
			continue
		}
		if isEmptyRow(row) {
			continue
		}

		dateText := cell(row, colServiceDate)
		nameText := cell(row, colServiceName)
		if dateText == "" || nameText == "" {
			report.Add(KindRowParse, file, line, "missing required field %q",
				missingLabel(dateText, nameText))
			continue
		}
		date, err := time.Parse(csvDateLayout, dateText)
		if err != nil {
			report.Add(KindRowParse, file, line, "invalid date format %q", dateText)
			continue
		}

		key := serviceKey{date: date, name: nameText}
		rec, ok := records[key]
		if !ok {
			rec = &RawServiceRecord{
				File:         file,
				DateText:     dateText,
				NameText:     nameText,
				BandNotes:    cell(row, colBandNotes),
				ServiceNotes: cell(row, colServiceNotes),
			}
			records[key] = rec
			order = append(order, key)
		}

		// Rows without a song order (or any song identity) contribute only
		// service-level fields.
		orderText := cell(row, colSongOrder)
		songID := cell(row, colSongID)
		title := cell(row, colSongTitle)
		if orderText == "" || (songID == "" && title == "") {
			continue
		}

		rec.Songs = append(rec.Songs, RawSongEntry{
			Line:         line,
			OrderText:    orderText,
			SongID:       songID,
			Title:        title,
			Artist:       cell(row, colSongArtist),
			DefaultKey:   cell(row, colSongDefaultKey),
			KeyUsed:      cell(row, colKeyUsed),
			LengthText:   cell(row, colLength),
			LeadPersonID: cell(row, colLeadPersonID),
		})
	}

	out := make([]RawServiceRecord, 0, len(order))
	for _, key := range order {
		out = append(out, *records[key])
	}
	return out
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func missingLabel(dateText, nameText string) string {
	if dateText == "" {
		return colServiceDate
	}
	return colServiceName
}

// WriteTemplate writes the canonical CSV header plus example rows, the
// same shape the importer accepts.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		TemplateHeader,
		{"2025-02-02", "Sunday Morning Worship", "1", "S001", "Trust in God",
			"Elevation Worship", "D", "D", "5", "P004",
			"Start with slow intro", "Communion service"},
		{"2025-02-02", "Sunday Morning Worship", "2", "S002", "Faithful Now",
			"Vertical Worship", "G", "G", "4", "P002", "", ""},
		{"2025-02-09", "Sunday Evening Service", "1", "S006", "Oceans",
			"Hillsong United", "A", "A", "6", "P007", "", "Youth focus"},
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write template row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
