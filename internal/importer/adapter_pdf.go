package importer

// The PDF adapters target a fixed family of planning-tool layouts through
// an ordered chain of extractors, not general document understanding.
// Each extractor reports whether it produced at least one song entry; the
// first that does wins. The final line-heuristic extractor always
// succeeds but may yield a record with no songs, which signals the caller
// to solicit manual entry.

// pdfExtractor is one strategy in the fallback chain.
type pdfExtractor struct {
	name string
	run  func() (RawServiceRecord, bool)
}

// parsePDF applies the extraction strategies in priority order:
// table grids, then the fixed-field text pattern, then line scanning.
func parsePDF(file string, ext Extraction) RawServiceRecord {
	chain := []pdfExtractor{
		{name: "table", run: func() (RawServiceRecord, bool) {
			return parsePDFTables(file, ext.Tables)
		}},
		{name: "pattern", run: func() (RawServiceRecord, bool) {
			return parsePDFTextPattern(file, ext.Text)
		}},
		{name: "lines", run: func() (RawServiceRecord, bool) {
			return parsePDFTextLines(file, ext.Text)
		}},
	}

	var rec RawServiceRecord
	for _, e := range chain {
		var ok bool
		rec, ok = e.run()
		if ok {
			break
		}
	}

	if rec.NameText == "" {
		if date, err := ParseDate(rec.DateText); err == nil {
			rec.NameText = "Service - " + date.Format("2006-01-02")
		} else {
			rec.NameText = "Imported Service"
		}
	}
	return rec
}
