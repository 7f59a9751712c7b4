package pdfext

import (
	"context"
	"testing"

	"github.com/ledongthuc/pdf"
)

func frag(s string, x, w float64) pdf.Text {
	return pdf.Text{S: s, X: x, W: w}
}

func TestSplitCells(t *testing.T) {
	tests := []struct {
		name      string
		fragments []pdf.Text
		want      []string
	}{
		{
			name: "gap starts a new cell",
			fragments: []pdf.Text{
				frag("Trust ", 10, 30),
				frag("in God", 40, 30),
				frag("Elevation Worship", 120, 80),
			},
			want: []string{"Trust in God", "Elevation Worship"},
		},
		{
			name: "adjacent fragments stay in one cell",
			fragments: []pdf.Text{
				frag("Sunday", 10, 40),
				frag(" Morning", 50, 40),
			},
			want: []string{"Sunday Morning"},
		},
		{
			name: "whitespace-only cells are dropped",
			fragments: []pdf.Text{
				frag("  ", 10, 10),
				frag("1", 100, 5),
			},
			want: []string{"1"},
		},
		{
			name:      "empty row",
			fragments: nil,
			want:      nil,
		},
		{
			name: "three columns",
			fragments: []pdf.Text{
				frag("1", 10, 5),
				frag("Cornerstone", 60, 70),
				frag("Hillsong Worship", 200, 90),
			},
			want: []string{"1", "Cornerstone", "Hillsong Worship"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitCells(tt.fragments)
			if len(got) != len(tt.want) {
				t.Fatalf("splitCells() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("cell[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtract_MalformedPDF(t *testing.T) {
	e := New()
	if _, err := e.Extract(context.Background(), []byte("not a pdf at all")); err == nil {
		t.Fatal("Extract() expected error for malformed input")
	}
}
