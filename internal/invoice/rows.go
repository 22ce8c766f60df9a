package invoice

import (
	"sort"
	"strings"

	"invoicelens/internal/ocr"
)

// rowTolerance is the maximum vertical distance, in pixels, between a
// segment's center and the running center of a row for the segment to join
// that row.
const rowTolerance = 15.0

// groupRows clusters segments into visual rows by vertical alignment and
// orders each row left to right. Segments without geometry cannot be
// clustered and become single-segment rows, in input order, after the
// positioned rows.
func groupRows(segments []ocr.Segment) [][]ocr.Segment {
	var boxed, unboxed []ocr.Segment
	for _, s := range segments {
		if s.HasBox {
			boxed = append(boxed, s)
		} else {
			unboxed = append(unboxed, s)
		}
	}

	sort.SliceStable(boxed, func(i, j int) bool {
		return boxed[i].Box.Top < boxed[j].Box.Top
	})

	var rows [][]ocr.Segment
	currentCenter := -1.0
	for _, seg := range boxed {
		center := seg.Box.CenterY()
		if len(rows) == 0 || absFloat(center-currentCenter) > rowTolerance {
			rows = append(rows, []ocr.Segment{seg})
			currentCenter = center
			continue
		}
		last := append(rows[len(rows)-1], seg)
		rows[len(rows)-1] = last

		// Re-center on the mean so slightly skewed scans keep rows together.
		var sum float64
		for _, s := range last {
			sum += s.Box.CenterY()
		}
		currentCenter = sum / float64(len(last))
	}

	for i := range rows {
		sort.SliceStable(rows[i], func(a, b int) bool {
			return rows[i][a].Box.Left < rows[i][b].Box.Left
		})
	}

	// A segment without geometry is one full text line from the engine;
	// whitespace runs are the only column separators available.
	for _, seg := range unboxed {
		fields := strings.Fields(seg.Text)
		row := make([]ocr.Segment, 0, len(fields))
		for _, f := range fields {
			row = append(row, ocr.Segment{Text: f, Confidence: seg.Confidence})
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
