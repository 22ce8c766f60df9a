package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text in-process through the Tesseract C API.
// Word-level bounding boxes let the invoice parser rebuild table rows the
// same way it does for the script engine.
type TesseractEngine struct {
	Languages     []string
	MinConfidence float64
}

func NewTesseractEngine(languages []string, minConfidence float64) *TesseractEngine {
	return &TesseractEngine{Languages: languages, MinConfidence: minConfidence}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(e.Languages) > 0 {
		if err := client.SetLanguage(tesseractLanguages(e.Languages)...); err != nil {
			return nil, fmt.Errorf("set tesseract languages: %w", err)
		}
	}
	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("set tesseract image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract recognize: %w", err)
	}

	return wordSegments(boxes, e.MinConfidence), nil
}

// wordSegments converts tesseract word boxes to segments, dropping empty
// words and anything below the confidence floor.
func wordSegments(boxes []gosseract.BoundingBox, minConfidence float64) []Segment {
	segments := make([]Segment, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		confidence := b.Confidence / 100 // tesseract reports 0-100
		if word == "" || confidence < minConfidence {
			continue
		}
		segments = append(segments, Segment{
			Text:       word,
			Confidence: confidence,
			Box: Box{
				Left:   float64(b.Box.Min.X),
				Top:    float64(b.Box.Min.Y),
				Right:  float64(b.Box.Max.X),
				Bottom: float64(b.Box.Max.Y),
			},
			HasBox: true,
		})
	}
	return segments
}

// tesseractLanguages maps the EasyOCR-style codes used in config ("ja, en")
// to tesseract traineddata names.
func tesseractLanguages(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "ja", "jpn":
			out = append(out, "jpn")
		case "en", "eng":
			out = append(out, "eng")
		default:
			out = append(out, c)
		}
	}
	return out
}
