package ocr

import (
	"image"
	"testing"

	"github.com/otiai10/gosseract/v2"
)

func TestWordSegments_ConfidenceFloor(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Word: "請求書", Confidence: 92, Box: image.Rect(10, 20, 110, 44)},
		{Word: "smudge", Confidence: 31, Box: image.Rect(10, 60, 80, 80)},
		{Word: "  ", Confidence: 99, Box: image.Rect(10, 90, 30, 110)},
		{Word: "合計", Confidence: 50, Box: image.Rect(10, 120, 60, 140)},
	}

	segments := wordSegments(boxes, 0.5)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segments), segments)
	}

	first := segments[0]
	if first.Text != "請求書" || first.Confidence != 0.92 {
		t.Errorf("first segment = %+v", first)
	}
	if !first.HasBox || first.Box.Left != 10 || first.Box.Top != 20 || first.Box.Right != 110 || first.Box.Bottom != 44 {
		t.Errorf("first box = %+v", first.Box)
	}

	// A word exactly at the floor survives.
	if segments[1].Text != "合計" || segments[1].Confidence != 0.5 {
		t.Errorf("second segment = %+v", segments[1])
	}
}

func TestWordSegments_NoFloor(t *testing.T) {
	boxes := []gosseract.BoundingBox{
		{Word: "anything", Confidence: 1, Box: image.Rect(0, 0, 10, 10)},
	}
	segments := wordSegments(boxes, 0)
	if len(segments) != 1 {
		t.Fatalf("segments = %+v", segments)
	}
}

func TestTesseractLanguages(t *testing.T) {
	got := tesseractLanguages([]string{"ja", " en ", "deu", "JPN"})
	want := []string{"jpn", "eng", "deu", "jpn"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewTesseractEngineCarriesFloor(t *testing.T) {
	engine, err := New(Config{Engine: "tesseract", MinConfidence: 0.6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	te, ok := engine.(*TesseractEngine)
	if !ok {
		t.Fatalf("engine = %T", engine)
	}
	if te.MinConfidence != 0.6 {
		t.Errorf("min confidence = %v, want 0.6", te.MinConfidence)
	}
}
