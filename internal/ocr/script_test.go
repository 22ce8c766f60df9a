package ocr

import (
	"strings"
	"testing"
)

func TestParseScriptOutput_Segments(t *testing.T) {
	data := []byte(`{
		"status": "success",
		"segments": [
			{"text": "請求書", "confidence": 0.98, "bbox": [[10,20],[110,20],[110,44],[10,44]]},
			{"text": "low", "confidence": 0.2, "bbox": [[10,60],[50,60],[50,80],[10,80]]},
			{"text": "  ", "confidence": 0.9},
			{"text": "no box", "confidence": 0.7}
		]
	}`)

	segments, err := parseScriptOutput(data, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segments), segments)
	}

	first := segments[0]
	if first.Text != "請求書" || !first.HasBox {
		t.Errorf("first segment = %+v", first)
	}
	if first.Box.Left != 10 || first.Box.Top != 20 || first.Box.Right != 110 || first.Box.Bottom != 44 {
		t.Errorf("first box = %+v", first.Box)
	}

	second := segments[1]
	if second.Text != "no box" || second.HasBox {
		t.Errorf("second segment = %+v", second)
	}
}

func TestParseScriptOutput_LegacyExtractedText(t *testing.T) {
	data := []byte(`{
		"status": "success",
		"extracted_text": "--- Page 1 ---\n請求書\n合計 1,000\n\n--- Page 2 ---\n備考"
	}`)

	segments, err := parseScriptOutput(data, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"請求書", "合計 1,000", "備考"}
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(segments), segments)
	}
	for i, w := range want {
		if segments[i].Text != w {
			t.Errorf("segment[%d] = %q, want %q", i, segments[i].Text, w)
		}
		if segments[i].HasBox {
			t.Errorf("segment[%d] should have no box", i)
		}
	}
}

func TestParseScriptOutput_ErrorStatus(t *testing.T) {
	_, err := parseScriptOutput([]byte(`{"status":"error","message":"easyocr not installed"}`), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "easyocr not installed") {
		t.Errorf("error should carry script message, got %v", err)
	}
}

func TestParseScriptOutput_ErrorStatusWithoutMessage(t *testing.T) {
	_, err := parseScriptOutput([]byte(`{"status":"failed"}`), 0)
	if err == nil || !strings.Contains(err.Error(), "unknown error") {
		t.Errorf("got %v", err)
	}
}

func TestParseScriptOutput_BadJSON(t *testing.T) {
	if _, err := parseScriptOutput([]byte("Traceback (most recent call last):"), 0); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestQuadToBox(t *testing.T) {
	// Rotated quad still yields the axis-aligned bounding rectangle.
	box, ok := quadToBox([][]float64{{50, 10}, {90, 30}, {60, 70}, {20, 40}})
	if !ok {
		t.Fatal("expected a box")
	}
	if box.Left != 20 || box.Top != 10 || box.Right != 90 || box.Bottom != 70 {
		t.Errorf("box = %+v", box)
	}

	if _, ok := quadToBox([][]float64{{0, 0}, {1, 1}}); ok {
		t.Error("two points should not form a box")
	}
	if _, ok := quadToBox([][]float64{{0, 0}, {1}, {2, 2}, {3, 3}}); ok {
		t.Error("malformed point should not form a box")
	}
	if _, ok := quadToBox(nil); ok {
		t.Error("nil quad should not form a box")
	}
}

func TestMeanConfidence(t *testing.T) {
	if got := MeanConfidence(nil); got != 0 {
		t.Errorf("MeanConfidence(nil) = %v", got)
	}
	segments := []Segment{{Confidence: 0.25}, {Confidence: 0.75}}
	if got := MeanConfidence(segments); got != 0.5 {
		t.Errorf("MeanConfidence = %v, want 0.5", got)
	}
}

func TestNewEngine(t *testing.T) {
	engine, err := New(Config{Engine: "script", ScriptPath: "./x.py"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.Name() != "script" {
		t.Errorf("engine name = %q", engine.Name())
	}

	if _, err := New(Config{Engine: "vision"}); err == nil {
		t.Error("vision engine without an api key should fail")
	}

	if _, err := New(Config{Engine: "carrier-pigeon"}); err == nil {
		t.Error("unknown engine should fail")
	}
}
