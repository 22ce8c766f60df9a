package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	defaultScriptTimeout = 2 * time.Minute
	stderrTailBytes      = 400
)

// ScriptEngine shells out to the EasyOCR Python script. The script receives
// the image path as its first argument and prints a JSON document on stdout:
//
//	{"status":"success","segments":[{"text":"...","confidence":0.93,
//	 "bbox":[[x,y],[x,y],[x,y],[x,y]]}, ...]}
//
// Older revisions of the script print {"status","message","extracted_text"}
// instead; that form is accepted and split into one segment per line.
type ScriptEngine struct {
	Python        string
	Script        string
	Languages     []string
	Timeout       time.Duration
	MinConfidence float64
}

// NewScriptEngine returns a ScriptEngine with defaults filled in from cfg.
func NewScriptEngine(cfg Config) *ScriptEngine {
	python := cfg.PythonBin
	if python == "" {
		python = "python3"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultScriptTimeout
	}
	return &ScriptEngine{
		Python:        python,
		Script:        cfg.ScriptPath,
		Languages:     cfg.Languages,
		Timeout:       timeout,
		MinConfidence: cfg.MinConfidence,
	}
}

func (e *ScriptEngine) Name() string { return "script" }

// EnsureBinary checks that the Python interpreter is available on PATH.
func (e *ScriptEngine) EnsureBinary() error {
	if _, err := exec.LookPath(e.Python); err != nil {
		return fmt.Errorf("python binary not found (%s): %w", e.Python, err)
	}
	return nil
}

// Recognize runs the script synchronously and parses its stdout.
func (e *ScriptEngine) Recognize(ctx context.Context, imagePath string) ([]Segment, error) {
	if e.Script == "" {
		return nil, errors.New("ocr script path is not configured")
	}

	args := []string{e.Script, imagePath}
	if len(e.Languages) > 0 {
		args = append(args, "--langs", strings.Join(e.Languages, ","))
	}

	cmdCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, e.Python, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("ocr script timed out after %s: %s", e.Timeout, tail(stderr.Bytes()))
		}
		return nil, fmt.Errorf("ocr script: %w - %s", err, tail(stderr.Bytes()))
	}

	return parseScriptOutput(stdout.Bytes(), e.MinConfidence)
}

type scriptOutput struct {
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	Segments      []scriptSegment `json:"segments"`
	ExtractedText string          `json:"extracted_text"`
}

type scriptSegment struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	BBox       [][]float64 `json:"bbox"`
}

// parseScriptOutput decodes the script's JSON payload and drops segments
// below the confidence floor.
func parseScriptOutput(data []byte, minConfidence float64) ([]Segment, error) {
	var out scriptOutput
	if err := json.Unmarshal(bytes.TrimSpace(data), &out); err != nil {
		return nil, fmt.Errorf("decode ocr output: %w", err)
	}

	if out.Status != "" && out.Status != "success" {
		msg := out.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("ocr script reported %s: %s", out.Status, msg)
	}

	if len(out.Segments) == 0 && out.ExtractedText != "" {
		return textSegments(out.ExtractedText), nil
	}

	segments := make([]Segment, 0, len(out.Segments))
	for _, s := range out.Segments {
		if s.Confidence < minConfidence {
			continue
		}
		seg := Segment{Text: strings.TrimSpace(s.Text), Confidence: s.Confidence}
		if seg.Text == "" {
			continue
		}
		if box, ok := quadToBox(s.BBox); ok {
			seg.Box = box
			seg.HasBox = true
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// quadToBox converts an EasyOCR four-corner bbox to an axis-aligned rect.
func quadToBox(quad [][]float64) (Box, bool) {
	if len(quad) != 4 {
		return Box{}, false
	}
	for _, pt := range quad {
		if len(pt) != 2 {
			return Box{}, false
		}
	}
	box := Box{
		Left:   quad[0][0],
		Top:    quad[0][1],
		Right:  quad[0][0],
		Bottom: quad[0][1],
	}
	for _, pt := range quad[1:] {
		if pt[0] < box.Left {
			box.Left = pt[0]
		}
		if pt[0] > box.Right {
			box.Right = pt[0]
		}
		if pt[1] < box.Top {
			box.Top = pt[1]
		}
		if pt[1] > box.Bottom {
			box.Bottom = pt[1]
		}
	}
	return box, true
}

// textSegments splits plain OCR text into one segment per line, skipping the
// "--- Page N ---" markers the legacy script emits between pages.
func textSegments(text string) []Segment {
	var segments []Segment
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--- Page") {
			continue
		}
		segments = append(segments, Segment{Text: line, Confidence: 1})
	}
	return segments
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTailBytes {
		s = "..." + s[len(s)-stderrTailBytes:]
	}
	return s
}
