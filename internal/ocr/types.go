package ocr

import (
	"context"
	"time"
)

// Segment is one recognized text fragment. Engines that report geometry set
// HasBox so the invoice parser can reconstruct visual rows; engines without
// geometry leave it false and each segment is treated as its own row.
type Segment struct {
	Text       string
	Confidence float64
	Box        Box
	HasBox     bool
}

// Box is the axis-aligned bounding rectangle of a segment in image pixels.
type Box struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// CenterY returns the vertical midpoint of the box.
func (b Box) CenterY() float64 {
	return (b.Top + b.Bottom) / 2
}

// Engine runs optical character recognition over a single prepared image.
type Engine interface {
	// Name identifies the engine in extraction records ("script",
	// "tesseract", "vision").
	Name() string

	// Recognize returns the text segments found in the image at imagePath.
	Recognize(ctx context.Context, imagePath string) ([]Segment, error)
}

// Config selects and parameterizes an Engine.
type Config struct {
	Engine        string
	PythonBin     string
	ScriptPath    string
	Languages     []string
	Timeout       time.Duration
	MinConfidence float64

	// Vision engine settings
	OpenAIKey      string
	OpenAIEndpoint string
	VisionModel    string
}

// MeanConfidence averages segment confidences; zero for an empty slice.
func MeanConfidence(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range segments {
		sum += s.Confidence
	}
	return sum / float64(len(segments))
}
