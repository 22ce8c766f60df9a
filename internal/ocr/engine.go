package ocr

import (
	"errors"
	"fmt"
)

// ErrVisionUnavailable is returned when the vision engine is selected but no
// API key is configured.
var ErrVisionUnavailable = errors.New("vision engine requires an OpenAI API key")

// New builds the engine named by cfg.Engine. An empty name selects the
// script engine.
func New(cfg Config) (Engine, error) {
	switch cfg.Engine {
	case "", "script":
		return NewScriptEngine(cfg), nil
	case "tesseract":
		return NewTesseractEngine(cfg.Languages, cfg.MinConfidence), nil
	case "vision":
		if cfg.OpenAIKey == "" {
			return nil, ErrVisionUnavailable
		}
		return NewVisionEngine(cfg.OpenAIKey, cfg.OpenAIEndpoint, cfg.VisionModel), nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.Engine)
	}
}
