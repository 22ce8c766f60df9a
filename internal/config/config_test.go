package config

import (
	"path/filepath"
	"testing"
	"time"
)

// pointStorageAt keeps Load from creating ./data in the working directory.
func pointStorageAt(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("DATABASE_PATH", filepath.Join(dir, "invoices.db"))
}

func TestLoadDefaults(t *testing.T) {
	pointStorageAt(t, t.TempDir())

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.Engine != "script" {
		t.Errorf("engine = %q", cfg.Engine)
	}
	if cfg.PythonBin != "python3" {
		t.Errorf("python = %q", cfg.PythonBin)
	}
	if cfg.OCRTimeout != 120*time.Second {
		t.Errorf("timeout = %v", cfg.OCRTimeout)
	}
	if cfg.MinConfidence != 0.5 {
		t.Errorf("min confidence = %v", cfg.MinConfidence)
	}
	if cfg.RenderDPI != 180 || cfg.MaxImageEdge != 2400 {
		t.Errorf("render dpi = %d, max edge = %d", cfg.RenderDPI, cfg.MaxImageEdge)
	}
	if cfg.MaxUploadMB != 25 {
		t.Errorf("max upload = %d", cfg.MaxUploadMB)
	}
	if cfg.KeepUploads {
		t.Error("uploads should not be kept by default")
	}
	if len(cfg.Languages) != 2 || cfg.Languages[0] != "ja" || cfg.Languages[1] != "en" {
		t.Errorf("languages = %v", cfg.Languages)
	}
}

func TestLoadOverrides(t *testing.T) {
	pointStorageAt(t, t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("OCR_ENGINE", "tesseract")
	t.Setenv("OCR_LANGUAGES", " ja , en ,fr,")
	t.Setenv("OCR_TIMEOUT_SECONDS", "30")
	t.Setenv("KEEP_UPLOADS", "true")
	t.Setenv("MAX_UPLOAD_MB", "5")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.Engine != "tesseract" {
		t.Errorf("engine = %q", cfg.Engine)
	}
	if cfg.OCRTimeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.OCRTimeout)
	}
	if !cfg.KeepUploads {
		t.Error("KEEP_UPLOADS=true should stick")
	}
	want := []string{"ja", "en", "fr"}
	if len(cfg.Languages) != len(want) {
		t.Fatalf("languages = %v", cfg.Languages)
	}
	for i, lang := range want {
		if cfg.Languages[i] != lang {
			t.Errorf("languages[%d] = %q, want %q", i, cfg.Languages[i], lang)
		}
	}
	if cfg.MaxUploadBytes() != 5<<20 {
		t.Errorf("max upload bytes = %d", cfg.MaxUploadBytes())
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	pointStorageAt(t, t.TempDir())
	t.Setenv("OCR_TIMEOUT_SECONDS", "soon")
	t.Setenv("MIN_CONFIDENCE", "high")
	t.Setenv("KEEP_UPLOADS", "maybe")

	cfg := Load()

	if cfg.OCRTimeout != 120*time.Second {
		t.Errorf("timeout = %v, want default", cfg.OCRTimeout)
	}
	if cfg.MinConfidence != 0.5 {
		t.Errorf("min confidence = %v, want default", cfg.MinConfidence)
	}
	if cfg.KeepUploads {
		t.Error("malformed KEEP_UPLOADS should fall back to false")
	}
}
