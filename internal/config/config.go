package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port        string
	Database    string
	UploadDir   string
	KeepUploads bool

	Engine        string
	PythonBin     string
	ScriptPath    string
	Languages     []string
	OCRTimeout    time.Duration
	MinConfidence float64

	RenderDPI    int
	MaxImageEdge int
	MaxUploadMB  int64

	OpenAIKey      string
	OpenAIEndpoint string
	VisionModel    string
}

// Load reads configuration from the environment, providing sensible defaults.
func Load() Config {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		Database:    getEnv("DATABASE_PATH", "./data/invoices.db"),
		UploadDir:   getEnv("UPLOAD_DIR", "./data/uploads"),
		KeepUploads: getBool("KEEP_UPLOADS", false),

		Engine:        getEnv("OCR_ENGINE", "script"),
		PythonBin:     getEnv("PYTHON_BIN", "python3"),
		ScriptPath:    getEnv("OCR_SCRIPT", "./scripts/process_invoice.py"),
		Languages:     splitList(getEnv("OCR_LANGUAGES", "ja,en")),
		OCRTimeout:    time.Duration(getInt("OCR_TIMEOUT_SECONDS", 120)) * time.Second,
		MinConfidence: getFloat("MIN_CONFIDENCE", 0.5),

		RenderDPI:    getInt("RENDER_DPI", 180),
		MaxImageEdge: getInt("MAX_IMAGE_EDGE", 2400),
		MaxUploadMB:  int64(getInt("MAX_UPLOAD_MB", 25)),

		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint: getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		VisionModel:    getEnv("OPENAI_VISION_MODEL", "gpt-4o-mini"),
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to ensure upload dir %s: %v", cfg.UploadDir, err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		log.Fatalf("failed to ensure database dir %s: %v", cfg.Database, err)
	}

	return cfg
}

// MaxUploadBytes converts the configured megabyte limit to bytes.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
