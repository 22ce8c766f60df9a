package main

import (
	"log"
	"net/http"
	"time"

	"invoicelens/internal/api"
	"invoicelens/internal/config"
	"invoicelens/internal/db"
	"invoicelens/internal/ocr"
	"invoicelens/internal/services"
)

func main() {
	cfg := config.Load()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer conn.Close()

	engine, err := ocr.New(ocr.Config{
		Engine:         cfg.Engine,
		PythonBin:      cfg.PythonBin,
		ScriptPath:     cfg.ScriptPath,
		Languages:      cfg.Languages,
		Timeout:        cfg.OCRTimeout,
		MinConfidence:  cfg.MinConfidence,
		OpenAIKey:      cfg.OpenAIKey,
		OpenAIEndpoint: cfg.OpenAIEndpoint,
		VisionModel:    cfg.VisionModel,
	})
	if err != nil {
		log.Fatalf("build ocr engine: %v", err)
	}
	if scriptEngine, ok := engine.(*ocr.ScriptEngine); ok {
		if err := scriptEngine.EnsureBinary(); err != nil {
			log.Fatalf("check ocr engine: %v", err)
		}
	}

	documentService := services.NewDocumentService(conn, cfg.UploadDir)
	extractionService := services.NewExtractionService(conn, documentService, engine, services.ExtractionOptions{
		RenderDPI:    cfg.RenderDPI,
		MaxImageEdge: cfg.MaxImageEdge,
		KeepUploads:  cfg.KeepUploads,
	})

	server := api.NewServer(extractionService, cfg.MaxUploadBytes())
	mux := http.NewServeMux()

	mux.HandleFunc("/", serveFile("./internal/web/index.html"))

	mux.Handle("/api", server.Handler())
	mux.Handle("/api/", server.Handler())

	log.Printf("ocr engine: %s, listening on :%s", engine.Name(), cfg.Port)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

func serveFile(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		http.ServeFile(w, r, path)
	}
}
