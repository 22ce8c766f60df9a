package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"invoicelens/internal/models"
	"invoicelens/internal/services"
)

const maxMultipartMemory = 8 << 20 // 8 MB

// InvoiceService is the extraction pipeline the API depends on.
type InvoiceService interface {
	ProcessUpload(ctx context.Context, originalName string, src io.Reader, progress services.ProgressCallback) (*services.ExtractionRecord, error)
	Rerun(ctx context.Context, id int64, progress services.ProgressCallback) (*services.ExtractionRecord, error)
	Update(ctx context.Context, id int64, upd services.ExtractionUpdate) (*services.ExtractionRecord, error)
	Get(ctx context.Context, id int64) (*services.ExtractionRecord, error)
	List(ctx context.Context, limit int) ([]services.ExtractionRecord, error)
	Delete(ctx context.Context, id int64) error
}

type Server struct {
	mux            *http.ServeMux
	invoices       InvoiceService
	jobs           *JobManager
	maxUploadBytes int64
}

// InvoiceResult is the per-file payload returned by uploads and jobs.
type InvoiceResult struct {
	ExtractionID int64          `json:"extractionId,omitempty"`
	Name         string         `json:"name"`
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	Invoice      map[string]any `json:"invoice,omitempty"`
}

func NewServer(invoices InvoiceService, maxUploadBytes int64) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		invoices:       invoices,
		jobs:           NewJobManager(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/invoices", s.handleInvoices)
	s.mux.HandleFunc("/api/invoices/", s.handleInvoiceActions)
	s.mux.HandleFunc("/api/invoices/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/invoices/jobs/", s.handleJobStatus)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListInvoices(w, r)
	case http.MethodPost:
		s.handleUploadInvoice(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if l, err := strconv.Atoi(raw); err == nil && l > 0 {
			limit = l
		}
	}

	records, err := s.invoices.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(records))
	for i := range records {
		out = append(out, extractionView(&records[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": out})
}

// handleUploadInvoice is the synchronous flow: validate the upload, process
// it, and return the extraction (or the error) in one round trip.
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.uploadedFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	record, err := s.invoices.ProcessUpload(r.Context(), header.Filename, file, nil)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("process %s: %v", header.Filename, err)
		status := http.StatusBadGateway
		body := map[string]any{"error": err.Error()}
		if record != nil {
			body["invoice"] = extractionView(record)
		}
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"invoice": extractionView(record)})
}

func (s *Server) uploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return nil, nil, false
	}

	if s.maxUploadBytes > 0 && header.Size > s.maxUploadBytes {
		file.Close()
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("file exceeds %d MB limit", s.maxUploadBytes>>20))
		return nil, nil, false
	}
	return file, header, true
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/invoices/jobs" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	form := r.MultipartForm
	if form == nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	for _, file := range files {
		if s.maxUploadBytes > 0 && file.Size > s.maxUploadBytes {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("%s exceeds %d MB limit", file.Filename, s.maxUploadBytes>>20))
			return
		}
	}

	// net/http removes the form's temp files as soon as this handler
	// returns, so copy every upload somewhere the job goroutine owns.
	staged, err := stageFiles(files)
	if err != nil {
		log.Printf("stage uploads: %v", err)
		writeError(w, http.StatusInternalServerError, "could not store uploads")
		return
	}

	fileNames := make([]string, len(staged))
	for i, file := range staged {
		fileNames[i] = file.name
	}

	jobID, snapshot := s.jobs.CreateJob(fileNames)

	go s.runUploadJob(context.Background(), jobID, staged)

	writeJSON(w, http.StatusAccepted, snapshot)
}

// jobFile is an upload copied out of a multipart form; path outlives the
// request that carried it.
type jobFile struct {
	name string
	path string
}

func stageFiles(headers []*multipart.FileHeader) ([]jobFile, error) {
	staged := make([]jobFile, 0, len(headers))
	discard := func() {
		for _, f := range staged {
			os.Remove(f.path)
		}
	}

	for _, header := range headers {
		src, err := header.Open()
		if err != nil {
			discard()
			return nil, fmt.Errorf("open %s: %w", header.Filename, err)
		}

		tmp, err := os.CreateTemp("", "upload-*")
		if err != nil {
			src.Close()
			discard()
			return nil, fmt.Errorf("stage %s: %w", header.Filename, err)
		}
		_, err = io.Copy(tmp, src)
		src.Close()
		if closeErr := tmp.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(tmp.Name())
			discard()
			return nil, fmt.Errorf("stage %s: %w", header.Filename, err)
		}

		staged = append(staged, jobFile{name: header.Filename, path: tmp.Name()})
	}
	return staged, nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/invoices/jobs/")
	jobID = strings.Trim(jobID, "/")
	if jobID == "" {
		http.NotFound(w, r)
		return
	}

	job, ok := s.jobs.GetJob(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func (s *Server) runUploadJob(ctx context.Context, jobID string, files []jobFile) {
	defer func() {
		for _, file := range files {
			_ = os.Remove(file.path)
		}
	}()

	s.jobs.MarkProcessing(jobID)
	for idx, file := range files {
		s.jobs.MarkFileStarted(jobID, idx)
		progress := func(step, message string, current, total int) {
			s.jobs.UpdateFileProgress(jobID, idx, step, message, current, total)
		}
		result, err := s.processFile(ctx, file, progress)
		if err != nil {
			s.jobs.MarkFileError(jobID, idx, err.Error(), result)
			continue
		}
		s.jobs.MarkFileComplete(jobID, idx, result)
	}
	s.jobs.MarkCompleted(jobID)
}

func (s *Server) processFile(ctx context.Context, file jobFile, progress services.ProgressCallback) (InvoiceResult, error) {
	result := InvoiceResult{
		Name:   file.name,
		Status: FileStatusError,
	}

	src, err := os.Open(file.path)
	if err != nil {
		result.Message = err.Error()
		return result, fmt.Errorf("open file %s: %w", file.name, err)
	}
	defer src.Close()

	record, err := s.invoices.ProcessUpload(ctx, file.name, src, progress)
	if record != nil {
		result.ExtractionID = record.ID
		result.Invoice = extractionView(record)
	}
	if err != nil {
		result.Message = err.Error()
		return result, err
	}

	result.Status = FileStatusComplete
	return result, nil
}

func (s *Server) handleInvoiceActions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/invoices/")
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid invoice id")
		return
	}

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s.handleGetInvoice(w, r, id)
		case http.MethodPut:
			s.handleUpdateInvoice(w, r, id)
		case http.MethodDelete:
			s.handleDeleteInvoice(w, r, id)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "rerun":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		s.handleRerunInvoice(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request, id int64) {
	record, err := s.invoices.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": extractionView(record)})
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request, id int64) {
	if err := s.invoices.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRerunInvoice(w http.ResponseWriter, r *http.Request, id int64) {
	record, err := s.invoices.Rerun(r.Context(), id, nil)
	if err != nil {
		if errors.Is(err, services.ErrUploadGone) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": extractionView(record)})
}

type updateRequest struct {
	InvoiceNumber string            `json:"invoice_number"`
	InvoiceDate   string            `json:"invoice_date"`
	DueDate       string            `json:"due_date"`
	VendorName    string            `json:"vendor_name"`
	Subtotal      string            `json:"subtotal"`
	Tax           string            `json:"tax"`
	TotalAmount   string            `json:"total_amount"`
	Currency      string            `json:"currency"`
	Bank          bankView          `json:"bank"`
	LineItems     []lineItemPayload `json:"line_items"`
}

type bankView struct {
	BankName      string `json:"bank_name"`
	Branch        string `json:"branch"`
	AccountType   string `json:"account_type"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

type lineItemPayload struct {
	Description string `json:"description"`
	UnitPrice   string `json:"unit_price"`
	Quantity    string `json:"quantity"`
	Unit        string `json:"unit"`
	Amount      string `json:"amount"`
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request, id int64) {
	var payload updateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	upd := services.ExtractionUpdate{
		InvoiceNumber: payload.InvoiceNumber,
		InvoiceDate:   payload.InvoiceDate,
		DueDate:       payload.DueDate,
		VendorName:    payload.VendorName,
		Subtotal:      payload.Subtotal,
		Tax:           payload.Tax,
		TotalAmount:   payload.TotalAmount,
		Currency:      payload.Currency,
		BankName:      payload.Bank.BankName,
		BankBranch:    payload.Bank.Branch,
		AccountType:   payload.Bank.AccountType,
		AccountNumber: payload.Bank.AccountNumber,
		AccountHolder: payload.Bank.AccountHolder,
	}
	for _, item := range payload.LineItems {
		upd.LineItems = append(upd.LineItems, models.LineItem{
			Description: item.Description,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			Amount:      item.Amount,
		})
	}

	record, err := s.invoices.Update(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": extractionView(record)})
}

const timeLayout = time.RFC3339

func extractionView(record *services.ExtractionRecord) map[string]any {
	items := make([]map[string]any, 0, len(record.LineItems))
	for _, item := range record.LineItems {
		items = append(items, map[string]any{
			"description": item.Description,
			"unit_price":  item.UnitPrice,
			"quantity":    item.Quantity,
			"unit":        item.Unit,
			"amount":      item.Amount,
		})
	}

	return map[string]any{
		"id":             record.ID,
		"document_id":    record.DocumentID,
		"document_name":  record.DocumentName,
		"engine":         record.Engine,
		"status":         record.Status,
		"invoice_number": record.InvoiceNumber,
		"invoice_date":   record.InvoiceDate,
		"due_date":       record.DueDate,
		"vendor_name":    record.VendorName,
		"subtotal":       record.Subtotal,
		"tax":            record.Tax,
		"total_amount":   record.TotalAmount,
		"currency":       record.Currency,
		"bank": map[string]any{
			"bank_name":      record.BankName,
			"branch":         record.BankBranch,
			"account_type":   record.AccountType,
			"account_number": record.AccountNumber,
			"account_holder": record.AccountHolder,
		},
		"line_items":      items,
		"warnings":        record.Warnings,
		"mean_confidence": record.MeanConfidence,
		"created_at":      record.CreatedAt.Format(timeLayout),
		"updated_at":      record.UpdatedAt.Format(timeLayout),
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrExtractionNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
