package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"invoicelens/internal/imaging"
	"invoicelens/internal/invoice"
	"invoicelens/internal/models"
	"invoicelens/internal/ocr"
)

var (
	// ErrExtractionNotFound is returned when no extraction has the given id.
	ErrExtractionNotFound = errors.New("extraction not found")
	// ErrUploadGone is returned on rerun when the stored upload was already
	// deleted (KEEP_UPLOADS was off when it was processed).
	ErrUploadGone = errors.New("original upload no longer available")
)

// ProgressCallback is called during document processing to report progress.
type ProgressCallback func(step, message string, current, total int)

// ExtractionOptions tune the prepare step and file retention.
type ExtractionOptions struct {
	RenderDPI    int
	MaxImageEdge int
	KeepUploads  bool
}

// ExtractionService coordinates upload storage, OCR, invoice parsing, and
// persistence of the results.
type ExtractionService struct {
	db        *sql.DB
	documents *DocumentService
	engine    ocr.Engine
	opts      ExtractionOptions
}

func NewExtractionService(db *sql.DB, documents *DocumentService, engine ocr.Engine, opts ExtractionOptions) *ExtractionService {
	return &ExtractionService{db: db, documents: documents, engine: engine, opts: opts}
}

// ExtractionRecord pairs an extraction with the name of its source document.
type ExtractionRecord struct {
	models.Extraction
	DocumentName string
}

// ProcessUpload stores the uploaded file, runs OCR and parsing on it, and
// persists the result. Unless KeepUploads is set, the stored file is removed
// afterwards whether processing succeeded or not.
func (s *ExtractionService) ProcessUpload(ctx context.Context, originalName string, src io.Reader, progress ProgressCallback) (*ExtractionRecord, error) {
	doc, err := s.documents.Create(ctx, originalName, src)
	if err != nil {
		return nil, err
	}

	record, err := s.run(ctx, doc, progress)

	if !s.opts.KeepUploads {
		if rmErr := s.documents.RemoveFile(doc); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return record, err
}

// Rerun repeats OCR over a previously kept upload, producing a fresh
// extraction for the same document.
func (s *ExtractionService) Rerun(ctx context.Context, extractionID int64, progress ProgressCallback) (*ExtractionRecord, error) {
	existing, err := s.Get(ctx, extractionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.GetByID(ctx, existing.DocumentID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(doc.StoredPath); err != nil {
		return nil, ErrUploadGone
	}
	return s.run(ctx, doc, progress)
}

func (s *ExtractionService) run(ctx context.Context, doc *models.Document, progress ProgressCallback) (*ExtractionRecord, error) {
	report := func(step, message string, current, total int) {
		if progress != nil {
			progress(step, message, current, total)
		}
	}

	report("prepare", "Preparing document", 10, 100)
	imagePath := doc.StoredPath
	if doc.MediaType == models.MediaPDF {
		rendered, cleanup, err := imaging.RenderFirstPage(doc.StoredPath, s.opts.RenderDPI)
		if err != nil {
			return s.recordFailure(ctx, doc, err)
		}
		defer cleanup()
		imagePath = rendered
	}

	normalized, err := os.CreateTemp("", "ocr-input-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	normalized.Close()
	defer os.Remove(normalized.Name())

	if err := imaging.Normalize(imagePath, normalized.Name(), s.opts.MaxImageEdge); err != nil {
		return s.recordFailure(ctx, doc, err)
	}

	report("recognize", "Running OCR", 30, 100)
	segments, err := s.engine.Recognize(ctx, normalized.Name())
	if err != nil {
		return s.recordFailure(ctx, doc, err)
	}

	report("parse", "Parsing invoice fields", 80, 100)
	parsed := invoice.Parse(segments)

	report("save", "Saving extraction", 90, 100)
	record, err := s.save(ctx, doc, parsed, ocr.MeanConfidence(segments), models.ExtractionComplete)
	if err != nil {
		return nil, err
	}
	report("complete", "Done", 100, 100)
	return record, nil
}

// recordFailure persists a failed extraction so the review UI can show what
// went wrong, then propagates the original error.
func (s *ExtractionService) recordFailure(ctx context.Context, doc *models.Document, cause error) (*ExtractionRecord, error) {
	failed := &invoice.Invoice{Warnings: []string{cause.Error()}}
	record, saveErr := s.save(ctx, doc, failed, 0, models.ExtractionFailed)
	if saveErr != nil {
		return nil, errors.Join(cause, saveErr)
	}
	return record, cause
}

func (s *ExtractionService) save(ctx context.Context, doc *models.Document, parsed *invoice.Invoice, confidence float64, status string) (*ExtractionRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO extractions (
			document_id, engine, status,
			invoice_number, invoice_date, due_date, vendor_name,
			subtotal, tax, total_amount, currency,
			bank_name, bank_branch, account_type, account_number, account_holder,
			raw_text, mean_confidence, warnings, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		doc.ID, s.engine.Name(), status,
		parsed.InvoiceNumber, parsed.InvoiceDate, parsed.DueDate, parsed.VendorName,
		parsed.Subtotal, parsed.Tax, parsed.TotalAmount, parsed.Currency,
		parsed.Bank.BankName, parsed.Bank.Branch, parsed.Bank.AccountType,
		parsed.Bank.AccountNumber, parsed.Bank.AccountHolder,
		parsed.RawText, confidence, joinWarnings(parsed.Warnings), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert extraction: %w", err)
	}
	extractionID, _ := res.LastInsertId()

	for i, item := range parsed.LineItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (extraction_id, position, description, unit_price, quantity, unit, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?);
		`, extractionID, i, item.Description, item.UnitPrice, item.Quantity, item.Unit, item.Amount); err != nil {
			return nil, fmt.Errorf("insert line item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit extraction: %w", err)
	}
	return s.Get(ctx, extractionID)
}

// ExtractionUpdate carries user edits from the review page. All fields are
// applied as-is; line items replace the stored set atomically.
type ExtractionUpdate struct {
	InvoiceNumber string
	InvoiceDate   string
	DueDate       string
	VendorName    string
	Subtotal      string
	Tax           string
	TotalAmount   string
	Currency      string
	BankName      string
	BankBranch    string
	AccountType   string
	AccountNumber string
	AccountHolder string
	LineItems     []models.LineItem
}

// Update applies review-page edits to an extraction inside one transaction.
func (s *ExtractionService) Update(ctx context.Context, id int64, upd ExtractionUpdate) (*ExtractionRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE extractions SET
			invoice_number = ?, invoice_date = ?, due_date = ?, vendor_name = ?,
			subtotal = ?, tax = ?, total_amount = ?, currency = ?,
			bank_name = ?, bank_branch = ?, account_type = ?, account_number = ?, account_holder = ?,
			updated_at = ?
		WHERE id = ?;
	`,
		upd.InvoiceNumber, upd.InvoiceDate, upd.DueDate, upd.VendorName,
		upd.Subtotal, upd.Tax, upd.TotalAmount, upd.Currency,
		upd.BankName, upd.BankBranch, upd.AccountType, upd.AccountNumber, upd.AccountHolder,
		time.Now().UTC(), id,
	); err != nil {
		return nil, fmt.Errorf("update extraction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE extraction_id = ?;`, id); err != nil {
		return nil, fmt.Errorf("clear line items: %w", err)
	}
	for i, item := range upd.LineItems {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (extraction_id, position, description, unit_price, quantity, unit, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?);
		`, id, i, item.Description, item.UnitPrice, item.Quantity, item.Unit, item.Amount); err != nil {
			return nil, fmt.Errorf("insert line item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return s.Get(ctx, id)
}

const extractionColumns = `
	e.id, e.document_id, e.engine, e.status,
	e.invoice_number, e.invoice_date, e.due_date, e.vendor_name,
	e.subtotal, e.tax, e.total_amount, e.currency,
	e.bank_name, e.bank_branch, e.account_type, e.account_number, e.account_holder,
	e.raw_text, e.mean_confidence, e.warnings, e.created_at, e.updated_at,
	d.original_name`

// Get loads one extraction with its line items.
func (s *ExtractionService) Get(ctx context.Context, id int64) (*ExtractionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+extractionColumns+`
		FROM extractions e JOIN documents d ON d.id = e.document_id
		WHERE e.id = ?;
	`, id)

	record, err := scanExtraction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExtractionNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, extraction_id, position, description, unit_price, quantity, unit, amount
		FROM line_items WHERE extraction_id = ? ORDER BY position;
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.LineItem
		if err := rows.Scan(&item.ID, &item.ExtractionID, &item.Position,
			&item.Description, &item.UnitPrice, &item.Quantity, &item.Unit, &item.Amount); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		record.LineItems = append(record.LineItems, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}
	return record, nil
}

// List returns extraction summaries, newest first, without line items.
func (s *ExtractionService) List(ctx context.Context, limit int) ([]ExtractionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+extractionColumns+`
		FROM extractions e JOIN documents d ON d.id = e.document_id
		ORDER BY e.created_at DESC, e.id DESC LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}
	defer rows.Close()

	var records []ExtractionRecord
	for rows.Next() {
		record, err := scanExtraction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extractions: %w", err)
	}
	return records, nil
}

// Delete removes the extraction's document, which cascades to the
// extraction and its line items, and deletes any kept upload.
func (s *ExtractionService) Delete(ctx context.Context, id int64) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.documents.Delete(ctx, record.DocumentID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExtraction(row rowScanner) (*ExtractionRecord, error) {
	var record ExtractionRecord
	var warnings string
	if err := row.Scan(
		&record.ID, &record.DocumentID, &record.Engine, &record.Status,
		&record.InvoiceNumber, &record.InvoiceDate, &record.DueDate, &record.VendorName,
		&record.Subtotal, &record.Tax, &record.TotalAmount, &record.Currency,
		&record.BankName, &record.BankBranch, &record.AccountType,
		&record.AccountNumber, &record.AccountHolder,
		&record.RawText, &record.MeanConfidence, &warnings,
		&record.CreatedAt, &record.UpdatedAt,
		&record.DocumentName,
	); err != nil {
		return nil, err
	}
	record.Warnings = splitWarnings(warnings)
	return &record, nil
}

func joinWarnings(warnings []string) string {
	return strings.Join(warnings, "\n")
}

func splitWarnings(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, w := range strings.Split(raw, "\n") {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}
