package models

import (
	"time"
)

// MediaType identifies the kind of uploaded document.
type MediaType string

const (
	MediaPDF   MediaType = "pdf"
	MediaImage MediaType = "image"
)

// Extraction status values.
const (
	ExtractionComplete = "complete"
	ExtractionFailed   = "failed"
)

type Document struct {
	ID           int64
	OriginalName string
	StoredPath   string
	MediaType    MediaType
	PageCount    int
	SizeBytes    int64
	UploadedAt   time.Time
}

// Extraction holds the structured fields recovered from one OCR pass over a
// document, as persisted for later review and editing.
type Extraction struct {
	ID         int64
	DocumentID int64
	Engine     string
	Status     string

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

	RawText        string
	MeanConfidence float64
	Warnings       []string

	LineItems []LineItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is one row of the invoice body. Monetary values are kept as the
// display strings the parser produced (for example "12,000") so the review
// UI can round-trip user edits without reformatting.
type LineItem struct {
	ID           int64
	ExtractionID int64
	Position     int
	Description  string
	UnitPrice    string
	Quantity     string
	Unit         string
	Amount       string
}
