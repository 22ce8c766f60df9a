package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoicelens/internal/imaging"
	"invoicelens/internal/models"
)

// ErrUnsupportedType is returned for uploads whose extension is not an
// accepted invoice format.
var ErrUnsupportedType = errors.New("unsupported file type")

var allowedExtensions = map[string]models.MediaType{
	".pdf":  models.MediaPDF,
	".png":  models.MediaImage,
	".jpg":  models.MediaImage,
	".jpeg": models.MediaImage,
	".tif":  models.MediaImage,
	".tiff": models.MediaImage,
	".bmp":  models.MediaImage,
}

type DocumentService struct {
	db        *sql.DB
	uploadDir string
}

func NewDocumentService(db *sql.DB, uploadDir string) *DocumentService {
	return &DocumentService{db: db, uploadDir: uploadDir}
}

// Create validates the upload, stores it under a UUID name, and records it.
// The extension check runs before any disk write.
func (s *DocumentService) Create(ctx context.Context, original string, src io.Reader) (*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(original))
	mediaType, ok := allowedExtensions[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	storedPath := filepath.Join(s.uploadDir, name)
	out, err := os.Create(storedPath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	size, err := io.Copy(out, src)
	if err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("write file: %w", err)
	}

	pages := 1
	if mediaType == models.MediaPDF {
		if n, err := imaging.PageCount(storedPath); err == nil {
			pages = n
		}
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (original_name, stored_path, media_type, page_count, size_bytes, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, original, storedPath, mediaType, pages, size, now)
	if err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("insert document: %w", err)
	}
	id, _ := res.LastInsertId()

	return &models.Document{
		ID:           id,
		OriginalName: original,
		StoredPath:   storedPath,
		MediaType:    mediaType,
		PageCount:    pages,
		SizeBytes:    size,
		UploadedAt:   now,
	}, nil
}

func (s *DocumentService) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, original_name, stored_path, media_type, page_count, size_bytes, uploaded_at
		FROM documents WHERE id = ?;
	`, id)
	var doc models.Document
	if err := row.Scan(
		&doc.ID,
		&doc.OriginalName,
		&doc.StoredPath,
		&doc.MediaType,
		&doc.PageCount,
		&doc.SizeBytes,
		&doc.UploadedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("document %d not found", id)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

// RemoveFile deletes the stored upload from disk. The database record is
// kept so extraction history survives.
func (s *DocumentService) RemoveFile(doc *models.Document) error {
	if err := os.Remove(doc.StoredPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// Delete removes the document row (extractions cascade) and its file.
func (s *DocumentService) Delete(ctx context.Context, id int64) error {
	doc, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?;`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return s.RemoveFile(doc)
}
