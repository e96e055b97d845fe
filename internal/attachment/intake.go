package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/minio/minio-go/v7"

	"portfolioHub/internal/form"
	"portfolioHub/internal/storage"
)

// PDFContentType is the only accepted attachment type.
const PDFContentType = "application/pdf"

// Rejection reasons. Each maps to a user-facing 4xx.
var (
	ErrEmpty     = errors.New("attachment is empty")
	ErrTooLarge  = errors.New("attachment is too large")
	ErrNotPDF    = errors.New("attachment is not a PDF")
	ErrMalformed = errors.New("attachment is not a readable PDF")
	ErrInfected  = errors.New("attachment failed the virus scan")
)

// Uploader writes staged objects.
type Uploader interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

// Scanner inspects file content for malware. A nil Scanner skips scanning.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// Intake validates uploaded PDFs and stages them for submission.
type Intake struct {
	uploader Uploader
	scanner  Scanner
	maxBytes int64
	logger   *slog.Logger
	observe  func(result string)
}

func NewIntake(uploader Uploader, scanner Scanner, maxBytes int64, logger *slog.Logger, observe func(string)) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	if observe == nil {
		observe = func(string) {}
	}
	return &Intake{uploader: uploader, scanner: scanner, maxBytes: maxBytes, logger: logger, observe: observe}
}

// Accept checks r and stages it under attachments/<session>/<uuid>.pdf.
func (in *Intake) Accept(ctx context.Context, sessionID, filename string, r io.Reader) (*form.Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(r, in.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	if err := in.check(ctx, data); err != nil {
		in.observe(reason(err))
		return nil, err
	}

	objectKey := storage.SessionPrefix(sessionID) + uuid.NewString() + ".pdf"
	if _, err := in.uploader.UploadFile(ctx, objectKey, bytes.NewReader(data), int64(len(data)), PDFContentType); err != nil {
		in.observe("upload_failed")
		return nil, fmt.Errorf("stage attachment: %w", err)
	}
	in.observe("staged")
	in.logger.Info("attachment staged",
		slog.String("object_key", objectKey),
		slog.Int("size", len(data)),
	)

	return &form.Attachment{
		ObjectKey:   objectKey,
		Filename:    cleanFilename(filename),
		Size:        int64(len(data)),
		ContentType: PDFContentType,
	}, nil
}

func (in *Intake) check(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if int64(len(data)) > in.maxBytes {
		return fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, in.maxBytes)
	}
	if mt := mimetype.Detect(data); !mt.Is(PDFContentType) {
		return fmt.Errorf("%w: detected %s", ErrNotPDF, mt.String())
	}
	pages, err := countPages(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if pages < 1 {
		return fmt.Errorf("%w: no pages", ErrMalformed)
	}
	if in.scanner != nil {
		if err := in.scanner.Scan(ctx, bytes.NewReader(data)); err != nil {
			return err
		}
	}
	return nil
}

// countPages parses the document structure. The parser panics on some
// corrupt inputs, which count as malformed.
func countPages(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrEmpty):
		return "empty"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, ErrNotPDF):
		return "not_pdf"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrInfected):
		return "infected"
	}
	return "scan_failed"
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "portfolio.pdf"
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
