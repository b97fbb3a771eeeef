// Package tesseract reads addresses from photos with the Tesseract OCR engine.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/UnknownOlympus/hermes/internal/ocr"
	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguages covers Portuguese and English labels.
const DefaultLanguages = "por+eng"

// Engine wraps a single Tesseract client. The client is not safe for concurrent use, so
// extractions are serialised.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	log    *slog.Logger
}

var _ ocr.Extractor = (*Engine)(nil)

// NewEngine creates an engine for languages given as "por+eng".
func NewEngine(languages string, log *slog.Logger) (*Engine, error) {
	if strings.TrimSpace(languages) == "" {
		languages = DefaultLanguages
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(strings.Split(languages, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Shipping labels are blocks of text, not a single line.
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}

	return &Engine{client: client, log: log}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Extract recognises the text in image and folds it into a single address line.
func (e *Engine) Extract(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	address := ocr.CleanText(text)
	e.log.DebugContext(ctx, "OCR finished", "raw_length", len(text), "address", address)

	return address, nil
}
