// Package ocr extracts text from console screenshots.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// TextExtractor turns a screenshot image into plain text. The state service
// depends on this interface; tests substitute a canned implementation.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Tesseract shells out to the tesseract binary. The image goes through a temp
// file because tesseract does not read image data from stdin reliably across
// versions.
type Tesseract struct {
	binaryPath string
}

func NewTesseract(binaryPath string) *Tesseract {
	return &Tesseract{binaryPath: binaryPath}
}

func (t *Tesseract) ExtractText(ctx context.Context, image []byte) (string, error) {
	tmp, err := os.CreateTemp("", "screenshot-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to stage screenshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to stage screenshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to stage screenshot: %w", err)
	}

	// "stdout" as the output base makes tesseract print the text instead of
	// writing a .txt file next to the image.
	cmd := exec.CommandContext(ctx, t.binaryPath, tmp.Name(), "stdout")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.Error("tesseract failed", "component", "OCR", "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return "", fmt.Errorf("tesseract failed: %w", err)
	}

	text := strings.TrimSpace(stdout.String())
	slog.Debug("Extracted screenshot text", "component", "OCR", "chars", len(text))
	return text, nil
}
