package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// PDFConverter converts an HTML file to a PDF file.
type PDFConverter interface {
	Convert(ctx context.Context, htmlPath, pdfPath string) error
}

// Wkhtmltopdf runs the wkhtmltopdf binary.
type Wkhtmltopdf struct {
	Binary string // defaults to "wkhtmltopdf" on PATH
}

// Convert renders htmlPath into pdfPath. The PDF is written to a temp file
// next to pdfPath and renamed into place on success.
func (w Wkhtmltopdf) Convert(ctx context.Context, htmlPath, pdfPath string) error {
	if _, err := os.Stat(htmlPath); err != nil {
		return fmt.Errorf("render: pdf source: %w", err)
	}

	dir := filepath.Dir(pdfPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("render: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(pdfPath)+".tmp-*.pdf")
	if err != nil {
		return fmt.Errorf("render: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	bin := w.Binary
	if bin == "" {
		bin = "wkhtmltopdf"
	}
	// wkhtmltopdf --quiet --encoding utf-8 input.html output.pdf
	cmd := exec.CommandContext(ctx, bin, "--quiet", "--encoding", "utf-8", htmlPath, tmpPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("render: %s: %w: %s", bin, err, strings.TrimSpace(string(out)))
	}

	if err := os.Rename(tmpPath, pdfPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("render: moving %s into place: %w", pdfPath, err)
	}
	return nil
}
