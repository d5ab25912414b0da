package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// convertibleExtensions lists the word-processor/spreadsheet formats that go
// through the external converter for previews.
var convertibleExtensions = map[string]string{
	"doc":  "pdf:writer_pdf_Export",
	"docx": "pdf:writer_pdf_Export",
	"xls":  "pdf:calc_pdf_Export",
	"xlsx": "pdf:calc_pdf_Export",
}

// PDFConverter shells out to an office suite to render previews. A missing
// output file means "no preview available", never an ingest failure.
type PDFConverter struct {
	binary    string
	outputDir string
	timeout   time.Duration
}

// NewPDFConverter constructs a converter around the configured binary.
func NewPDFConverter(binary, outputDir string, timeout time.Duration) *PDFConverter {
	if binary == "" {
		binary = "soffice"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PDFConverter{binary: binary, outputDir: outputDir, timeout: timeout}
}

// CanConvert reports whether the extension routes through the converter.
func (c *PDFConverter) CanConvert(extension string) bool {
	_, ok := convertibleExtensions[strings.ToLower(strings.TrimPrefix(extension, "."))]
	return ok
}

// Convert renders the input document to PDF and returns the produced file
// path, or "" when the converter produced no output.
func (c *PDFConverter) Convert(ctx context.Context, inputPath string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(inputPath), "."))
	filter, ok := convertibleExtensions[ext]
	if !ok {
		return "", fmt.Errorf("extension %q is not convertible", ext)
	}
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare converter output dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary,
		"--headless", "--invisible",
		"--convert-to", filter,
		"--outdir", c.outputDir,
		inputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("convert %s: %w (%s)", filepath.Base(inputPath), err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	produced := filepath.Join(c.outputDir, base+".pdf")
	if _, err := os.Stat(produced); err != nil {
		return "", nil
	}
	return produced, nil
}
