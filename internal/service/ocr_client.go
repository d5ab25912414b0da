package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// ScanResult is the payload of the external extract-and-classify service.
type ScanResult struct {
	Text        string `json:"text"`
	Subcategory string `json:"subcategory"`
}

// OCRClient talks to the external OCR/classification service. Calls are
// time-bounded and best-effort; the caller treats any failure as "no
// classification available".
type OCRClient struct {
	endpoint string
	client   *http.Client
}

// NewOCRClient constructs a client with the configured endpoint and timeout.
func NewOCRClient(endpoint string, timeout time.Duration) *OCRClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OCRClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// ExtractAndClassify posts the file bytes as a multipart upload and returns
// the extracted text and raw category label.
func (c *OCRClient) ExtractAndClassify(ctx context.Context, filename string, contents []byte) (*ScanResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(contents); err != nil {
		return nil, fmt.Errorf("write multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr service unreachable: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ocr service responded %d: %s", resp.StatusCode, string(snippet))
	}

	var result ScanResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}
	return &result, nil
}
