package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOCRClientExtractAndClassify(t *testing.T) {
	var gotFilename string
	var gotContents []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		gotFilename = header.Filename
		gotContents, err = io.ReadAll(file)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ScanResult{Text: "Personal Data Sheet of Juan Cruz", Subcategory: "pds"})
	}))
	defer srv.Close()

	client := NewOCRClient(srv.URL, 2*time.Second)
	result, err := client.ExtractAndClassify(context.Background(), "pds.pdf", []byte("scanned bytes"))
	require.NoError(t, err)

	assert.Equal(t, "pds.pdf", gotFilename)
	assert.Equal(t, []byte("scanned bytes"), gotContents)
	assert.Equal(t, "Personal Data Sheet of Juan Cruz", result.Text)
	assert.Equal(t, "pds", result.Subcategory)
}

func TestOCRClientNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewOCRClient(srv.URL, 2*time.Second)
	result, err := client.ExtractAndClassify(context.Background(), "pds.pdf", []byte("x"))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "engine busy")
}

func TestOCRClientBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewOCRClient(srv.URL, 2*time.Second)
	_, err := client.ExtractAndClassify(context.Background(), "pds.pdf", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode ocr response")
}

func TestOCRClientUnreachable(t *testing.T) {
	client := NewOCRClient("http://127.0.0.1:1/scan", 500*time.Millisecond)
	_, err := client.ExtractAndClassify(context.Background(), "pds.pdf", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr service unreachable")
}
