package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/docunet-api/internal/models"
	"github.com/noah-isme/docunet-api/internal/service"
	"github.com/noah-isme/docunet-api/pkg/cryptobox"
)

type handlerDocStub struct {
	docs map[string]*models.TeacherDocument
}

func (s *handlerDocStub) GetByID(ctx context.Context, id string) (*models.TeacherDocument, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return doc, nil
}

func (s *handlerDocStub) List(ctx context.Context, filter models.DocumentFilter) ([]models.TeacherDocument, int, error) {
	out := make([]models.TeacherDocument, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, *doc)
	}
	return out, len(out), nil
}

func (s *handlerDocStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.docs, id)
	return nil
}

type handlerPropStub struct{}

func (handlerPropStub) GetByID(ctx context.Context, id string) (*models.PropertyDocument, error) {
	return nil, sql.ErrNoRows
}

func (handlerPropStub) ListAll(ctx context.Context) ([]models.PropertyDocument, error) {
	return nil, nil
}

func (handlerPropStub) Delete(ctx context.Context, id string) error { return sql.ErrNoRows }

type handlerBlobStub struct{ files map[string][]byte }

func (s *handlerBlobStub) Read(filename string) ([]byte, error) {
	data, ok := s.files[filename]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return data, nil
}

func (s *handlerBlobStub) Exists(filename string) bool { _, ok := s.files[filename]; return ok }

func (s *handlerBlobStub) Delete(filename string) error {
	delete(s.files, filename)
	return nil
}

func documentRouter(t *testing.T) (*gin.Engine, *handlerBlobStub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	box, err := cryptobox.New(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	encrypted, err := box.Encrypt([]byte("decrypted body"))
	require.NoError(t, err)

	blobs := &handlerBlobStub{files: map[string][]byte{
		"documents/aaa.pdf": []byte(encrypted),
	}}
	docs := &handlerDocStub{docs: map[string]*models.TeacherDocument{
		"d-1": {
			ID:        "d-1",
			TeacherID: "t-1",
			Name:      "pds.pdf",
			Path:      "documents/aaa.pdf",
			MimeType:  "application/pdf",
			Size:      14,
			CreatedAt: time.Now(),
		},
	}}

	svc := service.NewDocumentService(docs, handlerPropStub{}, blobs, box, nil)
	h := NewDocumentHandler(nil, svc)

	r := gin.New()
	r.POST("/documents", h.Upload)
	r.GET("/documents", h.List)
	r.GET("/documents/:id", h.Get)
	r.GET("/documents/:id/download", h.Download)
	r.GET("/documents/:id/preview", h.Preview)
	r.DELETE("/documents/:id", h.Delete)
	return r, blobs
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
}

func TestDocumentUploadRequiresActingUser(t *testing.T) {
	r, _ := documentRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "pds.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("content"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestDocumentUploadRequiresFiles(t *testing.T) {
	r, _ := documentRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("allow_duplicate", "true"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-User-ID", "u-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentGetAndList(t *testing.T) {
	r, _ := documentRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/d-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var doc models.TeacherDocument
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	assert.Equal(t, "pds.pdf", doc.Name)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents?page=2&page_size=5", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, 2, resp.Pagination.Page)
	assert.Equal(t, 5, resp.Pagination.PageSize)
}

func TestDocumentGetNotFound(t *testing.T) {
	r, _ := documentRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestDocumentDownloadDecrypts(t *testing.T) {
	r, _ := documentRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/d-1/download", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "decrypted body", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="pds.pdf"`)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestDocumentPreviewMissing(t *testing.T) {
	r, _ := documentRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents/d-1/preview", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentDeleteRemovesBlob(t *testing.T) {
	r, blobs := documentRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/d-1", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, blobs.Exists("documents/aaa.pdf"))
}
