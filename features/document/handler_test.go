package document_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docsage/features/document"
	"docsage/internal/checkpoint"
	"docsage/internal/config"
)

func multipartBody(t *testing.T, filenames map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range filenames {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func newUploadHandler(t *testing.T, repo *MockRepo, pub *MockPublisher, runner *fakeRunner) *document.Handler {
	t.Helper()
	svc := document.NewService(repo, runner, checkpoint.NewMemoryStore(), nil, pub, nil)
	return document.NewHandler(svc, t.TempDir(), 50)
}

func TestHandler_Upload_Success(t *testing.T) {
	repo := new(MockRepo)
	pub := new(MockPublisher)
	runner := &fakeRunner{result: successResult()}
	handler := newUploadHandler(t, repo, pub, runner)

	repo.On("ExistsByHash", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateOutcome", mock.Anything, "doc-1", "completed", "hr", "pdf", 3).Return(nil)
	pub.On("Publish", config.TopicIngestResult, mock.Anything).Return(nil)

	body, contentType := multipartBody(t, map[string]string{"handbook.txt": "employee handbook content"})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)

	var resp struct {
		Data []document.UploadResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "completed", resp.Data[0].Status)
	assert.Equal(t, "handbook.txt", resp.Data[0].OriginalFilename)
	assert.Equal(t, "hr", resp.Data[0].Category)
	assert.Empty(t, resp.Data[0].FailedSteps)
}

func TestHandler_Upload_UppercaseExtension(t *testing.T) {
	repo := new(MockRepo)
	pub := new(MockPublisher)
	runner := &fakeRunner{result: successResult()}
	handler := newUploadHandler(t, repo, pub, runner)

	repo.On("ExistsByHash", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateOutcome", mock.Anything, mock.Anything, "completed", "hr", "pdf", 3).Return(nil)
	pub.On("Publish", config.TopicIngestResult, mock.Anything).Return(nil)

	body, contentType := multipartBody(t, map[string]string{
		"REPORT.PDF": "annual report",
		"scan.JPG":   "scanned page",
	})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)

	var resp struct {
		Data []document.UploadResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data, 2)
	for _, r := range resp.Data {
		assert.Equal(t, "completed", r.Status, r.OriginalFilename)
		assert.Empty(t, r.Error, r.OriginalFilename)
	}
}

func TestHandler_Upload_UnsupportedType(t *testing.T) {
	repo := new(MockRepo)
	handler := newUploadHandler(t, repo, new(MockPublisher), &fakeRunner{})

	body, contentType := multipartBody(t, map[string]string{"script.exe": "binary"})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)

	var resp struct {
		Data []document.UploadResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "failed", resp.Data[0].Status)
	assert.Equal(t, "Unsupported file type", resp.Data[0].Error)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestHandler_Upload_Duplicate(t *testing.T) {
	repo := new(MockRepo)
	handler := newUploadHandler(t, repo, new(MockPublisher), &fakeRunner{})

	repo.On("ExistsByHash", mock.Anything, mock.Anything).Return(true, nil)

	body, contentType := multipartBody(t, map[string]string{"handbook.txt": "employee handbook content"})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	var resp struct {
		Data []document.UploadResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "duplicate", resp.Data[0].Status)
}

func TestHandler_Upload_NoFiles(t *testing.T) {
	handler := newUploadHandler(t, new(MockRepo), new(MockPublisher), &fakeRunner{})

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Upload(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode)
}

func TestHandler_Upload_OneFailureDoesNotAbortRest(t *testing.T) {
	repo := new(MockRepo)
	pub := new(MockPublisher)
	runner := &fakeRunner{result: successResult()}
	handler := newUploadHandler(t, repo, pub, runner)

	repo.On("ExistsByHash", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	repo.On("UpdateOutcome", mock.Anything, mock.Anything, "completed", "hr", "pdf", 3).Return(nil)
	pub.On("Publish", config.TopicIngestResult, mock.Anything).Return(nil)

	body, contentType := multipartBody(t, map[string]string{
		"report.txt": "quarterly report",
		"binary.bin": "not supported",
	})
	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusCreated, w.Result().StatusCode)

	var resp struct {
		Data []document.UploadResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Data, 2)

	statuses := map[string]string{}
	for _, r := range resp.Data {
		statuses[r.OriginalFilename] = r.Status
	}
	assert.Equal(t, "completed", statuses["report.txt"])
	assert.Equal(t, "failed", statuses["binary.bin"])
}

func TestHandler_List(t *testing.T) {
	repo := new(MockRepo)
	svc := document.NewService(repo, &fakeRunner{}, checkpoint.NewMemoryStore(), nil, nil, nil)
	handler := document.NewHandler(svc, t.TempDir(), 50)

	repo.On("List", mock.Anything).Return(nil, nil)

	req := httptest.NewRequest("GET", "/api/documents", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestHandler_Delete_NotFound(t *testing.T) {
	repo := new(MockRepo)
	svc := document.NewService(repo, &fakeRunner{}, checkpoint.NewMemoryStore(), new(MockChunkStore), nil, nil)
	handler := document.NewHandler(svc, t.TempDir(), 50)

	repo.On("Get", mock.Anything, "missing").Return(nil, sql.ErrNoRows)

	req := httptest.NewRequest("DELETE", "/api/documents/missing", nil)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	handler.Delete(w, req)
	assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
}

func TestHandler_Reindex(t *testing.T) {
	repo := new(MockRepo)
	pub := new(MockPublisher)
	svc := document.NewService(repo, &fakeRunner{}, checkpoint.NewMemoryStore(), nil, pub, nil)
	handler := document.NewHandler(svc, t.TempDir(), 50)

	doc := &document.Document{ID: "doc-1", FilePath: "/uploads/x.pdf"}
	repo.On("Get", mock.Anything, "doc-1").Return(doc, nil)
	repo.On("UpdateStatus", mock.Anything, "doc-1", "processing").Return(nil)
	pub.On("Publish", config.TopicReindex, mock.Anything).Return(nil)

	req := httptest.NewRequest("POST", "/api/documents/doc-1/reindex", nil)
	req.SetPathValue("id", "doc-1")
	w := httptest.NewRecorder()

	handler.Reindex(w, req)
	assert.Equal(t, http.StatusAccepted, w.Result().StatusCode)
	pub.AssertExpectations(t)
}
