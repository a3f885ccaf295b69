package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filegate/service/internal/storage"
)

// fakeStorage is an in-memory ObjectStorage for handler tests.
type fakeStorage struct {
	objects map[string]*storage.ObjectInfo

	uploadErr  error
	listErr    error
	presignErr error
	deleteErr  error
	healthErr  error

	uploadCalls int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string]*storage.ObjectInfo{}}
}

func (f *fakeStorage) EnsureBucket(ctx context.Context) error { return nil }

func (f *fakeStorage) Upload(ctx context.Context, localPath, objectName string, metadata map[string]string) error {
	f.uploadCalls++
	if f.uploadErr != nil {
		return f.uploadErr
	}
	st, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	f.objects[objectName] = &storage.ObjectInfo{
		Name:         objectName,
		Size:         st.Size(),
		LastModified: time.Now(),
		ContentType:  metadata["content_type"],
		ETag:         "fake-etag",
		Metadata:     metadata,
	}
	return nil
}

func (f *fakeStorage) Download(ctx context.Context, objectName, localPath string) error {
	if _, ok := f.objects[objectName]; !ok {
		return storage.ErrNotFound
	}
	return os.WriteFile(localPath, []byte("content"), 0o600)
}

func (f *fakeStorage) Delete(ctx context.Context, objectName string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, objectName)
	return nil
}

func (f *fakeStorage) List(ctx context.Context, prefix string) ([]storage.ObjectSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []storage.ObjectSummary{}
	for name, info := range f.objects {
		if strings.HasPrefix(name, prefix) {
			out = append(out, storage.ObjectSummary{
				Name: name, Size: info.Size, LastModified: info.LastModified, ETag: info.ETag,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStorage) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return fmt.Sprintf("https://storage.local/%s?expires=%d", objectName, int(expiry.Seconds())), nil
}

func (f *fakeStorage) Info(ctx context.Context, objectName string) (*storage.ObjectInfo, error) {
	info, ok := f.objects[objectName]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return info, nil
}

func (f *fakeStorage) HealthCheck(ctx context.Context) error { return f.healthErr }

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/files", h.List)
	r.Post("/files/upload", h.Upload)
	r.Route("/files/{name}", func(r chi.Router) {
		r.Delete("/", h.Delete)
		r.Get("/download", h.Download)
		r.Get("/info", h.Info)
	})
	r.Get("/health/storage", h.StorageHealth)
	return r
}

func multipartBody(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
	if contentType != "" {
		hdr["Content-Type"] = []string{contentType}
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, router http.Handler, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, formContentType := multipartBody(t, filename, contentType, content)
	req := httptest.NewRequest(http.MethodPost, "/files/upload", body)
	req.Header.Set("Content-Type", formContentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUploadAllowedExtensions(t *testing.T) {
	for ext := range allowedExtensions {
		t.Run(ext, func(t *testing.T) {
			store := newFakeStorage()
			h := &Handler{store: store, tempDir: t.TempDir()}
			router := newTestRouter(h)

			original := "sample." + ext
			rec := doUpload(t, router, original, "text/plain", []byte("hello"))
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

			var resp uploadResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEqual(t, original, resp.Filename)
			assert.True(t, strings.HasSuffix(resp.Filename, "."+ext))
			assert.Equal(t, original, resp.OriginalName)
			assert.EqualValues(t, 5, resp.Size)
			assert.Contains(t, resp.DownloadURL, resp.Filename)

			stored, err := store.Info(context.Background(), resp.Filename)
			require.NoError(t, err)
			assert.Equal(t, original, stored.Metadata["original_name"])
			assert.EqualValues(t, 5, stored.Size)
		})
	}
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		wantMsg  string
	}{
		{"disallowed extension", "malware.exe", []byte("x"), "file type not allowed"},
		{"no extension", "README", []byte("x"), "file type not allowed"},
		{"empty filename", "", []byte("x"), "no file"},
		{"oversized", "big.txt", bytes.Repeat([]byte("a"), maxFileSize+1), "file too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStorage()
			h := &Handler{store: store, tempDir: t.TempDir()}
			router := newTestRouter(h)

			rec := doUpload(t, router, tt.filename, "", tt.content)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
			assert.Zero(t, store.uploadCalls, "no object must be created")
		})
	}
}

func TestUploadMissingFileField(t *testing.T) {
	store := newFakeStorage()
	h := &Handler{store: store, tempDir: t.TempDir()}
	router := newTestRouter(h)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no file in request")
	assert.Zero(t, store.uploadCalls)
}

func TestUploadAtSizeCap(t *testing.T) {
	store := newFakeStorage()
	h := &Handler{store: store, tempDir: t.TempDir()}
	router := newTestRouter(h)

	rec := doUpload(t, router, "exact.txt", "", bytes.Repeat([]byte("a"), maxFileSize))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestUploadDefaultsContentType(t *testing.T) {
	store := newFakeStorage()
	h := &Handler{store: store, tempDir: t.TempDir()}
	router := newTestRouter(h)

	rec := doUpload(t, router, "plain.txt", "", []byte("x"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "application/octet-stream", resp.ContentType)
}

func TestUploadCleansScratchFile(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("on success", func(t *testing.T) {
		store := newFakeStorage()
		h := &Handler{store: store, tempDir: tempDir}
		rec := doUpload(t, newTestRouter(h), "ok.txt", "", []byte("x"))
		require.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("on upload failure", func(t *testing.T) {
		store := newFakeStorage()
		store.uploadErr = fmt.Errorf("backend down")
		h := &Handler{store: store, tempDir: tempDir}
		rec := doUpload(t, newTestRouter(h), "fail.txt", "", []byte("x"))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch files must be removed on every exit path")
}

func TestInfoAfterUploadThenDelete(t *testing.T) {
	store := newFakeStorage()
	h := &Handler{store: store, tempDir: t.TempDir()}
	router := newTestRouter(h)

	rec := doUpload(t, router, "cycle.txt", "", []byte("hello world"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var up uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))

	// Info on the stored name reports the uploaded size.
	req := httptest.NewRequest(http.MethodGet, "/files/"+up.Filename+"/info", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var info infoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.EqualValues(t, len("hello world"), info.Size)
	assert.NotEmpty(t, info.DownloadURL)

	// Delete, then the same lookup is a 404.
	req = httptest.NewRequest(http.MethodDelete, "/files/"+up.Filename, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), up.Filename)

	req = httptest.NewRequest(http.MethodGet, "/files/"+up.Filename+"/info", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadLink(t *testing.T) {
	store := newFakeStorage()
	store.objects["a.txt"] = &storage.ObjectInfo{Name: "a.txt", Size: 3}
	h := &Handler{store: store, tempDir: t.TempDir()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/files/a.txt/download", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp downloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 300, resp.ExpiresIn)
	assert.Contains(t, resp.DownloadURL, "a.txt")
	require.NotNil(t, resp.FileInfo)
	assert.EqualValues(t, 3, resp.FileInfo.Size)
}

func TestNotFoundResponses(t *testing.T) {
	store := newFakeStorage()
	h := &Handler{store: store, tempDir: t.TempDir()}
	router := newTestRouter(h)

	for _, tt := range []struct {
		method string
		target string
	}{
		{http.MethodGet, "/files/missing.txt/download"},
		{http.MethodGet, "/files/missing.txt/info"},
		{http.MethodDelete, "/files/missing.txt"},
	} {
		req := httptest.NewRequest(tt.method, tt.target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tt.method, tt.target)
		assert.Contains(t, rec.Body.String(), "file not found")
	}
}

func TestDeleteBackendFailure(t *testing.T) {
	store := newFakeStorage()
	store.objects["a.txt"] = &storage.ObjectInfo{Name: "a.txt"}
	store.deleteErr = fmt.Errorf("backend down")
	h := &Handler{store: store, tempDir: t.TempDir()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodDelete, "/files/a.txt", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListLimits(t *testing.T) {
	store := newFakeStorage()
	for i := 0; i < 30; i++ {
		name := fmt.Sprintf("obj-%02d.txt", i)
		store.objects[name] = &storage.ObjectInfo{Name: name, Size: int64(i)}
	}
	h := &Handler{store: store, tempDir: t.TempDir()}
	router := newTestRouter(h)

	list := func(query string) listResponse {
		req := httptest.NewRequest(http.MethodGet, "/files"+query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp listResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	resp := list("")
	assert.Equal(t, 30, resp.Count, "default limit of 100 leaves a 30-item bucket intact")
	for _, f := range resp.Files {
		assert.Contains(t, f.DownloadURL, f.Name, "every summary carries a link")
	}

	assert.Equal(t, 5, list("?limit=5").Count)
	assert.Equal(t, 30, list("?limit=0").Count, "zero disables the cap")
	assert.Equal(t, 30, list("?limit=5000").Count, "clamped limit above bucket size")

	resp = list("?prefix=obj-0")
	assert.Equal(t, 10, resp.Count)
	assert.Equal(t, "obj-0", resp.Prefix)
}

func TestListInvalidLimit(t *testing.T) {
	h := &Handler{store: newFakeStorage(), tempDir: t.TempDir()}
	req := httptest.NewRequest(http.MethodGet, "/files?limit=abc", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageHealth(t *testing.T) {
	store := newFakeStorage()
	h := &Handler{store: store, tempDir: t.TempDir()}
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/health/storage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)

	store.healthErr = fmt.Errorf("connection refused")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/storage", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
}
