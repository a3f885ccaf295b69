package file

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/filegate/service/internal/response"
	"github.com/filegate/service/internal/storage"
)

// Presigned-link lifetimes per endpoint.
const (
	uploadLinkTTL   = time.Hour
	infoLinkTTL     = 30 * time.Minute
	downloadLinkTTL = 5 * time.Minute
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Handler holds HTTP handlers for file endpoints.
type Handler struct {
	store   storage.ObjectStorage
	tempDir string
}

// NewHandler creates a file Handler staging uploads in the OS temp directory.
func NewHandler(store storage.ObjectStorage) *Handler {
	return &Handler{store: store, tempDir: os.TempDir()}
}

type uploadResponse struct {
	Message      string              `json:"message"`
	Filename     string              `json:"filename"`
	OriginalName string              `json:"original_name"`
	Size         int64               `json:"size"`
	ContentType  string              `json:"content_type"`
	DownloadURL  string              `json:"download_url,omitempty"`
	FileInfo     *storage.ObjectInfo `json:"file_info,omitempty"`
}

type downloadResponse struct {
	DownloadURL string              `json:"download_url"`
	FileInfo    *storage.ObjectInfo `json:"file_info"`
	ExpiresIn   int                 `json:"expires_in"`
}

type deleteResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

type infoResponse struct {
	*storage.ObjectInfo
	DownloadURL string `json:"download_url,omitempty"`
}

type listedFile struct {
	storage.ObjectSummary
	DownloadURL string `json:"download_url,omitempty"`
}

type listResponse struct {
	Files  []listedFile `json:"files"`
	Count  int          `json:"count"`
	Prefix string       `json:"prefix"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Accepts a multipart file, stores it under a generated unique name, and returns a one-hour download link.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"file to upload"
//	@Success		201		{object}	uploadResponse
//	@Failure		400		{object}	map[string]string
//	@Failure		500		{object}	map[string]string
//	@Router			/files/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	src, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file in request")
		return
	}
	defer src.Close()

	if header.Filename == "" {
		response.BadRequest(w, "no file selected")
		return
	}
	if !allowedFile(header.Filename) {
		response.BadRequest(w, "file type not allowed")
		return
	}
	if header.Size > maxFileSize {
		response.BadRequest(w, "file too large, maximum is 16 MB")
		return
	}

	originalName := sanitizeFilename(header.Filename)
	objectName := generateObjectName(time.Now(), originalName)

	// Stage to local disk: the storage upload primitive works on paths.
	tempPath := filepath.Join(h.tempDir, objectName)
	if err := saveToFile(src, tempPath); err != nil {
		log.Printf("stage upload %q failed: %v", objectName, err)
		response.InternalError(w)
		return
	}
	defer os.Remove(tempPath)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	metadata := map[string]string{
		"original_name": originalName,
		"upload_time":   time.Now().Format(time.RFC3339),
		"file_size":     strconv.FormatInt(header.Size, 10),
		"content_type":  contentType,
	}

	if err := h.store.Upload(r.Context(), tempPath, objectName, metadata); err != nil {
		log.Printf("upload %q failed: %v", objectName, err)
		response.Error(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	resp := uploadResponse{
		Message:      "file uploaded",
		Filename:     objectName,
		OriginalName: originalName,
		Size:         header.Size,
		ContentType:  contentType,
	}
	// Info and link are best-effort: the object is stored either way.
	if info, err := h.store.Info(r.Context(), objectName); err == nil {
		resp.FileInfo = info
	}
	if url, err := h.store.PresignedURL(r.Context(), objectName, uploadLinkTTL); err == nil {
		resp.DownloadURL = url
	}

	response.Created(w, resp)
}

// Download godoc
//
//	@Summary		Get a download link
//	@Description	Issues a five-minute presigned link for the object. The endpoint never streams bytes itself.
//	@Tags			files
//	@Produce		json
//	@Param			name	path		string	true	"stored object name"
//	@Success		200		{object}	downloadResponse
//	@Failure		404		{object}	map[string]string
//	@Failure		500		{object}	map[string]string
//	@Router			/files/{name}/download [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	info, err := h.store.Info(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(w, "file not found")
			return
		}
		log.Printf("stat %q failed: %v", name, err)
		response.InternalError(w)
		return
	}

	url, err := h.store.PresignedURL(r.Context(), name, downloadLinkTTL)
	if err != nil {
		log.Printf("presign %q failed: %v", name, err)
		response.Error(w, http.StatusInternalServerError, "failed to create download link")
		return
	}

	response.OK(w, downloadResponse{
		DownloadURL: url,
		FileInfo:    info,
		ExpiresIn:   int(downloadLinkTTL.Seconds()),
	})
}

// Delete godoc
//
//	@Summary		Delete a file
//	@Tags			files
//	@Produce		json
//	@Param			name	path		string	true	"stored object name"
//	@Success		200		{object}	deleteResponse
//	@Failure		404		{object}	map[string]string
//	@Failure		500		{object}	map[string]string
//	@Router			/files/{name} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, err := h.store.Info(r.Context(), name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(w, "file not found")
			return
		}
		log.Printf("stat %q failed: %v", name, err)
		response.InternalError(w)
		return
	}

	if err := h.store.Delete(r.Context(), name); err != nil {
		log.Printf("delete %q failed: %v", name, err)
		response.Error(w, http.StatusInternalServerError, "failed to delete file")
		return
	}

	response.OK(w, deleteResponse{Message: "file deleted", Filename: name})
}

// List godoc
//
//	@Summary		List files
//	@Description	Lists objects filtered by prefix, each with a thirty-minute download link. limit defaults to 100, capped at 1000; 0 disables the cap.
//	@Tags			files
//	@Produce		json
//	@Param			prefix	query		string	false	"object name prefix"
//	@Param			limit	query		int		false	"maximum results"
//	@Success		200		{object}	listResponse
//	@Failure		400		{object}	map[string]string
//	@Failure		500		{object}	map[string]string
//	@Router			/files [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	objects, err := h.store.List(r.Context(), prefix)
	if err != nil {
		log.Printf("list with prefix %q failed: %v", prefix, err)
		response.InternalError(w)
		return
	}

	// The cap only applies when positive; limit=0 returns everything.
	if limit > 0 && len(objects) > limit {
		objects = objects[:limit]
	}

	files := make([]listedFile, 0, len(objects))
	for _, obj := range objects {
		f := listedFile{ObjectSummary: obj}
		if url, err := h.store.PresignedURL(r.Context(), obj.Name, infoLinkTTL); err == nil {
			f.DownloadURL = url
		}
		files = append(files, f)
	}

	response.OK(w, listResponse{Files: files, Count: len(files), Prefix: prefix})
}

// Info godoc
//
//	@Summary		Get file metadata
//	@Description	Returns head-metadata plus a thirty-minute download link.
//	@Tags			files
//	@Produce		json
//	@Param			name	path		string	true	"stored object name"
//	@Success		200		{object}	infoResponse
//	@Failure		404		{object}	map[string]string
//	@Failure		500		{object}	map[string]string
//	@Router			/files/{name}/info [get]
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	info, err := h.store.Info(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(w, "file not found")
			return
		}
		log.Printf("stat %q failed: %v", name, err)
		response.InternalError(w)
		return
	}

	resp := infoResponse{ObjectInfo: info}
	if url, err := h.store.PresignedURL(r.Context(), name, infoLinkTTL); err == nil {
		resp.DownloadURL = url
	}

	response.OK(w, resp)
}

// StorageHealth godoc
//
//	@Summary		Object storage health
//	@Description	Probes the storage backend; 503 when unreachable.
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	healthResponse
//	@Failure		503	{object}	healthResponse
//	@Router			/health/storage [get]
func (h *Handler) StorageHealth(w http.ResponseWriter, r *http.Request) {
	ts := time.Now().Format(time.RFC3339)
	if err := h.store.HealthCheck(r.Context()); err != nil {
		response.ServiceUnavailable(w, healthResponse{
			Status:    "unhealthy",
			Message:   "object storage unavailable",
			Timestamp: ts,
		})
		return
	}
	response.OK(w, healthResponse{
		Status:    "healthy",
		Message:   "object storage available",
		Timestamp: ts,
	})
}

// saveToFile copies src into a new file at path.
func saveToFile(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}
