package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-store/pkg/simplestore"
)

// DefaultMaxMemory is how much of a multipart form is held in memory
// before parts spill to temp files.
const DefaultMaxMemory = 32 << 20

// FilesHandler serves the object store gateway
type FilesHandler struct {
	service   simplestore.FileService
	basePath  string
	maxMemory int64
}

// NewFilesHandler creates a handler whose retrieval URLs are rooted at
// basePath (for example "/api").
func NewFilesHandler(service simplestore.FileService, basePath string) *FilesHandler {
	return &FilesHandler{
		service:   service,
		basePath:  strings.TrimSuffix(basePath, "/"),
		maxMemory: DefaultMaxMemory,
	}
}

// Routes returns the router for files endpoints
func (h *FilesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetFiles)
	r.Head("/", h.GetFiles)
	r.Post("/", h.UploadFile)
	r.Delete("/", h.DeleteFile)
	return r
}

// FileResponse describes one listed object
type FileResponse struct {
	Key            string            `json:"key"`
	Size           int64             `json:"size"`
	Uploaded       time.Time         `json:"uploaded"`
	ETag           string            `json:"etag"`
	CustomMetadata map[string]string `json:"customMetadata,omitempty"`
}

// FileListResponse is one page of a listing
type FileListResponse struct {
	Files     []FileResponse `json:"files"`
	Count     int            `json:"count"`
	Truncated bool           `json:"truncated"`
	Cursor    string         `json:"cursor,omitempty"`
}

// UploadResponse confirms a stored upload
type UploadResponse struct {
	Message string                   `json:"message"`
	File    *simplestore.UploadResult `json:"file"`
	URL     string                   `json:"url"`
}

// DeleteFileResponse confirms a deletion
type DeleteFileResponse struct {
	Message    string `json:"message"`
	DeletedKey string `json:"deletedKey"`
}

// GetFiles downloads ?key= or lists objects under ?prefix=
func (h *FilesHandler) GetFiles(w http.ResponseWriter, r *http.Request) {
	if key := r.URL.Query().Get("key"); key != "" {
		h.download(w, r, key)
		return
	}
	h.list(w, r)
}

func (h *FilesHandler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := simplestore.ListOptions{
		Prefix: query.Get("prefix"),
		Cursor: query.Get("cursor"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: "Invalid limit"})
			return
		}
		opts.Limit = limit
	}

	result, err := h.service.ListFiles(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, err, "Storage operation failed")
		return
	}

	resp := FileListResponse{
		Files:     make([]FileResponse, 0, len(result.Objects)),
		Truncated: result.Truncated,
		Cursor:    result.Cursor,
	}
	for _, obj := range result.Objects {
		resp.Files = append(resp.Files, FileResponse{
			Key:            obj.Key,
			Size:           obj.Size,
			Uploaded:       obj.UploadedAt,
			ETag:           obj.ETag,
			CustomMetadata: obj.CustomMetadata,
		})
	}
	resp.Count = len(resp.Files)
	render.JSON(w, r, resp)
}

func (h *FilesHandler) download(w http.ResponseWriter, r *http.Request, key string) {
	obj, err := h.service.DownloadFile(r.Context(), key)
	if err != nil {
		h.writeFileError(w, r, err, key, "Storage operation failed")
		return
	}
	defer obj.Body.Close()

	etag := quoteETag(obj.ETag)
	header := w.Header()
	if etag != "" {
		header.Set("ETag", etag)
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = simplestore.DefaultContentType
	}
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		// headers are gone, all that is left is to log
		slog.Error("Failed to stream file", "key", key, "err", err)
	}
}

// UploadFile accepts multipart/form-data with a "file" part, or a raw body
// addressed by the X-File-Key header.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var input simplestore.UploadInput
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxMemory); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeServiceError(w, r, err, "Upload failed")
				return
			}
			writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: "Invalid multipart form data"})
			return
		}
		defer r.MultipartForm.RemoveAll()

		form := simplestore.FormUpload{Key: r.PostFormValue("path")}
		file, fileHeader, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			form.Body = file
			form.FileName = fileHeader.Filename
			form.ContentType = fileHeader.Header.Get("Content-Type")
		case errors.Is(err, http.ErrMissingFile):
		default:
			writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: "Invalid multipart form data"})
			return
		}
		input = form
	} else {
		input = simplestore.RawUpload{
			Key:         r.Header.Get("X-File-Key"),
			ContentType: r.Header.Get("Content-Type"),
			Body:        r.Body,
		}
	}

	result, err := h.service.UploadFile(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err, "Upload failed")
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{
		Message: "File uploaded successfully",
		File:    result,
		URL:     h.fileURL(result.Key),
	})
}

func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if err := h.service.DeleteFile(r.Context(), key); err != nil {
		h.writeFileError(w, r, err, key, "Delete failed")
		return
	}

	render.JSON(w, r, DeleteFileResponse{Message: "File deleted successfully", DeletedKey: key})
}

func (h *FilesHandler) writeFileError(w http.ResponseWriter, r *http.Request, err error, key, failure string) {
	if errors.Is(err, simplestore.ErrObjectNotFound) {
		writeError(w, r, http.StatusNotFound, ErrorResponse{Error: "File not found", Key: key})
		return
	}
	writeServiceError(w, r, err, failure)
}

// fileURL is the retrieval URL for key on this gateway
func (h *FilesHandler) fileURL(key string) string {
	return h.basePath + "/files?key=" + url.QueryEscape(key)
}

func quoteETag(etag string) string {
	if etag == "" || strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, `W/"`) {
		return etag
	}
	return `"` + etag + `"`
}

// etagMatches applies the weak comparison If-None-Match calls for
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}
