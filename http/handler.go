package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/dostvardhan/drivegate"
)

// defaultMultipartMemory bounds how much of a multipart body is held in
// memory before spooling to a temp file; the spooled file is what makes
// the upload body replayable for the bounded credential retry.
const defaultMultipartMemory = 10 << 20

type Service interface {
	Upload(ctx context.Context, req drivegate.UploadRequest, content io.ReadSeeker) (drivegate.TransferRecord, error)
	Download(ctx context.Context, id string) (drivegate.StoredObject, io.ReadCloser, error)
	List(ctx context.Context, limit int) ([]drivegate.TransferRecord, error)
	IndexSize(ctx context.Context) (int, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	Verifier      TokenVerifier
	Policy        Authorizer
	CORS          CORSConfig
	MaxUploadSize int64
	Version       string
	ListSource    string
}

// Handler provides the gateway's HTTP surface.
type Handler struct {
	config  HandlerConfig
	service Service
	started time.Time
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
		started: time.Now(),
	}
}

// Router returns an http.Handler with the gateway routes. Liveness
// endpoints are unauthenticated; everything else sits behind the bearer
// token middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/health", h.handleHealth)
	r.Get("/diag", h.handleDiag)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.config.Verifier, h.config.Policy))
		r.Get("/list", h.handleList)
		r.Post("/upload", h.handleUpload)
		r.Get("/file/{id}", h.handleDownload)
		r.Get("/api/file/{id}", h.handleDownload)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "ok"})
}

func (h *Handler) handleDiag(w http.ResponseWriter, r *http.Request) {
	diag := map[string]any{
		"ok":             true,
		"version":        h.config.Version,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"list_source":    h.config.ListSource,
	}

	if size, err := h.service.IndexSize(r.Context()); err == nil {
		diag["index_size"] = size
	} else {
		slog.Warn("diag: index size unavailable", "err", err)
	}

	_ = WriteJSON(w, http.StatusOK, diag)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			WriteError(w, http.StatusBadRequest, "invalid_parameter", "Invalid limit")
			return
		}
		limit = min(1000, parsed)
	}

	records, err := h.service.List(r.Context(), limit)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "files": records})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if h.config.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	if err := r.ParseMultipartForm(defaultMultipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "Upload exceeds size limit")
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_multipart", "Malformed multipart body")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "no_file", "Missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}

	identity, _ := IdentityFromContext(r.Context())
	uploadedBy := identity.Email
	if uploadedBy == "" {
		uploadedBy = identity.Subject
	}

	req := drivegate.UploadRequest{
		Name:       filepath.Base(header.Filename),
		Caption:    r.FormValue("caption"),
		MimeType:   mimeType,
		UploadedBy: uploadedBy,
	}

	rec, err := h.service.Upload(r.Context(), req, file)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "file": rec})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	obj, body, err := h.service.Download(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = body.Close() }()

	mimeType := obj.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	if obj.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.SizeBytes, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", obj.Name))

	if _, err := io.Copy(w, body); err != nil {
		// Headers are already gone; all we can do is log and drop the
		// connection, which also cancels the upstream read.
		slog.Error("download stream aborted", "storage_id", id, "err", err)
	}
}
