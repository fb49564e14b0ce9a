package drivegate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// TransferRepo defines the interface for the metadata index.
// Implementations must be safe under concurrent appends: either serialize
// mutations behind a single in-process lock (file backend) or rely on a
// transactional store (sqlite, postgres).
//
// All methods accept a context for cancellation and timeout control.
type TransferRepo interface {
	// Append adds a record for a successful upload. Records are never
	// mutated in place.
	Append(ctx context.Context, rec TransferRecord) error

	// List returns records newest-first. A limit of 0 means no limit.
	List(ctx context.Context, limit int) ([]TransferRecord, error)

	// Get retrieves the record for a storage id.
	// Returns ErrNotFound if no record exists.
	Get(ctx context.Context, storageID string) (TransferRecord, error)

	// Count reports the number of records in the index.
	Count(ctx context.Context) (int, error)
}

// Storage defines the operations the gateway calls against the storage
// provider. Implementations stream payloads and apply the single bounded
// retry after a credential invalidation; callers never see more than one
// re-exchange per operation.
type Storage interface {
	// Create streams content into a new provider object and returns the
	// provider's view of it. The content must be seekable so the one
	// bounded retry can replay the body.
	Create(ctx context.Context, req UploadRequest, content io.ReadSeeker) (StoredObject, error)

	// Meta fetches object metadata (name, mime type, size).
	// Returns ErrNotFound if the object does not exist.
	Meta(ctx context.Context, id string) (StoredObject, error)

	// Stream opens the object's media bytes for reading.
	// The caller is responsible for closing the returned ReadCloser.
	Stream(ctx context.Context, id string) (io.ReadCloser, error)

	// List enumerates objects in the configured container.
	List(ctx context.Context) ([]StoredObject, error)

	// AllowPublicRead grants anyone read access to the object.
	AllowPublicRead(ctx context.Context, id string) error
}

// Service is the transfer proxy: it moves file bytes between client and
// storage provider without the gateway becoming a durable store of those
// bytes itself, and keeps the metadata index alongside.
type Service struct {
	repo       TransferRepo
	storage    Storage
	listSource ListSource
	makePublic bool
}

// ServiceConfig holds configuration options for Service.
type ServiceConfig struct {
	ListSource ListSource
	MakePublic bool
}

func NewService(repo TransferRepo, storage Storage, cfg ServiceConfig) (*Service, error) {
	if !cfg.ListSource.IsValid() {
		return nil, fmt.Errorf("new service: invalid list source: %s", cfg.ListSource)
	}
	return &Service{
		repo:       repo,
		storage:    storage,
		listSource: cfg.ListSource,
		makePublic: cfg.MakePublic,
	}, nil
}

// Upload streams content into the storage provider and records the
// transfer in the metadata index.
//
// A failed index append after a successful provider create does not roll
// the upload back: the object exists at the provider, so the record is
// still returned and the inconsistency is logged loudly for the sync
// command to reconcile.
func (s *Service) Upload(ctx context.Context, req UploadRequest, content io.ReadSeeker) (TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return TransferRecord{}, fmt.Errorf("upload: %w", err)
	}

	if req.Name == "" {
		return TransferRecord{}, fmt.Errorf("upload: %w: name cannot be empty", ErrInvalidInput)
	}

	if req.MimeType == "" {
		req.MimeType = "application/octet-stream"
	}

	obj, err := s.storage.Create(ctx, req, content)
	if err != nil {
		return TransferRecord{}, fmt.Errorf("upload %s: %w", req.Name, err)
	}

	if s.makePublic {
		// Best-effort side effect, never a precondition of upload success.
		if grantErr := s.storage.AllowPublicRead(ctx, obj.ID); grantErr != nil {
			slog.Warn("public read grant failed", "storage_id", obj.ID, "err", grantErr)
		}
	}

	rec := TransferRecord{
		ID:         uuid.New(),
		StorageID:  obj.ID,
		Name:       obj.Name,
		Caption:    req.Caption,
		UploadedBy: req.UploadedBy,
		MimeType:   obj.MimeType,
		SizeBytes:  obj.SizeBytes,
		UploadedAt: time.Now().UTC(),
	}

	if appendErr := s.repo.Append(ctx, rec); appendErr != nil {
		// The object exists at the provider but is invisible to /list
		// until the next sync run.
		slog.Error("index append failed after successful upload",
			"storage_id", obj.ID, "name", obj.Name, "err", appendErr)
	}

	return rec, nil
}

// Download fetches object metadata and opens the media stream.
// The caller writes response headers from the returned StoredObject and
// is responsible for closing the stream.
func (s *Service) Download(ctx context.Context, id string) (StoredObject, io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, nil, fmt.Errorf("download: %w", err)
	}

	if id == "" {
		return StoredObject{}, nil, fmt.Errorf("download: %w: id cannot be empty", ErrInvalidInput)
	}

	obj, err := s.storage.Meta(ctx, id)
	if err != nil {
		return StoredObject{}, nil, fmt.Errorf("download %s: %w", id, err)
	}

	body, err := s.storage.Stream(ctx, id)
	if err != nil {
		return StoredObject{}, nil, fmt.Errorf("download %s: %w", id, err)
	}

	return obj, body, nil
}

// List returns transfer records, newest first. Depending on deployment
// configuration it reads either the metadata index or the provider's
// list call; the two modes are never combined.
func (s *Service) List(ctx context.Context, limit int) ([]TransferRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	if s.listSource == ListFromIndex {
		records, err := s.repo.List(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		return records, nil
	}

	objects, err := s.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	records := make([]TransferRecord, 0, len(objects))
	for _, obj := range objects {
		records = append(records, TransferRecord{
			StorageID: obj.ID,
			Name:      obj.Name,
			MimeType:  obj.MimeType,
			SizeBytes: obj.SizeBytes,
		})
	}
	return records, nil
}

// Sync reconciles the metadata index against the storage provider.
// Objects present at the provider but missing from the index get a record
// appended; existing records are left untouched. It returns the number of
// records added.
//
// This is the recovery path for uploads whose index append failed.
func (s *Service) Sync(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}

	objects, err := s.storage.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("sync: %w", err)
	}

	added := 0
	for _, obj := range objects {
		_, getErr := s.repo.Get(ctx, obj.ID)
		if getErr == nil {
			continue
		}
		if !errors.Is(getErr, ErrNotFound) {
			return added, fmt.Errorf("sync '%s': %w", obj.ID, getErr)
		}

		rec := TransferRecord{
			ID:         uuid.New(),
			StorageID:  obj.ID,
			Name:       obj.Name,
			MimeType:   obj.MimeType,
			SizeBytes:  obj.SizeBytes,
			UploadedAt: time.Now().UTC(),
		}
		if appendErr := s.repo.Append(ctx, rec); appendErr != nil {
			return added, fmt.Errorf("sync '%s': %w", obj.ID, appendErr)
		}
		added++
	}

	return added, nil
}

// IndexSize reports the number of records in the metadata index.
func (s *Service) IndexSize(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
