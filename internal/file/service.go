package file

import (
	"context"
	"fmt"
	"mime/multipart"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxFileSize = 100 * 1024 * 1024 // 100MB

// UsageEntry summarizes one file type's footprint for a user.
type UsageEntry struct {
	Count       int       `json:"count"`
	TotalBytes  int64     `json:"total_bytes"`
	LastUpdated time.Time `json:"last_updated"`
}

// usageStore is the aggregate view the repository provides on top of the
// gateway contract.
type usageStore interface {
	UsageByType(ctx context.Context, ownerID uuid.UUID) (map[FileType]UsageEntry, error)
}

// Service wires the query engine, per-file dispatchers, and the upload
// flow over the persistence gateway.
type Service struct {
	gw          MetadataGateway
	blobs       BlobGateway
	usage       usageStore
	engine      *Engine
	cache       *Cache
	logger      *zap.Logger
	maxFileSize int64

	mu          sync.Mutex
	dispatchers map[uuid.UUID]*Dispatcher
}

// NewService constructs a file service.
func NewService(gw MetadataGateway, blobs BlobGateway, usage usageStore, cache *Cache, logger *zap.Logger) *Service {
	return &Service{
		gw:          gw,
		blobs:       blobs,
		usage:       usage,
		engine:      NewEngine(gw, cache, logger),
		cache:       cache,
		logger:      logger.Named("file_service"),
		maxFileSize: defaultMaxFileSize,
		dispatchers: make(map[uuid.UUID]*Dispatcher),
	}
}

// Engine exposes the query engine for non-interactive list views.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Dispatcher returns the dispatcher bound to the given file, creating it
// on first use. One dispatcher per file enforces the one-in-flight rule;
// dispatchers for distinct files are fully independent.
func (s *Service) Dispatcher(ctx context.Context, owner OwnerScope, fileID uuid.UUID) (*Dispatcher, error) {
	rec, err := s.engine.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != owner.UserID && !rec.SharedWithContains(owner.Email) {
		return nil, ErrFileNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.dispatchers[fileID]; ok {
		return d, nil
	}
	d := NewDispatcher(rec, s.gw, s.blobs, s.cache, s.logger)
	s.dispatchers[fileID] = d
	return d, nil
}

// Release drops the dispatcher for a file, used after deletion.
func (s *Service) Release(fileID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dispatchers, fileID)
}

// Upload stores the blob first, then the metadata record, rolling back
// the blob when the record write fails.
func (s *Service) Upload(ctx context.Context, owner OwnerScope, fileHeader *multipart.FileHeader) (Record, error) {
	if fileHeader == nil {
		return Record{}, &ValidationError{Field: "file", Reason: "missing payload"}
	}
	if fileHeader.Size > s.maxFileSize {
		return Record{}, &ValidationError{Field: "file", Reason: "exceeds size limit"}
	}

	name, ext := SplitFilename(fileHeader.Filename)
	if name == "" {
		return Record{}, &ValidationError{Field: "file", Reason: "missing filename"}
	}

	fileID := uuid.New()
	blobRef := fmt.Sprintf("%s/%s", owner.UserID, fileID)

	src, err := fileHeader.Open()
	if err != nil {
		return Record{}, fmt.Errorf("open upload file: %w", err)
	}
	defer src.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.blobs.PutBlob(ctx, blobRef, src, fileHeader.Size, contentType); err != nil {
		return Record{}, asGatewayError("put blob", err)
	}

	rec := Record{
		ID:         fileID,
		Name:       name,
		Extension:  ext,
		Type:       DeriveType(ext),
		SizeBytes:  fileHeader.Size,
		BlobRef:    blobRef,
		OwnerID:    owner.UserID,
		OwnerEmail: owner.Email,
		SharedWith: []string{},
	}

	stored, err := s.gw.Create(ctx, rec)
	if err != nil {
		if cleanupErr := s.blobs.DeleteBlob(ctx, blobRef); cleanupErr != nil {
			s.logger.Warn("orphaned blob after failed create",
				zap.String("blob_ref", blobRef), zap.Error(cleanupErr))
		}
		return Record{}, asGatewayError("create record", err)
	}

	s.logger.Info("file uploaded",
		zap.String("file_id", stored.ID.String()),
		zap.String("type", string(stored.Type)),
		zap.Int64("size_bytes", stored.SizeBytes),
	)
	return stored, nil
}

// Usage returns the caller's per-type storage summary.
func (s *Service) Usage(ctx context.Context, owner OwnerScope) (map[FileType]UsageEntry, error) {
	usage, err := s.usage.UsageByType(ctx, owner.UserID)
	if err != nil {
		return nil, asGatewayError("usage", err)
	}
	return usage, nil
}
