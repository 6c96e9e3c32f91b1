package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/abduss/shopdrop/internal/clock"
	"github.com/abduss/shopdrop/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sweepBatchSize = 500

// metadataStore indexes file records by tenant and expiry. Inserting the row is what
// makes a file visible; every lookup filters on the supplied now.
type metadataStore interface {
	Create(ctx context.Context, rec StoredFile) error
	Get(ctx context.Context, tenantID, id string, now time.Time) (StoredFile, error)
	List(ctx context.Context, tenantID string, now time.Time) ([]StoredFile, error)
	Delete(ctx context.Context, tenantID, id string, now time.Time) (StoredFile, error)
	DeleteExpired(ctx context.Context, now time.Time, limit int) ([]StoredFile, error)
}

// blobStore keeps payload bytes under an object name.
type blobStore interface {
	Put(ctx context.Context, objectName string, payload []byte, contentType string) error
	Get(ctx context.Context, objectName string) ([]byte, error)
	Remove(ctx context.Context, objectName string) error
}

// Store is the TTL-governed object store. A file is readable while now < ExpiresAt and
// is physically reclaimed by SweepExpired.
type Store struct {
	meta      metadataStore
	blobs     blobStore
	retention time.Duration
	clock     clock.Clock
	log       *zap.Logger
}

// NewStore wires the metadata index and payload storage.
func NewStore(meta metadataStore, blobs blobStore, retention time.Duration, clk clock.Clock, log *zap.Logger) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		meta:      meta,
		blobs:     blobs,
		retention: retention,
		clock:     clk,
		log:       log,
	}
}

// Put persists the payload and its metadata. The payload is written first; the metadata
// insert publishes the record, and if it fails the payload is removed again.
func (s *Store) Put(ctx context.Context, in PutInput) (StoredFile, error) {
	if strings.TrimSpace(in.TenantID) == "" {
		return StoredFile{}, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}

	id := uuid.NewString()
	objectName := fmt.Sprintf("%s/%s", url.PathEscape(in.TenantID), id)

	payload := bytes.Clone(in.Payload)
	if payload == nil {
		payload = []byte{}
	}
	size := in.SizeBytes
	if size <= 0 {
		size = int64(len(payload))
	}

	if err := s.blobs.Put(ctx, objectName, payload, in.MimeType); err != nil {
		return StoredFile{}, unavailable("store payload", err)
	}

	now := s.clock.Now().UTC().Truncate(time.Microsecond)
	rec := StoredFile{
		ID:           id,
		TenantID:     in.TenantID,
		DisplayName:  in.DisplayName,
		FileName:     sanitizeFilename(in.FileName),
		OriginalName: in.FileName,
		MimeType:     in.MimeType,
		SizeBytes:    size,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.retention),
		objectName:   objectName,
	}

	if err := s.meta.Create(ctx, rec); err != nil {
		s.removeBlob(context.WithoutCancel(ctx), objectName)
		return StoredFile{}, unavailable("create file metadata", err)
	}

	metrics.FilesStored.Inc()
	rec.Payload = payload
	return rec, nil
}

// Get returns the file with its payload. Unknown ids, other tenants' files and expired
// files all yield ErrNotFound.
func (s *Store) Get(ctx context.Context, id, tenantID string) (StoredFile, error) {
	if !validID(id) || tenantID == "" {
		return StoredFile{}, ErrNotFound
	}

	rec, err := s.meta.Get(ctx, tenantID, id, s.clock.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return StoredFile{}, ErrNotFound
		}
		return StoredFile{}, unavailable("get file metadata", err)
	}

	payload, err := s.blobs.Get(ctx, rec.objectName)
	if err != nil {
		if errors.Is(err, errBlobNotFound) {
			// reclaimed by a sweep between the two reads
			return StoredFile{}, ErrNotFound
		}
		return StoredFile{}, unavailable("fetch payload", err)
	}
	if !rec.Live(s.clock.Now()) {
		return StoredFile{}, ErrNotFound
	}

	rec.Payload = payload
	return rec, nil
}

// List returns the tenant's live files, newest first, without payloads.
func (s *Store) List(ctx context.Context, tenantID string) ([]StoredFile, error) {
	if tenantID == "" {
		return []StoredFile{}, nil
	}
	files, err := s.meta.List(ctx, tenantID, s.clock.Now())
	if err != nil {
		return nil, unavailable("list files", err)
	}
	if files == nil {
		files = []StoredFile{}
	}
	return files, nil
}

// Delete removes a live file owned by tenantID. It reports false for anything else.
func (s *Store) Delete(ctx context.Context, id, tenantID string) (bool, error) {
	if !validID(id) || tenantID == "" {
		return false, nil
	}

	rec, err := s.meta.Delete(ctx, tenantID, id, s.clock.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, unavailable("delete file metadata", err)
	}

	s.removeBlob(context.WithoutCancel(ctx), rec.objectName)
	metrics.FilesDeleted.Inc()
	return true, nil
}

// SweepExpired reclaims every record with ExpiresAt <= now and returns how many were removed.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	total := 0
	for {
		expired, err := s.meta.DeleteExpired(ctx, now, sweepBatchSize)
		if err != nil {
			return total, unavailable("delete expired metadata", err)
		}
		for _, rec := range expired {
			s.removeBlob(ctx, rec.objectName)
		}
		total += len(expired)
		if len(expired) < sweepBatchSize {
			break
		}
	}

	metrics.FilesSwept.Add(float64(total))
	return total, nil
}

func (s *Store) removeBlob(ctx context.Context, objectName string) {
	if err := s.blobs.Remove(ctx, objectName); err != nil && !errors.Is(err, errBlobNotFound) {
		s.log.Warn("remove payload", zap.String("object", objectName), zap.Error(err))
	}
}

func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

func validID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "upload"
	}
	return name
}
