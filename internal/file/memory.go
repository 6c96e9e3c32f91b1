package file

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-process metadata index. Every read returns copies, and a
// sweep removes rows under the write lock, so readers see a record entirely or not at all.
type MemoryRepository struct {
	mu       sync.RWMutex
	records  map[string]StoredFile
	byTenant map[string]map[string]struct{}
	seq      int64
}

// NewMemoryRepository creates an empty index.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records:  make(map[string]StoredFile),
		byTenant: make(map[string]map[string]struct{}),
	}
}

func (r *MemoryRepository) Create(_ context.Context, rec StoredFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		return fmt.Errorf("file %s already exists", rec.ID)
	}
	r.seq++
	rec.seq = r.seq
	rec.Payload = nil
	r.records[rec.ID] = rec

	ids, ok := r.byTenant[rec.TenantID]
	if !ok {
		ids = make(map[string]struct{})
		r.byTenant[rec.TenantID] = ids
	}
	ids[rec.ID] = struct{}{}
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, tenantID, id string, now time.Time) (StoredFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok || rec.TenantID != tenantID || !rec.Live(now) {
		return StoredFile{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) List(_ context.Context, tenantID string, now time.Time) ([]StoredFile, error) {
	r.mu.RLock()
	files := make([]StoredFile, 0, len(r.byTenant[tenantID]))
	for id := range r.byTenant[tenantID] {
		if rec := r.records[id]; rec.Live(now) {
			files = append(files, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(files, func(i, j int) bool {
		if !files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].CreatedAt.After(files[j].CreatedAt)
		}
		return files[i].seq > files[j].seq
	})
	return files, nil
}

func (r *MemoryRepository) Delete(_ context.Context, tenantID, id string, now time.Time) (StoredFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.TenantID != tenantID || !rec.Live(now) {
		return StoredFile{}, ErrNotFound
	}
	r.removeLocked(rec)
	return rec, nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, now time.Time, limit int) ([]StoredFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []StoredFile
	for _, rec := range r.records {
		if limit > 0 && len(expired) >= limit {
			break
		}
		if !rec.Live(now) {
			expired = append(expired, rec)
		}
	}
	for _, rec := range expired {
		r.removeLocked(rec)
	}
	return expired, nil
}

// Len reports the number of physically present records, expired or not.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *MemoryRepository) removeLocked(rec StoredFile) {
	delete(r.records, rec.ID)
	if ids, ok := r.byTenant[rec.TenantID]; ok {
		delete(ids, rec.ID)
		if len(ids) == 0 {
			delete(r.byTenant, rec.TenantID)
		}
	}
}

// MemoryBlobStore keeps payloads in process memory.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore creates an empty payload store.
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Put(_ context.Context, objectName string, payload []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[objectName] = bytes.Clone(payload)
	return nil
}

func (s *MemoryBlobStore) Get(_ context.Context, objectName string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.blobs[objectName]
	if !ok {
		return nil, errBlobNotFound
	}
	out := bytes.Clone(payload)
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

func (s *MemoryBlobStore) Remove(_ context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[objectName]; !ok {
		return errBlobNotFound
	}
	delete(s.blobs, objectName)
	return nil
}

// Len reports the number of stored payloads.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
