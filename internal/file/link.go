package file

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// linkSigner is implemented by payload backends that can hand out direct download URLs.
type linkSigner interface {
	PresignGet(ctx context.Context, objectName, fileName string, ttl time.Duration) (string, error)
}

// DownloadLink is a time-limited URL for fetching a payload straight from object storage.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// DownloadLink signs a direct URL for a live file. The link never outlives the file.
func (s *Store) DownloadLink(ctx context.Context, id, tenantID string, maxTTL time.Duration) (DownloadLink, error) {
	signer, ok := s.blobs.(linkSigner)
	if !ok {
		return DownloadLink{}, ErrLinksUnsupported
	}
	if !validID(id) || tenantID == "" {
		return DownloadLink{}, ErrNotFound
	}

	now := s.clock.Now()
	rec, err := s.meta.Get(ctx, tenantID, id, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DownloadLink{}, ErrNotFound
		}
		return DownloadLink{}, unavailable("get file metadata", err)
	}

	ttl := rec.ExpiresAt.Sub(now)
	if maxTTL > 0 && maxTTL < ttl {
		ttl = maxTTL
	}
	// object storage signs in whole seconds
	ttl = ttl.Truncate(time.Second)
	if ttl < time.Second {
		return DownloadLink{}, ErrNotFound
	}

	signed, err := signer.PresignGet(ctx, rec.objectName, rec.FileName, ttl)
	if err != nil {
		return DownloadLink{}, unavailable("sign download link", err)
	}
	return DownloadLink{URL: signed, ExpiresAt: now.Add(ttl)}, nil
}

// PresignGet signs a GET URL that downloads the object as an attachment.
func (s *MinIOBlobStore) PresignGet(ctx context.Context, objectName, fileName string, ttl time.Duration) (string, error) {
	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}
