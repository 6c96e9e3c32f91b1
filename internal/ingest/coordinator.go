// Package ingest accepts customer uploads: it rate-limits, persists and notifies.
package ingest

import (
	"context"
	"fmt"

	"github.com/abduss/shopdrop/internal/channel"
	"github.com/abduss/shopdrop/internal/clock"
	"github.com/abduss/shopdrop/internal/file"
	"github.com/abduss/shopdrop/internal/ratelimit"
	"go.uber.org/zap"
)

// fileStore is the part of the object store the coordinator needs.
type fileStore interface {
	Put(ctx context.Context, in file.PutInput) (file.StoredFile, error)
}

// Upload is an accepted customer upload addressed to a shop.
type Upload struct {
	TenantID     string
	CustomerName string
	FileName     string
	MimeType     string
	SizeBytes    int64
	Payload      []byte
}

// Coordinator runs the upload pipeline.
type Coordinator struct {
	limiter   ratelimit.Limiter
	store     fileStore
	publisher channel.Publisher
	clock     clock.Clock
	log       *zap.Logger
}

// NewCoordinator wires the limiter, store and event publisher.
func NewCoordinator(limiter ratelimit.Limiter, store fileStore, publisher channel.Publisher, clk clock.Clock, log *zap.Logger) *Coordinator {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		limiter:   limiter,
		store:     store,
		publisher: publisher,
		clock:     clk,
		log:       log,
	}
}

// Submit consumes a rate slot for the shop, stores the file and announces it to the
// shop's dashboards. A rejected or failed upload publishes nothing; a publish never undoes
// the stored file. The returned record carries no payload.
func (c *Coordinator) Submit(ctx context.Context, up Upload) (file.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return file.StoredFile{}, err
	}

	if !c.limiter.Consume(ctx, up.TenantID) {
		c.log.Info("upload rate limited", zap.String("tenant_id", up.TenantID))
		return file.StoredFile{}, ErrRateLimited
	}

	rec, err := c.store.Put(ctx, file.PutInput{
		TenantID:    up.TenantID,
		DisplayName: up.CustomerName,
		FileName:    up.FileName,
		MimeType:    up.MimeType,
		SizeBytes:   up.SizeBytes,
		Payload:     up.Payload,
	})
	if err != nil {
		return file.StoredFile{}, fmt.Errorf("store upload: %w", err)
	}

	c.publisher.Publish(ctx, rec.TenantID, channel.Event{
		Type:      channel.EventFileUploaded,
		TenantID:  rec.TenantID,
		Timestamp: c.clock.Now(),
		File: channel.FileCreated{
			ID:          rec.ID,
			DisplayName: rec.DisplayName,
			FileName:    rec.FileName,
			SizeBytes:   rec.SizeBytes,
			MimeType:    rec.MimeType,
			CreatedAt:   rec.CreatedAt,
			ExpiresAt:   rec.ExpiresAt,
		},
	})

	c.log.Info("upload stored",
		zap.String("tenant_id", rec.TenantID),
		zap.String("file_id", rec.ID),
		zap.Int64("size_bytes", rec.SizeBytes),
	)
	return rec.Metadata(), nil
}
