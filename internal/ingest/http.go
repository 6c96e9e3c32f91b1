package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/abduss/shopdrop/internal/config"
	"github.com/abduss/shopdrop/internal/file"
	"github.com/gin-gonic/gin"
)

// multipartOverhead leaves room for form fields and boundaries on top of the file limit.
const multipartOverhead = 1 << 20

const multipartMemory = 32 << 20

// shopDirectory tells registered shops apart from arbitrary path segments.
type shopDirectory interface {
	Exists(ctx context.Context, shopID string) (bool, error)
}

// RegisterRoutes mounts the public upload endpoint.
func RegisterRoutes(group *gin.RouterGroup, coordinator *Coordinator, shops shopDirectory, cfg config.UploadConfig) {
	handler := &httpHandler{coordinator: coordinator, shops: shops, cfg: cfg}
	group.POST("/shops/:shopID/uploads", handler.upload)
}

type httpHandler struct {
	coordinator *Coordinator
	shops       shopDirectory
	cfg         config.UploadConfig
}

func (h *httpHandler) upload(c *gin.Context) {
	if err := h.checkShop(c.Request.Context(), c.Param("shopID")); err != nil {
		switch {
		case errors.Is(err, ErrShopNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Shop not found"})
		case c.Request.Context().Err() != nil:
			c.Error(err)
			c.Abort()
		default:
			c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Upload failed"})
		}
		return
	}

	up, err := h.readUpload(c)
	if err != nil {
		if ctxErr := c.Request.Context().Err(); ctxErr != nil {
			c.Error(ctxErr)
			c.Abort()
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), ErrInvalidUpload.Error()+": ")})
		return
	}

	rec, err := h.coordinator.Submit(c.Request.Context(), up)
	if err != nil {
		switch {
		case errors.Is(err, ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please wait before uploading again."})
		case errors.Is(err, file.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload"})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			c.Error(err)
			c.Abort()
		default:
			c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Upload failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "File uploaded successfully",
		"file":    rec,
	})
}

func (h *httpHandler) checkShop(ctx context.Context, shopID string) error {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return ErrShopNotFound
	}
	exists, err := h.shops.Exists(ctx, shopID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrShopNotFound
	}
	return nil
}

func (h *httpHandler) readUpload(c *gin.Context) (Upload, error) {
	shopID := strings.TrimSpace(c.Param("shopID"))
	if shopID == "" {
		return Upload{}, invalid("shop id is required")
	}

	limit := h.cfg.MaxBytes + multipartOverhead
	if c.Request.ContentLength > limit {
		return Upload{}, invalid("File size exceeds %s limit", sizeLabel(h.cfg.MaxBytes))
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return Upload{}, invalid("File size exceeds %s limit", sizeLabel(h.cfg.MaxBytes))
		}
		return Upload{}, invalid("Missing required fields")
	}

	customerName := strings.TrimSpace(c.Request.FormValue("customerName"))
	header, err := c.FormFile("file")
	if err != nil || customerName == "" {
		return Upload{}, invalid("Missing required fields")
	}
	if header.Size > h.cfg.MaxBytes {
		return Upload{}, invalid("File size exceeds %s limit", sizeLabel(h.cfg.MaxBytes))
	}

	mimeType := mediaType(header)
	if !slices.Contains(h.cfg.AllowedMIMETypes, mimeType) {
		return Upload{}, invalid("File type not allowed")
	}

	payload, err := readFormFile(header)
	if err != nil {
		return Upload{}, invalid("unreadable file")
	}

	return Upload{
		TenantID:     shopID,
		CustomerName: customerName,
		FileName:     header.Filename,
		MimeType:     mimeType,
		SizeBytes:    header.Size,
		Payload:      payload,
	}, nil
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func mediaType(header *multipart.FileHeader) string {
	raw := header.Header.Get("Content-Type")
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return strings.ToLower(parsed)
}

func sizeLabel(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidUpload, fmt.Sprintf(format, args...))
}
