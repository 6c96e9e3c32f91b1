package file

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/abduss/shopdrop/internal/auth"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts owner file operations under a group guarded by auth.Middleware.
func RegisterRoutes(group *gin.RouterGroup, store *Store, linkTTL time.Duration) {
	handler := &httpHandler{store: store, linkTTL: linkTTL}
	group.GET("/files", handler.listFiles)
	group.GET("/files/:fileID", handler.downloadFile)
	group.POST("/files/:fileID/link", handler.createLink)
	group.DELETE("/files/:fileID", handler.deleteFile)
}

type httpHandler struct {
	store   *Store
	linkTTL time.Duration
}

func (h *httpHandler) listFiles(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	files, err := h.store.List(c.Request.Context(), tenantID)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to list files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *httpHandler) downloadFile(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rec, err := h.store.Get(c.Request.Context(), c.Param("fileID"), tenantID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		default:
			c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to download file"})
		}
		return
	}

	contentType := rec.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.FileName))
	c.Header("Content-Length", strconv.Itoa(len(rec.Payload)))
	c.Data(http.StatusOK, contentType, rec.Payload)
}

func (h *httpHandler) createLink(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	link, err := h.store.DownloadLink(c.Request.Context(), c.Param("fileID"), tenantID, h.linkTTL)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		case errors.Is(err, ErrLinksUnsupported):
			c.JSON(http.StatusNotImplemented, gin.H{"error": "download links are not available"})
		default:
			c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to create download link"})
		}
		return
	}

	c.JSON(http.StatusCreated, link)
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	deleted, err := h.store.Delete(c.Request.Context(), c.Param("fileID"), tenantID)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to delete file"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
