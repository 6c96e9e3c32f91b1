package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/abduss/shopdrop/internal/auth"
	"github.com/abduss/shopdrop/internal/channel"
	"github.com/abduss/shopdrop/internal/clock"
	"github.com/abduss/shopdrop/internal/config"
	"github.com/abduss/shopdrop/internal/file"
	"github.com/abduss/shopdrop/internal/ingest"
	"github.com/abduss/shopdrop/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router   *gin.Engine
	clock    *clock.Fake
	verifier *auth.Verifier
	registry *channel.Registry
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Store:   config.StoreConfig{Backend: config.BackendMemory, Retention: 24 * time.Hour, SweepInterval: time.Hour, LinkTTL: 15 * time.Minute},
		Rate:    config.RateLimitConfig{Limit: 5, Window: time.Minute},
		Upload:  config.UploadConfig{MaxBytes: 10 << 20, AllowedMIMETypes: []string{"image/png", "application/pdf"}},
		Shops:   config.ShopConfig{Known: []string{"shop1", "shop2"}},
		Events:  config.EventsConfig{Heartbeat: 50 * time.Millisecond, BufferSize: 8},
		Auth:    config.AuthConfig{TokenSecret: "test-secret", CookieName: "token"},
		Metrics: config.MetricsConfig{PrometheusPath: "/metrics"},
	}

	clk := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	store := file.NewStore(file.NewMemoryRepository(), file.NewMemoryBlobStore(), cfg.Store.Retention, clk, nil)
	registry := channel.NewRegistry(nil)
	limiter := ratelimit.NewMemory(cfg.Rate.Limit, cfg.Rate.Window, clk)
	verifier := auth.NewVerifier(cfg.Auth)

	router := NewRouter(Dependencies{
		Config:      cfg,
		Verifier:    verifier,
		Store:       store,
		Coordinator: ingest.NewCoordinator(limiter, store, registry, clk, nil),
		Registry:    registry,
	})
	return testEnv{router: router, clock: clk, verifier: verifier, registry: registry}
}

func (e testEnv) token(t *testing.T, shopID string) string {
	t.Helper()
	token, err := e.verifier.Sign(auth.Session{UserID: "owner-" + shopID, Email: shopID + "@example.com", TenantID: shopID}, time.Hour)
	require.NoError(t, err)
	return token
}

func (e testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func uploadRequest(t *testing.T, shopID, customer string, payload []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("customerName", customer))
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="doc.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/shops/"+shopID+"/uploads", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func authed(method, target, token string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

type listResponse struct {
	Files []struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		SizeBytes   int64  `json:"sizeBytes"`
	} `json:"files"`
}

func TestUploadListDownloadDelete(t *testing.T) {
	env := newTestEnv(t)
	owner := env.token(t, "shop1")

	payload := bytes.Repeat([]byte{0x89}, 2048)
	rr := env.do(uploadRequest(t, "shop1", "Alice", payload))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(authed(http.MethodGet, "/v1/files", owner))
	require.Equal(t, http.StatusOK, rr.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Files, 1)
	assert.Equal(t, "Alice", list.Files[0].DisplayName)
	assert.Equal(t, int64(2048), list.Files[0].SizeBytes)
	fileID := list.Files[0].ID

	rr = env.do(authed(http.MethodGet, "/v1/files/"+fileID, owner))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, payload, rr.Body.Bytes())
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `attachment; filename="doc.png"`)

	rr = env.do(authed(http.MethodPost, "/v1/files/"+fileID+"/link", owner))
	assert.Equal(t, http.StatusNotImplemented, rr.Code)

	other := env.token(t, "shop2")
	rr = env.do(authed(http.MethodGet, "/v1/files/"+fileID, other))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = env.do(authed(http.MethodDelete, "/v1/files/"+fileID, other))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(authed(http.MethodDelete, "/v1/files/"+fileID, owner))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(authed(http.MethodGet, "/v1/files/"+fileID, owner))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFilesExpireAfterRetention(t *testing.T) {
	env := newTestEnv(t)
	owner := env.token(t, "shop1")

	rr := env.do(uploadRequest(t, "shop1", "Alice", []byte("x")))
	require.Equal(t, http.StatusCreated, rr.Code)

	var created struct {
		File struct {
			ID string `json:"id"`
		} `json:"file"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	env.clock.Advance(24*time.Hour + time.Second)

	rr = env.do(authed(http.MethodGet, "/v1/files/"+created.File.ID, owner))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(authed(http.MethodGet, "/v1/files", owner))
	require.Equal(t, http.StatusOK, rr.Code)
	var list listResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Empty(t, list.Files)
}

func TestSixthUploadInWindowIsRateLimited(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		rr := env.do(uploadRequest(t, "shop1", "Alice", []byte("x")))
		require.Equal(t, http.StatusCreated, rr.Code)
		env.clock.Advance(2 * time.Second)
	}
	rr := env.do(uploadRequest(t, "shop1", "Alice", []byte("x")))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestUploadToUnknownShopIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(uploadRequest(t, "no-such-shop-9f3c", "Alice", []byte("x")))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Shop not found"}`, rr.Body.String())
}

func TestOwnerRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/v1/files", "/v1/events", "/v1/session"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, target)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestEventStreamReceivesUploads(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "token", Value: env.token(t, "shop1")})

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	waitFor(t, lines, "event:connected")
	require.Equal(t, 1, env.registry.Count("shop1"))

	upload := httptest.NewRecorder()
	env.router.ServeHTTP(upload, uploadRequest(t, "shop1", "Alice", make([]byte, 2048)))
	require.Equal(t, http.StatusCreated, upload.Code)

	waitFor(t, lines, "event:"+channel.EventFileUploaded)
	data := waitFor(t, lines, "data:")
	assert.Contains(t, data, `"displayName":"Alice"`)
	assert.Contains(t, data, `"sizeBytes":2048`)

	waitFor(t, lines, ": heartbeat")

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for env.registry.Count("shop1") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber was not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitFor(t *testing.T, lines <-chan string, prefix string) string {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed before %q", prefix)
			}
			if strings.HasPrefix(line, prefix) {
				return line
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", prefix)
		}
	}
}
