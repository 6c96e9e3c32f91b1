package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abduss/shopdrop/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func newTestVerifier() *Verifier {
	return NewVerifier(config.AuthConfig{TokenSecret: "session-secret", CookieName: "token"})
}

func TestVerifyRoundTrip(t *testing.T) {
	v := newTestVerifier()

	token, err := v.Sign(Session{UserID: "u1", Email: "owner@example.com", TenantID: "shop1"}, time.Hour)
	if err != nil {
		t.Fatalf("sign returned error: %v", err)
	}

	session, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify returned error: %v", err)
	}
	if session.UserID != "u1" || session.Email != "owner@example.com" || session.TenantID != "shop1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.ExpiresAt.IsZero() {
		t.Fatalf("expected expiry to be populated")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := newTestVerifier()
	token, err := v.Sign(Session{UserID: "u1", TenantID: "shop1"}, time.Minute)
	if err != nil {
		t.Fatalf("sign returned error: %v", err)
	}

	v.nowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := v.Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	other := NewVerifier(config.AuthConfig{TokenSecret: "another-secret"})
	token, err := other.Sign(Session{UserID: "u1", TenantID: "shop1"}, time.Hour)
	if err != nil {
		t.Fatalf("sign returned error: %v", err)
	}

	if _, err := newTestVerifier().Verify(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifyRejectsUnexpectedAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId": "u1",
		"shopId": "shop1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign returned error: %v", err)
	}

	if _, err := newTestVerifier().Verify(signed); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifyRequiresShop(t *testing.T) {
	v := newTestVerifier()
	token, err := v.Sign(Session{UserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("sign returned error: %v", err)
	}

	_, err = v.Verify(token)
	if !errors.Is(err, ErrUnauthorized) || !errors.Is(err, ErrMissingShop) {
		t.Fatalf("expected ErrMissingShop, got %v", err)
	}
}

func TestMiddlewareAcceptsBearerAndCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := newTestVerifier()
	token, err := v.Sign(Session{UserID: "u1", TenantID: "shop1"}, time.Hour)
	if err != nil {
		t.Fatalf("sign returned error: %v", err)
	}

	r := gin.New()
	r.Use(Middleware(v, "token"))
	r.GET("/whoami", func(c *gin.Context) {
		tenant, ok := TenantID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, tenant)
	})

	bearer := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	bearer.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, bearer)
	if rr.Code != http.StatusOK || rr.Body.String() != "shop1" {
		t.Fatalf("bearer: expected 200 shop1, got %d %q", rr.Code, rr.Body.String())
	}

	cookie := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	cookie.AddCookie(&http.Cookie{Name: "token", Value: token})
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, cookie)
	if rr.Code != http.StatusOK || rr.Body.String() != "shop1" {
		t.Fatalf("cookie: expected 200 shop1, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestMiddlewareRejectsMissingOrBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(newTestVerifier(), "token"))
	r.GET("/whoami", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"garbage":    "Bearer not-a-token",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rr.Code)
		}
	}
}

func TestSessionEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := newTestVerifier()
	token, err := v.Sign(Session{UserID: "u1", Email: "owner@example.com", TenantID: "shop1"}, time.Hour)
	if err != nil {
		t.Fatalf("sign returned error: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r.Group("/v1", Middleware(v, "token")))

	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
