package handlers_test

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

func TestJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	rsaSigner, err := auth.NewRSASigner(key, nil)
	if err != nil {
		t.Fatalf("rsa signer: %v", err)
	}
	hmacSigner, err := auth.NewHMACSigner("secret")
	if err != nil {
		t.Fatalf("hmac signer: %v", err)
	}

	t.Run("rs256_publishes_keys_with_etag", func(t *testing.T) {
		r := gin.New()
		r.GET("/.well-known/jwks.json", handlers.JWKS(rsaSigner))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status: %d", w.Code)
		}

		body := decode(t, w)
		keys, _ := body["keys"].([]any)
		if len(keys) != 1 {
			t.Fatalf("keys: %v", body)
		}
		if k, _ := keys[0].(map[string]any); k["kid"] != rsaSigner.KeyID() {
			t.Fatalf("kid: %v", k)
		}

		etag := w.Header().Get("ETag")
		if etag == "" {
			t.Fatalf("missing ETag")
		}

		req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
		req.Header.Set("If-None-Match", etag)
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotModified {
			t.Fatalf("conditional GET: %d", w.Code)
		}
	})

	t.Run("hs256_has_nothing_to_publish", func(t *testing.T) {
		r := gin.New()
		r.GET("/.well-known/jwks.json", handlers.JWKS(hmacSigner))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("status: %d", w.Code)
		}
	})
}

func TestJWKS_WeakAndListedValidators(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := auth.NewRSASigner(key, nil)
	if err != nil {
		t.Fatalf("rsa signer: %v", err)
	}

	r := gin.New()
	r.GET("/jwks", handlers.JWKS(signer))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jwks", nil))
	etag := w.Header().Get("ETag")

	for _, header := range []string{"W/" + etag, `"stale", ` + etag, "*"} {
		req := httptest.NewRequest(http.MethodGet, "/jwks", nil)
		req.Header.Set("If-None-Match", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotModified {
			t.Fatalf("If-None-Match %q: got %d", header, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/jwks", nil)
	req.Header.Set("If-None-Match", `"stale"`)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stale validator should get the body, got %d", w.Code)
	}
}
