package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/gin-gonic/gin"
)

type KeyPublisher interface {
	PublicKeys() (auth.JWKSet, bool)
}

// JWKS serves the verification keys for asymmetric signing. HMAC secrets are
// never published, so HS256 deployments answer 404.
//
// The key set is fixed for the life of the process, so the body and its ETag
// are computed once.
func JWKS(keys KeyPublisher) gin.HandlerFunc {
	set, ok := keys.PublicKeys()

	var body []byte
	var etag string
	if ok {
		var err error
		body, err = json.Marshal(set)
		if err != nil {
			ok = false
		} else {
			sum := sha256.Sum256(body)
			etag = `"` + hex.EncodeToString(sum[:16]) + `"`
		}
	}

	return func(ctx *gin.Context) {
		if !ok {
			RespondNotFound(ctx, "No public keys for this signing method")
			return
		}

		ctx.Header("Cache-Control", "public, max-age=300")
		ctx.Header("ETag", etag)

		if etagMatches(ctx.GetHeader("If-None-Match"), etag) {
			ctx.Status(http.StatusNotModified)
			return
		}

		ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

// etagMatches accepts "*", weak validators and comma-separated lists.
func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	for _, candidate := range strings.Split(header, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == etag {
			return true
		}
	}
	return false
}
