package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondRevalidated writes body as JSON with a strong ETag over its encoding.
// A matching If-None-Match turns the response into a bare 304. User records
// are per-caller, so shared caches are told to stay out.
func RespondRevalidated(ctx *gin.Context, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		RespondInternal(ctx, "Could not encode response.")
		return
	}

	sum := sha256.Sum256(raw)
	tag := `"` + hex.EncodeToString(sum[:16]) + `"`

	ctx.Header("ETag", tag)
	ctx.Header("Cache-Control", "private, no-cache")

	if etagMatches(ctx.GetHeader("If-None-Match"), tag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// etagMatches uses weak comparison, so W/"x" matches "x".
func etagMatches(header, tag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == tag {
			return true
		}
	}
	return false
}
