package search

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/kailas-cloud/lumina/internal/domain/search/request"
)

const keyVersion = "v1"

// CacheKey derives the response cache key from the normalized query text,
// top_k, the effective rerank flag and the canonical filter form.
// Fields are NUL-separated so adjacent values cannot merge.
func CacheKey(req *request.Request, rerank bool) string {
	h := sha256.New()
	for _, part := range []string{
		keyVersion,
		req.Text(),
		strconv.Itoa(req.TopK()),
		strconv.FormatBool(rerank),
		req.Filters().Canonical(),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
