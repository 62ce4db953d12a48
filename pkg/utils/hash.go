package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// HashBytes returns the hex md5 digest of data.
func HashBytes(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}

// ETag returns a strong entity tag for a response body.
func ETag(body []byte) string {
	return `"` + HashBytes(body) + `"`
}

// ETagMatches reports whether an If-None-Match header value names etag.
func ETagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}
