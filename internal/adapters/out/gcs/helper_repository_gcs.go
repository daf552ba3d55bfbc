// internal/adapters/out/gcs/helper_repository_gcs.go
package gcs

import (
	"path"
	"strings"
)

// sanitizePathSegment normalizes a path segment for GCS object paths.
// - removes separators
// - trims dots/spaces
func sanitizePathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.Trim(s, ". ")
	return s
}

// extensionByMIME は MIME に対応する拡張子（"." 付き）。未知なら空。
func extensionByMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	case "application/json":
		return ".json"
	default:
		return ""
	}
}

// objectPathFor は content hash ベースの object path を返す。
// 同一内容は同一 path になる。
//
//	"<prefix>/<hash><ext>"
func objectPathFor(prefix, contentHash, contentType string) string {
	name := sanitizePathSegment(contentHash) + extensionByMIME(contentType)
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
