package constants

import (
	"path"
	"strings"
)

// Source formats for bill files.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// AllowedExtensions holds the bill file extensions accepted from an archive.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"heif": {},
	"webp": {},
}

// LedgerExtensions holds the accepted reference file extensions.
var LedgerExtensions = map[string]struct{}{
	"csv":  {},
	"xlsx": {},
	"xlsm": {},
}

// IgnoredFolders are path segments (lowercased) whose contents are never bills.
var IgnoredFolders = map[string]struct{}{
	"payment screenshots": {},
	"payments":            {},
	"payment":             {},
	"misc":                {},
	"receipts":            {},
	"__macosx":            {},
	".ds_store":           {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns PDF, IMAGE or "" for an unsupported extension.
func MapExtToFormat(ext string) string {
	ext = NormalizeExt(ext)
	if ext == "pdf" {
		return PDF
	}
	if _, ok := AllowedExtensions[ext]; ok {
		return IMAGE
	}
	return ""
}

// IsHEICExt reports whether ext needs a HEIC conversion before OCR.
func IsHEICExt(ext string) bool {
	ext = NormalizeExt(ext)
	return ext == "heic" || ext == "heif"
}

// IsIgnoredPath reports whether any segment of a slash or backslash separated
// relative path names an ignored folder.
func IsIgnoredPath(rel string) bool {
	rel = strings.ReplaceAll(rel, "\\", "/")
	for _, p := range strings.Split(path.Clean(rel), "/") {
		if _, ok := IgnoredFolders[strings.ToLower(strings.TrimSpace(p))]; ok {
			return true
		}
	}
	return false
}
