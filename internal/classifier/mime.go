package classifier

import (
	"path/filepath"
	"strings"
)

var mimeByExt = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"pdf":  "application/pdf",
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// MIMEType maps a file name to the MIME type sent to the model.
func MIMEType(name string) string {
	if m, ok := mimeByExt[Extension(name)]; ok {
		return m
	}
	return "application/octet-stream"
}

// Supported reports whether name has an extension the classifier accepts.
func Supported(name string) bool {
	_, ok := mimeByExt[Extension(name)]
	return ok
}
