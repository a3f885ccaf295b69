// Package file implements the file-management facade: the upload workflow and
// the query/delete/health handlers against the object store.
package file

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// allowedExtensions is the set of file types accepted for upload.
var allowedExtensions = map[string]bool{
	"txt":  true,
	"pdf":  true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"doc":  true,
	"docx": true,
}

// maxFileSize is the upload size cap.
const maxFileSize = 16 << 20 // 16 MiB

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// fileExtension returns the lowercased extension of filename without the dot,
// or "" when there is none.
func fileExtension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// allowedFile reports whether filename has an extension in the allowed set.
func allowedFile(filename string) bool {
	return allowedExtensions[fileExtension(filename)]
}

// sanitizeFilename strips any path components and replaces characters outside
// [A-Za-z0-9_.-] with underscores, so the name is safe to use on disk and as
// object metadata.
func sanitizeFilename(filename string) string {
	// Client-supplied names may carry either separator.
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = unsafeChars.ReplaceAllString(filename, "_")
	return strings.Trim(filename, "._")
}

// generateObjectName builds the stored name {YYYYMMDD_HHMMSS}_{uuid}.{ext},
// unique without coordination. The extension comes from the sanitized
// original filename.
func generateObjectName(now time.Time, filename string) string {
	return fmt.Sprintf("%s_%s.%s",
		now.Format("20060102_150405"),
		uuid.New().String(),
		fileExtension(filename),
	)
}
