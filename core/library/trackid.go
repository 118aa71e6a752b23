package library

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// trackIDPrefix namespaces track IDs so they cannot collide with other
// SHA1-derived UUIDs in the same database.
const trackIDPrefix = "musefm:track:"

// NormalizePath maps a stored file path to its canonical form: forward
// slashes and no redundant separators. Windows and Unix spellings of the
// same file normalize to the same string.
func NormalizePath(p string) string {
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// DeriveTrackID computes the stable identifier for a file path. It is a
// pure function of the normalized path: the same physical file yields the
// same ID across scans and process restarts, which is what makes the
// reconciler's upsert idempotent.
func DeriveTrackID(filePath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(trackIDPrefix+NormalizePath(filePath))).String()
}
