package manifest

import (
	"fmt"
	"strings"
)

// Parses a copy string into source and destination paths.
//
// The string must contain exactly two whitespace-separated tokens. The
// source may carry a "stage:path" prefix for cross-stage copies.
func ParseCopy(s string) (src, dest string, err error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("copy expects source and destination, got %q", s)
	}
	return parts[0], parts[1], nil
}

// Parses a cross-stage copy source of the form "stage:path".
//
// Returns the stage name, the path within the stage, and true if the
// source matches the cross-stage format. A colon after a path separator is
// not a stage prefix (e.g. "/foo:bar"), and neither is an absolute or
// relative plain path.
func StageSource(src string) (stage, path string, ok bool) {
	i := strings.IndexByte(src, ':')
	if i < 1 {
		return "", "", false
	}
	if strings.ContainsRune(src[:i], '/') {
		return "", "", false
	}
	return src[:i], src[i+1:], true
}
