package utils

import "strings"

// IsSafeFileID reports whether id can be used verbatim as a file name inside a
// working directory: non-empty, no path separators, not a dot entry.
func IsSafeFileID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return false
	}
	return true
}
