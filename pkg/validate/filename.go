// Package validate checks filenames and folder paths before they enter
// the catalog or touch the disk.
package validate

import "strings"

// Filename reports whether name is acceptable for CREATE: no spaces,
// only alphanumerics plus '.', '-', '_', '/', and a non-leading,
// non-trailing extension dot.
func Filename(name string) bool {
	if name == "" {
		return false
	}
	if strings.ContainsAny(name, " \t") {
		return false
	}
	for _, ch := range name {
		if isAlnum(ch) || ch == '.' || ch == '-' || ch == '_' || ch == '/' {
			continue
		}
		return false
	}
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return false
	}
	return true
}

// FolderName reports whether path is acceptable for CREATEFOLDER: just
// non-empty after trimming (folders carry no file extension).
func FolderName(path string) bool {
	return strings.TrimSpace(path) != ""
}

func isAlnum(ch rune) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
