package storage

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename returns a version of name that is safe to store on a regular file system.
// Slashes become spaces, whitespace runs become a single underscore and anything
// outside [A-Za-z0-9_.-] is dropped, backslashes included. The result may be empty.
//
//	SecureFilename("My cool movie.mov")     == "My_cool_movie.mov"
//	SecureFilename("../../../etc/passwd")   == "etc_passwd"
//	SecureFilename("i contain cool ümläuts.txt") == "i_contain_cool_umlauts.txt"
func SecureFilename(name string) string {
	name = toASCII(norm.NFKD.String(name))

	name = strings.ReplaceAll(name, "/", " ")
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// toASCII drops every rune that does not fit into 7 bits, including decomposed accents.
func toASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Allowed reports whether filename carries one of the given extensions after its last dot.
// Comparison is case-insensitive; extensions are expected in lower case without a dot.
func Allowed(filename string, extensions []string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	ext := strings.ToLower(filename[i+1:])
	for _, allowed := range extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
