package rag

import (
	"fmt"
	"regexp"
	"strings"
)

// resourcePattern matches a canonical corpus resource name. Each segment must
// be non-empty and free of '/'.
var resourcePattern = regexp.MustCompile(`^projects/[^/]+/locations/[^/]+/ragCorpora/[^/]+$`)

// filePattern matches a canonical file resource name inside a corpus.
var filePattern = regexp.MustCompile(`^projects/[^/]+/locations/[^/]+/ragCorpora/[^/]+/ragFiles/[^/]+$`)

// IsResourceName reports whether name is already a canonical corpus
// resource name.
func IsResourceName(name string) bool {
	return resourcePattern.MatchString(name)
}

// IsFileName reports whether name is a canonical file resource name.
func IsFileName(name string) bool {
	return filePattern.MatchString(name)
}

// ResourceName composes a corpus resource name from its parts.
func ResourceName(project, location, corpusID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/ragCorpora/%s", project, location, corpusID)
}

// FileName composes a file resource name inside corpusName.
func FileName(corpusName, fileID string) string {
	return corpusName + "/ragFiles/" + fileID
}

// LastSegment returns the final '/'-separated segment of a resource name,
// e.g. the corpus ID of a corpus name or the file ID of a file name.
func LastSegment(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// CorpusOfFile returns the corpus resource name that owns fileName, or ""
// when fileName is not a canonical file resource name.
func CorpusOfFile(fileName string) string {
	if !IsFileName(fileName) {
		return ""
	}
	i := strings.LastIndex(fileName, "/ragFiles/")
	return fileName[:i]
}

// SanitizeCorpusID predicts the corpus ID the service would derive from a
// human-typed name: the name is lower-cased and every character outside
// [a-zA-Z0-9_-] becomes '_'. The result may be empty.
func SanitizeCorpusID(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
