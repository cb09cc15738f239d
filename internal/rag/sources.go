package rag

import (
	"net/url"
	"regexp"
	"strings"
)

// docsPattern extracts the document ID from a Google Docs, Sheets or Slides URL.
var docsPattern = regexp.MustCompile(`^https://docs\.google\.com/(?:document|spreadsheets|presentation)/d/([A-Za-z0-9_-]+)`)

// driveFilePattern extracts the file ID from a Drive file URL.
var driveFilePattern = regexp.MustCompile(`^https://drive\.google\.com/file/d/([A-Za-z0-9_-]+)`)

// driveFolderPattern extracts the folder ID from a Drive folder URL.
var driveFolderPattern = regexp.MustCompile(`^https://drive\.google\.com/drive/(?:u/\d+/)?folders/([A-Za-z0-9_-]+)`)

// RejectedPath is a source path that could not be imported, with the reason.
type RejectedPath struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ConvertedPath records a Google Docs URL rewritten into its Drive form.
type ConvertedPath struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NormalizedSources is the outcome of NormalizeSourcePaths.
type NormalizedSources struct {
	// Accepted holds the paths to import, in input order.
	Accepted []string
	// Converted lists Docs URLs that were rewritten to Drive file URLs.
	Converted []ConvertedPath
	// Rejected lists paths that are not importable.
	Rejected []RejectedPath
}

// NormalizeSourcePaths validates import paths. Google Docs, Sheets and Slides
// URLs are rewritten to https://drive.google.com/file/d/{id}/view; Drive file
// and folder URLs and gs:// URIs are accepted unchanged. When allowHTTP is
// set, any other http(s) URL is accepted too (local backend).
func NormalizeSourcePaths(paths []string, allowHTTP bool) NormalizedSources {
	var out NormalizedSources
	for _, raw := range paths {
		p := strings.TrimSpace(raw)
		switch {
		case p == "":
			out.Rejected = append(out.Rejected, RejectedPath{Path: raw, Reason: "empty path"})
		case strings.HasPrefix(p, "gs://"):
			if len(p) == len("gs://") {
				out.Rejected = append(out.Rejected, RejectedPath{Path: raw, Reason: "missing bucket name"})
				continue
			}
			out.Accepted = append(out.Accepted, p)
		case docsPattern.MatchString(p):
			id := docsPattern.FindStringSubmatch(p)[1]
			drive := "https://drive.google.com/file/d/" + id + "/view"
			out.Converted = append(out.Converted, ConvertedPath{From: p, To: drive})
			out.Accepted = append(out.Accepted, drive)
		case driveFilePattern.MatchString(p), driveFolderPattern.MatchString(p):
			out.Accepted = append(out.Accepted, p)
		case strings.HasPrefix(p, "https://drive.google.com/open"):
			if driveOpenID(p) == "" {
				out.Rejected = append(out.Rejected, RejectedPath{Path: raw, Reason: "drive link has no id parameter"})
				continue
			}
			out.Accepted = append(out.Accepted, p)
		case allowHTTP && (strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")):
			out.Accepted = append(out.Accepted, p)
		default:
			out.Rejected = append(out.Rejected, RejectedPath{
				Path:   raw,
				Reason: "unsupported source: use a Google Drive/Docs URL or a gs:// URI",
			})
		}
	}
	return out
}

// DriveResource describes a Google Drive item referenced by an import path.
type DriveResource struct {
	ID     string
	Folder bool
}

// ParseDriveResource extracts the Drive item from a Drive URL. ok is false
// when the path is not a Drive URL.
func ParseDriveResource(p string) (DriveResource, bool) {
	if m := driveFilePattern.FindStringSubmatch(p); m != nil {
		return DriveResource{ID: m[1]}, true
	}
	if m := driveFolderPattern.FindStringSubmatch(p); m != nil {
		return DriveResource{ID: m[1], Folder: true}, true
	}
	if strings.HasPrefix(p, "https://drive.google.com/open") {
		if id := driveOpenID(p); id != "" {
			return DriveResource{ID: id}, true
		}
	}
	return DriveResource{}, false
}

// driveOpenID returns the id query parameter of a drive.google.com/open link.
func driveOpenID(p string) string {
	u, err := url.Parse(p)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}
