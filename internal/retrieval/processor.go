// Package retrieval turns raw retrieval responses into ranked, annotated
// results with relevance buckets and source-type classification.
package retrieval

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/54b3r/ragagent-go/internal/rag"
)

// RelevanceLevel is a coarse bucket derived from a similarity score.
type RelevanceLevel string

// Relevance levels, from most to least relevant.
const (
	RelevanceVeryHigh RelevanceLevel = "very_high"
	RelevanceHigh     RelevanceLevel = "high"
	RelevanceMedium   RelevanceLevel = "medium"
	RelevanceLow      RelevanceLevel = "low"
	RelevanceVeryLow  RelevanceLevel = "very_low"
)

// SourceType classifies where a retrieved chunk came from.
type SourceType string

// Source types recognised from a source URI.
const (
	SourceGoogleDrive        SourceType = "google_drive"
	SourceGoogleDocs         SourceType = "google_docs"
	SourceGoogleSheets       SourceType = "google_sheets"
	SourceGoogleSlides       SourceType = "google_slides"
	SourceGoogleWorkspace    SourceType = "google_workspace"
	SourceGoogleCloudStorage SourceType = "google_cloud_storage"
	SourceWebURL             SourceType = "web_url"
	SourceUnknown            SourceType = "unknown"
)

// Result is one processed retrieval context.
type Result struct {
	// Rank is the 1-based position after sorting by score.
	Rank int `json:"rank"`

	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	SourceURI  string  `json:"source_uri"`
	SourceName string  `json:"source_name"`

	// TextLength is the length of Text in characters.
	TextLength int `json:"text_length"`

	RelevanceLevel RelevanceLevel `json:"relevance_level"`

	// SourceType is empty, and omitted, when SourceURI is empty.
	SourceType SourceType `json:"source_type,omitempty"`
}

// Process converts a raw response into results sorted by score, highest
// first. Ties keep their input order. Contexts whose text is empty or only
// whitespace are dropped. A nil response or one with no contexts yields an
// empty, non-nil slice.
func Process(resp *rag.RetrievalResponse) []Result {
	results := []Result{}
	if resp == nil {
		return results
	}

	for _, c := range resp.Contexts {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		r := Result{
			Text:           c.Text,
			Score:          c.Score,
			SourceURI:      c.SourceURI,
			SourceName:     c.SourceDisplayName,
			TextLength:     utf8.RuneCountInString(c.Text),
			RelevanceLevel: ClassifyRelevance(c.Score),
		}
		if c.SourceURI != "" {
			r.SourceType = ClassifySource(c.SourceURI)
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// ClassifyRelevance buckets a score. Scores are expected in [0,1] but are
// not clamped.
func ClassifyRelevance(score float64) RelevanceLevel {
	switch {
	case score >= 0.8:
		return RelevanceVeryHigh
	case score >= 0.7:
		return RelevanceHigh
	case score >= 0.5:
		return RelevanceMedium
	case score >= 0.3:
		return RelevanceLow
	default:
		return RelevanceVeryLow
	}
}

// ClassifySource identifies the kind of source behind uri. The first
// matching rule wins.
func ClassifySource(uri string) SourceType {
	switch {
	case strings.Contains(uri, "drive.google.com"):
		return SourceGoogleDrive
	case strings.Contains(uri, "docs.google.com"):
		switch {
		case strings.Contains(uri, "/document/"):
			return SourceGoogleDocs
		case strings.Contains(uri, "/spreadsheets/"):
			return SourceGoogleSheets
		case strings.Contains(uri, "/presentation/"):
			return SourceGoogleSlides
		default:
			return SourceGoogleWorkspace
		}
	case strings.HasPrefix(uri, "gs://"):
		return SourceGoogleCloudStorage
	case strings.HasPrefix(uri, "http"):
		return SourceWebURL
	default:
		return SourceUnknown
	}
}

// Summary partitions results for reporting.
type Summary struct {
	// High holds results with score > 0.7.
	High []Result

	// Medium holds results with 0.4 <= score <= 0.7.
	Medium []Result
}

// Summarize partitions already-ranked results into high and medium
// relevance. The 0.7 boundary is exclusive for High here, unlike
// ClassifyRelevance where 0.7 is already "high"; both boundaries are kept as
// they are reported.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch {
		case r.Score > 0.7:
			s.High = append(s.High, r)
		case r.Score >= 0.4:
			s.Medium = append(s.Medium, r)
		}
	}
	return s
}
