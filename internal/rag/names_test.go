package rag

import "testing"

func TestIsResourceName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"canonical", "projects/p/locations/us-central1/ragCorpora/123", true},
		{"empty id", "projects/p/locations/l/ragCorpora/", false},
		{"empty project", "projects//locations/l/ragCorpora/x", false},
		{"extra segment", "projects/p/locations/l/ragCorpora/x/ragFiles/y", false},
		{"display name", "My Docs", false},
		{"missing prefix", "locations/l/ragCorpora/x", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsResourceName(tt.in); got != tt.want {
				t.Errorf("IsResourceName(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeCorpusID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"My Docs!!", "my_docs__"},
		{"already_ok-1", "already_ok-1"},
		{"UPPER", "upper"},
		{"café", "caf_"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeCorpusID(tt.in); got != tt.want {
			t.Errorf("SanitizeCorpusID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResourceName_Compose(t *testing.T) {
	t.Parallel()

	got := ResourceName("P", "L", "my_docs__")
	want := "projects/P/locations/L/ragCorpora/my_docs__"
	if got != want {
		t.Errorf("ResourceName = %q, want %q", got, want)
	}
	if !IsResourceName(got) {
		t.Errorf("composed name %q does not match the resource pattern", got)
	}
}

func TestCorpusOfFile(t *testing.T) {
	t.Parallel()

	corpus := "projects/p/locations/l/ragCorpora/c1"
	file := FileName(corpus, "f9")
	if !IsFileName(file) {
		t.Fatalf("IsFileName(%q) = false", file)
	}
	if got := CorpusOfFile(file); got != corpus {
		t.Errorf("CorpusOfFile = %q, want %q", got, corpus)
	}
	if got := CorpusOfFile("f9"); got != "" {
		t.Errorf("CorpusOfFile(bare id) = %q, want empty", got)
	}
	if got := LastSegment(file); got != "f9" {
		t.Errorf("LastSegment = %q, want f9", got)
	}
}
