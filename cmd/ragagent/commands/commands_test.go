package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tc := range tests {
		var out bytes.Buffer
		got := confirm(strings.NewReader(tc.input), &out, "Delete?")
		if got != tc.want {
			t.Errorf("confirm(%q) = %v, want %v", tc.input, got, tc.want)
		}
		if !strings.Contains(out.String(), "Delete? [y/N]") {
			t.Errorf("prompt not written, got %q", out.String())
		}
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	if got := preview("short", 10); got != "short" {
		t.Errorf("preview short = %q", got)
	}
	if got := preview("héllo wörld", 5); got != "héllo…" {
		t.Errorf("preview multibyte = %q, want %q", got, "héllo…")
	}
}

func TestNewRootCmd_RegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	for _, name := range []string{"serve", "chat", "ask", "check", "corpora", "query", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	corpora, _, err := root.Find([]string{"corpora", "delete"})
	if err != nil {
		t.Fatalf("corpora delete not found: %v", err)
	}
	if corpora.Flags().Lookup("yes") == nil {
		t.Error("corpora delete should have a --yes flag")
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "ragagent dev (commit ") {
		t.Errorf("unexpected output %q", out.String())
	}
}
