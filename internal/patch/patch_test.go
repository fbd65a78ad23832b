package patch

import (
	"strings"
	"testing"
)

func TestDiffApplyRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		old  string
		new  string
	}{
		{"identical", "a\nb\nc", "a\nb\nc"},
		{"append line", "a\nb", "a\nb\nc"},
		{"prepend line", "b\nc", "a\nb\nc"},
		{"delete middle", "a\nb\nc", "a\nc"},
		{"delete trailing", "a\nb\nc", "a"},
		{"delete all", "x\ny", ""},
		{"from empty", "", "x\ny\nz"},
		{"both empty", "", ""},
		{"replace line", "a\nb\nc", "a\nx\nc"},
		{"replace all", "a\nb", "x\ny\nz"},
		{"interleaved", "one\ntwo\nthree\nfour", "one\n2\nthree\n4\nfive"},
		{"single to single", "old", "new"},
		{"blank lines", "a\n\nb", "a\n\n\nb"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Diff("file.txt", tc.old, tc.new)
			pf, okFile := p.Files["file.txt"]
			if !okFile {
				t.Fatal("diff did not record the file")
			}
			if pf.Previous != tc.old {
				t.Errorf("previous content not preserved")
			}

			got := pf.Apply(tc.old)
			if got != tc.new {
				t.Errorf("apply mismatch: got %q, want %q", got, tc.new)
			}
		})
	}
}

func TestDiffIdenticalHasNoChanges(t *testing.T) {
	p := Diff("f", "a\nb", "a\nb")
	if n := len(p.Files["f"].Changes); n != 0 {
		t.Errorf("expected no changes, got %d", n)
	}
}

func TestDiffOrderingDeletionsFirst(t *testing.T) {
	// A replaced line must record its deletion before the addition that
	// takes its place.
	p := Diff("f", "a\nb\nc", "a\nx\nc")
	changes := p.Files["f"].Changes
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].Mode != ModeDeleted || changes[0].Text != "b" {
		t.Errorf("first change should delete b, got %+v", changes[0])
	}
	if changes[1].Mode != ModeAdded || changes[1].Text != "x" {
		t.Errorf("second change should add x, got %+v", changes[1])
	}
}

func TestDiffIndices(t *testing.T) {
	p := Diff("f", "a\nb", "a\nb\nc")
	changes := p.Files["f"].Changes
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	// Additions carry the new-text index.
	if changes[0].Line != 2 {
		t.Errorf("expected line 2, got %d", changes[0].Line)
	}

	p = Diff("f", "a\nb\nc", "a\nc")
	changes = p.Files["f"].Changes
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	// Deletions carry the old-text index.
	if changes[0].Line != 1 {
		t.Errorf("expected line 1, got %d", changes[0].Line)
	}
}

func TestApplyIgnoresOutOfRange(t *testing.T) {
	pf := PatchFile{Changes: []Change{
		{Line: 99, Mode: ModeDeleted, Text: "nope"},
	}}
	if got := pf.Apply("a\nb"); got != "a\nb" {
		t.Errorf("out-of-range delete should be a no-op, got %q", got)
	}
}

func TestSummary(t *testing.T) {
	p := Diff("f", "a\nb\nc", "a\nx\ny")
	total, adds, dels := p.Files["f"].Summary()
	if total != adds+dels {
		t.Errorf("total %d != adds %d + dels %d", total, adds, dels)
	}
	if adds == 0 || dels == 0 {
		t.Errorf("expected both additions and deletions, got %d/%d", adds, dels)
	}
}

func TestMerge(t *testing.T) {
	p := Diff("a.txt", "", "hello")
	p.Merge(Diff("b.txt", "x", "y"))
	if len(p.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(p.Files))
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	p := Diff("f", "a\nb\nc", "a\nx\nc")

	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := p.Files["f"]
	pf := got.Files["f"]
	if pf.Previous != want.Previous || len(pf.Changes) != len(want.Changes) {
		t.Errorf("round trip mismatch: got %+v, want %+v", pf, want)
	}
	for i := range pf.Changes {
		if pf.Changes[i] != want.Changes[i] {
			t.Errorf("change %d mismatch: got %+v, want %+v", i, pf.Changes[i], want.Changes[i])
		}
	}
}

func TestUnmarshalRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"unknown mode", `{"files":{"f":{"previous":"","changes":[{"line":0,"mode":"changed","text":"x"}]}}}`},
		{"negative line", `{"files":{"f":{"previous":"","changes":[{"line":-1,"mode":"added","text":"x"}]}}}`},
		{"not json", "nope"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tc.data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestUnmarshalEmptyObject(t *testing.T) {
	p, err := Unmarshal([]byte(`{}`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Files == nil {
		t.Error("Files map should be initialized")
	}
}

func TestSplitLinesEmpty(t *testing.T) {
	if got := splitLines(""); got != nil {
		t.Errorf("empty string should split to no lines, got %q", got)
	}
	if got := splitLines("a"); len(got) != 1 {
		t.Errorf("expected 1 line, got %q", got)
	}
}

func TestApplyIsNotAffectedByLineEndingsInText(t *testing.T) {
	// Added text never carries its own newline; Apply joins lines itself.
	p := Diff("f", "a", "a\nb")
	for _, c := range p.Files["f"].Changes {
		if strings.Contains(c.Text, "\n") {
			t.Errorf("change text should be a single line, got %q", c.Text)
		}
	}
}
