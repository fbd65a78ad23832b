package patch

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// Terminal styling and the private-use markers the HTML renderer rewrites.
// These must stay byte-stable: RenderHTML replaces the exact sequences.
const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
	ansiFaint = "\x1b[2m"
	ansiBlue  = "\x1b[94m"
	ansiGreen = "\x1b[92m"
	ansiRed   = "\x1b[91m"

	markLineOpen   = "\u0098" // line number
	markLineClose  = "\u009C"
	markCodeOpen   = "\u0002" // source line
	markCodeClose  = "\u0003"
	markBlockOpen  = "\u0096" // guarded source area
	markBlockClose = "\u0097"

	bullet = "\u2022"
)

// Render produces one styled block per file (header, line-numbered body,
// summary footer) followed by a single aggregate summary line. The sequence is
// a pure function of the Patch: finite, restartable, no hidden state.
func (p Patch) Render() iter.Seq[string] {
	return func(yield func(string) bool) {
		var total, additions, deletions int

		for _, path := range p.paths() {
			pf := p.Files[path]
			if !yield(renderFile(path, pf)) {
				return
			}

			t, a, d := pf.Summary()
			total += t
			additions += a
			deletions += d
		}

		yield(summaryLine(total, additions, deletions))
	}
}

// RenderHTML yields the same blocks as Render with the control sequences
// rewritten to semantic HTML spans. Raw '<' and '>' are escaped before any
// tags are introduced, so source text is escaped exactly once.
func (p Patch) RenderHTML() iter.Seq[string] {
	replacements := []struct{ from, to string }{
		{">", "&gt;"},
		{"<", "&lt;"},
		{ansiReset, "</span>"},
		{ansiBold, `<span style="font-weight: bold" class="lily:1m" role="bold">`},
		{ansiFaint, `<span style="opacity: 75%" class="lily:2m" role="fade">`},
		{ansiBlue, `<span style="color: blue" class="lily:94m" role="extra">`},
		{ansiGreen, `<span style="color: green" class="lily:92m" role="addition">`},
		{ansiRed, `<span style="color: red" class="lily:91m" role="deletion">`},
		{markCodeOpen, `<code class="lily:u0002" role="line">`},
		{markCodeClose, "</code><!-- lily:u0003 -->"},
		{markLineOpen, `<code class="lily:u0098" role="line-number">`},
		{markLineClose, "</code><!-- lily:u009C -->"},
		{markBlockOpen, `<pre class="lily:u0096" role="source-display" style="max-width: 100%; overflow-x: auto">`},
		{markBlockClose, "</pre><!-- lily:u0097 -->"},
	}

	return func(yield func(string) bool) {
		for block := range p.Render() {
			for _, r := range replacements {
				block = strings.ReplaceAll(block, r.from, r.to)
			}
			if !yield(`<pre class="lily:patch">` + block + `</pre>`) {
				return
			}
		}
	}
}

func renderFile(path string, pf PatchFile) string {
	prevLines := strings.Split(pf.Previous, "\n")
	spacing := len(strconv.Itoa(len(prevLines))) + 8

	header := fmt.Sprintf("%s%s:\n%s\n%s%s",
		ansiBold, path, strings.Repeat("=", len(path)+1), ansiReset, markBlockOpen)

	// Body: unchanged lines render plainly, deleted lines replace the original
	// row in place.
	consumed := make([]bool, len(pf.Changes))
	var rows []string
	for i, line := range prevLines {
		if ci := findDeletion(pf.Changes, consumed, i); ci >= 0 {
			consumed[ci] = true
			rows = append(rows, fmt.Sprintf("%s%s%d%s %s @@%s %s- %s%s%s",
				ansiBlue, markLineOpen, i+1, markLineClose, pad(spacing, i),
				ansiReset, ansiRed, markCodeOpen, line, markCodeClose))
			continue
		}

		rows = append(rows, fmt.Sprintf("%s%s%d%s %s @@%s %s%s %s%s%s",
			ansiBlue, markLineOpen, i+1, markLineClose, pad(spacing, i),
			ansiReset, ansiFaint, bullet, markCodeOpen, line, markCodeClose))
	}

	// Additions slot in directly after their anchor row, below any deletion at
	// the same index.
	for ci, c := range pf.Changes {
		if consumed[ci] || c.Mode != ModeAdded {
			continue
		}
		at := min(c.Line+1, len(rows))
		rows = slices.Insert(rows, at, fmt.Sprintf("%s%s%d%s %s @@%s %s+ %s%s%s",
			ansiBlue, markLineOpen, c.Line+1, markLineClose, pad(spacing, c.Line+1),
			ansiReset, ansiGreen, markCodeOpen, strings.ReplaceAll(c.Text, "\n", ""), markCodeClose))
	}

	total, additions, deletions := pf.Summary()
	footer := fmt.Sprintf("%s%s\n%s%s%s\n%s",
		ansiReset, markBlockClose, ansiBold, strings.Repeat("=", len(path)+1),
		ansiReset, summaryLine(total, additions, deletions))

	return header + strings.Join(append(rows, ""), "\n"+ansiReset) + footer
}

// findDeletion returns the index of the first unconsumed deletion targeting
// line i, or -1.
func findDeletion(changes []Change, consumed []bool, i int) int {
	for ci, c := range changes {
		if !consumed[ci] && c.Mode == ModeDeleted && c.Line == i {
			return ci
		}
	}
	return -1
}

func pad(spacing, n int) string {
	return strings.Repeat(" ", max(0, spacing-len(strconv.Itoa(n))-1))
}

func summaryLine(total, additions, deletions int) string {
	return fmt.Sprintf("%d total changes %s %s%d additions%s %s %s%d deletions%s",
		total, bullet, ansiGreen, additions, ansiReset, bullet, ansiRed, deletions, ansiReset)
}
