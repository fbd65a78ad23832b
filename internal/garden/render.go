package garden

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lily/internal/pack"
)

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Branch}}</title></head>
<body>
<h1>{{.Branch}}</h1>
<ul>
{{range .Commits}}<li><a href="{{.ID}}/index.html"><code>{{.Short}}</code></a> {{.Message}} <small>{{.Author}} at {{.When}}</small></li>
{{end}}</ul>
</body>
</html>
`))

var commitTmpl = template.Must(template.New("commit").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Short}}</title></head>
<body>
<h1><code>{{.ID}}</code></h1>
<p>{{.Message}}</p>
<p><small>{{.Author}} at {{.When}} on {{.Branch}} &middot; <a href="tree.html">tree</a></small></p>
{{range .Blocks}}{{.}}
{{end}}</body>
</html>
`))

var treeTmpl = template.Must(template.New("tree").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Short}} tree</title></head>
<body>
<h1><code>{{.Short}}</code> tree</h1>
<ul>
{{range .Paths}}<li><a href="files/{{.}}.html"><code>{{.}}</code></a></li>
{{end}}</ul>
</body>
</html>
`))

var fileTmpl = template.Must(template.New("file").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>{{.Path}}</title></head>
<body>
<h1><code>{{.Path}}</code></h1>
<pre>{{range .Lines}}<code>{{.Number}}</code> {{.Text}}
{{end}}</pre>
</body>
</html>
`))

type renderedCommit struct {
	ID      string
	Short   string
	Branch  string
	Message string
	Author  string
	When    string
	Blocks  []template.HTML
}

type renderedLine struct {
	Number int
	Text   string
}

// Render exports the named branch as static HTML under the web directory.
// The branch's directory is rebuilt from scratch on every run: an index of
// commits newest first, one page per commit with its rendered patch, a tree
// page per commit and a line-numbered page per file in the commit's pack.
func (g *Garden) Render(branch string, verbose bool) error {
	if _, err := g.store.BranchByName(branch); err != nil {
		return err
	}

	commits, err := g.store.Commits(branch)
	if err != nil {
		return err
	}

	dir := filepath.Join(g.layout.WebDir(), branch)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing web directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating web directory: %w", err)
	}

	rendered := make([]renderedCommit, 0, len(commits))
	for _, c := range commits {
		rc := renderedCommit{
			ID:      c.ID,
			Short:   short(c.ID),
			Branch:  c.Branch,
			Message: c.Message,
			Author:  c.Author,
			When:    time.UnixMilli(c.Timestamp).UTC().Format(time.RFC822),
		}
		for block := range c.Content.RenderHTML() {
			// RenderHTML escapes its own input; the template must not
			// escape it again.
			rc.Blocks = append(rc.Blocks, template.HTML(block))
		}
		rendered = append(rendered, rc)

		if err := g.renderCommit(dir, rc, verbose); err != nil {
			return err
		}
	}

	if err := writeTemplate(filepath.Join(dir, "index.html"), indexTmpl, struct {
		Branch  string
		Commits []renderedCommit
	}{branch, rendered}); err != nil {
		return err
	}

	g.logger.Info("branch rendered", "branch", branch, "commits", len(commits))
	return nil
}

func (g *Garden) renderCommit(dir string, rc renderedCommit, verbose bool) error {
	commitDir := filepath.Join(dir, rc.ID)
	if err := os.MkdirAll(commitDir, 0o755); err != nil {
		return fmt.Errorf("creating commit directory: %w", err)
	}

	if err := writeTemplate(filepath.Join(commitDir, "index.html"), commitTmpl, rc); err != nil {
		return err
	}

	tree, err := pack.OpenID(g.layout.ObjectDir(), rc.ID)
	if err != nil {
		return err
	}

	if err := writeTemplate(filepath.Join(commitDir, "tree.html"), treeTmpl, struct {
		Short string
		Paths []string
	}{rc.Short, tree.Paths()}); err != nil {
		return err
	}

	for _, path := range tree.Paths() {
		content, _ := tree.Get(path)
		lines := make([]renderedLine, 0)
		for i, text := range strings.Split(content, "\n") {
			lines = append(lines, renderedLine{Number: i + 1, Text: text})
		}

		out := filepath.Join(commitDir, "files", path+".html")
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("creating file page directory: %w", err)
		}
		if err := writeTemplate(out, fileTmpl, struct {
			Path  string
			Lines []renderedLine
		}{path, lines}); err != nil {
			return err
		}
	}

	if verbose {
		g.logger.Info("commit rendered", "id", rc.ID, "files", tree.Len())
	}
	return nil
}

func writeTemplate(path string, tmpl *template.Template, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating page %s: %w", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("rendering page %s: %w", path, err)
	}
	return nil
}

func short(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}
