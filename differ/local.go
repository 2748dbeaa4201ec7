package differ

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"grc-portal/models"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const preambleSection = "Preamble"

// Local describes changes without any network call: it splits both
// versions into markdown sections and compares them line by line.
type Local struct {
	md  goldmark.Markdown
	dmp *diffmatchpatch.DiffMatchPatch
}

func NewLocal() *Local {
	return &Local{md: goldmark.New(), dmp: diffmatchpatch.New()}
}

func (l *Local) Name() string {
	return "local"
}

type section struct {
	title string
	body  string
}

func (l *Local) Diff(ctx context.Context, oldContent, newContent string) (models.ChangeDiff, error) {
	if err := ctx.Err(); err != nil {
		return models.ChangeDiff{}, err
	}

	before := l.sections(oldContent)
	after := l.sections(newContent)

	beforeByTitle := make(map[string]string, len(before))
	for _, s := range before {
		beforeByTitle[s.title] = s.body
	}
	afterByTitle := make(map[string]bool, len(after))

	diff := models.ChangeDiff{}.Normalize()
	for _, s := range after {
		afterByTitle[s.title] = true
		old, ok := beforeByTitle[s.title]
		if !ok {
			diff.Added = append(diff.Added, fmt.Sprintf("Added section %q", s.title))
			continue
		}
		if old == s.body {
			continue
		}
		added, removed := l.lineChanges(old, s.body)
		diff.Modified = append(diff.Modified, fmt.Sprintf("Updated section %q (+%d/-%d lines)", s.title, added, removed))
	}
	for _, s := range before {
		if !afterByTitle[s.title] {
			diff.Removed = append(diff.Removed, fmt.Sprintf("Removed section %q", s.title))
		}
	}
	return diff, nil
}

func (l *Local) Summarize(ctx context.Context, oldContent, newContent string) (string, error) {
	diff, err := l.Diff(ctx, oldContent, newContent)
	if err != nil {
		return "", err
	}
	if diff.Empty() {
		return "No content changes.", nil
	}

	var parts []string
	if n := len(diff.Added); n > 0 {
		parts = append(parts, countNoun(n, "section")+" added")
	}
	if n := len(diff.Removed); n > 0 {
		parts = append(parts, countNoun(n, "section")+" removed")
	}
	if n := len(diff.Modified); n > 0 {
		parts = append(parts, countNoun(n, "section")+" updated")
	}
	return strings.Join(parts, ", ") + ".", nil
}

// sections splits markdown at every heading. Text before the first
// heading becomes the preamble; repeated titles get a numeric suffix.
func (l *Local) sections(content string) []section {
	src := []byte(content)
	doc := l.md.Parser().Parse(text.NewReader(src))

	type mark struct {
		title     string
		lineStart int
		bodyStart int
	}
	var marks []mark
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			continue
		}
		var title bytes.Buffer
		for i := 0; i < heading.Lines().Len(); i++ {
			seg := heading.Lines().At(i)
			title.Write(seg.Value(src))
		}
		first := heading.Lines().At(0)
		last := heading.Lines().At(heading.Lines().Len() - 1)
		marks = append(marks, mark{
			title:     strings.TrimSpace(title.String()),
			lineStart: lineStart(src, first.Start),
			bodyStart: lineEnd(src, last.Stop),
		})
	}

	var out []section
	seen := map[string]int{}
	add := func(title, body string) {
		seen[title]++
		if seen[title] > 1 {
			title = fmt.Sprintf("%s (%d)", title, seen[title])
		}
		body = strings.TrimSpace(body)
		if body != "" {
			body += "\n"
		}
		out = append(out, section{title: title, body: body})
	}

	if len(marks) == 0 {
		if strings.TrimSpace(content) != "" {
			add(preambleSection, content)
		}
		return out
	}
	if pre := string(src[:marks[0].lineStart]); strings.TrimSpace(pre) != "" {
		add(preambleSection, pre)
	}
	for i, m := range marks {
		end := len(src)
		if i+1 < len(marks) {
			end = marks[i+1].lineStart
		}
		add(m.title, string(src[m.bodyStart:end]))
	}
	return out
}

// lineChanges counts inserted and deleted lines between two texts.
func (l *Local) lineChanges(oldText, newText string) (added, removed int) {
	a, b, lines := l.dmp.DiffLinesToChars(oldText, newText)
	diffs := l.dmp.DiffCharsToLines(l.dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			removed += countLines(d.Text)
		}
	}
	return added, removed
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func countNoun(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

func lineEnd(src []byte, pos int) int {
	for pos < len(src) && src[pos] != '\n' {
		pos++
	}
	if pos < len(src) {
		pos++
	}
	return pos
}
