// Package importer loads markdown policy documents from a directory into
// the workflow engine.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"grc-portal/logger"
	"grc-portal/models"
	"grc-portal/services"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Skip records a file that was not imported.
type Skip struct {
	File   string
	Reason string
}

type Result struct {
	Imported []string
	Skipped  []Skip
}

type Importer struct {
	policies services.PolicyService
	md       goldmark.Markdown
	log      zerolog.Logger
}

func New(policies services.PolicyService, log zerolog.Logger) *Importer {
	return &Importer{
		policies: policies,
		md:       goldmark.New(),
		log:      logger.Component(log, "importer"),
	}
}

// ImportDir creates one policy per *.md file in dir, in filename order.
// Files whose slug already exists or that lack a level-1 heading are
// skipped. With dryRun nothing is written.
func (i *Importer) ImportDir(ctx context.Context, dir string, actor models.Actor, dryRun bool) (Result, error) {
	var result Result

	entries, err := os.ReadDir(dir)
	if err != nil {
		return result, fmt.Errorf("read policy dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return result, fmt.Errorf("read %s: %w", name, err)
		}
		title, ok := ExtractTitle(i.md, content)
		if !ok {
			result.Skipped = append(result.Skipped, Skip{File: name, Reason: "no level-1 heading"})
			continue
		}
		slug := SlugFromFilename(name)
		if slug == "" {
			result.Skipped = append(result.Skipped, Skip{File: name, Reason: "filename yields an empty slug"})
			continue
		}

		_, err = i.policies.GetPolicy(ctx, slug)
		if err == nil {
			result.Skipped = append(result.Skipped, Skip{File: name, Reason: "slug " + slug + " already exists"})
			continue
		}
		var notFound models.ErrorNotFound
		if !errors.As(err, &notFound) {
			return result, err
		}

		if dryRun {
			result.Imported = append(result.Imported, slug)
			continue
		}

		_, err = i.policies.CreatePolicy(ctx, models.CreatePolicyRequest{
			Title:         title,
			Slug:          slug,
			Content:       string(content),
			ChangeSummary: services.ImportChangeSummary,
		}, actor)
		var conflict models.ErrorConflict
		if errors.As(err, &conflict) {
			result.Skipped = append(result.Skipped, Skip{File: name, Reason: conflict.Message})
			continue
		}
		if err != nil {
			return result, fmt.Errorf("import %s: %w", name, err)
		}
		i.log.Info().Str("file", name).Str("slug", slug).Msg("policy imported")
		result.Imported = append(result.Imported, slug)
	}
	return result, nil
}

// ExtractTitle returns the text of the first level-1 heading.
func ExtractTitle(md goldmark.Markdown, content []byte) (string, bool) {
	doc := md.Parser().Parse(text.NewReader(content))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 {
			continue
		}
		var title bytes.Buffer
		lines := heading.Lines()
		for j := 0; j < lines.Len(); j++ {
			seg := lines.At(j)
			title.Write(seg.Value(content))
		}
		if t := strings.TrimSpace(title.String()); t != "" {
			return t, true
		}
	}
	return "", false
}

// SlugFromFilename derives a slug from a markdown filename:
// "Access_Control.md" becomes "access-control".
func SlugFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(base), "-"), "-")
}
