// Package archive mirrors committed policy versions into one git
// repository per policy: a commit per version, a tag per approved release.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"grc-portal/models"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"
)

const (
	contentFile  = "policy.md"
	metadataFile = "metadata.json"
	branchName   = "main"
)

type metadata struct {
	Slug          string `json:"slug"`
	Title         string `json:"title"`
	VersionNumber int    `json:"version_number"`
	VersionLabel  string `json:"version_label"`
	ContentDigest string `json:"content_digest"`
	ChangeSummary string `json:"change_summary"`
}

// Archive writes policy repositories under a base directory. Writes to
// one policy are serialized; different policies proceed in parallel.
type Archive struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) (*Archive, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// ArchiveVersion commits the version's content and metadata on main.
func (a *Archive) ArchiveVersion(ctx context.Context, policy *models.Policy, version *models.PolicyVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := a.policyLock(policy.Slug)
	lock.Lock()
	defer lock.Unlock()

	repo, err := a.openOrInit(policy.Slug)
	if err != nil {
		return err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	root := worktree.Filesystem.Root()

	meta, err := json.MarshalIndent(metadata{
		Slug:          policy.Slug,
		Title:         policy.Title,
		VersionNumber: version.VersionNumber,
		VersionLabel:  version.VersionLabel,
		ContentDigest: version.ContentDigest,
		ChangeSummary: version.ChangeSummary,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, contentFile), []byte(version.Content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", contentFile, err)
	}
	if err := os.WriteFile(filepath.Join(root, metadataFile), append(meta, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", metadataFile, err)
	}
	for _, name := range []string{contentFile, metadataFile} {
		if _, err := worktree.Add(name); err != nil {
			return fmt.Errorf("git add %s: %w", name, err)
		}
	}

	message := fmt.Sprintf("v%s: %s\n\nversion-number: %d\ncontent-digest: %s\n",
		version.VersionLabel, firstLine(version.ChangeSummary), version.VersionNumber, version.ContentDigest)
	_, err = worktree.Commit(message, &git.CommitOptions{
		Author:            signature(version.CreatedBy, version.CreatedAt),
		AllowEmptyCommits: true,
	})
	if err != nil {
		return fmt.Errorf("commit version %d: %w", version.VersionNumber, err)
	}
	return nil
}

// TagRelease tags the head of main with the policy's current label. An
// existing tag of that name is left alone.
func (a *Archive) TagRelease(ctx context.Context, policy *models.Policy, approver uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := a.policyLock(policy.Slug)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(a.repoPath(policy.Slug))
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", branchName, err)
	}

	name := "v" + policy.VersionLabel()
	_, err = repo.CreateTag(name, head.Hash(), &git.CreateTagOptions{
		Tagger:  signature(approver, time.Now()),
		Message: fmt.Sprintf("%s approved as version %s", policy.Title, policy.VersionLabel()),
	})
	if err != nil && !errors.Is(err, git.ErrTagExists) {
		return fmt.Errorf("create tag %s: %w", name, err)
	}
	return nil
}

func (a *Archive) openOrInit(slug string) (*git.Repository, error) {
	path := a.repoPath(slug)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchName))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branchName, err)
	}
	return repo, nil
}

func (a *Archive) repoPath(slug string) string {
	return filepath.Join(a.baseDir, slug)
}

func (a *Archive) policyLock(slug string) *sync.Mutex {
	a.lockMu.Lock()
	defer a.lockMu.Unlock()
	lock, ok := a.locks[slug]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[slug] = lock
	}
	return lock
}

func signature(user uuid.UUID, when time.Time) *object.Signature {
	if when.IsZero() {
		when = time.Now()
	}
	return &object.Signature{
		Name:  user.String(),
		Email: user.String() + "@users.grc-portal.local",
		When:  when,
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
