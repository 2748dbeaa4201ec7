package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"grc-portal/models"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() *models.Policy {
	return &models.Policy{
		ID:             uuid.New(),
		Slug:           "access-control",
		Title:          "Access Control Policy",
		CurrentVersion: 1,
		MajorVersion:   1,
		MinorVersion:   0,
	}
}

func testVersion(p *models.Policy, number int, label, content string) *models.PolicyVersion {
	return &models.PolicyVersion{
		PolicyID:      p.ID,
		VersionNumber: number,
		VersionLabel:  label,
		Content:       content,
		ContentDigest: "digest-" + label,
		ChangeSummary: "Change " + label,
		CreatedBy:     uuid.New(),
		CreatedAt:     time.Now(),
	}
}

func commitMessages(t *testing.T, repo *git.Repository) []string {
	t.Helper()
	iter, err := repo.Log(&git.LogOptions{})
	require.NoError(t, err)
	var messages []string
	require.NoError(t, iter.ForEach(func(c *object.Commit) error {
		messages = append(messages, strings.SplitN(c.Message, "\n", 2)[0])
		return nil
	}))
	return messages
}

func TestArchiveVersionsAndRelease(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	policy := testPolicy()
	require.NoError(t, a.ArchiveVersion(ctx, policy, testVersion(policy, 1, "1.0", "# Access\n")))
	require.NoError(t, a.ArchiveVersion(ctx, policy, testVersion(policy, 2, "1.1", "# Access\n\nUpdated.\n")))

	content, err := os.ReadFile(filepath.Join(dir, policy.Slug, contentFile))
	require.NoError(t, err)
	assert.Equal(t, "# Access\n\nUpdated.\n", string(content))

	repo, err := git.PlainOpen(filepath.Join(dir, policy.Slug))
	require.NoError(t, err)
	assert.Equal(t, []string{"v1.1: Change 1.1", "v1.0: Change 1.0"}, commitMessages(t, repo))

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, plumbing.NewBranchReferenceName("main"), head.Name())

	policy.MajorVersion = 2
	policy.MinorVersion = 0
	require.NoError(t, a.TagRelease(ctx, policy, uuid.New()))
	require.NoError(t, a.TagRelease(ctx, policy, uuid.New()), "retagging is a no-op")

	tag, err := repo.Tag("v2.0")
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), mustTagTarget(t, repo, tag))
}

func mustTagTarget(t *testing.T, repo *git.Repository, ref *plumbing.Reference) plumbing.Hash {
	t.Helper()
	tagObj, err := repo.TagObject(ref.Hash())
	require.NoError(t, err)
	return tagObj.Target
}

func TestTagReleaseWithoutRepository(t *testing.T) {
	a, err := New(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, a.TagRelease(context.Background(), testPolicy(), uuid.New()))
}

func TestConcurrentArchiveWritesAreSerialized(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	require.NoError(t, err)
	policy := testPolicy()

	var wg sync.WaitGroup
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			v := testVersion(policy, n, models.Version{Major: 1, Minor: n - 1}.String(), strings.Repeat("x", n))
			assert.NoError(t, a.ArchiveVersion(context.Background(), policy, v))
		}(i)
	}
	wg.Wait()

	repo, err := git.PlainOpen(filepath.Join(dir, policy.Slug))
	require.NoError(t, err)
	assert.Len(t, commitMessages(t, repo), 5)
}

func TestArchiveVersionHonoursCancelledContext(t *testing.T) {
	a, err := New(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := testPolicy()
	assert.ErrorIs(t, a.ArchiveVersion(ctx, policy, testVersion(policy, 1, "1.0", "x")), context.Canceled)
}
