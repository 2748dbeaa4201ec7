package differ

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseDoc = `# Access Control Policy

## 1 Introduction

This policy applies to all staff.

## 2 Policy

Passwords must be 8 characters.

## 3 Responsibilities

IT owns enforcement.
`

func TestLocalDiffBySection(t *testing.T) {
	edited := `# Access Control Policy

## 1 Introduction

This policy applies to all staff.

## 2 Policy

Passwords must be 12 characters.
MFA is required for remote access.

## 4 Exceptions

Exceptions need CISO sign-off.
`
	diff, err := NewLocal().Diff(context.Background(), baseDoc, edited)
	require.NoError(t, err)

	assert.Equal(t, []string{`Added section "4 Exceptions"`}, diff.Added)
	assert.Equal(t, []string{`Removed section "3 Responsibilities"`}, diff.Removed)
	assert.Equal(t, []string{`Updated section "2 Policy" (+2/-1 lines)`}, diff.Modified)
}

func TestLocalDiffIdenticalContent(t *testing.T) {
	diff, err := NewLocal().Diff(context.Background(), baseDoc, baseDoc)
	require.NoError(t, err)
	assert.True(t, diff.Empty())

	summary, err := NewLocal().Summarize(context.Background(), baseDoc, baseDoc)
	require.NoError(t, err)
	assert.Equal(t, "No content changes.", summary)
}

func TestLocalDiffWithoutHeadings(t *testing.T) {
	diff, err := NewLocal().Diff(context.Background(), "line one\n", "line one\nline two\n")
	require.NoError(t, err)
	assert.Equal(t, []string{`Updated section "Preamble" (+1/-0 lines)`}, diff.Modified)
}

func TestLocalSummarize(t *testing.T) {
	edited := baseDoc + "\n## 4 Exceptions\n\nNone.\n\n## 5 Review\n\nYearly.\n"
	summary, err := NewLocal().Summarize(context.Background(), baseDoc, edited)
	require.NoError(t, err)
	assert.Equal(t, "2 sections added.", summary)
}

func TestLocalHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocal().Diff(ctx, "a", "b")
	assert.ErrorIs(t, err, context.Canceled)
}
