package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jingkaihe/docsync/pkg/docpatch"
	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	results map[string][]skills.Skill
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]skills.Skill, error) {
	f.queries = append(f.queries, query)
	return f.results[query], nil
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{results: map[string][]skills.Skill{
		"tailwind": {{
			Name:        "tailwind-recipes",
			Description: "Tailwind layout recipes",
			Source:      skills.SourceEcosystem,
			Install:     "npx skills add acme/tailwind-recipes",
		}},
	}}
}

func TestMatch(t *testing.T) {
	root := newProject(t, true)
	searcher := newFakeSearcher()
	p := newPipeline(t, testConfig(), WithSearcher(searcher))

	result, err := p.Match(context.Background(), root, MatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"tailwind", "go", "javascript"}, searcher.queries)
	assert.Equal(t, 1, result.Ecosystem)
	assert.ElementsMatch(t, []string{"tailwind-styling", "tailwind-recipes", "go-idioms"}, matcher.Names(result.Matches))
	assert.Equal(t, "go-idioms", result.Matches[2].Name)
	assert.Contains(t, result.Markdown, "## Relevant Skills")
	assert.Contains(t, result.Markdown, "### Suggested Installations")
	assert.Contains(t, result.Markdown, "npx skills add acme/tailwind-recipes")
	assert.Nil(t, result.Patch)
	assert.Equal(t, "# Project\n", readFile(t, filepath.Join(root, "CLAUDE.md")))
}

func TestMatchOptions(t *testing.T) {
	root := newProject(t, true)

	t.Run("skip ecosystem", func(t *testing.T) {
		searcher := newFakeSearcher()
		p := newPipeline(t, testConfig(), WithSearcher(searcher))

		result, err := p.Match(context.Background(), root, MatchOptions{SkipEcosystem: true})
		require.NoError(t, err)
		assert.Empty(t, searcher.queries)
		assert.NotContains(t, matcher.Names(result.Matches), "tailwind-recipes")
	})

	t.Run("ecosystem disabled in config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Ecosystem.Enabled = false
		searcher := newFakeSearcher()
		p := newPipeline(t, cfg, WithSearcher(searcher))

		_, err := p.Match(context.Background(), root, MatchOptions{})
		require.NoError(t, err)
		assert.Empty(t, searcher.queries)
	})

	t.Run("term count follows config", func(t *testing.T) {
		cfg := testConfig()
		cfg.Ecosystem.Terms = 1
		searcher := newFakeSearcher()
		p := newPipeline(t, cfg, WithSearcher(searcher))

		_, err := p.Match(context.Background(), root, MatchOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"tailwind"}, searcher.queries)
	})

	t.Run("max skills and compact", func(t *testing.T) {
		p := newPipeline(t, testConfig())

		result, err := p.Match(context.Background(), root, MatchOptions{MaxSkills: 1, Compact: true})
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, "tailwind-styling", result.Matches[0].Name)
		assert.Contains(t, result.Markdown, "## Skills")
		assert.Contains(t, result.Markdown, "| Skill | When to use |")
	})

	t.Run("project scope", func(t *testing.T) {
		p := newPipeline(t, testConfig())

		result, err := p.Match(context.Background(), root, MatchOptions{Scope: skills.ScopeProject})
		require.NoError(t, err)
		assert.Empty(t, result.Matches)
	})
}

func TestMatchUpdate(t *testing.T) {
	root := newProject(t, true)
	p := newPipeline(t, testConfig())

	t.Run("dry run leaves the file alone", func(t *testing.T) {
		result, err := p.Match(context.Background(), root, MatchOptions{Update: true, DryRun: true})
		require.NoError(t, err)
		require.NotNil(t, result.Patch)
		assert.Equal(t, docpatch.StatusUpdated, result.Patch.Status)
		assert.NotEmpty(t, result.Patch.Diff)
		assert.Equal(t, "# Project\n", readFile(t, filepath.Join(root, "CLAUDE.md")))
	})

	t.Run("writes the block", func(t *testing.T) {
		result, err := p.Match(context.Background(), root, MatchOptions{Update: true})
		require.NoError(t, err)
		require.NotNil(t, result.Patch)
		assert.Equal(t, docpatch.StatusUpdated, result.Patch.Status)
		assert.Equal(t, "# Project\n\n"+docpatch.Wrap(result.Markdown)+"\n", readFile(t, filepath.Join(root, "CLAUDE.md")))

		again, err := p.Match(context.Background(), root, MatchOptions{Update: true})
		require.NoError(t, err)
		assert.Equal(t, docpatch.StatusUnchanged, again.Patch.Status)
	})
}
