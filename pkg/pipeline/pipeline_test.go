package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/docsync/pkg/config"
	"github.com/jingkaihe/docsync/pkg/db"
	"github.com/jingkaihe/docsync/pkg/db/migrations"
	"github.com/jingkaihe/docsync/pkg/docpatch"
	"github.com/jingkaihe/docsync/pkg/history"
	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func writeSkill(t *testing.T, dir, name, description string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, name, "SKILL.md"),
		"---\nname: "+name+"\ndescription: \""+description+"\"\n---\n\n# "+name+"\n")
}

var fixtureSkills = map[string]string{
	"planner":          "Plans multi-step work before coding",
	"go-idioms":        "Idiomatic golang code. Use when: reviewing .go files",
	"tailwind-styling": "Tailwind utility classes. Use when: styling components with utilities",
}

// newProject lays out a project with a tailwind root and two Go services.
// Root technologies: tailwind 0.7, go 0.6, javascript 0.3; each service
// detects go at 0.78.
func newProject(t *testing.T, withSkills bool) string {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "CLAUDE.md"), "# Project\n")
	writeFile(t, filepath.Join(root, "package.json"), `{"devDependencies": {"tailwindcss": "^4.0.0"}}`)
	writeFile(t, filepath.Join(root, "tailwind.config.js"), "module.exports = {}\n")

	for _, svc := range []string{"api", "worker"} {
		writeFile(t, filepath.Join(root, svc, "go.mod"), "module example.com/"+svc+"\n")
		writeFile(t, filepath.Join(root, svc, "main.go"), "package main\n")
	}
	writeFile(t, filepath.Join(root, "api", "CLAUDE.md"), "# API\n")
	writeFile(t, filepath.Join(root, "worker", "CLAUDE.md"),
		"# Worker\n\n"+docpatch.StartMarker+"\n## Skills\n\nstale\n"+docpatch.EndMarker+"\n")

	if withSkills {
		dir := filepath.Join(root, ".claude", "skills")
		for name, desc := range fixtureSkills {
			writeSkill(t, dir, name, desc)
		}
	}
	return root
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Detection.SkipDirs = append(cfg.Detection.SkipDirs, ".claude", ".agents")
	return cfg
}

func newPipeline(t *testing.T, cfg config.Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	t.Run("falls back to default agent files", func(t *testing.T) {
		cfg := testConfig()
		cfg.Docs = config.DocsConfig{}
		p := newPipeline(t, cfg)
		assert.Equal(t, docpatch.DefaultAgentFiles(), p.agentFiles)
	})

	t.Run("rejects a missing catalog file", func(t *testing.T) {
		cfg := testConfig()
		cfg.Detection.CatalogFile = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := New(cfg)
		assert.Error(t, err)
	})
}

func TestDetect(t *testing.T) {
	root := newProject(t, false)
	p := newPipeline(t, testConfig())

	techs, err := p.Detect(context.Background(), root, false)
	require.NoError(t, err)
	require.Len(t, techs, 3)
	assert.Equal(t, "tailwind", techs[0].Name)
	assert.InDelta(t, 0.7, techs[0].Confidence, 1e-9)
	assert.Equal(t, "go", techs[1].Name)
	assert.InDelta(t, 0.6, techs[1].Confidence, 1e-9)

	local, err := p.Detect(context.Background(), root, true)
	require.NoError(t, err)
	for _, tech := range local {
		assert.NotEqual(t, "go", tech.Name, "local detection does not see service files")
	}

	_, err = p.Detect(context.Background(), filepath.Join(root, "missing"), false)
	assert.Error(t, err)
}

func TestDetectTree(t *testing.T) {
	root := newProject(t, true)
	p := newPipeline(t, testConfig())

	tree, err := p.DetectTree(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, tree.Dirs, 3)
	assert.Equal(t, "/", tree.Dirs[0].Rel)
	assert.Equal(t, "/api", tree.Dirs[1].Rel)
	assert.Equal(t, "/worker", tree.Dirs[2].Rel)

	api := tree.Dirs[1].Techs
	require.Len(t, api, 1)
	assert.Equal(t, "go", api[0].Name)
	assert.InDelta(t, 0.78, api[0].Confidence, 1e-9)
}

func TestSync(t *testing.T) {
	root := newProject(t, true)
	p := newPipeline(t, testConfig())
	ctx := context.Background()

	result, err := p.Sync(ctx, root, SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"go-idioms"}, result.Promotion.Promoted)
	assert.Equal(t, []string{"planner", "go-idioms", "tailwind-styling"}, matcher.Names(result.Promotion.Root().Skills))

	report := result.Report
	assert.Equal(t, []string{"CLAUDE.md", "worker/CLAUDE.md"}, report.Updated)
	assert.Empty(t, report.Unchanged)
	assert.Empty(t, report.Failed)
	assert.Equal(t, "80%", report.PromotionThreshold)
	assert.Equal(t, 1.0, report.Frequencies["go-idioms"])
	assert.Equal(t, "updated", report.Directories["/"].Status)
	assert.Equal(t, "not-modified", report.Directories["/api"].Status)
	assert.Empty(t, report.Directories["/api"].Skills)

	rootDoc := readFile(t, filepath.Join(root, "CLAUDE.md"))
	assert.True(t, strings.HasPrefix(rootDoc, "# Project\n\n"+docpatch.StartMarker))
	for name := range fixtureSkills {
		assert.Contains(t, rootDoc, "`"+name+"`")
	}
	assert.Equal(t, "# API\n", readFile(t, filepath.Join(root, "api", "CLAUDE.md")))
	assert.Equal(t, "# Worker\n", readFile(t, filepath.Join(root, "worker", "CLAUDE.md")))

	t.Run("second run is idempotent", func(t *testing.T) {
		again, err := p.Sync(ctx, root, SyncOptions{})
		require.NoError(t, err)
		assert.Empty(t, again.Report.Updated)
		assert.Equal(t, []string{"CLAUDE.md"}, again.Report.Unchanged)
		assert.Equal(t, rootDoc, readFile(t, filepath.Join(root, "CLAUDE.md")))
	})
}

func TestSyncDryRun(t *testing.T) {
	root := newProject(t, true)
	p := newPipeline(t, testConfig())

	result, err := p.Sync(context.Background(), root, SyncOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.Report.DryRun)
	assert.Equal(t, []string{"CLAUDE.md", "worker/CLAUDE.md"}, result.Report.Updated)
	assert.Contains(t, result.Diffs["CLAUDE.md"], "+"+docpatch.StartMarker)
	assert.Contains(t, result.Diffs["worker/CLAUDE.md"], "-"+docpatch.StartMarker)
	assert.Equal(t, "# Project\n", readFile(t, filepath.Join(root, "CLAUDE.md")))
}

func TestSyncReportOnly(t *testing.T) {
	root := newProject(t, true)
	p := newPipeline(t, testConfig())

	result, err := p.Sync(context.Background(), root, SyncOptions{ReportOnly: true})
	require.NoError(t, err)
	assert.Empty(t, result.Report.Updated)
	assert.Empty(t, result.Report.Directories["/"].AgentFile)
	assert.Equal(t, "# Project\n", readFile(t, filepath.Join(root, "CLAUDE.md")))
}

func TestSyncCollectsWriteFailures(t *testing.T) {
	root := newProject(t, true)
	require.NoError(t, os.Remove(filepath.Join(root, "api", "CLAUDE.md")))
	require.NoError(t, os.Mkdir(filepath.Join(root, "api", "CLAUDE.md"), 0o755))

	p := newPipeline(t, testConfig())
	result, err := p.Sync(context.Background(), root, SyncOptions{})
	require.Error(t, err)
	require.NotNil(t, result)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1)
	assert.Equal(t, []string{"api/CLAUDE.md"}, result.Report.Failed)
	assert.Equal(t, "failed", result.Report.Directories["/api"].Status)
	assert.Equal(t, []string{"CLAUDE.md", "worker/CLAUDE.md"}, result.Report.Updated)
}

func TestSyncWithoutSubdirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "CLAUDE.md"), "# Tiny\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main\n")
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/tiny\n")
	writeSkill(t, filepath.Join(root, ".claude", "skills"), "go-idioms", fixtureSkills["go-idioms"])

	p := newPipeline(t, testConfig())
	result, err := p.Sync(context.Background(), root, SyncOptions{})
	require.NoError(t, err)

	assert.Empty(t, result.Promotion.Promoted)
	assert.Equal(t, 0, result.Promotion.Subdirs)
	assert.Equal(t, []string{"go-idioms"}, matcher.Names(result.Promotion.Root().Skills))
	assert.Equal(t, []string{"CLAUDE.md"}, result.Report.Updated)
}

func TestSyncRecordsHistory(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.OpenMigrated(ctx, filepath.Join(t.TempDir(), "docsync.db"), migrations.All())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	store := history.NewStore(sqlDB)

	root := newProject(t, true)
	p := newPipeline(t, testConfig(), WithHistory(store))

	result, err := p.Sync(ctx, root, SyncOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)

	run, err := store.Get(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.Root, run.Root)
	assert.Equal(t, 2, run.Updated)
	assert.Equal(t, []string{"go-idioms"}, run.Promoted)
	require.Len(t, run.Dirs, 3)
	assert.Equal(t, "/", run.Dirs[0].Rel)
	assert.Equal(t, "CLAUDE.md", run.Dirs[0].AgentFile)
	assert.Equal(t, []string{"planner", "go-idioms", "tailwind-styling"}, run.Dirs[0].Skills)

	t.Run("report only runs are not recorded", func(t *testing.T) {
		reportOnly, err := p.Sync(ctx, root, SyncOptions{ReportOnly: true})
		require.NoError(t, err)
		assert.Empty(t, reportOnly.RunID)
	})
}
