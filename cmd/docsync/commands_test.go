package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/docsync/pkg/config"
	"github.com/jingkaihe/docsync/pkg/docpatch"
	"github.com/jingkaihe/docsync/pkg/history"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jingkaihe/docsync/pkg/techdetect"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, add func(*cobra.Command), args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{
		Use: "test",
		Run: func(_ *cobra.Command, _ []string) {},
	}
	add(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestDetectConfigFromFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected *DetectConfig
		wantErr  bool
	}{
		{
			name:     "defaults",
			args:     []string{},
			expected: NewDetectConfig(),
		},
		{
			name:     "tree json",
			args:     []string{"--tree", "--json"},
			expected: &DetectConfig{Tree: true, JSONOutput: true},
		},
		{
			name:     "local",
			args:     []string{"--local"},
			expected: &DetectConfig{Local: true},
		},
		{
			name:     "local and tree conflict",
			args:     []string{"--local", "--tree"},
			expected: &DetectConfig{Local: true, Tree: true},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := getDetectConfigFromFlags(parseFlags(t, addDetectFlags, tt.args...))
			assert.Equal(t, tt.expected, config)
			if tt.wantErr {
				assert.Error(t, config.Validate())
			} else {
				assert.NoError(t, config.Validate())
			}
		})
	}
}

func TestMatchConfigFromFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected *MatchConfig
		errMsg   string
	}{
		{
			name:     "defaults",
			args:     []string{},
			expected: NewMatchConfig(),
		},
		{
			name: "all options",
			args: []string{"--scope", "Technology", "--compact", "--max-skills", "3", "--skip-ecosystem", "--json", "--update", "--dry-run"},
			expected: &MatchConfig{
				Scope:         "technology",
				Compact:       true,
				MaxSkills:     3,
				SkipEcosystem: true,
				JSONOutput:    true,
				Update:        true,
				DryRun:        true,
			},
		},
		{
			name:     "invalid scope",
			args:     []string{"--scope", "galaxy"},
			expected: &MatchConfig{Scope: "galaxy"},
			errMsg:   "invalid scope",
		},
		{
			name:     "negative max skills",
			args:     []string{"--max-skills", "-1"},
			expected: &MatchConfig{Scope: "all", MaxSkills: -1},
			errMsg:   "cannot be negative",
		},
		{
			name:     "dry run without update",
			args:     []string{"--dry-run"},
			expected: &MatchConfig{Scope: "all", DryRun: true},
			errMsg:   "requires --update",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := getMatchConfigFromFlags(parseFlags(t, addMatchFlags, tt.args...))
			assert.Equal(t, tt.expected, config)
			if tt.errMsg != "" {
				assert.ErrorContains(t, config.Validate(), tt.errMsg)
			} else {
				assert.NoError(t, config.Validate())
			}
		})
	}
}

func TestSyncConfigFromFlags(t *testing.T) {
	config := getSyncConfigFromFlags(parseFlags(t, addSyncFlags, "--dry-run", "--json"))
	assert.Equal(t, &SyncConfig{DryRun: true, JSONOutput: true}, config)
	assert.NoError(t, config.Validate())

	config = getSyncConfigFromFlags(parseFlags(t, addSyncFlags, "--report-only", "--dry-run"))
	assert.ErrorContains(t, config.Validate(), "cannot be combined")

	config = getSyncConfigFromFlags(parseFlags(t, addSyncFlags, "--suggest", "--json"))
	assert.ErrorContains(t, config.Validate(), "requires --yes")

	config = getSyncConfigFromFlags(parseFlags(t, addSyncFlags, "--suggest", "--json", "-y"))
	assert.NoError(t, config.Validate())
}

func TestHistoryPruneConfigFromFlags(t *testing.T) {
	config := getHistoryPruneConfigFromFlags(parseFlags(t, addHistoryPruneFlags))
	assert.Equal(t, &HistoryPruneConfig{Keep: 50}, config)
	assert.NoError(t, config.Validate())

	config = getHistoryPruneConfigFromFlags(parseFlags(t, addHistoryPruneFlags, "--keep", "5", "-y"))
	assert.Equal(t, &HistoryPruneConfig{Keep: 5, Yes: true}, config)

	config = getHistoryPruneConfigFromFlags(parseFlags(t, addHistoryPruneFlags, "--keep=-1"))
	assert.ErrorContains(t, config.Validate(), "cannot be negative")
}

func TestWatchConfigFromFlags(t *testing.T) {
	config := getWatchConfigFromFlags(parseFlags(t, addWatchFlags))
	assert.Equal(t, appConfig.Detection.SkipDirs, config.IgnoreDirs)
	assert.Equal(t, 1000, config.DebounceTime)
	assert.NoError(t, config.Validate())

	config = getWatchConfigFromFlags(parseFlags(t, addWatchFlags, "-i", "tmp,out", "-v", "verbose", "-d", "10", "--dry-run"))
	assert.Equal(t, &WatchConfig{
		IgnoreDirs:   []string{"tmp", "out"},
		Verbosity:    "verbose",
		DebounceTime: 10,
		DryRun:       true,
	}, config)

	config.Verbosity = "loud"
	assert.ErrorContains(t, config.Validate(), "invalid verbosity level")

	config.Verbosity = "quiet"
	config.DebounceTime = -1
	assert.ErrorContains(t, config.Validate(), "cannot be negative")
}

func TestRelevantEvent(t *testing.T) {
	root := "/project"
	agentFiles := []string{"CLAUDE.md", "AGENTS.md"}
	ignore := []string{".git", "node_modules"}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"source write", fsnotify.Event{Name: "/project/api/main.go", Op: fsnotify.Write}, true},
		{"new skill", fsnotify.Event{Name: "/project/.claude/skills/x/SKILL.md", Op: fsnotify.Create}, true},
		{"removed manifest", fsnotify.Event{Name: "/project/package.json", Op: fsnotify.Remove}, true},
		{"agent file", fsnotify.Event{Name: "/project/api/CLAUDE.md", Op: fsnotify.Write}, false},
		{"alias agent file", fsnotify.Event{Name: "/project/AGENTS.md", Op: fsnotify.Create}, false},
		{"ignored dir", fsnotify.Event{Name: "/project/web/node_modules/a/index.js", Op: fsnotify.Write}, false},
		{"git internals", fsnotify.Event{Name: "/project/.git/index", Op: fsnotify.Write}, false},
		{"chmod only", fsnotify.Event{Name: "/project/main.go", Op: fsnotify.Chmod}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevantEvent(tt.event, root, agentFiles, ignore))
		})
	}
}

func TestDebounceFileEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := make(chan FileEvent)
	output := make(chan FileEvent, 4)
	go debounceFileEvents(ctx, input, output, 50*time.Millisecond)

	for _, name := range []string{"a.go", "b.go", "c.go"} {
		input <- FileEvent{Path: name, Op: fsnotify.Write, Time: time.Now()}
	}

	select {
	case event := <-output:
		assert.Equal(t, "c.go", event.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced event was not delivered")
	}

	select {
	case event := <-output:
		t.Fatalf("unexpected second event %s", event.Path)
	case <-time.After(150 * time.Millisecond):
	}

	input <- FileEvent{Path: "d.go", Op: fsnotify.Create, Time: time.Now()}
	select {
	case event := <-output:
		assert.Equal(t, "d.go", event.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("second burst was not delivered")
	}
}

func TestWriteTreeMarkdown(t *testing.T) {
	tree := &techdetect.Tree{
		Root: "/project",
		Dirs: []techdetect.DirDetection{
			{Rel: "/", Techs: []techdetect.DetectedTech{{Name: "go", Category: techdetect.CategoryLanguage, Confidence: 0.6}}},
			{Rel: "/api", Techs: nil},
		},
	}

	var buf bytes.Buffer
	writeTreeMarkdown(&buf, tree, 0.3)
	out := buf.String()

	assert.Contains(t, out, "### /\n\n| Technology | Category | Confidence |")
	assert.Contains(t, out, "| go | language | 60% |")
	assert.Contains(t, out, "### /api\n\nNo technologies detected above threshold.")
}

func TestWriteSkillTable(t *testing.T) {
	var buf bytes.Buffer
	writeSkillTable(&buf, []skills.Skill{
		{Name: "planner", Description: "Plan work", Scope: skills.ScopeProject, Directory: "/p/.claude/skills/planner"},
		{Name: "go-idioms", Description: string(bytes.Repeat([]byte("g"), 80)), Directory: "/p/.claude/skills/go-idioms"},
	})
	out := buf.String()

	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "project")
	assert.Contains(t, out, string(bytes.Repeat([]byte("g"), 57))+"...")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "3f2a9c1d", shortID("3f2a9c1d-1111-2222-3333-444444444444"))
	assert.Equal(t, "plain", shortID("plain"))
}

func TestWriteRun(t *testing.T) {
	started := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	run := history.Run{
		ID:         "3f2a9c1d-1111-2222-3333-444444444444",
		Root:       "/project",
		Threshold:  0.8,
		Promoted:   []string{"go-idioms"},
		Updated:    2,
		Unchanged:  1,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Dirs: []history.Directory{
			{Rel: "/", AgentFile: "CLAUDE.md", Status: "updated", Skills: []string{"go-idioms"}},
			{Rel: "/api", Status: "skipped"},
		},
	}

	var buf bytes.Buffer
	writeRunTable(&buf, []history.Run{run}, true)
	assert.Contains(t, buf.String(), "3f2a9c1d")
	assert.Contains(t, buf.String(), "/project")
	assert.Contains(t, buf.String(), "go-idioms")

	buf.Reset()
	writeRun(&buf, &run)
	out := buf.String()
	assert.Contains(t, out, "Duration:  1.5s")
	assert.Contains(t, out, "Threshold: 80%")
	assert.Contains(t, out, "Files:     2 updated, 1 unchanged, 0 failed")
	assert.Contains(t, out, "CLAUDE.md")
}

func TestNewSearcher(t *testing.T) {
	cfg := config.Default().Ecosystem

	cfg.Cache = false
	_, ok := newSearcher(cfg, nil).(*skills.CommandSearcher)
	assert.True(t, ok)

	rt, err := newRuntime(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer rt.Close()
	require.NotNil(t, rt.db)

	cfg.Cache = true
	_, ok = newSearcher(cfg, rt.db).(*skills.CachedSearcher)
	assert.True(t, ok)

	_, ok = newSearcher(cfg, nil).(*skills.CommandSearcher)
	assert.True(t, ok, "no cache without a database")
}

func TestNewRuntimeWithoutStorage(t *testing.T) {
	rt, err := newRuntime(context.Background(), withoutStorage(testConfig(t)))
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.db)
	assert.NotNil(t, rt.pipeline)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.History.DBPath = filepath.Join(t.TempDir(), "docsync.db")
	cfg.Ecosystem.Enabled = false
	cfg.Detection.SkipDirs = append(cfg.Detection.SkipDirs, ".claude")
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRunSyncRecordsHistory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "CLAUDE.md"), "# Project\n")
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/project\n")
	writeFile(t, filepath.Join(root, "svc", "go.mod"), "module example.com/svc\n")
	writeFile(t, filepath.Join(root, "svc", "main.go"), "package main\n")
	writeFile(t, filepath.Join(root, ".claude", "skills", "go-idioms", "SKILL.md"),
		"---\nname: go-idioms\ndescription: Idiomatic golang code\n---\n")

	ctx := context.Background()
	cfg := testConfig(t)
	rt, err := newRuntime(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, runSync(ctx, rt.pipeline, root, &SyncConfig{DryRun: true}))
	data, err := os.ReadFile(filepath.Join(root, "CLAUDE.md"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), docpatch.StartMarker)

	require.NoError(t, runSync(ctx, rt.pipeline, root, &SyncConfig{}))
	data, err = os.ReadFile(filepath.Join(root, "CLAUDE.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "`go-idioms`")

	runs, err := history.NewStore(rt.db).List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	var dryRuns, updated int
	for _, run := range runs {
		assert.Equal(t, root, run.Root)
		if run.DryRun {
			dryRuns++
		}
		updated += run.Updated
	}
	assert.Equal(t, 1, dryRuns)
	assert.Equal(t, 2, updated)
}
