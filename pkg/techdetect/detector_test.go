package techdetect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newTestDetector(t *testing.T, opts ...Option) *Detector {
	t.Helper()
	d, err := NewDetector(nil, opts...)
	require.NoError(t, err)
	return d
}

func findTech(techs []DetectedTech, name string) (DetectedTech, bool) {
	for _, t := range techs {
		if t.Name == name {
			return t, true
		}
	}
	return DetectedTech{}, false
}

func TestDetectReactTailwind(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"dependencies": {"react": "^18.2.0", "tailwindcss": "^3.4.0"}}`)

	techs, err := newTestDetector(t).Detect(context.Background(), dir, ModeRecursive, nil)
	require.NoError(t, err)
	require.Len(t, techs, 2)

	assert.Equal(t, "react", techs[0].Name)
	assert.InDelta(t, 0.4, techs[0].Confidence, 1e-9)
	assert.Equal(t, []string{`pattern '"react":\s*"' in package.json`}, techs[0].Evidence)

	assert.Equal(t, "tailwind", techs[1].Name)
	assert.Equal(t, CategoryCSS, techs[1].Category)
	assert.InDelta(t, 0.4, techs[1].Confidence, 1e-9)
}

func TestDetectEmptyDirectory(t *testing.T) {
	d := newTestDetector(t)
	for _, mode := range []Mode{ModeRecursive, ModeLocal} {
		techs, err := d.Detect(context.Background(), t.TempDir(), mode, nil)
		require.NoError(t, err)
		assert.Empty(t, techs, mode.String())
	}
}

func TestDetectInheritance(t *testing.T) {
	d := newTestDetector(t)
	inherited := []DetectedTech{
		{Name: "python", Category: CategoryLanguage, Confidence: 0.9, Evidence: []string{"file: setup.py"}},
	}

	t.Run("inherited only", func(t *testing.T) {
		techs, err := d.Detect(context.Background(), t.TempDir(), ModeLocal, inherited)
		require.NoError(t, err)
		require.Len(t, techs, 1)
		assert.Equal(t, "python", techs[0].Name)
		assert.InDelta(t, 0.27, techs[0].Confidence, 1e-9)
		assert.Equal(t, []string{InheritedEvidence}, techs[0].Evidence)
	})

	t.Run("merged with local evidence", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "app.py", "print('hi')\n")

		techs, err := d.Detect(context.Background(), dir, ModeLocal, inherited)
		require.NoError(t, err)
		python, ok := findTech(techs, "python")
		require.True(t, ok)
		assert.InDelta(t, 0.57, python.Confidence, 1e-9)
		assert.Equal(t, []string{InheritedEvidence, "file: app.py"}, python.Evidence)
	})

	t.Run("input is not mutated", func(t *testing.T) {
		_, err := d.Detect(context.Background(), t.TempDir(), ModeLocal, inherited)
		require.NoError(t, err)
		assert.Equal(t, 0.9, inherited[0].Confidence)
		assert.Equal(t, []string{"file: setup.py"}, inherited[0].Evidence)
	})
}

func TestDetectLocalVersusRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/x\n")
	writeFile(t, dir, "pkg/api/handler.go", "package api\n")

	d := newTestDetector(t)

	recursive, err := d.Detect(context.Background(), dir, ModeRecursive, nil)
	require.NoError(t, err)
	goTech, ok := findTech(recursive, "go")
	require.True(t, ok)
	assert.InDelta(t, 0.6, goTech.Confidence, 1e-9)
	assert.Contains(t, goTech.Evidence, "file: pkg/api/handler.go")
	assert.Contains(t, goTech.Evidence, "file: go.mod")

	local, err := d.Detect(context.Background(), dir, ModeLocal, nil)
	require.NoError(t, err)
	goTech, ok = findTech(local, "go")
	require.True(t, ok)
	assert.InDelta(t, 0.3, goTech.Confidence, 1e-9)
	assert.Equal(t, []string{"file: go.mod"}, goTech.Evidence)
}

func TestDetectBounds(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 12; i++ {
		writeFile(t, dir, fmt.Sprintf("mod%02d.py", i), "import os\n")
	}
	writeFile(t, dir, "pyproject.toml", "[project]\n")
	writeFile(t, dir, "requirements.txt", "requests\n")

	techs, err := newTestDetector(t).Detect(context.Background(), dir, ModeRecursive, nil)
	require.NoError(t, err)

	python, ok := findTech(techs, "python")
	require.True(t, ok)
	assert.Equal(t, 1.0, python.Confidence)
	assert.Len(t, python.Evidence, 5)

	for _, tech := range techs {
		assert.GreaterOrEqual(t, tech.Confidence, 0.0)
		assert.LessOrEqual(t, tech.Confidence, 1.0)
		assert.LessOrEqual(t, len(tech.Evidence), 5)
	}
}

func TestDetectFirstRegexPerFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"dependencies": {"@radix-ui/react-slot": "1", "clsx": "2"}}`)

	techs, err := newTestDetector(t).Detect(context.Background(), dir, ModeLocal, nil)
	require.NoError(t, err)

	shadcn, ok := findTech(techs, "shadcn")
	require.True(t, ok)
	assert.InDelta(t, 0.4, shadcn.Confidence, 1e-9)
	assert.Len(t, shadcn.Evidence, 1)
}

func TestDetectSkipsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"dependencies": {"react": "^18.2.0"}}`+strings.Repeat(" ", 64))

	limits := DefaultLimits()
	limits.MaxFileSize = 16
	techs, err := newTestDetector(t, WithLimits(limits)).Detect(context.Background(), dir, ModeLocal, nil)
	require.NoError(t, err)

	_, ok := findTech(techs, "react")
	assert.False(t, ok)
}

func TestDetectSkipsBinaryContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", "\x00\x01"+`{"dependencies": {"react": "^18.2.0"}}`)

	techs, err := newTestDetector(t).Detect(context.Background(), dir, ModeLocal, nil)
	require.NoError(t, err)

	_, ok := findTech(techs, "react")
	assert.False(t, ok)

	assert.True(t, isBinary([]byte("ab\x00c")))
	assert.False(t, isBinary([]byte("plain text")))
	assert.False(t, isBinary(nil))
	assert.False(t, isBinary(append([]byte(strings.Repeat("a", 512)), 0)), "only the head is inspected")
}

func TestDetectSkipAndIgnore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "node_modules/lib/index.js", "module.exports = {}\n")
	writeFile(t, dir, "generated/client.go", "package client\n")

	techs, err := newTestDetector(t, WithIgnorePatterns("generated")).
		Detect(context.Background(), dir, ModeRecursive, nil)
	require.NoError(t, err)
	assert.Empty(t, techs)

	techs, err = newTestDetector(t).Detect(context.Background(), dir, ModeRecursive, nil)
	require.NoError(t, err)
	_, ok := findTech(techs, "go")
	assert.True(t, ok)
	_, ok = findTech(techs, "javascript")
	assert.False(t, ok, "node_modules is never walked")
}

func TestDetectInvalidIgnorePattern(t *testing.T) {
	_, err := NewDetector(nil, WithIgnorePatterns("[unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ignore pattern")
}

func TestDetectIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"dependencies": {"next": "14.0.0", "react": "18.0.0", "vitest": "1"}}`)
	writeFile(t, dir, "next.config.js", "module.exports = {}\n")
	writeFile(t, dir, "src/app/page.tsx", "export default function Page() {}\n")
	writeFile(t, dir, "Dockerfile", "FROM node:20\n")

	d := newTestDetector(t)
	first, err := d.Detect(context.Background(), dir, ModeRecursive, nil)
	require.NoError(t, err)
	second, err := d.Detect(context.Background(), dir, ModeRecursive, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	names := map[string]bool{}
	for _, tech := range first {
		assert.False(t, names[tech.Name], "duplicate tech %s", tech.Name)
		names[tech.Name] = true
	}
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Confidence, first[i].Confidence)
	}
}

func TestDetectMissingDirectory(t *testing.T) {
	d := newTestDetector(t)

	_, err := d.Detect(context.Background(), filepath.Join(t.TempDir(), "missing"), ModeRecursive, nil)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(errors.Cause(err)))

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = d.Detect(context.Background(), file, ModeRecursive, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestDetectCustomCatalogBoost(t *testing.T) {
	catalog := MustCatalog([]Signature{
		{Name: "bazel", Category: CategoryBuild, Files: []string{"WORKSPACE"}, Boost: 0.2},
	})
	dir := t.TempDir()
	writeFile(t, dir, "WORKSPACE", "")

	d, err := NewDetector(catalog)
	require.NoError(t, err)
	techs, err := d.Detect(context.Background(), dir, ModeLocal, nil)
	require.NoError(t, err)
	require.Len(t, techs, 1)
	assert.InDelta(t, 0.5, techs[0].Confidence, 1e-9)
}
