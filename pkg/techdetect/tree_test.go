package techdetect

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/x\n")
	writeFile(t, root, "api/handler.go", "package api\n")
	writeFile(t, root, "docs/README.txt", "docs\n")
	writeFile(t, root, "web/package.json", `{"dependencies": {"react": "^18.2.0"}}`)
	writeFile(t, root, "node_modules/react/package.json", `{"dependencies": {"react": "^18.2.0"}}`)

	tree, err := newTestDetector(t).DetectTree(context.Background(), root, DefaultMinConfidence)
	require.NoError(t, err)

	rels := make([]string, 0, len(tree.Dirs))
	for _, d := range tree.Dirs {
		rels = append(rels, d.Rel)
	}
	assert.Equal(t, []string{"/", "/api", "/web"}, rels)
	assert.True(t, tree.Dirs[0].IsRoot())

	rootTechs := tree.RootTechs()
	require.Len(t, rootTechs, 1)
	assert.Equal(t, "go", rootTechs[0].Name)
	assert.InDelta(t, 0.6, rootTechs[0].Confidence, 1e-9)

	api, ok := tree.Lookup("/api")
	require.True(t, ok)
	require.Len(t, api.Techs, 1)
	assert.InDelta(t, 0.48, api.Techs[0].Confidence, 1e-9)
	assert.Equal(t, []string{InheritedEvidence, "file: handler.go"}, api.Techs[0].Evidence)

	web, ok := tree.Lookup("/web")
	require.True(t, ok)
	require.Len(t, web.Techs, 1)
	assert.Equal(t, "react", web.Techs[0].Name)

	_, ok = tree.Lookup("/docs")
	assert.False(t, ok, "inherited-only detections below the threshold are dropped")

	assert.Len(t, tree.Subdirs(), 2)
}

func TestDetectTreeTraversesOmittedDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "services/billing/main.py", "print('x')\n")

	tree, err := newTestDetector(t).DetectTree(context.Background(), root, DefaultMinConfidence)
	require.NoError(t, err)

	_, ok := tree.Lookup("/services")
	assert.False(t, ok)
	billing, ok := tree.Lookup("/services/billing")
	require.True(t, ok)
	assert.Equal(t, "python", billing.Techs[0].Name)
}

func TestDetectTreeEmptyProject(t *testing.T) {
	tree, err := newTestDetector(t).DetectTree(context.Background(), t.TempDir(), DefaultMinConfidence)
	require.NoError(t, err)
	require.Len(t, tree.Dirs, 1)
	assert.Empty(t, tree.RootTechs())
	assert.Nil(t, tree.Subdirs())

	data, err := json.Marshal(tree.Report())
	require.NoError(t, err)
	assert.JSONEq(t, `{"/": []}`, string(data))
}

func TestDetectTreeRootUnfiltered(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yaml"} {
		writeFile(t, root, "deploy/"+name, "apiVersion: v1\n")
	}

	tree, err := newTestDetector(t).DetectTree(context.Background(), root, 0.9)
	require.NoError(t, err)

	k8s, ok := findTech(tree.RootTechs(), "kubernetes")
	require.True(t, ok)
	assert.Less(t, k8s.Confidence, 0.9)
	assert.Len(t, tree.Dirs, 1)
}
