package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func TestDirSource_ListFiltersKnowledgeFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "asthma.md", "# Asthma")
	writeFile(t, root, "cardiology/hypertension.txt", "High blood pressure")
	writeFile(t, root, "cardiology/ecg.png", "binary")
	writeFile(t, root, ".git/notes.md", "hidden")

	src, err := NewDirSource(root)
	require.NoError(t, err)

	paths, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"asthma.md", "cardiology/hypertension.txt"}, paths)
}

func TestDirSource_Fetch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "cardiology/hypertension.txt", "High blood pressure")

	src, err := NewDirSource(root)
	require.NoError(t, err)

	doc, err := src.Fetch(context.Background(), "cardiology/hypertension.txt")
	require.NoError(t, err)
	assert.Equal(t, "cardiology/hypertension.txt", doc.Path)
	assert.Equal(t, "High blood pressure", doc.Content)
	assert.Contains(t, doc.URL, "file://")

	_, err = src.Fetch(context.Background(), "missing.md")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Fetch(context.Background(), "../outside.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDirSource_RevisionTracksModification(t *testing.T) {
	root := t.TempDir()
	full := writeFile(t, root, "asthma.md", "# Asthma")
	require.NoError(t, os.Chtimes(full, time.Unix(1000, 0), time.Unix(1000, 0)))

	src, err := NewDirSource(root)
	require.NoError(t, err)

	before, err := src.Revision(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Chtimes(full, time.Unix(2000, 0), time.Unix(2000, 0)))
	after, err := src.Revision(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestNewDirSource_RejectsFile(t *testing.T) {
	full := writeFile(t, t.TempDir(), "a.md", "x")
	_, err := NewDirSource(full)
	assert.Error(t, err)
}

func TestTitleFromPath(t *testing.T) {
	assert.Equal(t, "Heart Failure", TitleFromPath("cardiology/heart_failure.md"))
	assert.Equal(t, "Copd Basics", TitleFromPath("copd-basics.txt"))
	assert.Equal(t, "Émphysème", TitleFromPath("émphysème.md"))
}

func TestIsKnowledgeFile(t *testing.T) {
	assert.True(t, IsKnowledgeFile("a.md"))
	assert.True(t, IsKnowledgeFile("a.TXT"))
	assert.False(t, IsKnowledgeFile("a.pdf"))
	assert.True(t, IsMarkdown("notes.markdown"))
	assert.False(t, IsMarkdown("notes.txt"))
}

func TestSampleSource(t *testing.T) {
	src := NewSampleSource()
	ctx := context.Background()

	paths, err := src.List(ctx)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	doc, err := src.Fetch(ctx, "sample_diabetes_guide.txt")
	require.NoError(t, err)
	assert.Equal(t, "Type 2 Diabetes Management", doc.Title)

	doc.Title = "mutated"
	again, err := src.Fetch(ctx, "sample_diabetes_guide.txt")
	require.NoError(t, err)
	assert.Equal(t, "Type 2 Diabetes Management", again.Title)

	_, err = src.Fetch(ctx, "nope.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}
