package keywords

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newspipe/internal/models"
)

func TestLoad(t *testing.T) {
	t.Run("missing file yields empty list", func(t *testing.T) {
		list, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("reads trimmed non-blank lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keywords.txt")
		require.NoError(t, os.WriteFile(path, []byte("market\n\n  war  \n"), 0o644))

		list, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"market", "war"}, list)
	})
}

func TestFilter(t *testing.T) {
	rows := []models.Message{
		{Channel: "a", ID: 1, Text: "markets rallied today"},
		{Channel: "a", ID: 2, Text: "nothing of note"},
		{Channel: "a", ID: 3, Text: "war and peace"},
	}

	t.Run("empty keyword list is identity", func(t *testing.T) {
		assert.Equal(t, rows, Filter(rows, nil))
		assert.Equal(t, rows, Filter(rows, []string{}))
	})

	t.Run("admits rows containing any keyword", func(t *testing.T) {
		got := Filter(rows, []string{"market", "war"})
		require.Len(t, got, 2)
		assert.Equal(t, int64(1), got[0].ID)
		assert.Equal(t, int64(3), got[1].ID)
	})

	t.Run("matching is case sensitive", func(t *testing.T) {
		assert.Empty(t, Filter(rows, []string{"Market"}))
	})

	t.Run("no rows admitted when nothing matches", func(t *testing.T) {
		assert.Empty(t, Filter(rows, []string{"crypto"}))
	})
}
