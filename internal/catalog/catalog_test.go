package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FileOrder(t *testing.T) {
	data := []byte(`
- id: a
  topic: slices
  options: 4
- id: b
  topic: maps
  options: 4
  priority: true
- id: c
  topic: slices
  options: 3
  rich: true
`)
	items, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)
	assert.True(t, items[1].OriginPriority)
	assert.True(t, items[2].RichContent)
}

func TestParse_EmptyID(t *testing.T) {
	_, err := Parse([]byte("- id: \"\"\n  topic: x\n  options: 2\n"))
	assert.Error(t, err)
}

func TestParse_DuplicateID(t *testing.T) {
	_, err := Parse([]byte("- id: a\n  options: 2\n- id: a\n  options: 2\n"))
	assert.Error(t, err)
}

func TestParse_NormalizesNFC(t *testing.T) {
	// Decomposed "e" + combining acute must load as the precomposed form.
	data := []byte("- id: \"cafe\\u0301\"\n  topic: x\n  options: 2\n")
	items, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "caf\u00e9", items[0].ID)
}

func TestReviewable(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{"plain item", Item{ID: "a", OptionCount: 4}, true},
		{"no options", Item{ID: "b", OptionCount: 0}, false},
		{"rich content", Item{ID: "c", OptionCount: 4, RichContent: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Reviewable())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- id: a\n  topic: t\n  options: 2\n"), 0o644))

	items, err := Load(path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
}

func TestIndex(t *testing.T) {
	items := []Item{{ID: "a"}, {ID: "b"}}
	idx := Index(items)
	assert.Len(t, idx, 2)
	assert.Equal(t, "b", idx["b"].ID)
}
