package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentBuilder_Build(t *testing.T) {
	doc, err := NewDocumentBuilder().
		Path("/docs/readme.md").
		Title("Readme").
		Content([]byte("hello world")).
		AddTag("docs").
		Build()
	require.NoError(t, err)

	assert.False(t, doc.ID.IsZero())
	assert.Equal(t, "/docs/readme.md", doc.Path.String())
	assert.Equal(t, "Readme", doc.Title.String())
	assert.Equal(t, []byte("hello world"), doc.Content)
	assert.Equal(t, int64(11), doc.Size.Get())
	require.Len(t, doc.Tags, 1)
	assert.Equal(t, "docs", doc.Tags[0].String())
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)
}

func TestDocumentBuilder_ExplicitID(t *testing.T) {
	id := NewDocumentID()

	doc, err := NewDocumentBuilder().
		ID(id.String()).
		Path("/x.md").
		Title("X").
		Content([]byte("x")).
		Build()
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
}

func TestDocumentBuilder_MissingFields(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*Document, error)
	}{
		{"no path", func() (*Document, error) {
			return NewDocumentBuilder().Title("T").Content([]byte("c")).Build()
		}},
		{"no title", func() (*Document, error) {
			return NewDocumentBuilder().Path("/a.md").Content([]byte("c")).Build()
		}},
		{"no content", func() (*Document, error) {
			return NewDocumentBuilder().Path("/a.md").Title("T").Build()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestDocumentBuilder_LatchesFirstError(t *testing.T) {
	// An invalid path must surface even when later setters are valid.
	_, err := NewDocumentBuilder().
		Path("../../etc/passwd").
		Title("Valid").
		Content([]byte("valid")).
		Build()
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestDocumentBuilder_InvalidContent(t *testing.T) {
	_, err := NewDocumentBuilder().
		Path("/a.md").
		Title("A").
		Content(nil).
		Build()
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestDocumentBuilder_Tags(t *testing.T) {
	doc, err := NewDocumentBuilder().
		Path("/a.md").
		Title("A").
		Content([]byte("a")).
		Tags("one", "two").
		Build()
	require.NoError(t, err)
	require.Len(t, doc.Tags, 2)
	assert.Equal(t, "one", doc.Tags[0].String())
	assert.Equal(t, "two", doc.Tags[1].String())

	_, err = NewDocumentBuilder().
		Path("/a.md").
		Title("A").
		Content([]byte("a")).
		Tags("ok", "bad/tag").
		Build()
	assert.ErrorIs(t, err, ErrInvalidTag)
}

func TestDocument_Clone(t *testing.T) {
	doc, err := NewDocumentBuilder().
		Path("/a.md").
		Title("A").
		Content([]byte("original")).
		Build()
	require.NoError(t, err)

	clone := doc.Clone()
	clone.Content[0] = 'X'
	assert.Equal(t, byte('o'), doc.Content[0])
}
