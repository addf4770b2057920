package domain

import "fmt"

// Document is the canonical persisted record.
// All fields are validated at construction; a Document in hand is always
// internally consistent.
type Document struct {
	// ID is the unique identifier. Immutable; never reused after deletion.
	ID ValidatedDocumentID

	// Path is the logical path. Unique among live documents.
	Path ValidatedPath

	// Title is the human-readable title.
	Title ValidatedTitle

	// Content is the raw document bytes.
	Content []byte

	// Tags are display labels. Insertion order is preserved for display.
	Tags []ValidatedTag

	// CreatedAt is when the document was first persisted.
	CreatedAt ValidatedTimestamp

	// UpdatedAt is when the document was last modified.
	// Invariant: UpdatedAt >= CreatedAt.
	UpdatedAt ValidatedTimestamp

	// Size is the content length in bytes.
	// Invariant: Size.Get() == len(Content).
	Size NonZeroSize
}

// Clone returns a deep copy so callers cannot alias stored content.
func (d Document) Clone() Document {
	out := d
	out.Content = make([]byte, len(d.Content))
	copy(out.Content, d.Content)
	out.Tags = make([]ValidatedTag, len(d.Tags))
	copy(out.Tags, d.Tags)
	return out
}

// DocumentBuilder assembles a Document field by field, validating each
// argument as it is set. The first validation failure is latched and
// returned by Build; later setters become no-ops once an error is recorded.
type DocumentBuilder struct {
	id      ValidatedDocumentID
	path    ValidatedPath
	title   ValidatedTitle
	content []byte
	tags    []ValidatedTag

	hasPath    bool
	hasTitle   bool
	hasContent bool
	err        error
}

// NewDocumentBuilder returns an empty builder.
func NewDocumentBuilder() *DocumentBuilder {
	return &DocumentBuilder{}
}

// ID sets an explicit identifier instead of generating one at Build.
func (b *DocumentBuilder) ID(s string) *DocumentBuilder {
	if b.err != nil {
		return b
	}
	id, err := ParseDocumentID(s)
	if err != nil {
		b.err = err
		return b
	}
	b.id = id
	return b
}

// Path sets and validates the logical path.
func (b *DocumentBuilder) Path(s string) *DocumentBuilder {
	if b.err != nil {
		return b
	}
	p, err := NewValidatedPath(s)
	if err != nil {
		b.err = err
		return b
	}
	b.path = p
	b.hasPath = true
	return b
}

// Title sets and validates the title.
func (b *DocumentBuilder) Title(s string) *DocumentBuilder {
	if b.err != nil {
		return b
	}
	t, err := NewValidatedTitle(s)
	if err != nil {
		b.err = err
		return b
	}
	b.title = t
	b.hasTitle = true
	return b
}

// Content sets the document bytes. The size bound is enforced here so an
// oversized document fails before it reaches storage.
func (b *DocumentBuilder) Content(data []byte) *DocumentBuilder {
	if b.err != nil {
		return b
	}
	if _, err := NewNonZeroSize(int64(len(data))); err != nil {
		b.err = err
		return b
	}
	b.content = data
	b.hasContent = true
	return b
}

// AddTag appends a single validated tag.
func (b *DocumentBuilder) AddTag(s string) *DocumentBuilder {
	if b.err != nil {
		return b
	}
	tag, err := NewValidatedTag(s)
	if err != nil {
		b.err = err
		return b
	}
	b.tags = append(b.tags, tag)
	return b
}

// Tags replaces the tag list with the validated arguments.
func (b *DocumentBuilder) Tags(tags ...string) *DocumentBuilder {
	if b.err != nil {
		return b
	}
	validated := make([]ValidatedTag, 0, len(tags))
	for _, s := range tags {
		tag, err := NewValidatedTag(s)
		if err != nil {
			b.err = err
			return b
		}
		validated = append(validated, tag)
	}
	b.tags = validated
	return b
}

// Build finalises the Document. Path, title, and content are required;
// the ID is generated and both timestamps set to now when not provided.
func (b *DocumentBuilder) Build() (*Document, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.hasPath {
		return nil, fmt.Errorf("%w: path", ErrMissingField)
	}
	if !b.hasTitle {
		return nil, fmt.Errorf("%w: title", ErrMissingField)
	}
	if !b.hasContent {
		return nil, fmt.Errorf("%w: content", ErrMissingField)
	}

	id := b.id
	if id.IsZero() {
		id = NewDocumentID()
	}

	size, err := NewNonZeroSize(int64(len(b.content)))
	if err != nil {
		return nil, err
	}

	now := TimestampNow()
	return &Document{
		ID:        id,
		Path:      b.path,
		Title:     b.title,
		Content:   b.content,
		Tags:      b.tags,
		CreatedAt: now,
		UpdatedAt: now,
		Size:      size,
	}, nil
}
