package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation limits. Treated as engine defaults, not a wire contract.
const (
	// MaxPathLength is the maximum validated path length in bytes.
	MaxPathLength = 4096

	// MaxTitleLength is the maximum title length in characters after trimming.
	MaxTitleLength = 1024

	// MaxTagLength is the maximum tag length in characters.
	MaxTagLength = 128

	// MaxDocumentSize is the maximum document content size in bytes (100 MiB).
	// Guards against pathological allocations.
	MaxDocumentSize = 100 << 20

	// MaxTimestamp is the upper sanity bound for timestamps
	// (2999-12-31T23:59:59Z in Unix seconds).
	MaxTimestamp = 32503679999
)

// reservedNames are Windows device names that are invalid as path segments,
// with or without an extension, in any case.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// ValidatedPath is a logical document path that passed safety validation.
// Paths compare and sort by their normalised forward-slash form.
type ValidatedPath struct {
	raw string
}

// NewValidatedPath validates and normalises a logical path.
//
// Rejected inputs (all wrap ErrInvalidPath):
//   - empty or whitespace-only strings
//   - directory traversal ("..") in any slash or backslash encoding
//   - embedded null bytes
//   - Windows reserved device names as any segment (case-insensitive,
//     with or without extension)
//   - paths longer than MaxPathLength bytes
func NewValidatedPath(s string) (ValidatedPath, error) {
	if strings.TrimSpace(s) == "" {
		return ValidatedPath{}, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.ContainsRune(s, 0) {
		return ValidatedPath{}, fmt.Errorf("%w: path contains null byte", ErrInvalidPath)
	}
	if len(s) > MaxPathLength {
		return ValidatedPath{}, fmt.Errorf("%w: path exceeds %d bytes", ErrInvalidPath, MaxPathLength)
	}

	// Normalise separators before checking segments so "..\\" and "//../"
	// cannot smuggle a traversal past the check.
	normalised := strings.ReplaceAll(s, "\\", "/")
	for strings.Contains(normalised, "//") {
		normalised = strings.ReplaceAll(normalised, "//", "/")
	}

	for _, segment := range strings.Split(normalised, "/") {
		if segment == ".." {
			return ValidatedPath{}, fmt.Errorf("%w: path traversal in %q", ErrInvalidPath, s)
		}
		base := segment
		if dot := strings.IndexByte(base, '.'); dot >= 0 {
			base = base[:dot]
		}
		if _, reserved := reservedNames[strings.ToUpper(base)]; reserved {
			return ValidatedPath{}, fmt.Errorf("%w: reserved name %q", ErrInvalidPath, segment)
		}
	}

	return ValidatedPath{raw: normalised}, nil
}

// String returns the normalised path.
func (p ValidatedPath) String() string { return p.raw }

// IsZero reports whether p is the zero value (never produced by NewValidatedPath).
func (p ValidatedPath) IsZero() bool { return p.raw == "" }

// Less reports whether p sorts before other in lexicographic path order.
func (p ValidatedPath) Less(other ValidatedPath) bool { return p.raw < other.raw }

// HasPrefix reports whether p falls under the given prefix.
func (p ValidatedPath) HasPrefix(prefix string) bool { return strings.HasPrefix(p.raw, prefix) }

// ValidatedDocumentID is a document identifier guaranteed to be non-nil.
type ValidatedDocumentID struct {
	id uuid.UUID
}

// NewDocumentID generates a fresh random identifier. Never returns the nil UUID.
func NewDocumentID() ValidatedDocumentID {
	return ValidatedDocumentID{id: uuid.New()}
}

// ParseDocumentID parses an identifier from its string form.
// Malformed syntax and the all-zero nil UUID wrap ErrInvalidID.
func ParseDocumentID(s string) (ValidatedDocumentID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ValidatedDocumentID{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return DocumentIDFromUUID(id)
}

// DocumentIDFromUUID validates an existing UUID.
func DocumentIDFromUUID(id uuid.UUID) (ValidatedDocumentID, error) {
	if id == uuid.Nil {
		return ValidatedDocumentID{}, fmt.Errorf("%w: nil UUID", ErrInvalidID)
	}
	return ValidatedDocumentID{id: id}, nil
}

// String returns the canonical UUID string form.
func (d ValidatedDocumentID) String() string { return d.id.String() }

// UUID returns the underlying UUID value.
func (d ValidatedDocumentID) UUID() uuid.UUID { return d.id }

// IsZero reports whether d is the zero value (never produced by a constructor).
func (d ValidatedDocumentID) IsZero() bool { return d.id == uuid.Nil }

// ValidatedTitle is a non-empty, trimmed, bounded-length title.
type ValidatedTitle struct {
	s string
}

// NewValidatedTitle trims whitespace and validates the result.
func NewValidatedTitle(s string) (ValidatedTitle, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ValidatedTitle{}, fmt.Errorf("%w: empty title", ErrInvalidTitle)
	}
	if len([]rune(trimmed)) > MaxTitleLength {
		return ValidatedTitle{}, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidTitle, MaxTitleLength)
	}
	return ValidatedTitle{s: trimmed}, nil
}

// String returns the trimmed title.
func (t ValidatedTitle) String() string { return t.s }

// ValidatedTag is a bounded, character-restricted label attached to a document.
type ValidatedTag struct {
	s string
}

// NewValidatedTag validates a tag: non-empty, at most MaxTagLength characters,
// and limited to letters, digits, hyphens, underscores, and spaces.
func NewValidatedTag(s string) (ValidatedTag, error) {
	if s == "" {
		return ValidatedTag{}, fmt.Errorf("%w: empty tag", ErrInvalidTag)
	}
	runes := []rune(s)
	if len(runes) > MaxTagLength {
		return ValidatedTag{}, fmt.Errorf("%w: tag exceeds %d characters", ErrInvalidTag, MaxTagLength)
	}
	for _, r := range runes {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == ' ':
		default:
			return ValidatedTag{}, fmt.Errorf("%w: tag contains %q", ErrInvalidTag, r)
		}
	}
	return ValidatedTag{s: s}, nil
}

// String returns the tag text.
func (t ValidatedTag) String() string { return t.s }

// NonZeroSize is a strictly positive byte count bounded by MaxDocumentSize.
type NonZeroSize struct {
	n int64
}

// NewNonZeroSize validates a byte count.
func NewNonZeroSize(n int64) (NonZeroSize, error) {
	if n <= 0 {
		return NonZeroSize{}, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidSize, n)
	}
	if n > MaxDocumentSize {
		return NonZeroSize{}, fmt.Errorf("%w: size %d exceeds %d bytes", ErrInvalidSize, n, int64(MaxDocumentSize))
	}
	return NonZeroSize{n: n}, nil
}

// Get returns the byte count.
func (s NonZeroSize) Get() int64 { return s.n }

// ValidatedTimestamp is a Unix-seconds timestamp within sane bounds.
type ValidatedTimestamp struct {
	secs int64
}

// NewValidatedTimestamp validates a Unix timestamp in seconds.
func NewValidatedTimestamp(secs int64) (ValidatedTimestamp, error) {
	if secs <= 0 {
		return ValidatedTimestamp{}, fmt.Errorf("%w: timestamp must be positive, got %d", ErrInvalidTimestamp, secs)
	}
	if secs > MaxTimestamp {
		return ValidatedTimestamp{}, fmt.Errorf("%w: timestamp %d is beyond year 3000", ErrInvalidTimestamp, secs)
	}
	return ValidatedTimestamp{secs: secs}, nil
}

// TimestampNow returns the current time as a ValidatedTimestamp.
func TimestampNow() ValidatedTimestamp {
	return ValidatedTimestamp{secs: time.Now().Unix()}
}

// Unix returns the timestamp in Unix seconds.
func (t ValidatedTimestamp) Unix() int64 { return t.secs }

// Time returns the timestamp as a time.Time in UTC.
func (t ValidatedTimestamp) Time() time.Time { return time.Unix(t.secs, 0).UTC() }

// Before reports whether t is strictly earlier than other.
func (t ValidatedTimestamp) Before(other ValidatedTimestamp) bool { return t.secs < other.secs }
