package file

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/custodia-labs/kotadb/internal/core/domain"
)

// Document records are serialised little-endian:
//
//	id        [16]byte
//	created   int64
//	updated   int64
//	pathLen   uint16, path bytes
//	titleLen  uint16, title bytes
//	tagCount  uint16, then per tag: uint16 length + bytes
//	contentLen uint32, content bytes
//
// Decoding re-runs the domain constructors, so a record that was valid when
// written is valid when read; any structural failure is corruption.

func encodeDocument(doc *domain.Document) []byte {
	var buf bytes.Buffer

	id := doc.ID.UUID()
	buf.Write(id[:])
	_ = binary.Write(&buf, binary.LittleEndian, doc.CreatedAt.Unix())
	_ = binary.Write(&buf, binary.LittleEndian, doc.UpdatedAt.Unix())

	writeString16 := func(s string) {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(s)))
		buf.WriteString(s)
	}

	writeString16(doc.Path.String())
	writeString16(doc.Title.String())

	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(doc.Tags)))
	for _, tag := range doc.Tags {
		writeString16(tag.String())
	}

	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(doc.Content)))
	buf.Write(doc.Content)

	return buf.Bytes()
}

func decodeDocument(data []byte) (*domain.Document, error) {
	r := bytes.NewReader(data)

	var rawID [16]byte
	if _, err := io.ReadFull(r, rawID[:]); err != nil {
		return nil, fmt.Errorf("%w: short document record", domain.ErrCorrupted)
	}

	var created, updated int64
	if err := binary.Read(r, binary.LittleEndian, &created); err != nil {
		return nil, fmt.Errorf("%w: reading created: %v", domain.ErrCorrupted, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &updated); err != nil {
		return nil, fmt.Errorf("%w: reading updated: %v", domain.ErrCorrupted, err)
	}

	readString16 := func(what string) (string, error) {
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return "", fmt.Errorf("%w: reading %s length: %v", domain.ErrCorrupted, what, err)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return "", fmt.Errorf("%w: reading %s: %v", domain.ErrCorrupted, what, err)
		}
		return string(b), nil
	}

	rawPath, err := readString16("path")
	if err != nil {
		return nil, err
	}
	rawTitle, err := readString16("title")
	if err != nil {
		return nil, err
	}

	var tagCount uint16
	if err := binary.Read(r, binary.LittleEndian, &tagCount); err != nil {
		return nil, fmt.Errorf("%w: reading tag count: %v", domain.ErrCorrupted, err)
	}
	rawTags := make([]string, 0, tagCount)
	for i := 0; i < int(tagCount); i++ {
		s, err := readString16("tag")
		if err != nil {
			return nil, err
		}
		rawTags = append(rawTags, s)
	}

	var contentLen uint32
	if err := binary.Read(r, binary.LittleEndian, &contentLen); err != nil {
		return nil, fmt.Errorf("%w: reading content length: %v", domain.ErrCorrupted, err)
	}
	if int(contentLen) != r.Len() {
		return nil, fmt.Errorf("%w: content length %d does not match remaining %d bytes",
			domain.ErrCorrupted, contentLen, r.Len())
	}
	content := make([]byte, contentLen)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("%w: reading content: %v", domain.ErrCorrupted, err)
	}

	doc, err := rebuildDocument(rawID, rawPath, rawTitle, rawTags, content, created, updated)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorrupted, err)
	}
	return doc, nil
}

// rebuildDocument reconstructs a Document through the validated constructors.
func rebuildDocument(rawID [16]byte, rawPath, rawTitle string, rawTags []string,
	content []byte, created, updated int64) (*domain.Document, error) {

	raw, err := uuid.FromBytes(rawID[:])
	if err != nil {
		return nil, err
	}
	id, err := domain.DocumentIDFromUUID(raw)
	if err != nil {
		return nil, err
	}
	path, err := domain.NewValidatedPath(rawPath)
	if err != nil {
		return nil, err
	}
	title, err := domain.NewValidatedTitle(rawTitle)
	if err != nil {
		return nil, err
	}
	tags := make([]domain.ValidatedTag, 0, len(rawTags))
	for _, s := range rawTags {
		tag, err := domain.NewValidatedTag(s)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	size, err := domain.NewNonZeroSize(int64(len(content)))
	if err != nil {
		return nil, err
	}
	createdAt, err := domain.NewValidatedTimestamp(created)
	if err != nil {
		return nil, err
	}
	updatedAt, err := domain.NewValidatedTimestamp(updated)
	if err != nil {
		return nil, err
	}
	if updatedAt.Before(createdAt) {
		return nil, fmt.Errorf("updated %d precedes created %d", updated, created)
	}

	return &domain.Document{
		ID:        id,
		Path:      path,
		Title:     title,
		Content:   content,
		Tags:      tags,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		Size:      size,
	}, nil
}
