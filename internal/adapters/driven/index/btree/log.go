package btree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/logger"
)

const (
	logInsert byte = 1
	logRemove byte = 2
)

// logEntry is one index mutation. Entries are framed as
// crc32(4) + op(1) + id(16) + pathLen(2) + path, with the checksum
// covering everything after itself.
type logEntry struct {
	op   byte
	id   domain.ValidatedDocumentID
	path domain.ValidatedPath
}

const logFrameHeader = 4 + 1 + 16 + 2

// indexLog is the append-only mutation log replayed on open to recover
// entries newer than the last snapshot.
type indexLog struct {
	f    *os.File
	path string
}

func openIndexLog(path string) (*indexLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open index log: %v", domain.ErrTransient, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: seek index log: %v", domain.ErrTransient, err)
	}
	return &indexLog{f: f, path: path}, nil
}

func (l *indexLog) append(e logEntry) error {
	raw := e.path.String()
	frame := make([]byte, logFrameHeader+len(raw))
	frame[4] = e.op
	id := e.id.UUID()
	copy(frame[5:21], id[:])
	binary.LittleEndian.PutUint16(frame[21:23], uint16(len(raw)))
	copy(frame[logFrameHeader:], raw)
	binary.LittleEndian.PutUint32(frame[0:4], crc32.ChecksumIEEE(frame[4:]))

	if _, err := l.f.Write(frame); err != nil {
		return fmt.Errorf("%w: append index log: %v", domain.ErrTransient, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync index log: %v", domain.ErrTransient, err)
	}
	return nil
}

// readAll parses every intact entry. A torn or corrupt tail ends the
// scan with a warning rather than an error, matching crash recovery
// semantics where the last append may be incomplete.
func (l *indexLog) readAll() ([]logEntry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read index log: %v", domain.ErrTransient, err)
	}
	var entries []logEntry
	for off := 0; off < len(data); {
		if len(data)-off < logFrameHeader {
			logger.Warn("index log: discarding %d trailing bytes", len(data)-off)
			break
		}
		hdr := data[off : off+logFrameHeader]
		pathLen := int(binary.LittleEndian.Uint16(hdr[21:23]))
		if len(data)-off < logFrameHeader+pathLen {
			logger.Warn("index log: discarding torn entry at offset %d", off)
			break
		}
		frame := data[off : off+logFrameHeader+pathLen]
		if binary.LittleEndian.Uint32(frame[0:4]) != crc32.ChecksumIEEE(frame[4:]) {
			logger.Warn("index log: checksum mismatch at offset %d, discarding tail", off)
			break
		}
		e, err := decodeLogEntry(frame)
		if err != nil {
			logger.Warn("index log: bad entry at offset %d: %v, discarding tail", off, err)
			break
		}
		entries = append(entries, e)
		off += len(frame)
	}
	return entries, nil
}

func decodeLogEntry(frame []byte) (logEntry, error) {
	op := frame[4]
	if op != logInsert && op != logRemove {
		return logEntry{}, errors.New("unknown op")
	}
	path, err := domain.NewValidatedPath(string(frame[logFrameHeader:]))
	if err != nil {
		return logEntry{}, err
	}
	e := logEntry{op: op, path: path}
	if op == logInsert {
		raw, err := uuid.FromBytes(bytes.Clone(frame[5:21]))
		if err != nil {
			return logEntry{}, err
		}
		e.id, err = domain.DocumentIDFromUUID(raw)
		if err != nil {
			return logEntry{}, err
		}
	}
	return e, nil
}

// truncate discards all entries after a snapshot has made them durable.
func (l *indexLog) truncate() error {
	if err := l.f.Truncate(0); err != nil {
		return fmt.Errorf("%w: truncate index log: %v", domain.ErrTransient, err)
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: rewind index log: %v", domain.ErrTransient, err)
	}
	return l.f.Sync()
}

func (l *indexLog) close() error {
	return l.f.Close()
}
