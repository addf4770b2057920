package file

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/kotadb/internal/core/domain"
	"github.com/custodia-labs/kotadb/internal/logger"
)

// WAL operations.
const (
	opInsert uint8 = 1
	opUpdate uint8 = 2
	opDelete uint8 = 3
	opCommit uint8 = 4
)

const (
	walMagic      = "KDBW"
	walVersion    = 1
	walHeaderSize = 8

	// Record frame: crc(4) + seq(8) + op(1) + docID(16) + payloadLen(4).
	walFrameSize = 33
)

// walRecord is one logged operation. Commit markers reuse the frame with an
// empty payload and the sequence number of the record they confirm.
type walRecord struct {
	Seq     uint64
	Op      uint8
	DocID   uuid.UUID
	Payload []byte
}

// wal is the append-only log. The tail is guarded by a mutex so sequence
// numbers are assigned in write order; recovery replay is deterministic.
type wal struct {
	mu      sync.Mutex
	f       *os.File
	path    string
	nextSeq uint64
}

// openWAL opens or creates the log. nextSeq continues from the catalog
// snapshot; replayed records may advance it further.
func openWAL(path string, nextSeq uint64) (*wal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening WAL: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat WAL: %w", err)
	}

	if info.Size() == 0 {
		header := make([]byte, walHeaderSize)
		copy(header, walMagic)
		binary.LittleEndian.PutUint32(header[4:], walVersion)
		if _, err := f.WriteAt(header, 0); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("writing WAL header: %w", err)
		}
	} else {
		header := make([]byte, walHeaderSize)
		if _, err := f.ReadAt(header, 0); err != nil || string(header[:4]) != walMagic {
			_ = f.Close()
			return nil, fmt.Errorf("%w: bad WAL header", domain.ErrCorrupted)
		}
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seeking WAL end: %w", err)
	}

	return &wal{f: f, path: path, nextSeq: nextSeq}, nil
}

func (w *wal) close() error {
	return w.f.Close()
}

// seq returns the next sequence number to be assigned.
func (w *wal) seq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextSeq
}

func encodeWALRecord(rec walRecord) []byte {
	buf := make([]byte, walFrameSize+len(rec.Payload))
	binary.LittleEndian.PutUint64(buf[4:], rec.Seq)
	buf[12] = rec.Op
	copy(buf[13:29], rec.DocID[:])
	binary.LittleEndian.PutUint32(buf[29:], uint32(len(rec.Payload)))
	copy(buf[walFrameSize:], rec.Payload)
	binary.LittleEndian.PutUint32(buf[0:], crc32.ChecksumIEEE(buf[4:]))
	return buf
}

// appendOp logs an operation with its redo payload and fsyncs.
// Returns the assigned sequence number.
func (w *wal) appendOp(op uint8, id uuid.UUID, payload []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.nextSeq
	rec := walRecord{Seq: seq, Op: op, DocID: id, Payload: payload}
	if _, err := w.f.Write(encodeWALRecord(rec)); err != nil {
		return 0, fmt.Errorf("%w: appending WAL record: %v", domain.ErrTransient, err)
	}
	if err := w.f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: syncing WAL: %v", domain.ErrTransient, err)
	}

	w.nextSeq++
	return seq, nil
}

// appendCommit confirms a previously logged operation and fsyncs.
// Only after this returns is the operation durable.
func (w *wal) appendCommit(seq uint64, id uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec := walRecord{Seq: seq, Op: opCommit, DocID: id}
	if _, err := w.f.Write(encodeWALRecord(rec)); err != nil {
		return fmt.Errorf("%w: appending commit marker: %v", domain.ErrTransient, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing commit marker: %v", domain.ErrTransient, err)
	}
	return nil
}

// readAll parses every record in the log. A torn or checksum-failing record
// at the tail is the expected shape of a crash: parsing stops there and the
// tail is discarded with a warning. Records are returned in append order.
func (w *wal) readAll() ([]walRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("reading WAL: %w", err)
	}
	if len(data) < walHeaderSize {
		return nil, nil
	}

	var records []walRecord
	off := walHeaderSize
	for off < len(data) {
		if off+walFrameSize > len(data) {
			logger.Warn("wal: discarding torn record at offset %d", off)
			break
		}
		frame := data[off : off+walFrameSize]
		payloadLen := int(binary.LittleEndian.Uint32(frame[29:]))
		if off+walFrameSize+payloadLen > len(data) {
			logger.Warn("wal: discarding torn payload at offset %d", off)
			break
		}

		full := data[off : off+walFrameSize+payloadLen]
		stored := binary.LittleEndian.Uint32(full[0:])
		if crc32.ChecksumIEEE(full[4:]) != stored {
			logger.Warn("wal: discarding record with bad checksum at offset %d", off)
			break
		}

		rec := walRecord{
			Seq: binary.LittleEndian.Uint64(full[4:]),
			Op:  full[12],
		}
		copy(rec.DocID[:], full[13:29])
		if payloadLen > 0 {
			rec.Payload = append([]byte(nil), full[walFrameSize:]...)
		}
		records = append(records, rec)

		if rec.Seq >= w.nextSeq {
			w.nextSeq = rec.Seq + 1
		}
		off += walFrameSize + payloadLen
	}

	return records, nil
}

// truncate discards all records after a checkpoint made their effects
// durable elsewhere.
func (w *wal) truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.f.Truncate(walHeaderSize); err != nil {
		return fmt.Errorf("truncating WAL: %w", err)
	}
	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seeking WAL end: %w", err)
	}
	return w.f.Sync()
}
