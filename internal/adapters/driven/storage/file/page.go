package file

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/google/uuid"

	"github.com/custodia-labs/kotadb/internal/core/domain"
)

const (
	// PageSize is the fixed on-disk page size.
	PageSize = 4096

	pageMagic   = "KDBP"
	pageVersion = 1

	// File header: magic(4) + version(4) + pageSize(4) + reserved(4).
	fileHeaderSize = 16

	// Page header: checksum(4) + docID(16) + seq(8) + pageIndex(4) +
	// totalLen(4) + payloadLen(2).
	pageHeaderSize = 38

	pagePayloadSize = PageSize - pageHeaderSize
)

// location addresses the contiguous page run holding one document record.
type location struct {
	Start int64 `json:"start"`
	Count int64 `json:"count"`
}

// pageFile manages pages.db: fixed-size checksummed pages with an in-memory
// free map. Writers never overwrite live pages; updates go to fresh pages
// and the old run is freed only after commit.
type pageFile struct {
	f         *os.File
	pageCount int64
	free      map[int64]bool // page index -> free
}

func openPageFile(path string) (*pageFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening page file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat page file: %w", err)
	}

	pf := &pageFile{f: f, free: make(map[int64]bool)}

	if info.Size() == 0 {
		header := make([]byte, fileHeaderSize)
		copy(header, pageMagic)
		binary.LittleEndian.PutUint32(header[4:], pageVersion)
		binary.LittleEndian.PutUint32(header[8:], PageSize)
		if _, err := f.WriteAt(header, 0); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("writing page file header: %w", err)
		}
		return pf, nil
	}

	header := make([]byte, fileHeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: unreadable page file header", domain.ErrCorrupted)
	}
	if string(header[:4]) != pageMagic {
		_ = f.Close()
		return nil, fmt.Errorf("%w: bad page file magic", domain.ErrCorrupted)
	}
	if got := binary.LittleEndian.Uint32(header[8:]); got != PageSize {
		_ = f.Close()
		return nil, fmt.Errorf("%w: page size %d, expected %d", domain.ErrCorrupted, got, PageSize)
	}

	pf.pageCount = (info.Size() - fileHeaderSize) / PageSize
	return pf, nil
}

func (pf *pageFile) close() error {
	return pf.f.Close()
}

func (pf *pageFile) sync() error {
	return pf.f.Sync()
}

// pagesNeeded returns the page count required for a payload.
func pagesNeeded(payloadLen int) int64 {
	return int64((payloadLen + pagePayloadSize - 1) / pagePayloadSize)
}

// allocate finds a contiguous free run of n pages, extending the file when
// no such run exists.
func (pf *pageFile) allocate(n int64) location {
	var runStart, runLen int64
	for p := int64(0); p < pf.pageCount; p++ {
		if pf.free[p] {
			if runLen == 0 {
				runStart = p
			}
			runLen++
			if runLen == n {
				for q := runStart; q < runStart+n; q++ {
					delete(pf.free, q)
				}
				return location{Start: runStart, Count: n}
			}
		} else {
			runLen = 0
		}
	}

	loc := location{Start: pf.pageCount, Count: n}
	pf.pageCount += n
	return loc
}

// release marks a page run as reusable.
func (pf *pageFile) release(loc location) {
	for p := loc.Start; p < loc.Start+loc.Count; p++ {
		pf.free[p] = true
	}
}

// resetFree rebuilds the free map: every page not referenced by the given
// locations is reclaimable. Called after recovery, when orphan pages from
// discarded operations may exist.
func (pf *pageFile) resetFree(live []location) {
	used := make(map[int64]bool)
	for _, loc := range live {
		for p := loc.Start; p < loc.Start+loc.Count; p++ {
			used[p] = true
		}
	}
	pf.free = make(map[int64]bool)
	for p := int64(0); p < pf.pageCount; p++ {
		if !used[p] {
			pf.free[p] = true
		}
	}
}

func pageOffset(page int64) int64 {
	return fileHeaderSize + page*PageSize
}

// writeRecord writes a document record across the pages of loc.
// Each page carries its own checksum over the header remainder and payload.
func (pf *pageFile) writeRecord(loc location, id uuid.UUID, seq uint64, payload []byte) error {
	total := len(payload)
	for i := int64(0); i < loc.Count; i++ {
		lo := int(i) * pagePayloadSize
		hi := lo + pagePayloadSize
		if hi > total {
			hi = total
		}
		chunk := payload[lo:hi]

		page := make([]byte, PageSize)
		copy(page[4:20], id[:])
		binary.LittleEndian.PutUint64(page[20:], seq)
		binary.LittleEndian.PutUint32(page[28:], uint32(i))
		binary.LittleEndian.PutUint32(page[32:], uint32(total))
		binary.LittleEndian.PutUint16(page[36:], uint16(len(chunk)))
		copy(page[pageHeaderSize:], chunk)

		checksum := crc32.ChecksumIEEE(page[4:])
		binary.LittleEndian.PutUint32(page[0:], checksum)

		if _, err := pf.f.WriteAt(page, pageOffset(loc.Start+i)); err != nil {
			return fmt.Errorf("writing page %d: %w", loc.Start+i, err)
		}
	}
	return nil
}

// readRecord reassembles a document record, verifying every page checksum.
// A mismatch surfaces as domain.ErrCorrupted, never as garbage data.
func (pf *pageFile) readRecord(loc location, id uuid.UUID) ([]byte, error) {
	var payload []byte
	var total uint32

	for i := int64(0); i < loc.Count; i++ {
		page := make([]byte, PageSize)
		if _, err := pf.f.ReadAt(page, pageOffset(loc.Start+i)); err != nil {
			return nil, fmt.Errorf("%w: reading page %d: %v", domain.ErrCorrupted, loc.Start+i, err)
		}

		stored := binary.LittleEndian.Uint32(page[0:])
		if crc32.ChecksumIEEE(page[4:]) != stored {
			return nil, fmt.Errorf("%w: checksum mismatch on page %d", domain.ErrCorrupted, loc.Start+i)
		}

		var pageID uuid.UUID
		copy(pageID[:], page[4:20])
		if pageID != id {
			return nil, fmt.Errorf("%w: page %d belongs to %s", domain.ErrCorrupted, loc.Start+i, pageID)
		}
		if idx := binary.LittleEndian.Uint32(page[28:]); int64(idx) != i {
			return nil, fmt.Errorf("%w: page %d has index %d, expected %d", domain.ErrCorrupted, loc.Start+i, idx, i)
		}

		total = binary.LittleEndian.Uint32(page[32:])
		payloadLen := binary.LittleEndian.Uint16(page[36:])
		if int(payloadLen) > pagePayloadSize {
			return nil, fmt.Errorf("%w: page %d payload length %d", domain.ErrCorrupted, loc.Start+i, payloadLen)
		}
		payload = append(payload, page[pageHeaderSize:pageHeaderSize+int(payloadLen)]...)
	}

	if uint32(len(payload)) != total {
		return nil, fmt.Errorf("%w: record length %d, pages carry %d", domain.ErrCorrupted, total, len(payload))
	}
	return payload, nil
}
