package results

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// ErrCorrupt marks a frame whose checksum or framing failed verification.
var ErrCorrupt = errors.New("results: corrupt frame")

// Reader iterates the records of a results log.
type Reader struct {
	file  *os.File
	r     *bufio.Reader
	runID uuid.UUID
	seq   uint64
}

// Open opens a results log and verifies its header.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{file: file, r: bufio.NewReader(file)}

	var m uint32
	if err := binary.Read(r.r, binary.BigEndian, &m); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	ver, err := r.r.ReadByte()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if m != magic || ver != version {
		file.Close()
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	if _, err := io.ReadFull(r.r, r.runID[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read run id: %w", err)
	}
	return r, nil
}

// RunID returns the run the log belongs to.
func (r *Reader) RunID() uuid.UUID { return r.runID }

// Next returns the next record, or io.EOF at the end of the log. A sequence
// gap or checksum failure returns ErrCorrupt.
func (r *Reader) Next() (Record, error) {
	var seq uint64
	if err := binary.Read(r.r, binary.BigEndian, &seq); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("%w: truncated frame", ErrCorrupt)
	}
	if seq != r.seq+1 {
		return Record{}, fmt.Errorf("%w: sequence jump %d to %d", ErrCorrupt, r.seq, seq)
	}

	var n uint32
	if err := binary.Read(r.r, binary.BigEndian, &n); err != nil {
		return Record{}, fmt.Errorf("%w: truncated frame", ErrCorrupt)
	}
	compressed := make([]byte, n)
	if _, err := io.ReadFull(r.r, compressed); err != nil {
		return Record{}, fmt.Errorf("%w: truncated frame", ErrCorrupt)
	}
	var sum uint32
	if err := binary.Read(r.r, binary.BigEndian, &sum); err != nil {
		return Record{}, fmt.Errorf("%w: truncated frame", ErrCorrupt)
	}
	if crc32.ChecksumIEEE(compressed) != sum {
		return Record{}, fmt.Errorf("%w: checksum mismatch at frame %d", ErrCorrupt, seq)
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return Record{}, fmt.Errorf("failed to decode frame %d: %w", seq, err)
	}
	r.seq = seq
	return rec, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll loads every record of a results log.
func ReadAll(path string) (uuid.UUID, []Record, error) {
	r, err := Open(path)
	if err != nil {
		return uuid.UUID{}, nil, err
	}
	defer r.Close()

	var recs []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return r.runID, recs, nil
		}
		if err != nil {
			return r.runID, recs, err
		}
		recs = append(recs, rec)
	}
}
