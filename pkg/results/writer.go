package results

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"sync"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// File layout:
//
//	header: [Magic:4][Version:1][RunID:16]
//	frame:  [Seq:8][DataLen:4][Data:N][Checksum:4]
//
// Data is a snappy-compressed JSON record; the checksum covers the
// compressed bytes.
const (
	magic   uint32 = 0x48594452 // "HYDR"
	version byte   = 1
)

// Stats holds compression statistics for one log.
type Stats struct {
	Records           uint64
	BytesUncompressed uint64
	BytesCompressed   uint64
}

// Ratio is the fraction of bytes saved by compression.
func (s Stats) Ratio() float64 {
	if s.BytesUncompressed == 0 {
		return 0
	}
	return 1 - float64(s.BytesCompressed)/float64(s.BytesUncompressed)
}

// Writer appends report records to a results log.
type Writer struct {
	mu    sync.Mutex
	file  *os.File
	w     *bufio.Writer
	seq   uint64
	stats Stats
}

// Create creates (or truncates) a results log for the given run.
func Create(path string, runID uuid.UUID) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create results log: %w", err)
	}
	w := &Writer{file: file, w: bufio.NewWriter(file)}

	if err := binary.Write(w.w, binary.BigEndian, magic); err != nil {
		return nil, err
	}
	if err := w.w.WriteByte(version); err != nil {
		return nil, err
	}
	if _, err := w.w.Write(runID[:]); err != nil {
		return nil, err
	}
	return w, nil
}

// Append writes one record and returns its sequence number.
func (w *Writer) Append(rec Record) (uint64, error) {
	data, err := rec.encode()
	if err != nil {
		return 0, fmt.Errorf("failed to encode record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	compressed := snappy.Encode(nil, data)

	if err := binary.Write(w.w, binary.BigEndian, w.seq); err != nil {
		return 0, err
	}
	if err := binary.Write(w.w, binary.BigEndian, uint32(len(compressed))); err != nil {
		return 0, err
	}
	if _, err := w.w.Write(compressed); err != nil {
		return 0, err
	}
	if err := binary.Write(w.w, binary.BigEndian, crc32.ChecksumIEEE(compressed)); err != nil {
		return 0, err
	}

	w.stats.Records++
	w.stats.BytesUncompressed += uint64(len(data))
	w.stats.BytesCompressed += uint64(len(compressed))
	return w.seq, nil
}

// Flush pushes buffered frames to disk.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Stats returns the compression statistics so far.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Close flushes and closes the log.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.file.Close()
}
