package sink

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mflodin/asynclog/entry"
)

const frameHeaderSize = 8 // length(4) + crc32(4)

// FileSinkConfig configures a FileSink's segment-size/segment-duration
// rotation trigger.
type FileSinkConfig struct {
	Dir             string
	SegmentSize     uint64
	SegmentDuration time.Duration
}

type indexEntry struct {
	File      string `json:"file"`
	Timestamp string `json:"timestamp"`
}

// fileSink appends every entry as a length-prefixed, CRC32-checked frame
// to a rotating set of segment files under Dir, recording each closed
// segment in an append-only JSON-lines index.
type fileSink struct {
	cfg FileSinkConfig

	mu             sync.Mutex
	file           *os.File
	writer         *bufio.Writer
	segmentID      int
	bytesWritten   uint64
	lastRotationAt time.Time
}

// NewFileSink opens (or creates) a rotating log segment directory.
func NewFileSink(cfg FileSinkConfig) (Sink, error) {
	if cfg.SegmentSize == 0 {
		cfg.SegmentSize = 64 * 1024 * 1024
	}
	if cfg.SegmentDuration == 0 {
		cfg.SegmentDuration = 10 * time.Minute
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create log dir: %w", err)
	}

	path := filepath.Join(cfg.Dir, "current.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open current segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &fileSink{
		cfg:            cfg,
		file:           f,
		writer:         bufio.NewWriterSize(f, 1<<16),
		bytesWritten:   uint64(info.Size()),
		lastRotationAt: time.Now(),
	}, nil
}

func (s *fileSink) Write(e entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := []byte(e.Format())
	frameSize := frameHeaderSize + len(payload)
	if s.shouldRotate(frameSize) {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	var header [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(header[:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[4:], crc32.ChecksumIEEE(payload))
	if _, err := s.writer.Write(header[:]); err != nil {
		return err
	}
	if _, err := s.writer.Write(payload); err != nil {
		return err
	}
	s.bytesWritten += uint64(frameSize)
	return nil
}

func (s *fileSink) shouldRotate(nextSize int) bool {
	return s.bytesWritten+uint64(nextSize) >= s.cfg.SegmentSize ||
		time.Since(s.lastRotationAt) >= s.cfg.SegmentDuration
}

func (s *fileSink) rotate() error {
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if err := s.file.Sync(); err != nil {
		return err
	}
	if err := s.file.Close(); err != nil {
		return err
	}

	s.segmentID++
	rotatedName := fmt.Sprintf("%06d.log", s.segmentID)
	oldPath := filepath.Join(s.cfg.Dir, "current.log")
	newPath := filepath.Join(s.cfg.Dir, rotatedName)
	if err := os.Rename(oldPath, newPath); err != nil {
		return err
	}
	if err := appendIndexEntry(s.cfg.Dir, indexEntry{File: rotatedName, Timestamp: time.Now().Format(time.RFC3339)}); err != nil {
		return err
	}

	f, err := os.OpenFile(oldPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	s.file = f
	s.writer = bufio.NewWriterSize(f, 1<<16)
	s.bytesWritten = 0
	s.lastRotationAt = time.Now()
	return nil
}

func appendIndexEntry(dir string, e indexEntry) error {
	f, err := os.OpenFile(filepath.Join(dir, "segments.json"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		return err
	}
	if err := s.file.Sync(); err != nil {
		return err
	}
	return s.file.Close()
}
