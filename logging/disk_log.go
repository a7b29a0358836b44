package logging

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"mit.edu/dsg/heapdb/common"
)

// record framing: tid (8) | table id (4) | page num (4) | page size (4),
// followed by the before image and the after image, each pageSize bytes.
const recordHeaderSize = 8 + 4 + 4 + 4

// DiskLog is the append-only disk implementation of LogFile. Appends go
// through a buffered writer under a mutex; Force flushes the buffer and
// fsyncs the file.
type DiskLog struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
	path string
}

// OpenDiskLog opens (creating if needed) the log at path, positioned to
// append.
func OpenDiskLog(path string) (*DiskLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	return &DiskLog{file: f, w: bufio.NewWriter(f), path: path}, nil
}

func (l *DiskLog) LogWrite(tid common.TransactionID, pid common.PageID, before, after []byte) error {
	common.Assert(len(before) == common.PageSize && len(after) == common.PageSize,
		"log images must be exactly one page")

	l.mu.Lock()
	defer l.mu.Unlock()

	var hdr [recordHeaderSize]byte
	binary.BigEndian.PutUint64(hdr[0:], uint64(tid))
	binary.BigEndian.PutUint32(hdr[8:], uint32(pid.TableID))
	binary.BigEndian.PutUint32(hdr[12:], uint32(pid.PageNum))
	binary.BigEndian.PutUint32(hdr[16:], uint32(common.PageSize))

	if _, err := l.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	if _, err := l.w.Write(before); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	if _, err := l.w.Write(after); err != nil {
		return fmt.Errorf("wal append: %w", err)
	}
	return nil
}

func (l *DiskLog) Force() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("wal flush: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("wal sync: %w", err)
	}
	log.WithField("component", "wal").Debug("log forced")
	return nil
}

func (l *DiskLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

// Scan reads the log from the start, invoking fn on each record in append
// order. It opens its own handle so it can run while the log is in use.
func (l *DiskLog) Scan(fn func(WriteRecord) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var hdr [recordHeaderSize]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("wal scan: %w", err)
		}
		rec := WriteRecord{
			TID: common.TransactionID(binary.BigEndian.Uint64(hdr[0:])),
			PID: common.PageID{
				TableID: common.ObjectID(binary.BigEndian.Uint32(hdr[8:])),
				PageNum: int32(binary.BigEndian.Uint32(hdr[12:])),
			},
		}
		pageSize := int(binary.BigEndian.Uint32(hdr[16:]))
		rec.Before = make([]byte, pageSize)
		rec.After = make([]byte, pageSize)
		if _, err := io.ReadFull(r, rec.Before); err != nil {
			return fmt.Errorf("wal scan: %w", err)
		}
		if _, err := io.ReadFull(r, rec.After); err != nil {
			return fmt.Errorf("wal scan: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
