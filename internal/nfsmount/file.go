package nfsmount

import (
	"fmt"
	"io"
)

// cursor reads and seeks over an in-memory payload.
type cursor struct {
	data []byte
	pos  int64
}

func (c *cursor) Read(p []byte) (int, error) {
	n, err := c.ReadAt(p, c.pos)
	c.pos += int64(n)
	return n, err
}

func (c *cursor) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(c.data)) {
		return 0, io.EOF
	}
	n := copy(p, c.data[off:])
	if off+int64(n) >= int64(len(c.data)) {
		return n, io.EOF
	}
	return n, nil
}

func (c *cursor) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += c.pos
	case io.SeekEnd:
		offset += int64(len(c.data))
	default:
		return c.pos, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if offset < 0 {
		offset = 0
	}
	c.pos = offset
	return c.pos, nil
}

func (c *cursor) Lock() error   { return nil }
func (c *cursor) Unlock() error { return nil }

// bytesFile is a read-only view of the bytes an entry had when opened.
type bytesFile struct {
	cursor
	name string
}

func newBytesFile(name string, data []byte) *bytesFile {
	return &bytesFile{cursor: cursor{data: data}, name: name}
}

func (f *bytesFile) Name() string              { return f.name }
func (f *bytesFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *bytesFile) Truncate(int64) error      { return errReadOnly }
func (f *bytesFile) Close() error              { return nil }

// writeFile buffers NFS WRITE RPCs and hands the whole payload to the
// session when the file is closed.
type writeFile struct {
	cursor
	id      string
	nodeID  string
	written bool
	onClose WriteBackFunc
}

func (f *writeFile) Name() string { return f.id }

func (f *writeFile) Write(p []byte) (int, error) {
	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		f.grow(end)
	}
	n := copy(f.data[f.pos:], p)
	f.pos += int64(n)
	f.written = true
	return n, nil
}

// Truncate resizes the buffer. SETATTR(size=0) arrives as Truncate+Close
// before any WRITE, so only Write marks the file dirty.
func (f *writeFile) Truncate(size int64) error {
	if size < int64(len(f.data)) {
		f.data = f.data[:size]
	} else {
		f.grow(size)
	}
	return nil
}

func (f *writeFile) grow(size int64) {
	if size <= int64(len(f.data)) {
		return
	}
	grown := make([]byte, size)
	copy(grown, f.data)
	f.data = grown
}

// Close commits the payload, but only if Write was called.
func (f *writeFile) Close() error {
	if !f.written || f.onClose == nil {
		return nil
	}
	if err := f.onClose(f.nodeID, f.data); err != nil {
		return fmt.Errorf("write-back failed for %s: %w", f.id, err)
	}
	return nil
}
