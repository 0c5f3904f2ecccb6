// Package nfsmount serves a session's packaged layout over NFS so the
// result can be browsed with ordinary tools before it is exported.
package nfsmount

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/treeforge/internal/pack"
	"github.com/agentic-research/treeforge/internal/session"
)

const (
	treeFile  = "/_tree.txt"
	diagFile  = "/_diagnostics.txt"
	rootPath  = "/"
	dirMode   = os.ModeDir | 0o555
	fileMode  = os.FileMode(0o444)
	writeMode = os.FileMode(0o644)
)

var errReadOnly = fmt.Errorf("read-only filesystem")

// WriteBackFunc receives the full new payload of a file written through the
// mount, keyed by node id.
type WriteBackFunc func(nodeID string, data []byte) error

type entryInfo struct {
	pack.Entry
	modTime time.Time
}

// view is one immutable projection of a snapshot.
type view struct {
	entries  map[string]entryInfo // clean absolute path -> entry
	children map[string][]string  // directory path -> child paths, in order
	text     []byte
	diag     []byte
	modTime  time.Time
}

// SnapshotFS adapts session snapshots to billy.Filesystem. Update swaps in
// a new snapshot atomically; open files keep reading the bytes they were
// opened with.
type SnapshotFS struct {
	mu        sync.RWMutex
	current   *view
	writeBack WriteBackFunc
}

// NewSnapshotFS projects snap.
func NewSnapshotFS(snap session.Snapshot) *SnapshotFS {
	return &SnapshotFS{current: project(snap, time.Now())}
}

// Update replaces the served snapshot. It has the shape of a
// session.Live change subscriber.
func (fs *SnapshotFS) Update(snap session.Snapshot) {
	v := project(snap, time.Now())
	fs.mu.Lock()
	fs.current = v
	fs.mu.Unlock()
}

// SetWriteBack makes file payloads writable. Structure stays read-only.
func (fs *SnapshotFS) SetWriteBack(fn WriteBackFunc) {
	fs.mu.Lock()
	fs.writeBack = fn
	fs.mu.Unlock()
}

func (fs *SnapshotFS) snapshot() (*view, WriteBackFunc) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.current, fs.writeBack
}

func project(snap session.Snapshot, now time.Time) *view {
	v := &view{
		entries:  make(map[string]entryInfo),
		children: map[string][]string{rootPath: nil},
		text:     []byte(snap.Text),
		diag:     diagnostics(snap),
		modTime:  now,
	}
	for _, e := range pack.Collect(snap.Tree) {
		p := cleanPath(e.Path)
		if prev, ok := v.entries[p]; ok {
			// A folder and a file can share a path in an archive but not in
			// a directory listing; the folder keeps its children visible.
			if !prev.Dir || e.Dir {
				v.entries[p] = entryInfo{Entry: e, modTime: now}
			}
		} else {
			v.entries[p] = entryInfo{Entry: e, modTime: now}
			parent := path.Dir(p)
			v.children[parent] = append(v.children[parent], p)
		}
		if _, ok := v.children[p]; e.Dir && !ok {
			v.children[p] = nil
		}
	}
	return v
}

func diagnostics(snap session.Snapshot) []byte {
	var sb strings.Builder
	for _, e := range snap.Errors {
		sb.WriteString("error: " + e + "\n")
	}
	for _, w := range snap.Warnings {
		sb.WriteString("warning: " + w + "\n")
	}
	return []byte(sb.String())
}

// --- billy.Basic ---

func (fs *SnapshotFS) Create(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, writeMode)
}

func (fs *SnapshotFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *SnapshotFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)
	v, wb := fs.snapshot()

	writing := flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC) != 0
	switch filename {
	case treeFile, diagFile:
		if writing {
			return nil, &os.PathError{Op: "open", Path: filename, Err: errReadOnly}
		}
		return newBytesFile(path.Base(filename), v.virtual(filename)), nil
	}

	e, ok := v.entries[filename]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: filename, Err: os.ErrNotExist}
	}
	if e.Dir {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}
	if !writing {
		return newBytesFile(filename, e.Data), nil
	}
	if wb == nil {
		return nil, errReadOnly
	}

	var buf []byte
	if flag&os.O_TRUNC == 0 {
		buf = append([]byte(nil), e.Data...)
	}
	return &writeFile{cursor: cursor{data: buf}, id: filename, nodeID: e.NodeID, onClose: wb}, nil
}

func (fs *SnapshotFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *SnapshotFS) Rename(oldpath, newpath string) error {
	return errReadOnly
}

func (fs *SnapshotFS) Remove(filename string) error {
	return errReadOnly
}

func (fs *SnapshotFS) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// --- billy.TempFile ---

func (fs *SnapshotFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *SnapshotFS) ReadDir(dir string) ([]os.FileInfo, error) {
	dir = cleanPath(dir)
	v, wb := fs.snapshot()

	kids, ok := v.children[dir]
	if !ok {
		if _, isFile := v.entries[dir]; isFile {
			return nil, &os.PathError{Op: "readdir", Path: dir, Err: fmt.Errorf("not a directory")}
		}
		return nil, &os.PathError{Op: "readdir", Path: dir, Err: os.ErrNotExist}
	}

	infos := make([]os.FileInfo, 0, len(kids)+2)
	if dir == rootPath {
		infos = append(infos, v.virtualInfo(treeFile), v.virtualInfo(diagFile))
	}
	for _, p := range kids {
		infos = append(infos, entryToFileInfo(v.entries[p], wb != nil))
	}
	return infos, nil
}

func (fs *SnapshotFS) MkdirAll(filename string, perm os.FileMode) error {
	return errReadOnly
}

// --- billy.Symlink ---

func (fs *SnapshotFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)
	v, wb := fs.snapshot()

	switch filename {
	case rootPath:
		return &staticFileInfo{name: "/", mode: dirMode, modTime: v.modTime}, nil
	case treeFile, diagFile:
		return v.virtualInfo(filename), nil
	}

	e, ok := v.entries[filename]
	if !ok {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: os.ErrNotExist}
	}
	return entryToFileInfo(e, wb != nil), nil
}

func (fs *SnapshotFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *SnapshotFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *SnapshotFS) Chroot(p string) (billy.Filesystem, error) {
	return chroot.New(fs, p), nil
}

func (fs *SnapshotFS) Root() string {
	return rootPath
}

// --- billy.Capable ---

func (fs *SnapshotFS) Capabilities() billy.Capability {
	caps := billy.ReadCapability | billy.SeekCapability
	if _, wb := fs.snapshot(); wb != nil {
		caps |= billy.WriteCapability
	}
	return caps
}

// --- internals ---

func (v *view) virtual(name string) []byte {
	if name == treeFile {
		return v.text
	}
	return v.diag
}

func (v *view) virtualInfo(name string) os.FileInfo {
	return &staticFileInfo{
		name:    path.Base(name),
		size:    int64(len(v.virtual(name))),
		mode:    fileMode,
		modTime: v.modTime,
	}
}

// cleanPath normalizes a billy path to a clean absolute slash path.
func cleanPath(p string) string {
	p = path.Clean("/" + filepath.ToSlash(p))
	if p == "." {
		return rootPath
	}
	return p
}

func entryToFileInfo(e entryInfo, writable bool) os.FileInfo {
	mode := fileMode
	switch {
	case e.Dir:
		mode = dirMode
	case writable:
		mode = writeMode
	}
	return &staticFileInfo{
		name:    path.Base(e.Path),
		size:    int64(len(e.Data)),
		mode:    mode,
		modTime: e.modTime,
	}
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

var (
	_ billy.Filesystem = (*SnapshotFS)(nil)
	_ billy.Capable    = (*SnapshotFS)(nil)
	_ billy.File       = (*bytesFile)(nil)
	_ billy.File       = (*writeFile)(nil)
)
