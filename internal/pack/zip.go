package pack

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/agentic-research/treeforge/internal/tree"
)

// ErrHasErrors is wrapped by ExportError.
var ErrHasErrors = errors.New("tree has parse errors")

// ExportError refuses to package a tree whose text has line errors.
type ExportError struct {
	Errors []string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s: %s", ErrHasErrors, strings.Join(e.Errors, "; "))
}

func (e *ExportError) Unwrap() error { return ErrHasErrors }

// WriteZip writes entries as a zip archive. Directory entries get a
// trailing slash. modTime is stamped on every entry so identical trees give
// identical archives.
func WriteZip(ctx context.Context, w io.Writer, entries []Entry, modTime time.Time) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			_ = zw.Close() // already failing
			return err
		}
		hdr := &zip.FileHeader{Name: e.Path, Method: zip.Deflate, Modified: modTime}
		if e.Dir {
			hdr.Name += "/"
			hdr.Method = zip.Store
			hdr.SetMode(fs.ModeDir | 0o755)
		} else {
			hdr.SetMode(0o644)
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			_ = zw.Close() // already failing
			return fmt.Errorf("zip entry %s: %w", hdr.Name, err)
		}
		if e.Dir {
			continue
		}
		if _, err := fw.Write(e.Data); err != nil {
			_ = zw.Close() // already failing
			return fmt.Errorf("zip write %s: %w", e.Path, err)
		}
	}
	return zw.Close()
}

// Archive is a packaged tree held in memory.
type Archive struct {
	Name    string
	Data    []byte
	Entries []Entry
}

// Build packages roots into a zip archive. lineErrors are the parse errors
// of the text the tree came from; any of them aborts packaging.
func Build(ctx context.Context, roots []*tree.Node, lineErrors []string, modTime time.Time) (*Archive, error) {
	if len(lineErrors) > 0 {
		return nil, &ExportError{Errors: append([]string(nil), lineErrors...)}
	}
	entries := Collect(roots)
	var buf bytes.Buffer
	if err := WriteZip(ctx, &buf, entries, modTime); err != nil {
		return nil, err
	}
	return &Archive{Name: ArchiveName(roots), Data: buf.Bytes(), Entries: entries}, nil
}
