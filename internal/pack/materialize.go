package pack

import (
	"fmt"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Materialize writes entries into fs. Use osfs to unpack into a real
// directory or memfs to stage a tree in memory.
func Materialize(fs billy.Filesystem, entries []Entry) error {
	for _, e := range entries {
		if e.Dir {
			if err := fs.MkdirAll(e.Path, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", e.Path, err)
			}
			continue
		}
		if err := util.WriteFile(fs, e.Path, e.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", e.Path, err)
		}
	}
	return nil
}
