package fileutil

import (
	"fmt"
	"os"
)

type pending struct {
	path string
	data []byte
}

// Batch publishes a set of files together. Every file is staged to a
// temporary sibling before any rename happens, so a failure while staging
// leaves all targets untouched.
type Batch struct {
	perm  os.FileMode
	files []pending
}

func NewBatch(perm os.FileMode) *Batch {
	return &Batch{perm: perm}
}

// Add queues data for path. Later additions for the same path win.
func (b *Batch) Add(path string, data []byte) {
	for i := range b.files {
		if b.files[i].path == path {
			b.files[i].data = data
			return
		}
	}
	b.files = append(b.files, pending{path: path, data: data})
}

// Len returns the number of queued files.
func (b *Batch) Len() int {
	return len(b.files)
}

// Commit stages every changed file and then renames them into place in the
// order they were added. It returns the paths actually written.
func (b *Batch) Commit() ([]string, error) {
	type staged struct {
		path, tmp string
	}

	var ready []staged
	cleanup := func() {
		for _, s := range ready {
			os.Remove(s.tmp)
		}
	}

	for _, f := range b.files {
		if SameContent(f.path, f.data) {
			continue
		}
		tmp, err := stage(f.path, f.data, b.perm)
		if err != nil {
			cleanup()
			return nil, err
		}
		ready = append(ready, staged{path: f.path, tmp: tmp})
	}

	written := make([]string, 0, len(ready))
	for i, s := range ready {
		if err := os.Rename(s.tmp, s.path); err != nil {
			for _, rest := range ready[i:] {
				os.Remove(rest.tmp)
			}
			return written, fmt.Errorf("failed to rename %s: %w", s.path, err)
		}
		written = append(written, s.path)
	}
	return written, nil
}
