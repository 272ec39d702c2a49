package composer

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/lalith-99/huddle/internal/lifecycle"
)

// Uploader is the file service. Each call uploads one file and returns its
// id; failures are per file.
type Uploader interface {
	Upload(ctx context.Context, spaceID uuid.UUID, file File, userID uuid.UUID) (string, error)
}

// File is a local file waiting to be attached.
type File struct {
	Name string
	Path string
	Size int64
}

// Label renders the file for the pending-attachment strip, e.g.
// "notes.pdf (1.2 MB)".
func (f File) Label() string {
	return fmt.Sprintf("%s (%s)", f.Name, humanize.Bytes(uint64(max(f.Size, 0))))
}

// pendingFile remembers the id of a file that already uploaded, so a retry
// after a failed send does not upload it again.
type pendingFile struct {
	file File
	id   string
}

// AddFiles appends files to the pending list. Only the first
// lifecycle.MaxAttachments files of the combined list are kept.
func (c *Composer) AddFiles(files ...File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range files {
		if len(c.pending) >= lifecycle.MaxAttachments {
			break
		}
		c.pending = append(c.pending, &pendingFile{file: f})
	}
}

// RemoveFile drops the pending file at index i.
func (c *Composer) RemoveFile(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.pending) {
		return
	}
	c.pending = append(c.pending[:i], c.pending[i+1:]...)
}

// Files returns the pending files in order.
func (c *Composer) Files() []File {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]File, len(c.pending))
	for i, p := range c.pending {
		out[i] = p.file
	}
	return out
}
