package upload

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bartdeslagmulder/now-cli/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel file uploads
const DefaultConcurrency = 8

// EventKind tells what an upload Event reports
type EventKind int

const (
	ChunkUploaded EventKind = iota
	Complete
	Failed
)

// Event is emitted by a running upload. Complete and Failed are terminal and
// are always the last event before the channel closes.
type Event struct {
	Kind  EventKind
	Names []string
	Bytes int64
	Err   error
}

// Uploader sends one file's content to the platform
type Uploader interface {
	UploadFile(ctx context.Context, file model.File, content io.Reader) error
}

type chunk struct {
	file  model.File
	names []string
}

// Coordinator uploads the files the server reported missing
type Coordinator struct {
	uploader    Uploader
	total       int
	chunks      []chunk
	concurrency int
}

// NewCoordinator prepares an upload of the files whose SHA is in missing.
// Files sharing a SHA are uploaded once.
func NewCoordinator(files []model.File, missing []string, uploader Uploader) *Coordinator {
	want := make(map[string]bool, len(missing))
	for _, sha := range missing {
		want[sha] = true
	}

	bySHA := map[string]int{}
	var chunks []chunk
	for _, f := range files {
		if !want[f.SHA] {
			continue
		}
		if i, ok := bySHA[f.SHA]; ok {
			chunks[i].names = append(chunks[i].names, f.Name)
			continue
		}
		bySHA[f.SHA] = len(chunks)
		chunks = append(chunks, chunk{file: f, names: []string{f.Name}})
	}

	return &Coordinator{
		uploader:    uploader,
		total:       len(files),
		chunks:      chunks,
		concurrency: DefaultConcurrency,
	}
}

// SetConcurrency changes how many files are uploaded at once
func (c *Coordinator) SetConcurrency(n int) {
	if n > 0 {
		c.concurrency = n
	}
}

func (c *Coordinator) TotalFileCount() int {
	return c.total
}

func (c *Coordinator) ChangedFileCount() int {
	return len(c.chunks)
}

func (c *Coordinator) ChangedByteCount() int64 {
	var n int64
	for _, ch := range c.chunks {
		n += ch.file.Size
	}
	return n
}

// Start uploads in the background. The returned channel yields one
// ChunkUploaded per file, then Complete or Failed, then closes.
func (c *Coordinator) Start(ctx context.Context) <-chan Event {
	events := make(chan Event, len(c.chunks)+1)

	go func() {
		defer close(events)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.concurrency)
		for _, ch := range c.chunks {
			g.Go(func() error {
				if err := c.send(gctx, ch.file); err != nil {
					return err
				}
				events <- Event{Kind: ChunkUploaded, Names: ch.names, Bytes: ch.file.Size}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			events <- Event{Kind: Failed, Err: err}
			return
		}
		events <- Event{Kind: Complete}
	}()

	return events
}

func (c *Coordinator) send(ctx context.Context, file model.File) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer f.Close()
	return c.uploader.UploadFile(ctx, file, f)
}
