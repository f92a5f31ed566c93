package output

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
)

const progressWidth = 20

// Progress renders a single self-overwriting upload progress line
type Progress struct {
	mu      sync.Mutex
	out     *Output
	label   string
	total   int64
	current int64
	done    bool
}

// NewProgress starts a progress line for total bytes. label is appended
// after the byte size, e.g. "3 files".
func (o *Output) NewProgress(total int64, label string) *Progress {
	return &Progress{out: o, total: total, label: label}
}

// Tick advances the bar by n bytes and redraws it
func (p *Progress) Tick(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.current += n
	if p.current > p.total {
		p.current = p.total
	}
	p.draw()
}

// Done clears the progress line
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true
	p.out.mu.Lock()
	fmt.Fprint(p.out.msg, "\r\x1b[2K")
	p.out.mu.Unlock()
}

// Render returns the current progress line without writing it
func (p *Progress) Render() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.render()
}

func (p *Progress) draw() {
	p.out.mu.Lock()
	fmt.Fprint(p.out.msg, "\r"+p.render())
	p.out.mu.Unlock()
}

func (p *Progress) render() string {
	ratio := 1.0
	if p.total > 0 {
		ratio = float64(p.current) / float64(p.total)
	}
	filled := int(ratio * progressWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressWidth-filled)
	return fmt.Sprintf("> Upload [%s] %3d%% (%s) [%s]",
		bar, int(ratio*100), humanize.Bytes(uint64(p.total)), p.label)
}
