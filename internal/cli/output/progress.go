package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressWriter counts bytes written through it and redraws a progress line.
// With an unknown total it shows the byte count only.
type ProgressWriter struct {
	w       io.Writer
	status  io.Writer
	title   string
	total   int64
	current int64
	width   int
	mu      sync.Mutex
}

// NewProgressWriter wraps w. Progress is drawn on status; a nil status draws nothing.
func NewProgressWriter(w, status io.Writer, title string, total int64) *ProgressWriter {
	return &ProgressWriter{w: w, status: status, title: title, total: total, width: 30}
}

// Write implements io.Writer.
func (p *ProgressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.mu.Lock()
	p.current += int64(n)
	p.render()
	p.mu.Unlock()
	return n, err
}

// Written returns the number of bytes written so far.
func (p *ProgressWriter) Written() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish ends the progress line.
func (p *ProgressWriter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == nil {
		return
	}
	if p.total > 0 {
		p.current = p.total
	}
	p.render()
	fmt.Fprintln(p.status)
}

func (p *ProgressWriter) render() {
	if p.status == nil {
		return
	}
	if p.total <= 0 {
		fmt.Fprintf(p.status, "\r%s %s", p.title, FormatBytes(p.current))
		return
	}
	ratio := min(float64(p.current)/float64(p.total), 1)
	filled := int(float64(p.width) * ratio)
	fmt.Fprintf(p.status, "\r%s [%s%s] %3.0f%% (%s/%s)",
		p.title,
		strings.Repeat("#", filled),
		strings.Repeat(".", p.width-filled),
		ratio*100,
		FormatBytes(p.current),
		FormatBytes(p.total),
	)
}

// FormatBytes formats a byte count for humans.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
