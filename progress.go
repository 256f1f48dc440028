package treeftp

import "io"

// Progress describes how far the current crawl pass has got. A restart
// begins a new pass and the counters start again from zero.
type Progress struct {
	// Listings is the number of directories listed so far
	Listings int

	// Lines is the number of listing lines received so far
	Lines int

	// Bytes is the number of listing bytes received so far
	Bytes int64

	// Restarts is how many times the crawl has started over
	Restarts int
}

// ProgressFunc is called after every listing of a crawl.
type ProgressFunc func(Progress)

// progressReader wraps an io.Reader and counts the bytes read.
type progressReader struct {
	// reader is the underlying reader
	reader io.Reader

	// total tracks the total bytes read
	total int64
}

// Read implements io.Reader.
func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.total += int64(n)
	return n, err
}

// tracker accumulates the progress of one crawl pass.
type tracker struct {
	fn ProgressFunc
	p  Progress
}

func newTracker(fn ProgressFunc, restarts int) *tracker {
	return &tracker{fn: fn, p: Progress{Restarts: restarts}}
}

// listed records a listing of the given size.
func (t *tracker) listed(lines int, bytes int64) {
	if t == nil {
		return
	}
	t.p.Listings++
	t.p.Lines += lines
	t.p.Bytes += bytes
	if t.fn != nil {
		t.fn(t.p)
	}
}
