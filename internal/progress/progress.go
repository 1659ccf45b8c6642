package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Reporter receives progress for one streamed transfer at a time
type Reporter interface {
	// Start begins tracking a transfer; totalBytes is 0 when unknown
	Start(name string, totalBytes int64)
	// Update reports the bytes moved so far
	Update(bytesTransferred int64)
	// Complete marks the current transfer as done
	Complete()
	// Error reports a failed transfer
	Error(err error)
}

// Callback is a function that receives progress updates
type Callback func(update Update)

// Update represents a progress update
type Update struct {
	Type           UpdateType
	Name           string
	Bytes          int64
	Total          int64
	BytesPerSecond float64
	Error          error
}

// UpdateType indicates the type of progress update
type UpdateType int

const (
	UpdateStart UpdateType = iota
	UpdateProgress
	UpdateComplete
	UpdateError
)

func (t UpdateType) String() string {
	switch t {
	case UpdateStart:
		return "start"
	case UpdateProgress:
		return "progress"
	case UpdateComplete:
		return "complete"
	case UpdateError:
		return "error"
	}
	return "unknown"
}

// CallbackReporter implements Reporter with a callback function
type CallbackReporter struct {
	callback  Callback
	mu        sync.Mutex
	name      string
	total     int64
	bytes     int64
	startTime time.Time
}

// NewCallbackReporter creates a new CallbackReporter
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{
		callback: callback,
	}
}

// Start begins tracking a new transfer
func (r *CallbackReporter) Start(name string, totalBytes int64) {
	r.mu.Lock()
	r.name = name
	r.total = totalBytes
	r.bytes = 0
	r.startTime = time.Now()

	update := Update{
		Type:  UpdateStart,
		Name:  name,
		Total: totalBytes,
	}
	callback := r.callback
	r.mu.Unlock()

	// Call callback outside lock to prevent deadlock
	if callback != nil {
		callback(update)
	}
}

// Update reports progress on the current transfer
func (r *CallbackReporter) Update(bytesTransferred int64) {
	r.mu.Lock()
	r.bytes = bytesTransferred

	var bytesPerSecond float64
	elapsed := time.Since(r.startTime).Seconds()
	if elapsed > 0 {
		bytesPerSecond = float64(bytesTransferred) / elapsed
	}

	update := Update{
		Type:           UpdateProgress,
		Name:           r.name,
		Bytes:          bytesTransferred,
		Total:          r.total,
		BytesPerSecond: bytesPerSecond,
	}
	callback := r.callback
	r.mu.Unlock()

	if callback != nil {
		callback(update)
	}
}

// Complete marks the current transfer as complete
func (r *CallbackReporter) Complete() {
	r.mu.Lock()
	if r.total < r.bytes {
		r.total = r.bytes
	}
	update := Update{
		Type:  UpdateComplete,
		Name:  r.name,
		Bytes: r.bytes,
		Total: r.total,
	}
	callback := r.callback
	r.mu.Unlock()

	if callback != nil {
		callback(update)
	}
}

// Error reports an error on the current transfer
func (r *CallbackReporter) Error(err error) {
	r.mu.Lock()
	update := Update{
		Type:  UpdateError,
		Name:  r.name,
		Bytes: r.bytes,
		Total: r.total,
		Error: err,
	}
	callback := r.callback
	r.mu.Unlock()

	if callback != nil {
		callback(update)
	}
}

// Reader wraps an io.Reader to report bytes as they are read
type Reader struct {
	reader      io.Reader
	reporter    Reporter
	transferred int64
}

// NewReader creates a progress-tracking reader. A nil reporter is allowed.
func NewReader(r io.Reader, reporter Reporter) *Reader {
	return &Reader{
		reader:   r,
		reporter: reporter,
	}
}

// Read implements io.Reader
func (pr *Reader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.transferred += int64(n)
		if pr.reporter != nil {
			pr.reporter.Update(pr.transferred)
		}
	}
	return n, err
}

// Transferred returns the number of bytes read so far
func (pr *Reader) Transferred() int64 {
	return pr.transferred
}

// NullReporter is a no-op reporter
type NullReporter struct{}

func (NullReporter) Start(name string, totalBytes int64) {}
func (NullReporter) Update(bytesTransferred int64)       {}
func (NullReporter) Complete()                           {}
func (NullReporter) Error(err error)                     {}

// FormatBytes formats bytes into a human-readable string
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatSpeed formats bytes per second into a human-readable string
func FormatSpeed(bytesPerSecond float64) string {
	return FormatBytes(int64(bytesPerSecond)) + "/s"
}

// FormatProgress returns a progress bar string
func FormatProgress(current, total int64, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}

	percent := float64(current) / float64(total)
	if percent > 1 {
		percent = 1
	}
	filled := int(percent * float64(width))

	var bar strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i < filled:
			bar.WriteByte('=')
		case i == filled:
			bar.WriteByte('>')
		default:
			bar.WriteByte(' ')
		}
	}

	return fmt.Sprintf("[%s] %5.1f%%", bar.String(), percent*100)
}
