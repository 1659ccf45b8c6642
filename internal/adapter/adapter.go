package adapter

import (
	"context"

	"github.com/Ning0612/drivesync/internal/domain"
)

// FileStore defines the remote file storage operations a Record relies on.
// Implementations translate between domain.FileRecord and the remote API and
// return domain-level errors for consistent error handling:
// domain.ErrAccessNotGranted before a client exists, domain.ErrNotFound and
// domain.ErrAmbiguous for name lookups, *domain.RemoteError for the rest.
type FileStore interface {
	// FetchByID returns content and declared metadata for one file
	FetchByID(ctx context.Context, id string) (*domain.FileRecord, error)

	// FetchByName resolves a unique name to a file and fetches it
	// Returns domain.ErrNotFound for zero matches, domain.ErrAmbiguous for more than one
	FetchByName(ctx context.Context, name string) (*domain.FileRecord, error)

	// Exists reports whether a file with the id exists
	// An empty id is reported as nonexistent without a request
	Exists(ctx context.Context, id string) (bool, error)

	// Create uploads metadata and content as a new file and returns the
	// authoritative metadata, including the newly assigned id
	Create(ctx context.Context, rec *domain.FileRecord) (*domain.FileRecord, error)

	// Update pushes metadata and content to an existing file and moves it to
	// rec.Parent when that differs from its current parent. Not atomic.
	Update(ctx context.Context, rec *domain.FileRecord) (*domain.FileRecord, error)

	// Delete removes the file. Deleting twice surfaces the remote error.
	Delete(ctx context.Context, id string) error

	// DownloadToPath streams the content into a local file and returns the
	// file's metadata. A failed download may leave a truncated file behind.
	DownloadToPath(ctx context.Context, id, path string) (*domain.FileRecord, string, error)
}

// ReadOptions are forwarded verbatim to the values read call
type ReadOptions struct {
	MajorDimension       string
	ValueRenderOption    string
	DateTimeRenderOption string
}

// WriteOptions control how written values are interpreted
type WriteOptions struct {
	// ValueInputOption is "RAW" or "USER_ENTERED"; empty means RAW
	ValueInputOption string
}

// SpreadsheetOptions narrow a spreadsheet metadata read
type SpreadsheetOptions struct {
	Ranges          []string
	IncludeGridData bool
}

// UpdateResult summarizes a range write
type UpdateResult struct {
	SpreadsheetID  string
	UpdatedRange   string
	UpdatedRows    int64
	UpdatedColumns int64
	UpdatedCells   int64
}

// SheetStore defines stateless operations on remote spreadsheets
type SheetStore interface {
	// Read returns the values of a range
	Read(ctx context.Context, spreadsheetID, rng string, opts ReadOptions) (*domain.SheetRange, error)

	// Write replaces the values of a range with the given grid
	Write(ctx context.Context, spreadsheetID string, values domain.SheetRange, opts WriteOptions) (*UpdateResult, error)

	// Clear empties a range and returns the range actually cleared
	Clear(ctx context.Context, spreadsheetID, rng string) (string, error)

	// Spreadsheet returns spreadsheet level metadata
	Spreadsheet(ctx context.Context, spreadsheetID string, opts SpreadsheetOptions) (*domain.Spreadsheet, error)
}
