package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Ning0612/drivesync/internal/adapter"
	"github.com/Ning0612/drivesync/internal/adapter/local"
	"github.com/Ning0612/drivesync/internal/domain"
	"github.com/Ning0612/drivesync/internal/logger"
)

// State is where a record stands relative to its remote file
type State int

const (
	// Unbound records have neither id nor name and cannot be loaded
	Unbound State = iota
	// BoundUnsynced records know an id or name but hold no remote fields yet
	BoundUnsynced
	// Synced records hold the fields last read from or written to the remote file
	Synced
	// Deleted records keep their last known fields after the remote file was removed
	Deleted
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case BoundUnsynced:
		return "bound"
	case Synced:
		return "synced"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Action reports which branch an upload took
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Local filename suffixes for the split saves
const (
	MetadataSuffix = "_metadata"
	ContentSuffix  = "_content"
)

// Record is a local, mutable copy of one remote file. Callers edit File()
// and push the result with Upload.
type Record struct {
	store  adapter.FileStore
	local  *local.Store
	log    logger.Logger
	file   domain.FileRecord
	synced bool
	stale  bool
}

// Option configures a Record
type Option func(*Record)

// WithLocalStore sets the filesystem used by the save helpers
func WithLocalStore(s *local.Store) Option {
	return func(r *Record) { r.local = s }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(r *Record) { r.log = l }
}

// New binds a record to a store. The record starts unsynced; a record with
// neither id nor name is Unbound and Load will refuse it.
func New(store adapter.FileStore, file domain.FileRecord, opts ...Option) *Record {
	r := &Record{store: store, file: file}
	for _, opt := range opts {
		opt(r)
	}
	if r.local == nil {
		r.local = local.New(nil)
	}
	if r.log == nil {
		r.log = &logger.NullLogger{}
	}
	return r
}

// File returns the record's fields for reading and editing
func (r *Record) File() *domain.FileRecord {
	return &r.file
}

// State returns the record's current state
func (r *Record) State() State {
	switch {
	case r.stale:
		return Deleted
	case r.synced:
		return Synced
	case r.file.HasIdentity():
		return BoundUnsynced
	default:
		return Unbound
	}
}

// Stale reports whether the remote file was deleted through this record
func (r *Record) Stale() bool {
	return r.stale
}

// Load replaces the record's fields with the remote file's. The id is used
// when set since names are not unique; otherwise the name is resolved.
func (r *Record) Load(ctx context.Context) (*domain.FileRecord, error) {
	var (
		remote *domain.FileRecord
		err    error
	)

	switch {
	case r.file.ID != "":
		remote, err = r.store.FetchByID(ctx, r.file.ID)
	case r.file.Name != "":
		remote, err = r.store.FetchByName(ctx, r.file.Name)
	default:
		return nil, fmt.Errorf("%w: load needs an id or a name", domain.ErrPrecondition)
	}
	if err != nil {
		return nil, err
	}

	r.file.MergeRemote(remote)
	r.synced = true
	r.stale = false
	r.log.Debug("Loaded record", "id", r.file.ID, "name", r.file.Name)
	return remote, nil
}

// Upload creates the remote file or updates it, depending on whether the
// current id exists remotely. A record without an id always creates.
// Another writer can act between the probe and the write.
func (r *Record) Upload(ctx context.Context) (Action, error) {
	exists, err := r.store.Exists(ctx, r.file.ID)
	if err != nil {
		return "", err
	}

	if exists {
		if _, err := r.Update(ctx); err != nil {
			return "", err
		}
		return ActionUpdated, nil
	}

	if _, err := r.Create(ctx); err != nil {
		return "", err
	}
	return ActionCreated, nil
}

// Create uploads the record as a new remote file and adopts the assigned id
func (r *Record) Create(ctx context.Context) (*domain.FileRecord, error) {
	out, err := r.store.Create(ctx, &r.file)
	if err != nil {
		return nil, err
	}
	r.adopt(out)
	return out, nil
}

// Update pushes the record to its existing remote file
func (r *Record) Update(ctx context.Context) (*domain.FileRecord, error) {
	if r.file.ID == "" {
		return nil, fmt.Errorf("%w: update needs an id", domain.ErrPrecondition)
	}
	out, err := r.store.Update(ctx, &r.file)
	if err != nil {
		return nil, err
	}
	r.adopt(out)
	return out, nil
}

// Delete removes the remote file. Local fields are kept and the record is
// marked stale; a later Upload recreates the file under a new id.
func (r *Record) Delete(ctx context.Context) error {
	if r.file.ID == "" {
		return fmt.Errorf("%w: delete needs an id", domain.ErrPrecondition)
	}
	if err := r.store.Delete(ctx, r.file.ID); err != nil {
		return err
	}
	r.synced = false
	r.stale = true
	r.log.Info("Deleted remote file, local copy is stale", "id", r.file.ID, "name", r.file.Name)
	return nil
}

// Download streams the remote content to path and refreshes metadata. The
// in-memory content is not touched.
func (r *Record) Download(ctx context.Context, path string) (string, error) {
	if r.file.ID == "" {
		return "", fmt.Errorf("%w: download needs an id", domain.ErrPrecondition)
	}
	meta, target, err := r.store.DownloadToPath(ctx, r.file.ID, path)
	if err != nil {
		return target, err
	}
	r.file.MergeMetadata(meta)
	return target, nil
}

// SaveLocal writes the whole record as JSON. A directory-like path gets the
// record's name appended.
func (r *Record) SaveLocal(path string) (string, error) {
	data, err := json.Marshal(r.file)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return r.local.WriteFile(path, r.file.Name, data)
}

// SaveMetadataLocal writes the record without its content as JSON.
// The default filename is the name with "_metadata" before the extension.
func (r *Record) SaveMetadataLocal(path string) (string, error) {
	data, err := json.Marshal(r.file.Metadata())
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return r.local.WriteFile(path, r.file.DerivedName(MetadataSuffix), data)
}

// SaveContentLocal writes just the content. JSON content is written in
// compact form; JSON-typed content that does not parse and anything else is
// written as is. The default filename is the name with
// "_content" before the extension.
func (r *Record) SaveContentLocal(path string) (string, error) {
	data := r.file.Content
	if r.file.IsJSON() && len(data) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err == nil {
			data = buf.Bytes()
		}
	}
	return r.local.WriteFile(path, r.file.DerivedName(ContentSuffix), data)
}

// adopt merges a create or update response, keeping local content
func (r *Record) adopt(out *domain.FileRecord) {
	r.file.MergeMetadata(out)
	if len(out.Parents) > 0 {
		r.file.Parent = out.Parents[0]
	}
	r.synced = true
	r.stale = false
}
