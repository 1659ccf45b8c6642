package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Ning0612/drivesync/internal/adapter"
	"github.com/Ning0612/drivesync/internal/adapter/local"
	"github.com/Ning0612/drivesync/internal/domain"
	"github.com/Ning0612/drivesync/internal/logger"
	"github.com/Ning0612/drivesync/internal/progress"
)

const tracerName = "github.com/Ning0612/drivesync/internal/adapter/gdrive"

var metadataFields = toFields(domain.MetadataFields)

// FileStore implements adapter.FileStore on the Drive v3 API
type FileStore struct {
	service  *drive.Service
	local    *local.Store
	log      logger.Logger
	reporter progress.Reporter
	tracer   trace.Tracer
}

type options struct {
	client   []option.ClientOption
	local    *local.Store
	log      logger.Logger
	reporter progress.Reporter
}

// Option configures a FileStore
type Option func(*options)

// WithClientOptions passes options to the Drive client, typically the
// scoped credentials from gauth and, in tests, an endpoint override
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.client = append(o.client, opts...) }
}

// WithLocalStore sets where downloads are written
func WithLocalStore(s *local.Store) Option {
	return func(o *options) { o.local = s }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithReporter sets the download progress reporter
func WithReporter(r progress.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// New builds the Drive client and returns a ready FileStore
func New(ctx context.Context, opts ...Option) (*FileStore, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	service, err := drive.NewService(ctx, o.client...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	s := &FileStore{
		service:  service,
		local:    o.local,
		log:      o.log,
		reporter: o.reporter,
		tracer:   otel.Tracer(tracerName),
	}
	if s.local == nil {
		s.local = local.New(nil)
	}
	if s.log == nil {
		s.log = &logger.NullLogger{}
	}
	if s.reporter == nil {
		s.reporter = progress.NullReporter{}
	}
	return s, nil
}

// ready reports whether a client was built; a zero FileStore has none
func (s *FileStore) ready() error {
	if s == nil || s.service == nil {
		return domain.ErrAccessNotGranted
	}
	return nil
}

// FetchByID reads content and metadata concurrently and merges them.
// Both reads must succeed; a failed read does not cancel the other.
func (s *FileStore) FetchByID(ctx context.Context, id string) (rec *domain.FileRecord, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "gdrive.fetch_by_id", trace.WithAttributes(attribute.String("drive.file_id", id)))
	defer func() { adapter.EndSpan(span, err) }()

	var (
		meta    *drive.File
		content []byte
		g       errgroup.Group
	)

	g.Go(func() error {
		resp, err := s.service.Files.Get(id).Context(ctx).SupportsAllDrives(true).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		content = data
		return nil
	})

	g.Go(func() error {
		f, err := s.service.Files.Get(id).Context(ctx).Fields(metadataFields...).SupportsAllDrives(true).Do()
		if err != nil {
			return err
		}
		meta = f
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, adapter.MapError(err)
	}

	rec = fromDriveFile(meta)
	rec.Content = content
	s.log.Debug("Fetched file", "id", id, "name", rec.Name, "bytes", len(content))
	return rec, nil
}

// FetchByName looks up a file by exact name. The listing is capped at two
// results, enough to tell unique from ambiguous.
func (s *FileStore) FetchByName(ctx context.Context, name string) (rec *domain.FileRecord, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "gdrive.fetch_by_name", trace.WithAttributes(attribute.String("drive.file_name", name)))
	defer func() { adapter.EndSpan(span, err) }()

	query := fmt.Sprintf("name = '%s'", escapeQueryString(name))
	list, err := s.service.Files.List().
		Context(ctx).
		Q(query).
		PageSize(2).
		Fields("files(id)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Do()
	if err != nil {
		return nil, adapter.MapError(err)
	}

	switch len(list.Files) {
	case 0:
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, name)
	case 1:
		return s.FetchByID(ctx, list.Files[0].Id)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrAmbiguous, name)
	}
}

// Exists probes a file with a minimal metadata read
func (s *FileStore) Exists(ctx context.Context, id string) (found bool, err error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	if id == "" {
		return false, nil
	}
	ctx, span := s.tracer.Start(ctx, "gdrive.exists", trace.WithAttributes(attribute.String("drive.file_id", id)))
	defer func() { adapter.EndSpan(span, err) }()

	_, err = s.service.Files.Get(id).Context(ctx).Fields("id").SupportsAllDrives(true).Do()
	if err != nil {
		mapped := adapter.MapError(err)
		if errors.Is(mapped, domain.ErrNotFound) {
			return false, nil
		}
		return false, mapped
	}
	return true, nil
}

// Create uploads metadata and content as a new file
func (s *FileStore) Create(ctx context.Context, rec *domain.FileRecord) (out *domain.FileRecord, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", domain.ErrPrecondition)
	}
	ctx, span := s.tracer.Start(ctx, "gdrive.create", trace.WithAttributes(
		attribute.String("drive.file_name", rec.Name),
		attribute.Int("drive.content_bytes", len(rec.Content)),
	))
	defer func() { adapter.EndSpan(span, err) }()

	file := toDriveFile(rec)
	if rec.Parent != "" {
		file.Parents = []string{rec.Parent}
	}

	call := s.service.Files.Create(file).
		Context(ctx).
		Fields(metadataFields...).
		SupportsAllDrives(true)
	if rec.Content != nil {
		call = call.Media(bytes.NewReader(rec.Content), mediaOptions(rec)...)
	}

	f, err := call.Do()
	if err != nil {
		return nil, adapter.MapError(err)
	}

	out = fromDriveFile(f)
	s.log.Info("Created file", "id", out.ID, "name", out.Name, "parent", out.Parent)
	return out, nil
}

// Update pushes metadata and content to rec.ID. When rec.Parent is set and
// differs from the file's current first parent, a second call moves the file
// under rec.Parent and removes every previous parent. A failed move leaves
// the first call's changes in place.
func (s *FileStore) Update(ctx context.Context, rec *domain.FileRecord) (out *domain.FileRecord, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if rec == nil || rec.ID == "" {
		return nil, fmt.Errorf("%w: update needs a file id", domain.ErrPrecondition)
	}
	ctx, span := s.tracer.Start(ctx, "gdrive.update", trace.WithAttributes(
		attribute.String("drive.file_id", rec.ID),
		attribute.Int("drive.content_bytes", len(rec.Content)),
	))
	defer func() { adapter.EndSpan(span, err) }()

	call := s.service.Files.Update(rec.ID, toDriveFile(rec)).
		Context(ctx).
		Fields(metadataFields...).
		SupportsAllDrives(true)
	if rec.Content != nil {
		call = call.Media(bytes.NewReader(rec.Content), mediaOptions(rec)...)
	}

	f, err := call.Do()
	if err != nil {
		return nil, adapter.MapError(err)
	}

	if rec.Parent != "" && (len(f.Parents) == 0 || f.Parents[0] != rec.Parent) {
		span.AddEvent("reparent", trace.WithAttributes(attribute.String("drive.parent", rec.Parent)))

		move := s.service.Files.Update(rec.ID, &drive.File{}).
			Context(ctx).
			AddParents(rec.Parent).
			Fields(metadataFields...).
			SupportsAllDrives(true)
		if len(f.Parents) > 0 {
			move = move.RemoveParents(strings.Join(f.Parents, ","))
		}

		moved, err := move.Do()
		if err != nil {
			s.log.Warn("File updated but not moved", "id", rec.ID, "parent", rec.Parent, "error", err)
			return nil, adapter.MapError(err)
		}
		f = moved
	}

	out = fromDriveFile(f)
	s.log.Info("Updated file", "id", out.ID, "name", out.Name, "parent", out.Parent)
	return out, nil
}

// Delete removes a file permanently
func (s *FileStore) Delete(ctx context.Context, id string) (err error) {
	if err := s.ready(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: delete needs a file id", domain.ErrPrecondition)
	}
	ctx, span := s.tracer.Start(ctx, "gdrive.delete", trace.WithAttributes(attribute.String("drive.file_id", id)))
	defer func() { adapter.EndSpan(span, err) }()

	if err := s.service.Files.Delete(id).Context(ctx).SupportsAllDrives(true).Do(); err != nil {
		return adapter.MapError(err)
	}
	s.log.Info("Deleted file", "id", id)
	return nil
}

// DownloadToPath streams a file's content to a local path resolved against
// the file's name. Bytes are written as they arrive, so a failed download can
// leave a truncated file at the returned path.
func (s *FileStore) DownloadToPath(ctx context.Context, id, path string) (rec *domain.FileRecord, target string, err error) {
	if err := s.ready(); err != nil {
		return nil, "", err
	}
	ctx, span := s.tracer.Start(ctx, "gdrive.download", trace.WithAttributes(attribute.String("drive.file_id", id)))
	defer func() { adapter.EndSpan(span, err) }()

	meta, err := s.service.Files.Get(id).Context(ctx).Fields(metadataFields...).SupportsAllDrives(true).Do()
	if err != nil {
		return nil, "", adapter.MapError(err)
	}
	rec = fromDriveFile(meta)

	resp, err := s.service.Files.Get(id).Context(ctx).SupportsAllDrives(true).Download()
	if err != nil {
		return nil, "", adapter.MapError(err)
	}
	defer resp.Body.Close()

	out, target, err := s.local.Create(path, rec.Name)
	if err != nil {
		return nil, target, err
	}

	total := resp.ContentLength
	if total < 0 {
		total = 0
	}
	s.reporter.Start(rec.Name, total)

	n, copyErr := io.Copy(out, progress.NewReader(resp.Body, s.reporter))
	closeErr := out.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = fmt.Errorf("%w: %w", domain.ErrLocalIO, closeErr)
	}
	if copyErr != nil {
		s.reporter.Error(copyErr)
		s.log.Warn("Download interrupted, local file may be truncated", "id", id, "path", target, "bytes", n)
		return nil, target, fmt.Errorf("download %s: %w", id, copyErr)
	}

	s.reporter.Complete()
	span.SetAttributes(attribute.Int64("drive.content_bytes", n))
	s.log.Info("Downloaded file", "id", id, "path", target, "bytes", n)
	return rec, target, nil
}

// escapeQueryString escapes special characters in Drive query strings
func escapeQueryString(s string) string {
	// Escape backslash first, then single quote
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")
	return s
}

func toFields(names []string) []googleapi.Field {
	fields := make([]googleapi.Field, len(names))
	for i, n := range names {
		fields[i] = googleapi.Field(n)
	}
	return fields
}

// toDriveFile builds the writable part of a Drive resource. Parents are
// never set here: Drive rejects them on update and Create adds them itself.
func toDriveFile(rec *domain.FileRecord) *drive.File {
	mimeType := rec.MimeType
	if mimeType == "" && rec.IsJSON() {
		mimeType = domain.MimeTypeJSON
	}
	return &drive.File{
		Name:            rec.Name,
		MimeType:        mimeType,
		Description:     rec.Description,
		Starred:         rec.Starred,
		ForceSendFields: []string{"Starred"},
	}
}

func mediaOptions(rec *domain.FileRecord) []googleapi.MediaOption {
	mimeType := rec.MimeType
	if mimeType == "" && rec.IsJSON() {
		mimeType = domain.MimeTypeJSON
	}
	if mimeType == "" {
		return nil
	}
	return []googleapi.MediaOption{googleapi.ContentType(mimeType)}
}

// fromDriveFile copies the declared metadata fields out of a Drive resource
func fromDriveFile(f *drive.File) *domain.FileRecord {
	rec := &domain.FileRecord{
		ID:             f.Id,
		Name:           f.Name,
		Kind:           f.Kind,
		MimeType:       f.MimeType,
		Description:    f.Description,
		Starred:        f.Starred,
		Trashed:        f.Trashed,
		WebViewLink:    f.WebViewLink,
		WebContentLink: f.WebContentLink,
		FileExtension:  f.FileExtension,
		Parents:        append([]string(nil), f.Parents...),
	}
	if len(rec.Parents) > 0 {
		rec.Parent = rec.Parents[0]
	}
	for _, o := range f.Owners {
		if o == nil {
			continue
		}
		rec.Owners = append(rec.Owners, domain.Owner{
			Kind:         o.Kind,
			DisplayName:  o.DisplayName,
			EmailAddress: o.EmailAddress,
			PermissionID: o.PermissionId,
			PhotoLink:    o.PhotoLink,
			Me:           o.Me,
		})
	}
	return rec
}

// Compile-time interface check
var _ adapter.FileStore = (*FileStore)(nil)
