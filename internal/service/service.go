package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"google.golang.org/api/option"

	"github.com/Ning0612/drivesync/internal/adapter"
	"github.com/Ning0612/drivesync/internal/adapter/gauth"
	"github.com/Ning0612/drivesync/internal/adapter/gdrive"
	"github.com/Ning0612/drivesync/internal/adapter/gsheets"
	"github.com/Ning0612/drivesync/internal/adapter/local"
	"github.com/Ning0612/drivesync/internal/checksum"
	"github.com/Ning0612/drivesync/internal/config"
	"github.com/Ning0612/drivesync/internal/domain"
	"github.com/Ning0612/drivesync/internal/lock"
	"github.com/Ning0612/drivesync/internal/logger"
	"github.com/Ning0612/drivesync/internal/progress"
	"github.com/Ning0612/drivesync/internal/record"
	"github.com/Ning0612/drivesync/internal/scheduler"
	"github.com/Ning0612/drivesync/internal/state"
)

// Journal action names
const (
	ActionFileLoad     = "file.load"
	ActionFileExists   = "file.exists"
	ActionFileUpload   = "file.upload"
	ActionFileDelete   = "file.delete"
	ActionFileDownload = "file.download"
	ActionSheetRead    = "sheet.read"
	ActionSheetWrite   = "sheet.write"
	ActionSheetClear   = "sheet.clear"
	ActionSheetInfo    = "sheet.info"
)

// Service wires the Drive and Sheets stores to the local filesystem and the
// operation journal. Every remote call made through it is journaled under
// the service's run id.
type Service struct {
	cfg     *config.Config
	runID   string
	files   *gdrive.FileStore
	sheets  *gsheets.SheetStore
	local   *local.Store
	journal *state.Manager
	lock    *lock.FileLock
	log     logger.Logger
}

type options struct {
	client   []option.ClientOption
	fs       afero.Fs
	log      logger.Logger
	reporter progress.Reporter
}

// Option configures a Service
type Option func(*options)

// WithClientOptions appends options to both API clients, after the
// credentials and endpoint derived from the config
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.client = append(o.client, opts...) }
}

// WithFs sets the filesystem for local reads and writes
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithReporter receives download progress
func WithReporter(r progress.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// New loads credentials, builds both stores and opens the journal
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Get()
	}
	if o.reporter == nil {
		o.reporter = progress.NullReporter{}
	}

	creds, err := gauth.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := o.log.With("run_id", runID)
	store := local.New(o.fs)

	files, err := gdrive.New(ctx,
		gdrive.WithClientOptions(clientOptions(ctx, creds, gauth.ScopeDrive, cfg.Drive.Endpoint, o.client)...),
		gdrive.WithLocalStore(store),
		gdrive.WithLogger(log.With("component", "gdrive")),
		gdrive.WithReporter(o.reporter),
	)
	if err != nil {
		return nil, err
	}

	sheets, err := gsheets.New(ctx,
		gsheets.WithClientOptions(clientOptions(ctx, creds, gauth.ScopeSheets, cfg.Sheets.Endpoint, o.client)...),
		gsheets.WithLogger(log.With("component", "gsheets")),
	)
	if err != nil {
		return nil, err
	}

	journal, err := state.NewManager(cfg.State.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	lk, err := lock.New(cfg.State.DataDir)
	if err != nil {
		journal.Close()
		return nil, err
	}

	log.Debug("Service ready", "client_email", creds.ClientEmail, "data_dir", cfg.State.DataDir)

	return &Service{
		cfg:     cfg,
		runID:   runID,
		files:   files,
		sheets:  sheets,
		local:   store,
		journal: journal,
		lock:    lk,
		log:     log,
	}, nil
}

func clientOptions(ctx context.Context, creds *gauth.Credentials, scope, endpoint string, extra []option.ClientOption) []option.ClientOption {
	opts := []option.ClientOption{creds.ClientOption(ctx, scope)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return append(opts, extra...)
}

// RunID identifies this service's operations in the journal
func (s *Service) RunID() string {
	return s.runID
}

// Files returns the Drive store
func (s *Service) Files() adapter.FileStore {
	return s.files
}

// Sheets returns the Sheets store
func (s *Service) Sheets() adapter.SheetStore {
	return s.sheets
}

// NewRecord returns a record bound to the Drive store and local filesystem
func (s *Service) NewRecord(file domain.FileRecord) *record.Record {
	return record.New(s.files, file,
		record.WithLocalStore(s.local),
		record.WithLogger(s.log.With("component", "record")),
	)
}

// LoadFile fetches a file by id, or by name when id is empty
func (s *Service) LoadFile(ctx context.Context, id, name string) (rec *record.Record, err error) {
	op := s.begin(ActionFileLoad, firstNonEmpty(id, name), name)
	defer func() { s.finish(op, err) }()

	rec = s.NewRecord(domain.FileRecord{ID: id, Name: name})
	if _, err = rec.Load(ctx); err != nil {
		return nil, err
	}
	op.Target = rec.File().ID
	op.Name = rec.File().Name
	op.Bytes = int64(len(rec.File().Content))
	return rec, nil
}

// FileExists reports whether a file with id exists
func (s *Service) FileExists(ctx context.Context, id string) (found bool, err error) {
	op := s.begin(ActionFileExists, id, "")
	defer func() { s.finish(op, err) }()

	return s.files.Exists(ctx, id)
}

// UploadFile reads path and upserts it. Unset fields of file are derived:
// the name from the path's base, the mime type from its extension and the
// parent from the configured default folder. A held journal lock is waited
// for, so uploads from local processes never interleave.
func (s *Service) UploadFile(ctx context.Context, path string, file domain.FileRecord) (rec *record.Record, action record.Action, err error) {
	if file.Name == "" {
		file.Name = filepath.Base(path)
	}
	op := s.begin(ActionFileUpload, firstNonEmpty(file.ID, file.Name), file.Name)
	defer func() { s.finish(op, err) }()

	content, err := s.local.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	file.Content = content
	if file.MimeType == "" {
		file.MimeType = mimeTypeOf(path)
	}
	if file.Parent == "" {
		file.Parent = s.cfg.Drive.DefaultParent
	}

	if err = s.lock.Wait(ctx, ActionFileUpload, op.Target); err != nil {
		return nil, "", err
	}
	defer s.releaseLock()

	rec = s.NewRecord(file)
	action, err = rec.Upload(ctx)
	if err != nil {
		return nil, "", err
	}

	op.Action = ActionFileUpload + "." + string(action)
	op.Target = rec.File().ID
	op.Bytes = int64(len(content))
	s.log.Info("Uploaded file", "id", rec.File().ID, "name", rec.File().Name, "action", action)
	return rec, action, nil
}

// DeleteFile removes a remote file
func (s *Service) DeleteFile(ctx context.Context, id string) (err error) {
	op := s.begin(ActionFileDelete, id, "")
	defer func() { s.finish(op, err) }()

	if err = s.lock.Wait(ctx, ActionFileDelete, id); err != nil {
		return err
	}
	defer s.releaseLock()

	return s.NewRecord(domain.FileRecord{ID: id}).Delete(ctx)
}

// DownloadFile streams a file's content to path
func (s *Service) DownloadFile(ctx context.Context, id, path string) (meta *domain.FileRecord, target string, err error) {
	op := s.begin(ActionFileDownload, id, "")
	defer func() { s.finish(op, err) }()

	meta, target, err = s.files.DownloadToPath(ctx, id, path)
	if err != nil {
		return nil, target, err
	}
	op.Name = meta.Name
	if info, statErr := s.local.Fs().Stat(target); statErr == nil {
		op.Bytes = info.Size()
	}
	return meta, target, nil
}

// WatchUpload uploads path on every scheduler tick until ctx is done or
// cfg.MaxRuns is reached. After the first successful run the assigned id is
// reused, so later runs update the same file. Runs whose content hashes the
// same as the last upload are skipped.
func (s *Service) WatchUpload(ctx context.Context, path string, file domain.FileRecord, cfg scheduler.Config) (scheduler.Status, error) {
	sums := checksum.Default()
	var last string

	job := func(ctx context.Context) error {
		content, err := s.local.ReadFile(path)
		if err != nil {
			return err
		}
		sum, err := sums.Bytes(content, checksum.MD5)
		if err != nil {
			return err
		}
		if file.ID != "" && sum == last {
			s.log.Debug("Content unchanged, skipping upload", "path", path, "md5", sum)
			return nil
		}

		rec, _, err := s.UploadFile(ctx, path, file)
		if err != nil {
			return err
		}
		file.ID = rec.File().ID
		last = sum
		return nil
	}

	sched, err := scheduler.New(cfg, job, s.log.With("component", "scheduler"))
	if err != nil {
		return scheduler.Status{}, err
	}
	if err := sched.Run(ctx); err != nil {
		return scheduler.Status{}, err
	}
	return sched.Status(), nil
}

// ReadRange returns the values of a range
func (s *Service) ReadRange(ctx context.Context, spreadsheetID, rng string, opts adapter.ReadOptions) (out *domain.SheetRange, err error) {
	op := s.begin(ActionSheetRead, spreadsheetID, rng)
	defer func() { s.finish(op, err) }()

	return s.sheets.Read(ctx, spreadsheetID, rng, opts)
}

// WriteRange overwrites a range. The configured value input option applies
// when opts names none.
func (s *Service) WriteRange(ctx context.Context, spreadsheetID string, values domain.SheetRange, opts adapter.WriteOptions) (out *adapter.UpdateResult, err error) {
	op := s.begin(ActionSheetWrite, spreadsheetID, values.Range)
	defer func() { s.finish(op, err) }()

	if opts.ValueInputOption == "" {
		opts.ValueInputOption = s.cfg.Sheets.ValueInputOption
	}
	return s.sheets.Write(ctx, spreadsheetID, values, opts)
}

// ClearRange empties a range
func (s *Service) ClearRange(ctx context.Context, spreadsheetID, rng string) (cleared string, err error) {
	op := s.begin(ActionSheetClear, spreadsheetID, rng)
	defer func() { s.finish(op, err) }()

	return s.sheets.Clear(ctx, spreadsheetID, rng)
}

// Spreadsheet returns spreadsheet and tab metadata
func (s *Service) Spreadsheet(ctx context.Context, spreadsheetID string, opts adapter.SpreadsheetOptions) (out *domain.Spreadsheet, err error) {
	op := s.begin(ActionSheetInfo, spreadsheetID, "")
	defer func() { s.finish(op, err) }()

	return s.sheets.Spreadsheet(ctx, spreadsheetID, opts)
}

// History returns journaled operations on target, newest first. An empty
// target lists every target.
func (s *Service) History(target string, limit int) ([]state.Operation, error) {
	if target == "" {
		return s.journal.AllHistory(limit)
	}
	return s.journal.History(target, limit)
}

// Close closes the journal
func (s *Service) Close() error {
	return s.journal.Close()
}

func (s *Service) begin(action, target, name string) *state.Operation {
	return &state.Operation{
		RunID:     s.runID,
		Target:    target,
		Name:      name,
		Action:    action,
		StartTime: time.Now(),
	}
}

// finish journals op. Journal failures are logged, never returned.
func (s *Service) finish(op *state.Operation, err error) {
	op.EndTime = time.Now()
	op.Status = state.StatusSuccess
	if err != nil {
		op.Status = state.StatusFailed
		op.Error = err.Error()
		s.log.Error("Operation failed", "action", op.Action, "target", op.Target, "error", err)
	}
	if op.Target == "" {
		op.Target = "-"
	}
	if jerr := s.journal.Save(op); jerr != nil {
		s.log.Warn("Failed to journal operation", "action", op.Action, "error", jerr)
	}
}

func (s *Service) releaseLock() {
	if err := s.lock.Release(); err != nil {
		s.log.Warn("Failed to release lock", "path", s.lock.Path(), "error", err)
	}
}

// mimeTypeOf guesses from the extension, without parameters
func mimeTypeOf(path string) string {
	t := mime.TypeByExtension(filepath.Ext(path))
	if t == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}
	return mediaType
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ io.Closer = (*Service)(nil)
