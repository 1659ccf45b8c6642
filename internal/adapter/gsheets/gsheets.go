package gsheets

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Ning0612/drivesync/internal/adapter"
	"github.com/Ning0612/drivesync/internal/domain"
	"github.com/Ning0612/drivesync/internal/logger"
)

// DefaultValueInputOption stores written values as given, without parsing
const DefaultValueInputOption = "RAW"

const tracerName = "github.com/Ning0612/drivesync/internal/adapter/gsheets"

// SheetStore implements adapter.SheetStore on the Sheets v4 API.
// Every call is an independent request.
type SheetStore struct {
	service *sheets.Service
	log     logger.Logger
	tracer  trace.Tracer
}

type options struct {
	client []option.ClientOption
	log    logger.Logger
}

// Option configures a SheetStore
type Option func(*options)

// WithClientOptions passes options to the Sheets client
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.client = append(o.client, opts...) }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New builds the Sheets client
func New(ctx context.Context, opts ...Option) (*SheetStore, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	service, err := sheets.NewService(ctx, o.client...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}

	log := o.log
	if log == nil {
		log = &logger.NullLogger{}
	}
	return &SheetStore{service: service, log: log, tracer: otel.Tracer(tracerName)}, nil
}

func (s *SheetStore) ready() error {
	if s == nil || s.service == nil {
		return domain.ErrAccessNotGranted
	}
	return nil
}

// Read returns the values in rng. Options are forwarded as given.
func (s *SheetStore) Read(ctx context.Context, spreadsheetID, rng string, opts adapter.ReadOptions) (out *domain.SheetRange, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.start(ctx, "gsheets.read", spreadsheetID, rng)
	defer func() { adapter.EndSpan(span, err) }()

	call := s.service.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx)
	if opts.MajorDimension != "" {
		call = call.MajorDimension(opts.MajorDimension)
	}
	if opts.ValueRenderOption != "" {
		call = call.ValueRenderOption(opts.ValueRenderOption)
	}
	if opts.DateTimeRenderOption != "" {
		call = call.DateTimeRenderOption(opts.DateTimeRenderOption)
	}

	vr, err := call.Do()
	if err != nil {
		return nil, adapter.MapError(err)
	}

	s.log.Debug("Read range", "spreadsheet", spreadsheetID, "range", vr.Range, "rows", len(vr.Values))
	return &domain.SheetRange{
		Range:          vr.Range,
		MajorDimension: vr.MajorDimension,
		Values:         vr.Values,
	}, nil
}

// Write replaces the values at values.Range
func (s *SheetStore) Write(ctx context.Context, spreadsheetID string, values domain.SheetRange, opts adapter.WriteOptions) (out *adapter.UpdateResult, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if values.Range == "" {
		return nil, fmt.Errorf("%w: write needs a range", domain.ErrPrecondition)
	}
	ctx, span := s.start(ctx, "gsheets.write", spreadsheetID, values.Range)
	defer func() { adapter.EndSpan(span, err) }()

	input := opts.ValueInputOption
	if input == "" {
		input = DefaultValueInputOption
	}

	resp, err := s.service.Spreadsheets.Values.Update(spreadsheetID, values.Range, &sheets.ValueRange{
		Range:          values.Range,
		MajorDimension: values.MajorDimension,
		Values:         values.Values,
	}).Context(ctx).ValueInputOption(input).Do()
	if err != nil {
		return nil, adapter.MapError(err)
	}

	out = &adapter.UpdateResult{
		SpreadsheetID:  resp.SpreadsheetId,
		UpdatedRange:   resp.UpdatedRange,
		UpdatedRows:    resp.UpdatedRows,
		UpdatedColumns: resp.UpdatedColumns,
		UpdatedCells:   resp.UpdatedCells,
	}
	s.log.Info("Wrote range", "spreadsheet", spreadsheetID, "range", out.UpdatedRange, "cells", out.UpdatedCells)
	return out, nil
}

// Clear empties rng and returns the range the API reports as cleared
func (s *SheetStore) Clear(ctx context.Context, spreadsheetID, rng string) (cleared string, err error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	ctx, span := s.start(ctx, "gsheets.clear", spreadsheetID, rng)
	defer func() { adapter.EndSpan(span, err) }()

	resp, err := s.service.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return "", adapter.MapError(err)
	}

	s.log.Info("Cleared range", "spreadsheet", spreadsheetID, "range", resp.ClearedRange)
	return resp.ClearedRange, nil
}

// Spreadsheet returns the spreadsheet's properties and its sheets
func (s *SheetStore) Spreadsheet(ctx context.Context, spreadsheetID string, opts adapter.SpreadsheetOptions) (out *domain.Spreadsheet, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ctx, span := s.start(ctx, "gsheets.spreadsheet", spreadsheetID, "")
	defer func() { adapter.EndSpan(span, err) }()

	call := s.service.Spreadsheets.Get(spreadsheetID).Context(ctx)
	if len(opts.Ranges) > 0 {
		call = call.Ranges(opts.Ranges...)
	}
	if opts.IncludeGridData {
		call = call.IncludeGridData(true)
	}

	ss, err := call.Do()
	if err != nil {
		return nil, adapter.MapError(err)
	}
	return fromSpreadsheet(ss), nil
}

func fromSpreadsheet(ss *sheets.Spreadsheet) *domain.Spreadsheet {
	out := &domain.Spreadsheet{
		ID:  ss.SpreadsheetId,
		URL: ss.SpreadsheetUrl,
	}
	if p := ss.Properties; p != nil {
		out.Title = p.Title
		out.Locale = p.Locale
		out.TimeZone = p.TimeZone
	}
	for _, sh := range ss.Sheets {
		if sh == nil || sh.Properties == nil {
			continue
		}
		p := sh.Properties
		sheet := domain.Sheet{
			SheetID: p.SheetId,
			Title:   p.Title,
			Index:   p.Index,
		}
		if g := p.GridProperties; g != nil {
			sheet.RowCount = g.RowCount
			sheet.ColumnCount = g.ColumnCount
		}
		out.Sheets = append(out.Sheets, sheet)
	}
	return out
}

func (s *SheetStore) start(ctx context.Context, name, spreadsheetID, rng string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("sheets.spreadsheet_id", spreadsheetID)}
	if rng != "" {
		attrs = append(attrs, attribute.String("sheets.range", rng))
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Compile-time interface check
var _ adapter.SheetStore = (*SheetStore)(nil)
