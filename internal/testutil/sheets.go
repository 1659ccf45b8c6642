package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"google.golang.org/api/sheets/v4"
)

// SheetsServer is an in-process fake of the Sheets v4 values and
// spreadsheets.get endpoints. Values are stored per exact range string.
type SheetsServer struct {
	*httptest.Server

	mu           sync.Mutex
	spreadsheets map[string]*sheets.Spreadsheet
	values       map[string]map[string][][]interface{}
	requests     []Request
	failures     []failRule
}

// NewSheetsServer starts a fake Sheets server. Close it when done.
func NewSheetsServer() *SheetsServer {
	s := &SheetsServer{
		spreadsheets: make(map[string]*sheets.Spreadsheet),
		values:       make(map[string]map[string][][]interface{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Endpoint is the base URL to pass to option.WithEndpoint
func (s *SheetsServer) Endpoint() string {
	return s.URL + "/"
}

// AddSpreadsheet seeds a spreadsheet with one sheet per title
func (s *SheetsServer) AddSpreadsheet(id, title string, sheetTitles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss := &sheets.Spreadsheet{
		SpreadsheetId:  id,
		SpreadsheetUrl: "https://docs.google.com/spreadsheets/d/" + id + "/edit",
		Properties: &sheets.SpreadsheetProperties{
			Title:    title,
			Locale:   "en_US",
			TimeZone: "Etc/GMT",
		},
	}
	for i, t := range sheetTitles {
		ss.Sheets = append(ss.Sheets, &sheets.Sheet{
			Properties: &sheets.SheetProperties{
				SheetId: int64(i),
				Title:   t,
				Index:   int64(i),
				GridProperties: &sheets.GridProperties{
					RowCount:    1000,
					ColumnCount: 26,
				},
			},
		})
	}
	s.spreadsheets[id] = ss
	s.values[id] = make(map[string][][]interface{})
}

// SetValues seeds the values of a range
func (s *SheetsServer) SetValues(id, rng string, values [][]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[id] == nil {
		s.values[id] = make(map[string][][]interface{})
	}
	s.values[id][rng] = values
}

// Values returns the stored values of a range
func (s *SheetsServer) Values(id, rng string) [][]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[id][rng]
}

// FailWhen makes every request matching match fail with a Sheets style error
func (s *SheetsServer) FailWhen(match func(Request) bool, status int, reason, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failRule{match: match, status: status, reason: reason, message: message})
}

// Requests returns the calls seen so far
func (s *SheetsServer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent call
func (s *SheetsServer) LastRequest() (Request, bool) {
	reqs := s.Requests()
	if len(reqs) == 0 {
		return Request{}, false
	}
	return reqs[len(reqs)-1], true
}

func (s *SheetsServer) handle(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/")
	req := Request{Method: r.Method, Path: p, Query: r.URL.Query()}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	for _, f := range s.failures {
		if f.match(req) {
			s.mu.Unlock()
			writeAPIError(w, f.status, f.reason, f.message)
			return
		}
	}
	s.mu.Unlock()

	id, rest, hasValues := strings.Cut(p, "/values/")

	s.mu.Lock()
	ss, ok := s.spreadsheets[id]
	s.mu.Unlock()
	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "Requested entity was not found.")
		return
	}

	switch {
	case !hasValues && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, ss)
	case hasValues && r.Method == http.MethodGet:
		s.getValues(w, r, id, rest)
	case hasValues && r.Method == http.MethodPut:
		s.putValues(w, r, id, rest)
	case hasValues && r.Method == http.MethodPost && strings.HasSuffix(rest, ":clear"):
		s.clearValues(w, id, strings.TrimSuffix(rest, ":clear"))
	default:
		writeAPIError(w, http.StatusNotFound, "notFound", "unknown route "+r.Method+" "+p)
	}
}

func (s *SheetsServer) getValues(w http.ResponseWriter, r *http.Request, id, rng string) {
	dim := r.URL.Query().Get("majorDimension")
	if dim == "" {
		dim = "ROWS"
	}

	s.mu.Lock()
	values := s.values[id][rng]
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, &sheets.ValueRange{
		Range:          rng,
		MajorDimension: dim,
		Values:         values,
	})
}

func (s *SheetsServer) putValues(w http.ResponseWriter, r *http.Request, id, rng string) {
	var vr sheets.ValueRange
	if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
		writeAPIError(w, http.StatusBadRequest, "badRequest", err.Error())
		return
	}
	if r.URL.Query().Get("valueInputOption") == "" {
		writeAPIError(w, http.StatusBadRequest, "badRequest", "'valueInputOption' is required but not specified")
		return
	}

	s.mu.Lock()
	s.values[id][rng] = vr.Values
	s.mu.Unlock()

	var cols, cells int64
	for _, row := range vr.Values {
		if int64(len(row)) > cols {
			cols = int64(len(row))
		}
		cells += int64(len(row))
	}

	writeJSON(w, http.StatusOK, &sheets.UpdateValuesResponse{
		SpreadsheetId:  id,
		UpdatedRange:   rng,
		UpdatedRows:    int64(len(vr.Values)),
		UpdatedColumns: cols,
		UpdatedCells:   cells,
	})
}

func (s *SheetsServer) clearValues(w http.ResponseWriter, id, rng string) {
	s.mu.Lock()
	delete(s.values[id], rng)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, &sheets.ClearValuesResponse{
		SpreadsheetId: id,
		ClearedRange:  rng,
	})
}
