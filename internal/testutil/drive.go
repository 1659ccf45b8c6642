package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
)

// RootFolderID is the parent assigned to files created without one
const RootFolderID = "root-folder"

// Request is one call seen by a fake server
type Request struct {
	Method string
	// Path is normalized: API prefixes such as /upload and /drive/v3 are stripped
	Path   string
	Query  url.Values
	Upload bool
}

type failRule struct {
	match   func(Request) bool
	status  int
	reason  string
	message string
}

// DriveFile is a file held by the fake Drive server
type DriveFile struct {
	Meta    drive.File
	Content []byte
}

// DriveServer is an in-process fake of the Drive v3 REST API covering the
// calls the file store makes: get (metadata and media), list by name,
// multipart create/update, parent moves and delete.
type DriveServer struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string]*DriveFile
	nextID   int
	requests []Request
	failures []failRule
}

// NewDriveServer starts a fake Drive server. Close it when done.
func NewDriveServer() *DriveServer {
	s := &DriveServer{files: make(map[string]*DriveFile)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Endpoint is the base URL to pass to option.WithEndpoint
func (s *DriveServer) Endpoint() string {
	return s.URL + "/drive/v3/"
}

// AddFile seeds a file and returns its id. An empty id is generated.
func (s *DriveServer) AddFile(meta drive.File, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meta.Id == "" {
		meta.Id = s.newIDLocked()
	}
	s.fillDefaultsLocked(&meta)
	s.files[meta.Id] = &DriveFile{Meta: meta, Content: append([]byte(nil), content...)}
	return meta.Id
}

// File returns a copy of a stored file
func (s *DriveServer) File(id string) (DriveFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return DriveFile{}, false
	}
	cp := *f
	cp.Meta.Parents = append([]string(nil), f.Meta.Parents...)
	cp.Content = append([]byte(nil), f.Content...)
	return cp, true
}

// FailWhen makes every request matching match fail with a Drive style error
func (s *DriveServer) FailWhen(match func(Request) bool, status int, reason, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failRule{match: match, status: status, reason: reason, message: message})
}

// Requests returns the calls seen so far
func (s *DriveServer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CountRequests counts calls with the given method whose path starts with prefix
func (s *DriveServer) CountRequests(method, prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log
func (s *DriveServer) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// IsReparent reports whether a request is a parent move
func IsReparent(r Request) bool {
	return r.Method == http.MethodPatch && (r.Query.Get("addParents") != "" || r.Query.Get("removeParents") != "")
}

func (s *DriveServer) handle(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	var upload bool
	if i := strings.Index(p, "/files"); i >= 0 {
		upload = strings.Contains(p[:i], "/upload")
		p = p[i:]
	}

	req := Request{Method: r.Method, Path: p, Query: r.URL.Query(), Upload: upload}

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

	id := strings.TrimPrefix(p, "/files/")
	switch {
	case p == "/files" && r.Method == http.MethodGet:
		s.list(w, r)
	case p == "/files" && r.Method == http.MethodPost:
		s.create(w, r)
	case strings.HasPrefix(p, "/files/") && r.Method == http.MethodGet:
		s.get(w, r, id)
	case strings.HasPrefix(p, "/files/") && r.Method == http.MethodPatch:
		s.update(w, r, id)
	case strings.HasPrefix(p, "/files/") && r.Method == http.MethodDelete:
		s.delete(w, id)
	default:
		writeAPIError(w, http.StatusNotFound, "notFound", "unknown route "+r.Method+" "+p)
	}
}

var nameQuery = regexp.MustCompile(`name\s*=\s*'((?:[^'\\]|\\.)*)'`)

func (s *DriveServer) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	m := nameQuery.FindStringSubmatch(q)
	if m == nil {
		writeAPIError(w, http.StatusBadRequest, "invalid", "Invalid Value")
		return
	}
	name := strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(m[1])

	pageSize := 100
	if v := r.URL.Query().Get("pageSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}

	s.mu.Lock()
	var ids []string
	for id, f := range s.files {
		if f.Meta.Name == name {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	result := &drive.FileList{Kind: "drive#fileList"}
	for i, id := range ids {
		if i >= pageSize {
			break
		}
		result.Files = append(result.Files, &drive.File{Id: id})
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *DriveServer) get(w http.ResponseWriter, r *http.Request, id string) {
	s.mu.Lock()
	f, ok := s.files[id]
	var meta drive.File
	var content []byte
	if ok {
		meta = f.Meta
		content = append([]byte(nil), f.Content...)
	}
	s.mu.Unlock()

	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "File not found: "+id+".")
		return
	}

	if r.URL.Query().Get("alt") == "media" {
		ct := meta.MimeType
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		w.Write(content)
		return
	}

	if r.URL.Query().Get("fields") == "id" {
		writeJSON(w, http.StatusOK, &drive.File{Id: meta.Id})
		return
	}
	writeJSON(w, http.StatusOK, &meta)
}

func (s *DriveServer) create(w http.ResponseWriter, r *http.Request) {
	meta, content, _, err := readUpload(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "badRequest", err.Error())
		return
	}

	s.mu.Lock()
	meta.Id = s.newIDLocked()
	s.fillDefaultsLocked(meta)
	s.files[meta.Id] = &DriveFile{Meta: *meta, Content: content}
	out := *meta
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, &out)
}

func (s *DriveServer) update(w http.ResponseWriter, r *http.Request, id string) {
	patch, content, fields, err := readUpload(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "badRequest", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "File not found: "+id+".")
		return
	}

	if patch.Name != "" {
		f.Meta.Name = patch.Name
		f.Meta.FileExtension = strings.TrimPrefix(path.Ext(patch.Name), ".")
	}
	if patch.MimeType != "" {
		f.Meta.MimeType = patch.MimeType
	}
	if fields["description"] {
		f.Meta.Description = patch.Description
	}
	if fields["starred"] {
		f.Meta.Starred = patch.Starred
	}
	if content != nil {
		f.Content = content
	}

	q := r.URL.Query()
	if remove := q.Get("removeParents"); remove != "" {
		drop := make(map[string]bool)
		for _, p := range strings.Split(remove, ",") {
			drop[p] = true
		}
		var kept []string
		for _, p := range f.Meta.Parents {
			if !drop[p] {
				kept = append(kept, p)
			}
		}
		f.Meta.Parents = kept
	}
	if add := q.Get("addParents"); add != "" {
		f.Meta.Parents = append(f.Meta.Parents, strings.Split(add, ",")...)
	}

	out := f.Meta
	writeJSON(w, http.StatusOK, &out)
}

func (s *DriveServer) delete(w http.ResponseWriter, id string) {
	s.mu.Lock()
	_, ok := s.files[id]
	delete(s.files, id)
	s.mu.Unlock()

	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "File not found: "+id+".")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *DriveServer) newIDLocked() string {
	s.nextID++
	return fmt.Sprintf("file-%d", s.nextID)
}

func (s *DriveServer) fillDefaultsLocked(meta *drive.File) {
	meta.Kind = "drive#file"
	if len(meta.Parents) == 0 {
		meta.Parents = []string{RootFolderID}
	}
	if meta.FileExtension == "" {
		meta.FileExtension = strings.TrimPrefix(path.Ext(meta.Name), ".")
	}
	meta.WebViewLink = "https://drive.google.com/file/d/" + meta.Id + "/view"
	meta.WebContentLink = "https://drive.google.com/uc?id=" + meta.Id + "&export=download"
	if len(meta.Owners) == 0 {
		meta.Owners = []*drive.User{{
			Kind:         "drive#user",
			DisplayName:  "robot",
			EmailAddress: "robot@project.iam.gserviceaccount.com",
			PermissionId: "perm-1",
			Me:           true,
		}}
	}
}

// readUpload decodes a JSON or multipart/related request body into file
// metadata and optional media. fields reports which metadata keys were sent.
func readUpload(r *http.Request) (*drive.File, []byte, map[string]bool, error) {
	meta := &drive.File{}
	fields := make(map[string]bool)

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, nil, nil, err
		}
		if len(body) > 0 {
			if err := decodeMeta(body, meta, fields); err != nil {
				return nil, nil, nil, err
			}
		}
		return meta, nil, fields, nil
	}

	mr := multipart.NewReader(r.Body, params["boundary"])
	metaPart, err := mr.NextPart()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read metadata part: %w", err)
	}
	body, err := io.ReadAll(metaPart)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := decodeMeta(body, meta, fields); err != nil {
		return nil, nil, nil, err
	}

	mediaPart, err := mr.NextPart()
	if err == io.EOF {
		return meta, nil, fields, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read media part: %w", err)
	}
	content, err := io.ReadAll(mediaPart)
	if err != nil {
		return nil, nil, nil, err
	}
	if content == nil {
		content = []byte{}
	}
	return meta, content, fields, nil
}

func decodeMeta(body []byte, meta *drive.File, fields map[string]bool) error {
	if err := json.Unmarshal(body, meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	for k := range raw {
		fields[k] = true
	}
	return nil
}

type apiErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type apiErrorBody struct {
	Error struct {
		Code    int            `json:"code"`
		Message string         `json:"message"`
		Errors  []apiErrorItem `json:"errors,omitempty"`
	} `json:"error"`
}

// writeAPIError writes a Google style JSON error; an empty reason leaves the
// errors list out
func writeAPIError(w http.ResponseWriter, status int, reason, message string) {
	var body apiErrorBody
	body.Error.Code = status
	body.Error.Message = message
	if reason != "" {
		body.Error.Errors = []apiErrorItem{{Domain: "global", Reason: reason, Message: message}}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
