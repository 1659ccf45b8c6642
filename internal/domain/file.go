package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MimeTypeJSON is the MIME type that marks a record's content as JSON
const MimeTypeJSON = "application/json"

// MetadataFields is the declared field set requested on every metadata read
var MetadataFields = []string{
	"kind",
	"mimeType",
	"id",
	"name",
	"description",
	"starred",
	"trashed",
	"webViewLink",
	"webContentLink",
	"parents",
	"owners",
	"fileExtension",
}

// Owner is a user listed as owner of a remote file
type Owner struct {
	Kind         string `json:"kind,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
	PermissionID string `json:"permissionId,omitempty"`
	PhotoLink    string `json:"photoLink,omitempty"`
	Me           bool   `json:"me,omitempty"`
}

// FileRecord is the local view of one remote file: its metadata plus content
type FileRecord struct {
	// ID is assigned by the remote store; empty until the first create
	ID string

	// Name is human assigned and not guaranteed unique remotely
	Name string

	Kind           string
	MimeType       string
	Description    string
	Starred        bool
	Trashed        bool
	WebViewLink    string
	WebContentLink string
	FileExtension  string

	// Parents lists the folders the remote store reports for the file
	Parents []string

	Owners []Owner

	// Parent is the single folder the file should live in. Create places the
	// file there and Update reconciles Parents to it.
	Parent string

	// Content is the raw payload; see IsJSON and DecodeContent
	Content []byte
}

// HasIdentity reports whether the record carries an id or a name
func (r *FileRecord) HasIdentity() bool {
	return r.ID != "" || r.Name != ""
}

// IsJSON reports whether the record's content is JSON typed
func (r *FileRecord) IsJSON() bool {
	return r.MimeType == MimeTypeJSON || strings.EqualFold(r.FileExtension, "json")
}

// DecodeContent unmarshals JSON content into v
func (r *FileRecord) DecodeContent(v any) error {
	if len(r.Content) == 0 {
		return fmt.Errorf("%w: record %q has no content", ErrPrecondition, r.Name)
	}
	return json.Unmarshal(r.Content, v)
}

// MergeMetadata copies the declared metadata fields from src. Content and
// Parent are left alone. If no Parent was declared yet it is taken from the
// first reported parent so a later update does not reparent by accident.
func (r *FileRecord) MergeMetadata(src *FileRecord) {
	if src == nil {
		return
	}
	r.Kind = src.Kind
	r.MimeType = src.MimeType
	r.ID = src.ID
	r.Name = src.Name
	r.Description = src.Description
	r.Starred = src.Starred
	r.Trashed = src.Trashed
	r.WebViewLink = src.WebViewLink
	r.WebContentLink = src.WebContentLink
	r.Parents = append([]string(nil), src.Parents...)
	r.Owners = append([]Owner(nil), src.Owners...)
	r.FileExtension = src.FileExtension

	if r.Parent == "" && len(r.Parents) > 0 {
		r.Parent = r.Parents[0]
	}
}

// MergeRemote copies metadata and content from src
func (r *FileRecord) MergeRemote(src *FileRecord) {
	if src == nil {
		return
	}
	r.MergeMetadata(src)
	r.Content = append([]byte(nil), src.Content...)
}

// Metadata returns a copy of the record without its content
func (r *FileRecord) Metadata() FileRecord {
	m := *r
	m.Parents = append([]string(nil), r.Parents...)
	m.Owners = append([]Owner(nil), r.Owners...)
	m.Content = nil
	return m
}

// DerivedName builds the default local filename for a part of the record,
// e.g. "report.json" with suffix "_metadata" gives "report_metadata.json".
func (r *FileRecord) DerivedName(suffix string) string {
	if r.FileExtension == "" {
		return r.Name + suffix
	}
	ext := "." + r.FileExtension
	base, _, _ := strings.Cut(r.Name, ext)
	return base + suffix + ext
}

// fileRecordJSON is the persisted form of a FileRecord
type fileRecordJSON struct {
	Kind           string          `json:"kind,omitempty"`
	MimeType       string          `json:"mimeType,omitempty"`
	ID             string          `json:"id,omitempty"`
	Name           string          `json:"name,omitempty"`
	Description    string          `json:"description,omitempty"`
	Starred        bool            `json:"starred"`
	Trashed        bool            `json:"trashed"`
	WebViewLink    string          `json:"webViewLink,omitempty"`
	WebContentLink string          `json:"webContentLink,omitempty"`
	Parents        []string        `json:"parents,omitempty"`
	Owners         []Owner         `json:"owners,omitempty"`
	FileExtension  string          `json:"fileExtension,omitempty"`
	Parent         string          `json:"parent,omitempty"`
	Content        json.RawMessage `json:"content,omitempty"`
	ContentBase64  string          `json:"contentBase64,omitempty"`
}

// MarshalJSON embeds valid JSON content as a structured value, other UTF-8
// content of non-JSON records as a string and anything else as base64.
// JSON-typed content that does not parse goes to base64 so UnmarshalJSON
// never mistakes a quoted string for the raw payload.
func (r FileRecord) MarshalJSON() ([]byte, error) {
	out := fileRecordJSON{
		Kind:           r.Kind,
		MimeType:       r.MimeType,
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Starred:        r.Starred,
		Trashed:        r.Trashed,
		WebViewLink:    r.WebViewLink,
		WebContentLink: r.WebContentLink,
		Parents:        r.Parents,
		Owners:         r.Owners,
		FileExtension:  r.FileExtension,
		Parent:         r.Parent,
	}

	switch {
	case len(r.Content) == 0:
	case r.IsJSON() && json.Valid(r.Content):
		out.Content = json.RawMessage(r.Content)
	case !r.IsJSON() && utf8.Valid(r.Content):
		s, err := json.Marshal(string(r.Content))
		if err != nil {
			return nil, err
		}
		out.Content = s
	default:
		out.ContentBase64 = base64.StdEncoding.EncodeToString(r.Content)
	}

	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON
func (r *FileRecord) UnmarshalJSON(data []byte) error {
	var in fileRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*r = FileRecord{
		Kind:           in.Kind,
		MimeType:       in.MimeType,
		ID:             in.ID,
		Name:           in.Name,
		Description:    in.Description,
		Starred:        in.Starred,
		Trashed:        in.Trashed,
		WebViewLink:    in.WebViewLink,
		WebContentLink: in.WebContentLink,
		Parents:        in.Parents,
		Owners:         in.Owners,
		FileExtension:  in.FileExtension,
		Parent:         in.Parent,
	}

	switch {
	case in.ContentBase64 != "":
		content, err := base64.StdEncoding.DecodeString(in.ContentBase64)
		if err != nil {
			return fmt.Errorf("decode content: %w", err)
		}
		r.Content = content
	case len(in.Content) == 0:
	case r.IsJSON():
		r.Content = []byte(in.Content)
	default:
		var s string
		if err := json.Unmarshal(in.Content, &s); err != nil {
			// not a string: keep the structured value as is
			r.Content = []byte(in.Content)
			return nil
		}
		r.Content = []byte(s)
	}

	return nil
}
