package gauth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Ning0612/drivesync/internal/domain"
)

const (
	// ScopeDrive grants full access to the caller's Drive files
	ScopeDrive = drive.DriveScope
	// ScopeSheets grants full access to spreadsheets
	ScopeSheets = sheets.SpreadsheetsScope
)

// Credentials is a service account key pair
type Credentials struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// LoadCredentials reads a service account key file
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrCredentialsInvalid, path, err)
	}
	return ParseCredentials(data)
}

// ParseCredentials parses and validates a service account key
func ParseCredentials(data []byte) (*Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCredentialsInvalid, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the fields needed to mint a token
func (c *Credentials) Validate() error {
	if c.ClientEmail == "" {
		return fmt.Errorf("%w: client_email is empty", domain.ErrCredentialsInvalid)
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("%w: private_key is empty", domain.ErrCredentialsInvalid)
	}
	if c.Type != "" && c.Type != "service_account" {
		return fmt.Errorf("%w: unsupported credential type %q", domain.ErrCredentialsInvalid, c.Type)
	}
	return nil
}

// JWTConfig returns the two legged OAuth config for the given scopes
func (c *Credentials) JWTConfig(scopes ...string) *jwt.Config {
	tokenURL := c.TokenURI
	if tokenURL == "" {
		tokenURL = google.JWTTokenURL
	}
	return &jwt.Config{
		Email:        c.ClientEmail,
		PrivateKey:   []byte(c.PrivateKey),
		PrivateKeyID: c.PrivateKeyID,
		Scopes:       scopes,
		TokenURL:     tokenURL,
	}
}

// ClientOption returns an option that authorizes API calls with a bearer
// token scoped to scopes. Tokens are minted lazily on first use.
func (c *Credentials) ClientOption(ctx context.Context, scopes ...string) option.ClientOption {
	return option.WithTokenSource(c.JWTConfig(scopes...).TokenSource(ctx))
}
