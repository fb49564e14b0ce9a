package drivegate

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// TransferRecord is one metadata index entry, created once per successful
// upload and never mutated in place.
type TransferRecord struct {
	ID         uuid.UUID `json:"id"`
	StorageID  string    `json:"storage_id"`
	Name       string    `json:"name"`
	Caption    string    `json:"caption"`
	UploadedBy string    `json:"uploaded_by"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UploadRequest describes an inbound upload before its bytes are streamed
// to the storage provider.
type UploadRequest struct {
	Name       string
	Caption    string
	MimeType   string
	UploadedBy string
}

// StoredObject is the provider-side view of an object.
type StoredObject struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"size,string"`
}

// ListSource selects where GET /list reads from. The two modes are
// mutually exclusive per deployment.
type ListSource string

const (
	// ListFromIndex serves listings from the local metadata index.
	ListFromIndex ListSource = "index"
	// ListFromProvider queries the storage provider's list call directly.
	ListFromProvider ListSource = "provider"
)

func (s ListSource) IsValid() bool {
	switch s {
	case ListFromIndex, ListFromProvider:
		return true
	default:
		return false
	}
}

func ParseListSource(s string) (ListSource, error) {
	source := ListSource(s)
	if !source.IsValid() {
		return "", fmt.Errorf("invalid list source: %s (valid sources: index, provider)", s)
	}
	return source, nil
}

// Tables holds configurable table names for metadata storage.
// This allows multi-tenant deployments to use different table names.
type Tables struct {
	Transfers string `mapstructure:"transfers"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Transfers == "" {
		return errors.New("validate tables: transfers table name cannot be empty")
	}

	if !IsValidTableName(t.Transfers) {
		return fmt.Errorf("validate tables: invalid transfers table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Transfers)
	}

	return nil
}
