package inventory

import (
	"strings"
	"time"
)

// Credentials carries the optional token used for the authenticated listing.
type Credentials struct {
	Token string
}

// Present reports whether a non-empty token is available.
func (credentials Credentials) Present() bool {
	return len(strings.TrimSpace(credentials.Token)) > 0
}

// SourceName labels the listing surface a record or error came from.
type SourceName string

// Listing sources.
const (
	SourcePublic        SourceName = "public"
	SourceAuthenticated SourceName = "authenticated"
)

// ErrorKind classifies an enumeration problem.
type ErrorKind string

// Enumeration error kinds.
const (
	ErrorKindTransient         ErrorKind = "transient_network"
	ErrorKindAuth              ErrorKind = "auth"
	ErrorKindRateLimit         ErrorKind = "rate_limit"
	ErrorKindMalformed         ErrorKind = "malformed_response"
	ErrorKindUnexpectedStatus  ErrorKind = "unexpected_status"
	ErrorKindPageLimit         ErrorKind = "page_limit"
	ErrorKindMissingCredential ErrorKind = "missing_credential"
	ErrorKindUnknown           ErrorKind = "unknown"
)

// RepositoryRecord is the normalized view of one remote repository.
type RepositoryRecord struct {
	Name           string     `json:"name"`
	URL            string     `json:"url"`
	IsPrivate      bool       `json:"is_private"`
	IsArchived     bool       `json:"is_archived"`
	IsFork         bool       `json:"is_fork"`
	DefaultBranch  string     `json:"default_branch"`
	Description    string     `json:"description"`
	LastActivityAt *time.Time `json:"last_activity_at"`
	SizeKB         int        `json:"size_kb"`
	OpenIssues     int        `json:"open_issues"`
}

// EnumerationError records a problem observed while listing one source.
type EnumerationError struct {
	Source  SourceName `json:"source"`
	Kind    ErrorKind  `json:"kind"`
	Message string     `json:"message"`
}

// EnumerationSummary counts what each source contributed.
type EnumerationSummary struct {
	Owner              string `json:"owner"`
	TokenPresent       bool   `json:"token_present"`
	PublicCount        int    `json:"public_count"`
	AuthenticatedCount int    `json:"authenticated_count"`
	MergedTotal        int    `json:"merged_total"`
}

// EnumerationResult is the immutable snapshot handed to downstream stages.
type EnumerationResult struct {
	Records []RepositoryRecord
	Errors  []EnumerationError
	Summary EnumerationSummary
}
