package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repogov/internal/githubapi"
)

const (
	listerNotConfiguredMessageConstant  = "repository lister not configured"
	missingCredentialMessageConstant    = "no token provided; authenticated listing skipped"
	invalidTimestampMessageTemplate     = "repository %s has an unparseable activity timestamp %q"
	foreignOwnerMessageTemplate         = "repository %s belongs to %s, not %s; skipped"
	logMessageEnumerationStarted        = "repository enumeration started"
	logMessageSourceCompleted           = "repository source completed"
	logMessageSourceFailed              = "repository source stopped early"
	logMessageEnumerationCompleted      = "repository enumeration completed"
	logFieldOwnerConstant               = "owner"
	logFieldSourceConstant              = "source"
	logFieldRepositoriesConstant        = "repositories"
	logFieldPagesConstant               = "pages"
	logFieldErrorsConstant              = "errors"
	logFieldTokenPresentConstant        = "token_present"
	logFieldMergedTotalConstant         = "merged_total"
	enumerationConcurrencyLimitConstant = 2
)

// ErrListerNotConfigured indicates the source was constructed without a lister.
var ErrListerNotConfigured = errors.New(listerNotConfiguredMessageConstant)

// RepositoryLister lists repositories from one listing endpoint.
type RepositoryLister interface {
	ListRepositories(executionContext context.Context, endpoint githubapi.ListingEndpoint, owner string, token string) (githubapi.ListingResult, error)
}

// Source enumerates an owner's repositories across the public and authenticated listings.
type Source struct {
	logger *zap.Logger
	lister RepositoryLister
}

type sourceOutcome struct {
	records []RepositoryRecord
	errors  []EnumerationError
}

// NewSource constructs a Source.
func NewSource(logger *zap.Logger, lister RepositoryLister) (*Source, error) {
	if lister == nil {
		return nil, ErrListerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{logger: logger, lister: lister}, nil
}

// Enumerate lists both sources concurrently and merges them by name, with the authenticated
// record replacing the public one. Source failures are captured in the result and never
// returned as errors, so callers always receive a snapshot.
func (source *Source) Enumerate(executionContext context.Context, owner string, credentials Credentials) EnumerationResult {
	trimmedOwner := strings.TrimSpace(owner)
	tokenPresent := credentials.Present()
	source.logger.Info(logMessageEnumerationStarted, zap.String(logFieldOwnerConstant, trimmedOwner), zap.Bool(logFieldTokenPresentConstant, tokenPresent))

	var publicOutcome sourceOutcome
	var authenticatedOutcome sourceOutcome

	var group errgroup.Group
	group.SetLimit(enumerationConcurrencyLimitConstant)
	group.Go(func() error {
		publicOutcome = source.enumerateSource(executionContext, SourcePublic, trimmedOwner, "")
		return nil
	})
	if tokenPresent {
		group.Go(func() error {
			authenticatedOutcome = source.enumerateSource(executionContext, SourceAuthenticated, trimmedOwner, strings.TrimSpace(credentials.Token))
			return nil
		})
	} else {
		authenticatedOutcome.errors = []EnumerationError{{
			Source:  SourceAuthenticated,
			Kind:    ErrorKindMissingCredential,
			Message: missingCredentialMessageConstant,
		}}
	}
	_ = group.Wait()

	records := MergeRecords(publicOutcome.records, authenticatedOutcome.records)
	enumerationErrors := append(append([]EnumerationError{}, publicOutcome.errors...), authenticatedOutcome.errors...)

	result := EnumerationResult{
		Records: records,
		Errors:  enumerationErrors,
		Summary: EnumerationSummary{
			Owner:              trimmedOwner,
			TokenPresent:       tokenPresent,
			PublicCount:        len(publicOutcome.records),
			AuthenticatedCount: len(authenticatedOutcome.records),
			MergedTotal:        len(records),
		},
	}

	source.logger.Info(logMessageEnumerationCompleted,
		zap.String(logFieldOwnerConstant, trimmedOwner),
		zap.Int(logFieldMergedTotalConstant, len(records)),
		zap.Int(logFieldErrorsConstant, len(enumerationErrors)),
	)
	return result
}

func (source *Source) enumerateSource(executionContext context.Context, sourceName SourceName, owner string, token string) sourceOutcome {
	endpoint := githubapi.ListingEndpointPublic
	if sourceName == SourceAuthenticated {
		endpoint = githubapi.ListingEndpointAuthenticated
	}

	listing, listingError := source.lister.ListRepositories(executionContext, endpoint, owner, token)

	outcome := sourceOutcome{}
	for _, pageError := range listing.PageErrors {
		outcome.errors = append(outcome.errors, NewEnumerationError(sourceName, pageError))
	}
	if listingError != nil {
		outcome.errors = append(outcome.errors, NewEnumerationError(sourceName, listingError))
		source.logger.Warn(logMessageSourceFailed, zap.String(logFieldSourceConstant, string(sourceName)), zap.Error(listingError))
	}

	for _, payload := range listing.Repositories {
		if sourceName == SourceAuthenticated && !ownedBy(payload, owner) {
			outcome.errors = append(outcome.errors, EnumerationError{
				Source:  sourceName,
				Kind:    ErrorKindMalformed,
				Message: fmt.Sprintf(foreignOwnerMessageTemplate, payload.Name, payload.Owner.Login, owner),
			})
			continue
		}
		record, conversionError := convertPayload(payload)
		if conversionError != nil {
			outcome.errors = append(outcome.errors, EnumerationError{Source: sourceName, Kind: ErrorKindMalformed, Message: conversionError.Error()})
		}
		outcome.records = append(outcome.records, record)
	}

	source.logger.Info(logMessageSourceCompleted,
		zap.String(logFieldSourceConstant, string(sourceName)),
		zap.Int(logFieldRepositoriesConstant, len(outcome.records)),
		zap.Int(logFieldPagesConstant, listing.Pages),
		zap.Int(logFieldErrorsConstant, len(outcome.errors)),
	)
	return outcome
}

// MergeRecords combines listings in order, keyed by name; a later listing replaces an earlier
// record with the same name. The result is sorted by name.
func MergeRecords(listings ...[]RepositoryRecord) []RepositoryRecord {
	merged := make(map[string]RepositoryRecord)
	for _, listing := range listings {
		for _, record := range listing {
			merged[record.Name] = record
		}
	}

	records := make([]RepositoryRecord, 0, len(merged))
	for _, record := range merged {
		records = append(records, record)
	}
	sort.Slice(records, func(leftIndex int, rightIndex int) bool {
		return records[leftIndex].Name < records[rightIndex].Name
	})
	return records
}

// NewEnumerationError maps a listing failure onto the enumeration error taxonomy.
func NewEnumerationError(sourceName SourceName, cause error) EnumerationError {
	return EnumerationError{Source: sourceName, Kind: classifyError(cause), Message: cause.Error()}
}

func classifyError(cause error) ErrorKind {
	var transientError githubapi.TransientNetworkError
	var authError githubapi.AuthError
	var rateLimitError githubapi.RateLimitError
	var malformedError githubapi.MalformedResponseError
	var statusError githubapi.UnexpectedStatusError
	var pageLimitError githubapi.PageLimitError

	switch {
	case errors.As(cause, &transientError):
		return ErrorKindTransient
	case errors.As(cause, &authError):
		return ErrorKindAuth
	case errors.As(cause, &rateLimitError):
		return ErrorKindRateLimit
	case errors.As(cause, &malformedError):
		return ErrorKindMalformed
	case errors.As(cause, &statusError):
		return ErrorKindUnexpectedStatus
	case errors.As(cause, &pageLimitError):
		return ErrorKindPageLimit
	default:
		return ErrorKindUnknown
	}
}

func ownedBy(payload githubapi.RepositoryPayload, owner string) bool {
	login := strings.TrimSpace(payload.Owner.Login)
	if len(login) == 0 || len(owner) == 0 {
		return true
	}
	return strings.EqualFold(login, owner)
}

// convertPayload normalizes a listing item. An unparseable timestamp yields a record without
// activity plus an error describing the bad value.
func convertPayload(payload githubapi.RepositoryPayload) (RepositoryRecord, error) {
	record := RepositoryRecord{
		Name:          strings.TrimSpace(payload.Name),
		URL:           payload.HTMLURL,
		IsPrivate:     payload.Private,
		IsArchived:    payload.Archived,
		IsFork:        payload.Fork,
		DefaultBranch: payload.DefaultBranch,
		SizeKB:        payload.Size,
		OpenIssues:    payload.OpenIssues,
	}
	if payload.Description != nil {
		record.Description = *payload.Description
	}

	activityValue := firstNonEmpty(payload.PushedAt, payload.UpdatedAt)
	if len(activityValue) == 0 {
		return record, nil
	}
	activityTime, parseError := time.Parse(time.RFC3339, activityValue)
	if parseError != nil {
		return record, fmt.Errorf(invalidTimestampMessageTemplate, record.Name, activityValue)
	}
	utcActivity := activityTime.UTC()
	record.LastActivityAt = &utcActivity
	return record, nil
}

func firstNonEmpty(candidates ...*string) string {
	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		if trimmed := strings.TrimSpace(*candidate); len(trimmed) > 0 {
			return trimmed
		}
	}
	return ""
}
