package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/repogov/internal/githubapi"
	"github.com/temirov/repogov/internal/inventory"
)

const (
	testOwnerConstant = "octo"
	testTokenConstant = "secret"
)

type stubListing struct {
	result githubapi.ListingResult
	err    error
}

type stubLister struct {
	mutex      sync.Mutex
	listings   map[githubapi.ListingEndpoint]stubListing
	calls      []githubapi.ListingEndpoint
	seenTokens map[githubapi.ListingEndpoint]string
}

func (lister *stubLister) ListRepositories(_ context.Context, endpoint githubapi.ListingEndpoint, _ string, token string) (githubapi.ListingResult, error) {
	lister.mutex.Lock()
	defer lister.mutex.Unlock()
	lister.calls = append(lister.calls, endpoint)
	if lister.seenTokens == nil {
		lister.seenTokens = map[githubapi.ListingEndpoint]string{}
	}
	lister.seenTokens[endpoint] = token
	listing := lister.listings[endpoint]
	return listing.result, listing.err
}

func stringPointer(value string) *string {
	return &value
}

func TestNewSourceRequiresLister(testInstance *testing.T) {
	source, creationError := inventory.NewSource(zap.NewNop(), nil)
	require.ErrorIs(testInstance, creationError, inventory.ErrListerNotConfigured)
	require.Nil(testInstance, source)
}

func TestEnumerateMergesAuthenticatedOverPublic(testInstance *testing.T) {
	lister := &stubLister{listings: map[githubapi.ListingEndpoint]stubListing{
		githubapi.ListingEndpointPublic: {result: githubapi.ListingResult{Pages: 1, Repositories: []githubapi.RepositoryPayload{
			{Name: "zeta", Description: stringPointer("public zeta")},
			{Name: "alpha", Description: stringPointer("public alpha")},
		}}},
		githubapi.ListingEndpointAuthenticated: {result: githubapi.ListingResult{Pages: 1, Repositories: []githubapi.RepositoryPayload{
			{Name: "alpha", Private: false, Description: stringPointer("auth alpha"), Owner: githubapi.RepositoryOwnerPayload{Login: "Octo"}},
			{Name: "secret", Private: true, Owner: githubapi.RepositoryOwnerPayload{Login: "octo"}},
			{Name: "borrowed", Owner: githubapi.RepositoryOwnerPayload{Login: "someone-else"}},
		}}},
	}}

	source, creationError := inventory.NewSource(zap.NewNop(), lister)
	require.NoError(testInstance, creationError)

	result := source.Enumerate(context.Background(), testOwnerConstant, inventory.Credentials{Token: testTokenConstant})

	names := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		names = append(names, record.Name)
	}
	require.Equal(testInstance, []string{"alpha", "secret", "zeta"}, names)
	require.Equal(testInstance, "auth alpha", result.Records[0].Description)
	require.True(testInstance, result.Records[1].IsPrivate)
	require.Equal(testInstance, "", result.Records[1].Description)

	require.Equal(testInstance, inventory.EnumerationSummary{
		Owner:              testOwnerConstant,
		TokenPresent:       true,
		PublicCount:        2,
		AuthenticatedCount: 2,
		MergedTotal:        3,
	}, result.Summary)

	require.Len(testInstance, result.Errors, 1)
	require.Equal(testInstance, inventory.SourceAuthenticated, result.Errors[0].Source)
	require.Equal(testInstance, inventory.ErrorKindMalformed, result.Errors[0].Kind)
	require.Equal(testInstance, "", lister.seenTokens[githubapi.ListingEndpointPublic])
	require.Equal(testInstance, testTokenConstant, lister.seenTokens[githubapi.ListingEndpointAuthenticated])
}

func TestEnumerateWithoutTokenRecordsMissingCredential(testInstance *testing.T) {
	lister := &stubLister{listings: map[githubapi.ListingEndpoint]stubListing{
		githubapi.ListingEndpointPublic: {result: githubapi.ListingResult{Pages: 1, Repositories: []githubapi.RepositoryPayload{{Name: "alpha"}}}},
	}}

	source, creationError := inventory.NewSource(zap.NewNop(), lister)
	require.NoError(testInstance, creationError)

	result := source.Enumerate(context.Background(), testOwnerConstant, inventory.Credentials{Token: "   "})
	require.Equal(testInstance, []githubapi.ListingEndpoint{githubapi.ListingEndpointPublic}, lister.calls)
	require.Len(testInstance, result.Records, 1)
	require.False(testInstance, result.Summary.TokenPresent)
	require.Len(testInstance, result.Errors, 1)
	require.Equal(testInstance, inventory.ErrorKindMissingCredential, result.Errors[0].Kind)
}

func TestEnumerateKeepsPartialResultsWhenASourceFails(testInstance *testing.T) {
	testCases := []struct {
		name         string
		failure      error
		expectedKind inventory.ErrorKind
	}{
		{name: "auth", failure: githubapi.AuthError{URL: "u", StatusCode: 401}, expectedKind: inventory.ErrorKindAuth},
		{name: "rate_limit", failure: githubapi.RateLimitError{URL: "u", StatusCode: 403}, expectedKind: inventory.ErrorKindRateLimit},
		{name: "transient", failure: githubapi.TransientNetworkError{URL: "u", StatusCode: 502}, expectedKind: inventory.ErrorKindTransient},
		{name: "unexpected_status", failure: githubapi.UnexpectedStatusError{URL: "u", StatusCode: 404}, expectedKind: inventory.ErrorKindUnexpectedStatus},
		{name: "unknown", failure: errors.New("boom"), expectedKind: inventory.ErrorKindUnknown},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			lister := &stubLister{listings: map[githubapi.ListingEndpoint]stubListing{
				githubapi.ListingEndpointPublic: {result: githubapi.ListingResult{Pages: 1, Repositories: []githubapi.RepositoryPayload{{Name: "alpha"}}}},
				githubapi.ListingEndpointAuthenticated: {
					result: githubapi.ListingResult{Pages: 1, Repositories: []githubapi.RepositoryPayload{{Name: "beta"}}},
					err:    testCase.failure,
				},
			}}

			source, creationError := inventory.NewSource(zap.NewNop(), lister)
			require.NoError(testInstance, creationError)

			result := source.Enumerate(context.Background(), testOwnerConstant, inventory.Credentials{Token: testTokenConstant})
			require.Len(testInstance, result.Records, 2)
			require.Len(testInstance, result.Errors, 1)
			require.Equal(testInstance, inventory.SourceAuthenticated, result.Errors[0].Source)
			require.Equal(testInstance, testCase.expectedKind, result.Errors[0].Kind)
		})
	}
}

func TestEnumerateRecordsPageErrorsAndTimestamps(testInstance *testing.T) {
	lister := &stubLister{listings: map[githubapi.ListingEndpoint]stubListing{
		githubapi.ListingEndpointPublic: {result: githubapi.ListingResult{
			Pages: 2,
			Repositories: []githubapi.RepositoryPayload{
				{Name: "pushed", PushedAt: stringPointer("2024-03-01T10:00:00Z"), UpdatedAt: stringPointer("2024-04-01T10:00:00Z")},
				{Name: "updated", UpdatedAt: stringPointer("2024-04-01T10:00:00+02:00")},
				{Name: "garbled", PushedAt: stringPointer("yesterday")},
				{Name: "silent"},
			},
			PageErrors: []error{
				githubapi.MalformedResponseError{URL: "u", Message: "expected a JSON array of repositories"},
				githubapi.PageLimitError{URL: "u", MaxPages: 2},
			},
		}},
	}}

	source, creationError := inventory.NewSource(zap.NewNop(), lister)
	require.NoError(testInstance, creationError)

	result := source.Enumerate(context.Background(), testOwnerConstant, inventory.Credentials{})
	require.Len(testInstance, result.Records, 4)

	recordsByName := map[string]inventory.RepositoryRecord{}
	for _, record := range result.Records {
		recordsByName[record.Name] = record
	}
	require.Equal(testInstance, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), *recordsByName["pushed"].LastActivityAt)
	require.Equal(testInstance, time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC), *recordsByName["updated"].LastActivityAt)
	require.Nil(testInstance, recordsByName["garbled"].LastActivityAt)
	require.Nil(testInstance, recordsByName["silent"].LastActivityAt)

	kinds := make([]inventory.ErrorKind, 0, len(result.Errors))
	for _, enumerationError := range result.Errors {
		kinds = append(kinds, enumerationError.Kind)
	}
	require.Equal(testInstance, []inventory.ErrorKind{
		inventory.ErrorKindMalformed,
		inventory.ErrorKindPageLimit,
		inventory.ErrorKindMalformed,
		inventory.ErrorKindMissingCredential,
	}, kinds)
}

func TestMergeRecordsLaterListingWins(testInstance *testing.T) {
	merged := inventory.MergeRecords(
		[]inventory.RepositoryRecord{{Name: "b", Description: "first"}, {Name: "a"}},
		[]inventory.RepositoryRecord{{Name: "b", Description: "second"}},
	)
	require.Equal(testInstance, []inventory.RepositoryRecord{{Name: "a"}, {Name: "b", Description: "second"}}, merged)
}
