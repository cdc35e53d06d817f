package shared_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repogov/internal/repos/shared"
)

func TestNewOwnerSlug(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		input       string
		expect      string
		expectError bool
	}{
		{name: "valid_owner", input: "Temirov", expect: "Temirov"},
		{name: "trims_owner", input: "  org-name ", expect: "org-name"},
		{name: "rejects_empty", input: "  ", expectError: true},
		{name: "rejects_slash", input: "owner/name", expectError: true},
		{name: "rejects_leading_hyphen", input: "-owner", expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result, err := shared.NewOwnerSlug(testCase.input)
			if testCase.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, testCase.expect, result.String())
		})
	}
}

func TestNewRepositoryName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		input       string
		expect      string
		expectError bool
	}{
		{name: "valid_name", input: "repogov", expect: "repogov"},
		{name: "trims_name", input: " system-core ", expect: "system-core"},
		{name: "dotted_name", input: "user.github.io", expect: "user.github.io"},
		{name: "rejects_empty", input: "", expectError: true},
		{name: "rejects_slash", input: "owner/repo", expectError: true},
		{name: "rejects_parent", input: "..", expectError: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result, err := shared.NewRepositoryName(testCase.input)
			if testCase.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, testCase.expect, result.String())
		})
	}
}

func TestNewOwnerRepository(t *testing.T) {
	t.Parallel()

	ownerRepo, err := shared.NewOwnerRepository("owner/repo")
	require.NoError(t, err)
	require.Equal(t, "owner", ownerRepo.Owner().String())
	require.Equal(t, "repo", ownerRepo.Repository().String())
	require.Equal(t, "owner/repo", ownerRepo.String())

	_, err = shared.NewOwnerRepository("invalid")
	require.Error(t, err)

	_, err = shared.OwnerRepositoryFromParts("owner", "")
	require.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestFixedClock(t *testing.T) {
	t.Parallel()

	instant := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.Equal(t, instant, shared.FixedClock{Instant: instant}.Now())
}
