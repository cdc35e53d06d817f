package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	publicRepositoriesPathTemplate       = "/users/%s/repos?per_page=100&type=owner"
	authenticatedRepositoriesPath        = "/user/repos?per_page=100&affiliation=owner"
	treePathTemplate                     = "/repos/%s/%s/git/trees/%s?recursive=1"
	contentPathTemplate                  = "/repos/%s/%s/contents/%s?ref=%s"
	listingNotArrayMessageConstant       = "expected a JSON array of repositories"
	listingObjectMessageTemplate         = "expected a JSON array of repositories, received object with message %q"
	repositoryMissingNameMessageTemplate = "repository entry %d has no name"
	repositoryDecodeMessageTemplate      = "repository entry %d could not be decoded"
	treeDecodeMessageConstant            = "tree payload could not be decoded"
	contentDecodeMessageConstant         = "content payload could not be decoded"
	contentEncodingMessageTemplate       = "unsupported content encoding %q"
	base64EncodingConstant               = "base64"
	treeEntryTypeBlobConstant            = "blob"
	treeEntryTypeTreeConstant            = "tree"
)

// ListingEndpoint names one of the repository listing surfaces.
type ListingEndpoint string

// Listing endpoints.
const (
	ListingEndpointPublic        ListingEndpoint = "public"
	ListingEndpointAuthenticated ListingEndpoint = "authenticated"
)

// RepositoryOwnerPayload identifies the account that owns a repository.
type RepositoryOwnerPayload struct {
	Login string `json:"login"`
}

// RepositoryPayload mirrors the fields of a repository listing item that governance consumes.
type RepositoryPayload struct {
	Name          string  `json:"name"`
	HTMLURL       string  `json:"html_url"`
	Private       bool    `json:"private"`
	Archived      bool    `json:"archived"`
	Fork          bool    `json:"fork"`
	DefaultBranch string  `json:"default_branch"`
	Description   *string `json:"description"`
	PushedAt      *string `json:"pushed_at"`
	UpdatedAt     *string `json:"updated_at"`
	Size          int     `json:"size"`
	OpenIssues    int     `json:"open_issues_count"`

	Owner RepositoryOwnerPayload `json:"owner"`
}

// ListingResult collects the repositories read from every page of a listing along with
// page-level problems that did not stop pagination.
type ListingResult struct {
	Repositories []RepositoryPayload
	PageErrors   []error
	Pages        int
}

// TreeEntry is one path of a recursive tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// IsDirectory reports whether the entry denotes a directory.
func (entry TreeEntry) IsDirectory() bool {
	return entry.Type == treeEntryTypeTreeConstant
}

// IsFile reports whether the entry denotes a regular file.
func (entry TreeEntry) IsFile() bool {
	return entry.Type == treeEntryTypeBlobConstant
}

// Tree is the recursive listing of a repository at a reference.
type Tree struct {
	Entries   []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// ListRepositories walks every page of the selected listing endpoint. Pages that cannot be
// decoded are recorded in PageErrors and skipped; the returned error is set only when a
// request fails in a way that ends pagination.
func (client *Client) ListRepositories(executionContext context.Context, endpoint ListingEndpoint, owner string, token string) (ListingResult, error) {
	requestURL := client.resolveURL(authenticatedRepositoriesPath)
	if endpoint == ListingEndpointPublic {
		requestURL = client.resolveURL(fmt.Sprintf(publicRepositoriesPathTemplate, url.PathEscape(owner)))
	}

	result := ListingResult{}
	for len(requestURL) > 0 {
		if result.Pages >= client.maxPages {
			result.PageErrors = append(result.PageErrors, PageLimitError{URL: requestURL, MaxPages: client.maxPages})
			break
		}

		response, responseError := client.Get(executionContext, requestURL, token)
		if responseError != nil {
			return result, responseError
		}
		result.Pages++

		repositories, itemErrors, pageError := decodeRepositoryPage(requestURL, response.Body)
		if pageError != nil {
			result.PageErrors = append(result.PageErrors, pageError)
		}
		result.PageErrors = append(result.PageErrors, itemErrors...)
		result.Repositories = append(result.Repositories, repositories...)

		requestURL = response.NextURL
	}
	return result, nil
}

// GetTree returns the recursive tree of a repository at the given reference.
func (client *Client) GetTree(executionContext context.Context, owner string, repository string, reference string, token string) (Tree, error) {
	resource := fmt.Sprintf(treePathTemplate, url.PathEscape(owner), url.PathEscape(repository), url.PathEscape(reference))
	body, bodyError := client.getCached(executionContext, resource, token)
	if bodyError != nil {
		return Tree{}, bodyError
	}

	var tree Tree
	if decodeError := json.Unmarshal(body, &tree); decodeError != nil {
		return Tree{}, MalformedResponseError{URL: client.resolveURL(resource), Message: treeDecodeMessageConstant, Cause: decodeError}
	}
	return tree, nil
}

// GetFileContent returns the decoded bytes of a file at the given reference.
func (client *Client) GetFileContent(executionContext context.Context, owner string, repository string, filePath string, reference string, token string) ([]byte, error) {
	resource := fmt.Sprintf(contentPathTemplate, url.PathEscape(owner), url.PathEscape(repository), escapeContentPath(filePath), url.QueryEscape(reference))
	body, bodyError := client.getCached(executionContext, resource, token)
	if bodyError != nil {
		return nil, bodyError
	}

	var payload struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if decodeError := json.Unmarshal(body, &payload); decodeError != nil {
		return nil, MalformedResponseError{URL: client.resolveURL(resource), Message: contentDecodeMessageConstant, Cause: decodeError}
	}
	if payload.Encoding != base64EncodingConstant {
		return nil, MalformedResponseError{URL: client.resolveURL(resource), Message: fmt.Sprintf(contentEncodingMessageTemplate, payload.Encoding)}
	}

	compactContent := strings.NewReplacer("\n", "", "\r", "").Replace(payload.Content)
	decoded, decodeError := base64.StdEncoding.DecodeString(compactContent)
	if decodeError != nil {
		return nil, MalformedResponseError{URL: client.resolveURL(resource), Message: contentDecodeMessageConstant, Cause: decodeError}
	}
	return decoded, nil
}

func decodeRepositoryPage(requestURL string, body []byte) ([]RepositoryPayload, []error, error) {
	var rawItems []json.RawMessage
	if decodeError := json.Unmarshal(body, &rawItems); decodeError != nil {
		var objectPayload map[string]any
		if json.Unmarshal(body, &objectPayload) == nil {
			if message, hasMessage := objectPayload[messageFieldNameConstant].(string); hasMessage {
				return nil, nil, MalformedResponseError{URL: requestURL, Message: fmt.Sprintf(listingObjectMessageTemplate, message)}
			}
		}
		return nil, nil, MalformedResponseError{URL: requestURL, Message: listingNotArrayMessageConstant, Cause: decodeError}
	}

	repositories := make([]RepositoryPayload, 0, len(rawItems))
	var itemErrors []error
	for itemIndex, rawItem := range rawItems {
		var repository RepositoryPayload
		if decodeError := json.Unmarshal(rawItem, &repository); decodeError != nil {
			itemErrors = append(itemErrors, MalformedResponseError{URL: requestURL, Message: fmt.Sprintf(repositoryDecodeMessageTemplate, itemIndex), Cause: decodeError})
			continue
		}
		if len(strings.TrimSpace(repository.Name)) == 0 {
			itemErrors = append(itemErrors, MalformedResponseError{URL: requestURL, Message: fmt.Sprintf(repositoryMissingNameMessageTemplate, itemIndex)})
			continue
		}
		repositories = append(repositories, repository)
	}
	return repositories, itemErrors, nil
}

func escapeContentPath(filePath string) string {
	segments := strings.Split(strings.Trim(filePath, "/"), "/")
	for segmentIndex, segment := range segments {
		segments[segmentIndex] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
