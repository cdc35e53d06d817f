package githubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/temirov/repogov/internal/retry"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"
	// DefaultHTTPTimeout bounds a single HTTP call.
	DefaultHTTPTimeout = 45 * time.Second
	// DefaultMaxPages caps pagination per listing.
	DefaultMaxPages = 50
	// DefaultCacheSize bounds the number of cached tree and content responses.
	DefaultCacheSize = 256

	acceptHeaderNameConstant        = "Accept"
	acceptHeaderValueConstant       = "application/vnd.github+json"
	apiVersionHeaderNameConstant    = "X-GitHub-Api-Version"
	apiVersionHeaderValueConstant   = "2022-11-28"
	authorizationHeaderNameConstant = "Authorization"
	bearerTokenTemplateConstant     = "Bearer %s"
	userAgentHeaderNameConstant     = "User-Agent"
	userAgentHeaderValueConstant    = "repogov"
	linkHeaderNameConstant          = "Link"
	messageFieldNameConstant        = "message"
	loggerNotConfiguredMessage      = "github api logger not configured"
	invalidBaseURLTemplateConstant  = "invalid github api base url %q: %w"
	requestBuildErrorTemplate       = "unable to build request for %s: %w"
	cacheCreationErrorTemplate      = "unable to create response cache: %w"
	logMessageRequestConstant       = "github api request"
	logMessageRetryableConstant     = "github api request failed"
	logFieldURLConstant             = "url"
	logFieldStatusConstant          = "status"
	logFieldCachedConstant          = "cached"
	maxMessageLengthConstant        = 200
)

var (
	// ErrLoggerNotConfigured indicates the client was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessage)

	nextLinkPattern = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="next"`)
)

// ClientConfiguration describes how the client reaches the API.
type ClientConfiguration struct {
	BaseURL     string
	HTTPTimeout time.Duration
	MaxPages    int
	CacheSize   int
	RetryPolicy retry.Policy
	HTTPClient  *http.Client
}

// Client performs authenticated or anonymous GET requests against the GitHub REST API.
type Client struct {
	logger      *zap.Logger
	httpClient  *http.Client
	baseURL     string
	maxPages    int
	retryPolicy retry.Policy
	cache       *lru.Cache[string, []byte]
}

// Response is a successful response body plus the pagination link that followed it.
type Response struct {
	Body    []byte
	NextURL string
}

// NewClient constructs a Client.
func NewClient(logger *zap.Logger, configuration ClientConfiguration) (*Client, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}

	baseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), "/")
	if len(baseURL) == 0 {
		baseURL = DefaultBaseURL
	}
	if _, parseError := url.ParseRequestURI(baseURL); parseError != nil {
		return nil, fmt.Errorf(invalidBaseURLTemplateConstant, baseURL, parseError)
	}

	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpTimeout := configuration.HTTPTimeout
		if httpTimeout <= 0 {
			httpTimeout = DefaultHTTPTimeout
		}
		httpClient = &http.Client{Timeout: httpTimeout}
	}

	maxPages := configuration.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	cacheSize := configuration.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, cacheError := lru.New[string, []byte](cacheSize)
	if cacheError != nil {
		return nil, fmt.Errorf(cacheCreationErrorTemplate, cacheError)
	}

	retryPolicy := configuration.RetryPolicy
	if retryPolicy.MaxAttempts == 0 {
		retryPolicy = retry.NewPolicy(IsRetryable)
	}
	if retryPolicy.Classifier == nil {
		retryPolicy.Classifier = IsRetryable
	}

	return &Client{
		logger:      logger,
		httpClient:  httpClient,
		baseURL:     baseURL,
		maxPages:    maxPages,
		retryPolicy: retryPolicy,
		cache:       cache,
	}, nil
}

// MaxPages reports the pagination ceiling.
func (client *Client) MaxPages() int {
	return client.maxPages
}

// Get fetches a single resource with retries. A relative path is resolved against the base URL.
func (client *Client) Get(executionContext context.Context, resource string, token string) (Response, error) {
	requestURL := client.resolveURL(resource)

	var response Response
	retryError := client.retryPolicy.Do(executionContext, func(attemptContext context.Context) error {
		attemptResponse, attemptError := client.getOnce(attemptContext, requestURL, token)
		if attemptError != nil {
			if IsRetryable(attemptError) {
				client.logger.Debug(logMessageRetryableConstant, zap.String(logFieldURLConstant, requestURL), zap.Error(attemptError))
			}
			return attemptError
		}
		response = attemptResponse
		return nil
	})
	if retryError != nil {
		return Response{}, retryError
	}
	return response, nil
}

// getCached serves immutable resources such as trees and file contents from the response cache.
func (client *Client) getCached(executionContext context.Context, resource string, token string) ([]byte, error) {
	requestURL := client.resolveURL(resource)
	if cachedBody, cached := client.cache.Get(requestURL); cached {
		client.logger.Debug(logMessageRequestConstant, zap.String(logFieldURLConstant, requestURL), zap.Bool(logFieldCachedConstant, true))
		return cachedBody, nil
	}

	response, responseError := client.Get(executionContext, requestURL, token)
	if responseError != nil {
		return nil, responseError
	}
	client.cache.Add(requestURL, response.Body)
	return response.Body, nil
}

func (client *Client) getOnce(executionContext context.Context, requestURL string, token string) (Response, error) {
	request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, requestURL, nil)
	if requestError != nil {
		return Response{}, fmt.Errorf(requestBuildErrorTemplate, requestURL, requestError)
	}
	request.Header.Set(acceptHeaderNameConstant, acceptHeaderValueConstant)
	request.Header.Set(apiVersionHeaderNameConstant, apiVersionHeaderValueConstant)
	request.Header.Set(userAgentHeaderNameConstant, userAgentHeaderValueConstant)
	if trimmedToken := strings.TrimSpace(token); len(trimmedToken) > 0 {
		request.Header.Set(authorizationHeaderNameConstant, fmt.Sprintf(bearerTokenTemplateConstant, trimmedToken))
	}

	httpResponse, transportError := client.httpClient.Do(request)
	if transportError != nil {
		return Response{}, TransientNetworkError{URL: requestURL, Cause: transportError}
	}
	defer httpResponse.Body.Close()

	body, readError := io.ReadAll(httpResponse.Body)
	if readError != nil {
		return Response{}, TransientNetworkError{URL: requestURL, StatusCode: httpResponse.StatusCode, Cause: readError}
	}

	client.logger.Debug(logMessageRequestConstant, zap.String(logFieldURLConstant, requestURL), zap.Int(logFieldStatusConstant, httpResponse.StatusCode))

	if statusError := classifyStatus(requestURL, httpResponse.StatusCode, body); statusError != nil {
		return Response{}, statusError
	}

	return Response{Body: body, NextURL: parseNextLink(httpResponse.Header.Get(linkHeaderNameConstant))}, nil
}

func (client *Client) resolveURL(resource string) string {
	if strings.HasPrefix(resource, "http://") || strings.HasPrefix(resource, "https://") {
		return resource
	}
	return client.baseURL + "/" + strings.TrimLeft(resource, "/")
}

func classifyStatus(requestURL string, statusCode int, body []byte) error {
	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return nil
	case statusCode == http.StatusUnauthorized:
		return AuthError{URL: requestURL, StatusCode: statusCode, Message: extractMessage(body)}
	case statusCode == http.StatusForbidden || statusCode == http.StatusTooManyRequests:
		return RateLimitError{URL: requestURL, StatusCode: statusCode, Message: extractMessage(body)}
	case statusCode >= http.StatusInternalServerError:
		return TransientNetworkError{URL: requestURL, StatusCode: statusCode}
	default:
		return UnexpectedStatusError{URL: requestURL, StatusCode: statusCode, Message: extractMessage(body)}
	}
}

// extractMessage reads the "message" field GitHub places in error payloads.
func extractMessage(body []byte) string {
	var payload map[string]any
	if json.Unmarshal(body, &payload) == nil {
		if message, isString := payload[messageFieldNameConstant].(string); isString {
			return message
		}
	}
	trimmedBody := strings.TrimSpace(string(body))
	if len(trimmedBody) > maxMessageLengthConstant {
		trimmedBody = trimmedBody[:maxMessageLengthConstant]
	}
	return trimmedBody
}

func parseNextLink(linkHeader string) string {
	if len(linkHeader) == 0 {
		return ""
	}
	for _, linkValue := range strings.Split(linkHeader, ",") {
		if match := nextLinkPattern.FindStringSubmatch(linkValue); len(match) == 2 {
			return strings.TrimSpace(match[1])
		}
	}
	return ""
}
