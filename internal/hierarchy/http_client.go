package hierarchy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the minimal logging surface injected into library
// components. A nil Logger silences the component.
type Logger interface {
	Printf(format string, args ...any)
}

// RemoteClient is the remote hierarchy API contract. Every call is a
// single request/response round trip: no call retries on failure.
type RemoteClient interface {
	ListSpaces(ctx context.Context) ([]Space, error)
	FetchTree(ctx context.Context, spaceID string) (*SpaceTree, error)
	CreateFolder(ctx context.Context, spaceID string, req CreateFolderRequest) (*FolderNode, error)
	UpdateFolder(ctx context.Context, spaceID, folderID string, req UpdateFolderRequest) (*FolderNode, error)
	MoveFolder(ctx context.Context, spaceID, folderID string, parentFolderID *string) (*FolderNode, error)
	DeleteFolder(ctx context.Context, spaceID, folderID string) error
	CreateProcess(ctx context.Context, spaceID string, req CreateProcessRequest) (*ProcessNode, error)
	FetchProcess(ctx context.Context, spaceID, processID string) (*ProcessNode, error)
	UpdateProcess(ctx context.Context, spaceID, processID string, req UpdateProcessRequest) (*ProcessNode, error)
	MoveProcess(ctx context.Context, spaceID, processID string, folderID *string) (*ProcessNode, error)
	DeleteProcess(ctx context.Context, spaceID, processID string) error
	FetchFolderPath(ctx context.Context, spaceID, folderID string) (FolderPathResponse, error)
	FetchSpaceStats(ctx context.Context, spaceID string) (SpaceStats, error)
}

type HTTPClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	UserAgent  string
}

// HTTPClient talks JSON to the remote hierarchy API. The bearer token
// is optional; single-user deployments run without one.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	userAgent  string
}

func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8000"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		userAgent:  strings.TrimSpace(opts.UserAgent),
	}
}

func (c *HTTPClient) ListSpaces(ctx context.Context) ([]Space, error) {
	var out []Space
	if err := c.doJSON(ctx, http.MethodGet, "/spaces", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) FetchTree(ctx context.Context, spaceID string) (*SpaceTree, error) {
	payload, err := c.doRaw(ctx, http.MethodGet, fmt.Sprintf("/spaces/%s/tree", url.PathEscape(spaceID)), nil)
	if err != nil {
		return nil, err
	}
	// A malformed tree payload counts as a failed fetch so callers fall
	// back the same way they would on a network error.
	if err := ValidateTreeJSON(payload); err != nil {
		return nil, &TransportError{Op: "fetch tree", Err: err}
	}
	var tree SpaceTree
	if err := json.Unmarshal(payload, &tree); err != nil {
		return nil, &TransportError{Op: "fetch tree", Err: err}
	}
	if tree.SpaceID == "" {
		tree.SpaceID = spaceID
	}
	if tree.RootFolders == nil {
		tree.RootFolders = []*FolderNode{}
	}
	if tree.RootProcesses == nil {
		tree.RootProcesses = []*ProcessNode{}
	}
	return &tree, nil
}

func (c *HTTPClient) CreateFolder(ctx context.Context, spaceID string, req CreateFolderRequest) (*FolderNode, error) {
	var out FolderNode
	path := fmt.Sprintf("/spaces/%s/folders", url.PathEscape(spaceID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateFolder(ctx context.Context, spaceID, folderID string, req UpdateFolderRequest) (*FolderNode, error) {
	var out FolderNode
	path := fmt.Sprintf("/spaces/%s/folders/%s", url.PathEscape(spaceID), url.PathEscape(folderID))
	if err := c.doJSON(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) MoveFolder(ctx context.Context, spaceID, folderID string, parentFolderID *string) (*FolderNode, error) {
	body := struct {
		ParentFolderID *string `json:"parent_folder_id"`
	}{ParentFolderID: parentFolderID}
	var out FolderNode
	path := fmt.Sprintf("/spaces/%s/folders/%s/move", url.PathEscape(spaceID), url.PathEscape(folderID))
	if err := c.doJSON(ctx, http.MethodPatch, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteFolder(ctx context.Context, spaceID, folderID string) error {
	path := fmt.Sprintf("/spaces/%s/folders/%s", url.PathEscape(spaceID), url.PathEscape(folderID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) CreateProcess(ctx context.Context, spaceID string, req CreateProcessRequest) (*ProcessNode, error) {
	var out ProcessNode
	path := fmt.Sprintf("/spaces/%s/processes", url.PathEscape(spaceID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) FetchProcess(ctx context.Context, spaceID, processID string) (*ProcessNode, error) {
	var out ProcessNode
	path := fmt.Sprintf("/spaces/%s/processes/%s", url.PathEscape(spaceID), url.PathEscape(processID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateProcess(ctx context.Context, spaceID, processID string, req UpdateProcessRequest) (*ProcessNode, error) {
	var out ProcessNode
	path := fmt.Sprintf("/spaces/%s/processes/%s", url.PathEscape(spaceID), url.PathEscape(processID))
	if err := c.doJSON(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) MoveProcess(ctx context.Context, spaceID, processID string, folderID *string) (*ProcessNode, error) {
	body := struct {
		FolderID *string `json:"folder_id"`
	}{FolderID: folderID}
	var out ProcessNode
	path := fmt.Sprintf("/spaces/%s/processes/%s/move", url.PathEscape(spaceID), url.PathEscape(processID))
	if err := c.doJSON(ctx, http.MethodPatch, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteProcess(ctx context.Context, spaceID, processID string) error {
	path := fmt.Sprintf("/spaces/%s/processes/%s", url.PathEscape(spaceID), url.PathEscape(processID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) FetchFolderPath(ctx context.Context, spaceID, folderID string) (FolderPathResponse, error) {
	var out FolderPathResponse
	path := fmt.Sprintf("/spaces/%s/folders/%s/path", url.PathEscape(spaceID), url.PathEscape(folderID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return FolderPathResponse{}, err
	}
	return out, nil
}

func (c *HTTPClient) FetchSpaceStats(ctx context.Context, spaceID string) (SpaceStats, error) {
	var out SpaceStats
	path := fmt.Sprintf("/spaces/%s/stats", url.PathEscape(spaceID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return SpaceStats{}, err
	}
	return out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	payload, err := c.doRaw(ctx, method, requestPath, body)
	if err != nil {
		return err
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &TransportError{Op: opLabel(method, requestPath), Err: err}
	}
	return nil
}

func (c *HTTPClient) doRaw(ctx context.Context, method, requestPath string, body any) ([]byte, error) {
	if c == nil {
		return nil, ErrInvalidInput
	}
	op := opLabel(method, requestPath)
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Correlation-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Op: op}
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, &TransportError{Op: op, Err: readErr}
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return payload, nil
	}
	return nil, errorFromResponse(op, resp.StatusCode, payload)
}

// errorFromResponse maps a non-2xx response onto the error taxonomy.
// The server speaks either {code, message} or FastAPI-style {detail}.
func errorFromResponse(op string, statusCode int, payload []byte) error {
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	_ = json.Unmarshal(payload, &parsed)
	message := parsed.Message
	if message == "" {
		message = parsed.Detail
	}
	if message == "" {
		message = strings.TrimSpace(string(payload))
	}
	switch statusCode {
	case http.StatusNotFound:
		return &NotFoundError{Resource: op, Message: message}
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return &ValidationError{Code: parsed.Code, Message: message}
	default:
		return &TransportError{Op: op, StatusCode: statusCode, Code: parsed.Code, Message: message}
	}
}

func opLabel(method, requestPath string) string {
	if idx := strings.IndexByte(requestPath, '?'); idx >= 0 {
		requestPath = requestPath[:idx]
	}
	return strings.ToLower(method) + " " + requestPath
}
