// Package backend wraps the support backend's REST endpoints in typed calls.
// All traffic goes through the gateway, which owns identity headers and the
// retry budget.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/minirag/supportchat/internal/gateway"
)

const apiPrefix = "/api/v1"

// Defaults for document processing, matching the backend's own.
const (
	DefaultChunkSize   = 512
	DefaultOverlapSize = 50
)

// Client is a typed client for the support backend API.
type Client struct {
	gw *gateway.Client
}

// NewClient creates a backend client over the given gateway.
func NewClient(gw *gateway.Client) *Client {
	return &Client{gw: gw}
}

// FetchCSRFToken requests a fresh anti-forgery token.
func (c *Client) FetchCSRFToken(ctx context.Context) (string, error) {
	var resp CSRFTokenResponse
	if err := c.gw.PostJSON(ctx, apiPrefix+"/auth/csrf", nil, &resp); err != nil {
		return "", err
	}
	return resp.CSRFToken, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var resp LoginResponse
	req := LoginRequest{Username: username, Password: password}
	if err := c.gw.PostJSON(ctx, apiPrefix+"/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Query runs a retrieval-augmented query against a project's documents.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.gw.PostJSON(ctx, apiPrefix+"/rag/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadDocument uploads a document for a project as multipart form data and
// returns the asset created for it.
func (c *Client) UploadDocument(ctx context.Context, projectID int, filename string, content io.Reader) (*UploadResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart body: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	path := fmt.Sprintf("%s/data/upload/%d", apiPrefix, projectID)

	var resp UploadResponse
	if err := c.gw.Do(ctx, http.MethodPost, path, writer.FormDataContentType(), buf.Bytes(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProcessAsset asks the backend to chunk and index an uploaded asset.
// chunkSize and overlapSize of 0 fall back to the backend defaults.
func (c *Client) ProcessAsset(ctx context.Context, projectID, assetID, chunkSize, overlapSize int) (*ProcessResponse, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlapSize <= 0 {
		overlapSize = DefaultOverlapSize
	}

	params := url.Values{}
	params.Set("asset_id", strconv.Itoa(assetID))
	params.Set("chunk_size", strconv.Itoa(chunkSize))
	params.Set("overlap_size", strconv.Itoa(overlapSize))
	path := fmt.Sprintf("%s/data/process/%d?%s", apiPrefix, projectID, params.Encode())

	var resp ProcessResponse
	if err := c.gw.Do(ctx, http.MethodPost, path, "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RequestDeletion files a GDPR deletion request for the given session.
func (c *Client) RequestDeletion(ctx context.Context, sessionID, reason string) (*DeletionResponse, error) {
	var resp DeletionResponse
	req := DeletionRequest{SessionID: sessionID, Reason: reason}
	if err := c.gw.PostJSON(ctx, apiPrefix+"/gdpr/delete", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
