package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 10 << 20

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	retried     bool // set once the request has been replayed after a refresh
}

// Get sends a GET with query and decodes the response data into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, &request{method: http.MethodGet, path: path, query: query}, out)
}

// Post sends body as JSON and decodes the response data into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	req, err := jsonRequest(http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return c.call(ctx, req, out)
}

// Put sends body as JSON and decodes the response data into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	req, err := jsonRequest(http.MethodPut, path, body)
	if err != nil {
		return err
	}
	return c.call(ctx, req, out)
}

// Patch sends body as JSON and decodes the response data into out.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	req, err := jsonRequest(http.MethodPatch, path, body)
	if err != nil {
		return err
	}
	return c.call(ctx, req, out)
}

// Delete sends a DELETE and decodes the response data into out.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, &request{method: http.MethodDelete, path: path}, out)
}

// UploadFile is one file part of a multipart upload.
type UploadFile struct {
	Field       string // form field name, defaults to "file"
	Filename    string
	ContentType string // defaults to application/octet-stream
	Content     io.Reader
}

// UploadForm is the body of a multipart upload.
type UploadForm struct {
	Fields map[string]string
	Files  []UploadFile
}

// Upload posts form as multipart/form-data. The body is buffered so the request can be
// replayed after a token refresh.
func (c *Client) Upload(ctx context.Context, path string, form UploadForm, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for name, value := range form.Fields {
		if err := mw.WriteField(name, value); err != nil {
			return fmt.Errorf("apiclient: upload field %s: %w", name, err)
		}
	}

	for _, f := range form.Files {
		field := f.Field
		if field == "" {
			field = "file"
		}
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(f.Filename)))
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return fmt.Errorf("apiclient: upload part %s: %w", f.Filename, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("apiclient: upload copy %s: %w", f.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("apiclient: upload close: %w", err)
	}

	return c.call(ctx, &request{
		method:      http.MethodPost,
		path:        path,
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}, out)
}

func jsonRequest(method, path string, body any) (*request, error) {
	req := &request{method: method, path: path}
	if body == nil {
		return req, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encode %s %s body: %w", method, path, err)
	}
	req.body = data
	req.contentType = "application/json"
	return req, nil
}

func (c *Client) call(ctx context.Context, req *request, out any) error {
	status, body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	return decodeEnvelope(status, body, out)
}

// do sends req and handles a 401 by refreshing the session and replaying req once.
func (c *Client) do(ctx context.Context, req *request) (int, []byte, error) {
	token := c.store.AccessToken()
	for {
		status, body, err := c.send(ctx, req, token)
		if err != nil {
			return 0, nil, err
		}

		// A request sent without a token was not rejected because of an expired session.
		if status == http.StatusUnauthorized && !req.retried && token != "" {
			req.retried = true
			if token, err = c.refresher.Refresh(ctx, token); err != nil {
				return 0, nil, err
			}
			continue
		}

		if status >= http.StatusBadRequest {
			return status, nil, newAPIError(status, body)
		}
		return status, body, nil
	}
}

func (c *Client) send(ctx context.Context, req *request, token string) (int, []byte, error) {
	target := c.endpoint(req.path, req.query)

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("apiclient: build %s %s: %w", req.method, target, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recorder.RecordClientResponse(req.method, 0)
		c.logger.Debug().Err(err).Str("method", req.method).Str("url", target).Msg("api request failed")
		return 0, nil, newTransportError(req.method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.recorder.RecordClientResponse(req.method, 0)
		return 0, nil, newTransportError(req.method, target, err)
	}

	c.recorder.RecordClientResponse(req.method, resp.StatusCode)
	c.logger.Debug().
		Str("method", req.method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Bool("retry", req.retried).
		Msg("api request")
	return resp.StatusCode, data, nil
}
