package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"zerostack-chat/internal/logging"
)

// Execute performs one exchange and returns the envelope's data unwrapped.
// A nil body sends no request body.
func (c *ZeroStackClient) Execute(ctx context.Context, method string, path string, body any) (json.RawMessage, error) {
	target := c.endpoints.APIURL + path

	var payload []byte
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		payload = encoded
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(HeaderAPIKey, c.apiKey)
	c.identity.ApplyAuth(req.Header)

	if payload != nil {
		c.logger.Debug("sending request",
			logging.Field("method", method),
			logging.Field("path", path),
			logging.Field("payload", logging.FormatHTTPPayload(payload)),
		)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed to reach server",
			logging.Field("method", method),
			logging.Field("path", path),
			logging.Field("error", err),
		)
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.logger.Debugf("%s %s -> %s", method, path, resp.Status)
	if readErr != nil {
		return nil, &NetworkError{Method: method, URL: target, Err: readErr}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("invalid response envelope",
			logging.Field("method", method),
			logging.Field("path", path),
			logging.Field("status", resp.Status),
			logging.Field("content_type", resp.Header.Get(headerContentType)),
			logging.Field("response", logging.FormatHTTPPayload(data)),
		)
		return nil, &ProtocolError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    fmt.Sprintf("invalid response from server (%s)", resp.Status),
			Err:        err,
		}
	}

	if !env.Success {
		message := strings.TrimSpace(env.Error)
		if message == "" {
			message = defaultFailureMessage
		}
		c.logger.Warn("request rejected",
			logging.Field("method", method),
			logging.Field("path", path),
			logging.Field("status", resp.Status),
			logging.Field("error", message),
		)
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Status: resp.Status, Message: message}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("request failed despite success envelope",
			logging.Field("method", method),
			logging.Field("path", path),
			logging.Field("status", resp.Status),
		)
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return env.Data, nil
}

// executeInto runs Execute and decodes the data into out.
func (c *ZeroStackClient) executeInto(ctx context.Context, method string, path string, body any, out any) error {
	data, err := c.Execute(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ProtocolError{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("unexpected %s %s response data", method, path),
			Err:        err,
		}
	}
	return nil
}
