package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"zerostack-chat/internal/logging"
)

const defaultListLimit = 50

// List reads items of node. The query always carries limit; page and filter
// only when given. The filter travels as one percent-encoded JSON parameter.
func (c *ZeroStackClient) List(ctx context.Context, node string, opts ListOptions) (ListResult, error) {
	path, err := listPath(node, opts)
	if err != nil {
		return ListResult{}, err
	}
	data, err := c.Execute(ctx, http.MethodGet, path, nil)
	if err != nil {
		return ListResult{}, err
	}
	result, err := decodeListResult(data)
	if err != nil {
		return ListResult{}, &ProtocolError{StatusCode: http.StatusOK, Message: "unexpected list response data", Err: err}
	}
	c.logger.Debug("listed items",
		logging.Field("node", node),
		logging.Field("count", len(result.Items)),
		logging.Field("paged", result.Paged),
	)
	return result, nil
}

func listPath(node string, opts ListOptions) (string, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var b strings.Builder
	b.WriteString(nodePath(node))
	b.WriteString("?limit=")
	b.WriteString(strconv.Itoa(limit))
	if opts.Page > 0 {
		b.WriteString("&page=")
		b.WriteString(strconv.Itoa(opts.Page))
	}
	if opts.Filter != nil {
		filter, err := canonicalJSON(opts.Filter)
		if err != nil {
			return "", &ValidationError{Field: "filter", Message: fmt.Sprintf("filter is not JSON-encodable: %v", err)}
		}
		b.WriteString("&filter=")
		b.WriteString(encodeQueryComponent(filter))
	}
	return b.String(), nil
}

// canonicalJSON encodes v compactly with object keys sorted and without
// HTML escaping, matching what a browser's JSON.stringify would send for
// the same map.
func canonicalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// encodeQueryComponent is url.QueryEscape with spaces as %20 rather than
// '+'. Unlike encodeURIComponent it also escapes !'()*; the server decodes
// both forms alike.
func encodeQueryComponent(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

func nodePath(node string) string {
	return "/data/" + url.PathEscape(node)
}

func itemPath(node string, id string) string {
	return nodePath(node) + "/" + url.PathEscape(id)
}

// Create stores data as a new item of node.
func (c *ZeroStackClient) Create(ctx context.Context, node string, data any, opts CreateOptions) (Item, error) {
	visibility := opts.Visibility
	if visibility == "" {
		visibility = VisibilityPublic
	}
	body := map[string]any{
		"data":       data,
		"visibility": visibility,
	}
	if opts.Allowed != nil {
		body["allowed"] = opts.Allowed
	}
	c.mergeMutationIdentity(body)

	var item Item
	if err := c.executeInto(ctx, http.MethodPost, nodePath(node), body, &item); err != nil {
		return Item{}, err
	}
	c.logger.Debug("item created", logging.Field("node", node), logging.Field("id", item.ID))
	return item, nil
}

// Update replaces the data of an existing item.
func (c *ZeroStackClient) Update(ctx context.Context, node string, id string, data any, opts UpdateOptions) (Item, error) {
	body := map[string]any{"data": data}
	if opts.Allowed != nil {
		body["allowed"] = opts.Allowed
	}
	c.mergeMutationIdentity(body)

	var item Item
	if err := c.executeInto(ctx, http.MethodPut, itemPath(node, id), body, &item); err != nil {
		return Item{}, err
	}
	c.logger.Debug("item updated", logging.Field("node", node), logging.Field("id", id))
	return item, nil
}

// Delete removes an item. Anonymous callers send their guest id as the only
// body field; otherwise no body is sent.
func (c *ZeroStackClient) Delete(ctx context.Context, node string, id string) error {
	var body any
	if guestID, ok := c.identity.MutationIdentity(); ok {
		body = map[string]any{"guestId": guestID}
	}
	if _, err := c.Execute(ctx, http.MethodDelete, itemPath(node, id), body); err != nil {
		return err
	}
	c.logger.Debug("item deleted", logging.Field("node", node), logging.Field("id", id))
	return nil
}

func (c *ZeroStackClient) mergeMutationIdentity(body map[string]any) {
	if guestID, ok := c.identity.MutationIdentity(); ok {
		body["guestId"] = guestID
	}
}
