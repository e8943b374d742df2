package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Item is one record of a node. Data is opaque to the SDK.
type Item struct {
	ID         string
	Data       json.RawMessage
	Visibility Visibility
	Allowed    []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode unmarshals the item's payload into v.
func (i Item) Decode(v any) error {
	if len(i.Data) == 0 {
		return fmt.Errorf("item %s has no data", i.ID)
	}
	return json.Unmarshal(i.Data, v)
}

type itemWire struct {
	BackendID  string          `json:"_id,omitempty"`
	ID         string          `json:"id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Visibility Visibility      `json:"visibility,omitempty"`
	Allowed    []string        `json:"allowed,omitempty"`
	CreatedAt  json.RawMessage `json:"createdAt,omitempty"`
	UpdatedAt  json.RawMessage `json:"updatedAt,omitempty"`
}

// UnmarshalJSON accepts the id as "_id" (backend form) or "id", and
// timestamps as RFC 3339 strings or epoch milliseconds.
func (i *Item) UnmarshalJSON(b []byte) error {
	var wire itemWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	createdAt, err := parseTimestamp(wire.CreatedAt)
	if err != nil {
		return fmt.Errorf("item createdAt: %w", err)
	}
	updatedAt, err := parseTimestamp(wire.UpdatedAt)
	if err != nil {
		return fmt.Errorf("item updatedAt: %w", err)
	}
	*i = Item{
		ID:         wire.BackendID,
		Data:       wire.Data,
		Visibility: wire.Visibility,
		Allowed:    wire.Allowed,
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
	if i.ID == "" {
		i.ID = wire.ID
	}
	return nil
}

func (i Item) MarshalJSON() ([]byte, error) {
	wire := itemWire{
		BackendID:  i.ID,
		Data:       i.Data,
		Visibility: i.Visibility,
		Allowed:    i.Allowed,
	}
	if !i.CreatedAt.IsZero() {
		wire.CreatedAt, _ = json.Marshal(i.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	if !i.UpdatedAt.IsZero() {
		wire.UpdatedAt, _ = json.Marshal(i.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}
	return json.Marshal(wire)
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return time.Time{}, nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return time.Time{}, err
		}
		if text == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339Nano, text)
	}
	millis, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(int64(millis)), nil
}

// ListResult normalizes both list response shapes: a bare array of items,
// or a paged object with an "items" field.
type ListResult struct {
	Items []Item
	Page  int
	Limit int
	Total int
	Paged bool
}

func decodeListResult(raw json.RawMessage) (ListResult, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ListResult{}, nil
	}
	if trimmed[0] == '[' {
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return ListResult{}, err
		}
		return ListResult{Items: items}, nil
	}
	var paged struct {
		Items []Item `json:"items"`
		Page  int    `json:"page"`
		Limit int    `json:"limit"`
		Total int    `json:"total"`
	}
	if err := json.Unmarshal(trimmed, &paged); err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: paged.Items, Page: paged.Page, Limit: paged.Limit, Total: paged.Total, Paged: true}, nil
}

type ListOptions struct {
	// Limit defaults to 50 when zero.
	Limit int
	// Page is only sent when positive.
	Page int
	// Filter is any JSON-encodable matching object; nil sends no filter.
	Filter any
}

// CreateOptions is resolved once at the call boundary; the zero value means
// a public item with no allow-list.
type CreateOptions struct {
	Visibility Visibility
	// Allowed is omitted when nil; an empty non-nil slice is sent as [].
	Allowed []string
}

type UpdateOptions struct {
	Allowed []string
}

type User struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email"`
}

func (u *User) UnmarshalJSON(b []byte) error {
	var wire struct {
		BackendID string `json:"_id"`
		ID        string `json:"id"`
		Email     string `json:"email"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	u.ID = wire.ID
	if u.ID == "" {
		u.ID = wire.BackendID
	}
	u.Email = wire.Email
	return nil
}

type AuthResult struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// PublicNodes maps a permission ("read", "create", ...) to the nodes that
// allow it without authentication.
type PublicNodes map[string][]string
