package client

import (
	"context"
	"math"
	"net/http"
	"time"

	"zerostack-chat/internal/logging"
)

const configPath = "/data/_config"

// SetPublicNodes replaces which nodes allow unauthenticated access, keyed by
// permission, e.g. {"read": ["messages"], "create": ["messages"]}.
func (c *ZeroStackClient) SetPublicNodes(ctx context.Context, nodes PublicNodes) error {
	if err := c.requireOwnerToken(); err != nil {
		return err
	}
	if _, err := c.Execute(ctx, http.MethodPut, configPath, map[string]any{"publicNodes": nodes}); err != nil {
		return err
	}
	c.logger.Info("public nodes updated", logging.Field("public_nodes", nodes))
	return nil
}

// SetNodeTTL sets per-node item lifetimes. Durations are sent as whole
// seconds, rounded up so a sub-second TTL never becomes zero.
func (c *ZeroStackClient) SetNodeTTL(ctx context.Context, ttl map[string]time.Duration) error {
	if err := c.requireOwnerToken(); err != nil {
		return err
	}
	seconds := make(map[string]int64, len(ttl))
	for node, d := range ttl {
		if d <= 0 {
			return &ValidationError{Field: "nodeTTL", Message: "TTL for " + node + " must be positive"}
		}
		seconds[node] = int64(math.Ceil(d.Seconds()))
	}
	if _, err := c.Execute(ctx, http.MethodPut, configPath, map[string]any{"nodeTTL": seconds}); err != nil {
		return err
	}
	c.logger.Info("node TTL updated", logging.Field("node_ttl", seconds))
	return nil
}

func (c *ZeroStackClient) requireOwnerToken() error {
	if !c.identity.Session().Authenticated() {
		return &ValidationError{Field: "token", Message: "project configuration requires an owner access token"}
	}
	return nil
}
