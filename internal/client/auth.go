package client

import (
	"context"
	"net/http"

	"zerostack-chat/internal/logging"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for tokens. It does not install the token;
// callers decide when to call Identity().SetToken.
func (c *ZeroStackClient) Login(ctx context.Context, email string, password string) (AuthResult, error) {
	return c.authenticate(ctx, "/auth/login", email, password)
}

func (c *ZeroStackClient) Register(ctx context.Context, email string, password string) (AuthResult, error) {
	return c.authenticate(ctx, "/auth/register", email, password)
}

func (c *ZeroStackClient) authenticate(ctx context.Context, path string, email string, password string) (AuthResult, error) {
	var result AuthResult
	if err := c.executeInto(ctx, http.MethodPost, path, credentials{Email: email, Password: password}, &result); err != nil {
		return AuthResult{}, err
	}
	c.logger.Info("authenticated",
		logging.Field("path", path),
		logging.Field("user", result.User.Email),
		logging.Field("token", logging.RedactToken(result.AccessToken)),
	)
	return result, nil
}
