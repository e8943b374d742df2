package app

import (
	"context"
	"strings"

	"zerostack-chat/internal/client"
	"zerostack-chat/internal/identity"
	"zerostack-chat/internal/logging"
	"zerostack-chat/internal/runctx"
	"zerostack-chat/internal/runstatus"
	"zerostack-chat/internal/sessionstore"
)

// RestoreSession re-installs a saved login. It reports false, and forgets
// the saved login, when it is unreadable or its token has expired.
func (a *ChatApp) RestoreSession() (bool, error) {
	record, err := a.store.Load()
	if err != nil {
		a.logger.Warn("discarding unreadable saved session", logging.Field("error", err))
		return false, a.store.ClearAuth()
	}
	if !record.Authenticated() {
		return false, nil
	}
	if err := identity.CheckToken(record.Token, a.now()); err != nil {
		a.logger.Info("saved session expired", logging.Field("user", record.User.Email))
		return false, a.store.ClearAuth()
	}

	a.mu.Lock()
	user := *record.User
	a.user = &user
	a.refreshToken = record.RefreshToken
	a.mu.Unlock()
	a.identity().SetToken(record.Token)
	a.logger.Info("session restored",
		logging.Field("user", user.Email),
		logging.Field("token", logging.RedactToken(record.Token)),
	)
	return true, nil
}

func (a *ChatApp) Login(ctx context.Context, email string, password string) error {
	email, err := validateCredentials(email, password)
	if err != nil {
		return err
	}
	result, err := a.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.completeAuth(result)
	return nil
}

func (a *ChatApp) Register(ctx context.Context, email string, password string, confirm string) error {
	email, err := validateCredentials(email, password)
	if err != nil {
		return err
	}
	if password != confirm {
		return ErrPasswordsMismatch
	}
	result, err := a.client.Register(ctx, email, password)
	if err != nil {
		return err
	}
	a.completeAuth(result)
	return nil
}

func validateCredentials(email string, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", validation("email", "Email is required")
	}
	if password == "" {
		return "", validation("password", "Password is required")
	}
	return email, nil
}

// completeAuth switches the SDK to the new token, drops the guest identity
// and saves the login.
func (a *ChatApp) completeAuth(result client.AuthResult) {
	a.mu.Lock()
	user := result.User
	a.user = &user
	a.refreshToken = result.RefreshToken
	a.mu.Unlock()

	a.identity().SetToken(result.AccessToken)
	a.identity().ClearGuestID()

	if _, err := a.store.Update(func(r *sessionstore.Record) {
		r.User = &user
		r.Token = result.AccessToken
		r.RefreshToken = result.RefreshToken
	}); err != nil {
		a.logger.Warn("failed to save session", logging.Field("error", err))
	}
}

// EnterAsGuest drops any token and acts under the persisted guest id,
// generating one on first use.
func (a *ChatApp) EnterAsGuest() {
	guestID, err := a.store.EnsureGuestID()
	if err != nil {
		guestID = identity.NewGuestID()
		a.logger.Warn("guest id not persisted; using a temporary one", logging.Field("error", err))
	}

	a.mu.Lock()
	a.user = nil
	a.refreshToken = ""
	a.guestID = guestID
	a.mu.Unlock()

	a.identity().ClearToken()
	a.identity().SetGuestID(guestID)
	a.logger.Info("entered as guest", logging.Field("guest", identity.GuestDisplayName(guestID)))
}

// Logout forgets the login locally and on disk and drops the realtime
// connection. The guest id survives.
func (a *ChatApp) Logout() {
	a.resetLocal()
	if err := a.store.ClearAuth(); err != nil {
		a.logger.Warn("failed to clear saved session", logging.Field("error", err))
	}
	a.logger.Info("logged out")
}

func (a *ChatApp) resetLocal() {
	a.mu.Lock()
	a.user = nil
	a.refreshToken = ""
	a.leaveLocked()
	a.mu.Unlock()

	a.identity().ClearToken()
	a.channel.Disconnect()
	a.setRuntimeStatus(runstatus.Offline)
	a.notifyLog()
}

// WatchSession follows the saved session file and signs out when another
// instance logs out. It blocks until ctx is done.
func (a *ChatApp) WatchSession(ctx context.Context) error {
	records := make(chan sessionstore.Record, 1)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- a.store.Watch(ctx, func(r sessionstore.Record) {
			runctx.SendOrDone(ctx, "session watcher", a.logger, records, r)
		})
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			return err
		case record := <-records:
			if record.Authenticated() || !a.Authenticated() {
				continue
			}
			a.logger.Info("saved login cleared by another instance")
			a.resetLocal()
			if a.hooks.OnSignedOut != nil {
				a.hooks.OnSignedOut()
			}
		}
	}
}
