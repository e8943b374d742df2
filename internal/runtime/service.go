package runtime

import (
	"net/http"
	"time"

	"zerostack-chat/internal/app"
	"zerostack-chat/internal/client"
	"zerostack-chat/internal/config"
	"zerostack-chat/internal/identity"
	"zerostack-chat/internal/logging"
	"zerostack-chat/internal/realtime"
	"zerostack-chat/internal/sessionstore"
	"zerostack-chat/internal/socketio"
)

const defaultHTTPTimeout = 10 * time.Second

// Service is the chat stack wired from one set of options.
type Service struct {
	App       *app.ChatApp
	Client    *client.ZeroStackClient
	Channel   *realtime.Channel
	Store     *sessionstore.Store
	Endpoints config.APIEndpoints
}

func NewService(opts config.Options, logger *logging.Logger, hooks app.Callbacks) (*Service, error) {
	if logger == nil {
		panic("runtime.NewService: logger must not be nil")
	}
	if err := config.ValidateRequired(opts); err != nil {
		return nil, err
	}

	endpoints, err := config.BuildEndpoints(opts.APIURL, opts.RealtimeURL)
	if err != nil {
		return nil, err
	}
	logger.Debug("constructed API endpoints",
		logging.Field("api_url", endpoints.APIURL),
		logging.Field("realtime_url", endpoints.RealtimeURL),
	)

	store, err := sessionstore.New(opts.SessionFile, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("session store ready", logging.Field("path", store.Path()))

	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	zs := client.New(httpClient, opts.APIKey, endpoints, identity.NewResolver(identity.Session{}), logger)
	channel := realtime.New(RealtimeDialer(endpoints.RealtimeURL, opts.APIKey, logger), logger)

	return &Service{
		App:       app.New(zs, channel, store, logger, hooks),
		Client:    zs,
		Channel:   channel,
		Store:     store,
		Endpoints: endpoints,
	}, nil
}

// RealtimeDialer opens Socket.IO connections to origin, presenting apiKey
// in the namespace handshake.
func RealtimeDialer(origin string, apiKey string, logger *logging.Logger) realtime.Dialer {
	if logger == nil {
		panic("runtime.RealtimeDialer: logger must not be nil")
	}
	return func() (realtime.Transport, error) {
		transport, err := socketio.New(socketio.Options{
			URL:    origin,
			Auth:   map[string]any{"apiKey": apiKey},
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return transport, nil
	}
}
