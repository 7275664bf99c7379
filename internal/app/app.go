package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/neupass/pkg/neupass"
	"github.com/aussiebroadwan/neupass/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires one protocol client, one credential store and the three
// application clients sharing them.
type Application struct {
	cfg    Config
	logger *slog.Logger

	client *neupass.Client
	store  neupass.CredentialStore

	ECode     *neupass.ECodeClient
	Personal  *neupass.PersonalClient
	Assistant *neupass.AssistantClient
}

// New creates a new Application with its credentials seeded into an
// in-memory store.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "neupass",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  cfg.LogOutput,
		}),
	}

	app.initClient()

	store := neupass.NewMemoryStore()
	if err := neupass.SaveCredentials(store, neupass.Credentials{
		StudentID: cfg.StudentID,
		Password:  cfg.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to seed credentials: %w", err)
	}
	app.store = store

	app.ECode = neupass.NewECodeClient(app.client, app.store)
	app.Personal = neupass.NewPersonalClient(app.client, app.store)
	app.Assistant = neupass.NewAssistantClient(app.client, app.store)

	return app, nil
}

func (app *Application) initClient() {
	client := neupass.NewClient(app.endpoints())
	client.HTTPClient.Transport = neupass.NewTransport(app.cfg.Throttle)
	if app.cfg.Timeout > 0 {
		client.HTTPClient.Timeout = app.cfg.Timeout
	}
	if app.cfg.AppVersion != "" {
		client.AppVersion = app.cfg.AppVersion
	}
	if app.cfg.UserAgent != "" {
		client.UserAgent = app.cfg.UserAgent
	}
	app.client = client
}

func (app *Application) endpoints() neupass.Endpoints {
	e := neupass.DefaultEndpoints()
	if app.cfg.PassURL != "" {
		e.Pass = app.cfg.PassURL
	}
	if app.cfg.PersonalURL != "" {
		e.Personal = app.cfg.PersonalURL
	}
	if app.cfg.ECodeURL != "" {
		e.ECode = app.cfg.ECodeURL
	}
	if app.cfg.AssistantURL != "" {
		e.Assistant = app.cfg.AssistantURL
	}
	return e
}

// Context attaches the application logger to ctx.
func (app *Application) Context(ctx context.Context) context.Context {
	return slogx.WithContext(ctx, app.logger)
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}
