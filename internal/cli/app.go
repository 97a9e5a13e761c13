package cli

import (
	"fmt"

	"github.com/filedock/filedock/internal/api"
	"github.com/filedock/filedock/internal/config"
	"github.com/filedock/filedock/internal/constants"
	"github.com/filedock/filedock/internal/events"
	"github.com/filedock/filedock/internal/http"
	"github.com/filedock/filedock/internal/logging"
	"github.com/filedock/filedock/internal/registry"
	"github.com/filedock/filedock/internal/selection"
	"github.com/filedock/filedock/internal/session"
	"github.com/filedock/filedock/internal/state"
	"github.com/filedock/filedock/internal/transfer"
	"github.com/filedock/filedock/internal/upload"
)

// loadConfig resolves configuration: defaults, then the INI file, then
// FILEDOCK_* variables, then command-line flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if tokenFile != "" {
		cfg.TokenFile = tokenFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// app wires the components one command needs.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	bus       *events.EventBus
	store     *session.FileStore
	client    *api.Client
	list      *state.FileListState
	registry  *registry.Registry
	selection *selection.Controller
}

// newApp loads configuration and builds the client stack.
func newApp(opts ...selection.Option) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newAppWithConfig(cfg, opts...)
}

func newAppWithConfig(cfg *config.Config, opts ...selection.Option) (*app, error) {
	log := GetLogger()

	if http.NeedsProxyPassword(cfg) {
		password, err := promptPassword(fmt.Sprintf("Proxy password for %s: ", cfg.ProxyUser))
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.ProxyPassword = password
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	store := session.NewFileStore(cfg.TokenFile)

	client, err := api.NewClient(cfg, store, api.WithEventBus(bus), api.WithLogger(log))
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	list := state.NewFileListState(bus)
	reg := registry.New(client, list, log)

	opts = append([]selection.Option{selection.WithEventBus(bus), selection.WithLogger(log)}, opts...)
	sel := selection.New(reg, client, opts...)

	return &app{
		cfg:       cfg,
		logger:    log,
		bus:       bus,
		store:     store,
		client:    client,
		list:      list,
		registry:  reg,
		selection: sel,
	}, nil
}

// uploader builds an orchestrator rendering into the registry and any extra
// renderers. maxConcurrent < 0 keeps the configured cap.
func (a *app) uploader(maxConcurrent int, extra ...upload.SlotRenderer) (*upload.Orchestrator, error) {
	transferClient, err := http.CreateTransferClient(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer client: %w", err)
	}
	if maxConcurrent < 0 {
		maxConcurrent = a.cfg.MaxConcurrent
	}

	renderers := append([]upload.SlotRenderer{a.registry}, extra...)
	return upload.New(a.client,
		upload.WithTransferClient(transferClient),
		upload.WithQueue(transfer.NewQueue(a.bus)),
		upload.WithRenderers(renderers...),
		upload.WithMaxConcurrent(maxConcurrent),
		upload.WithLogger(a.logger),
	), nil
}

// requireSession fails early when no token is stored.
func (a *app) requireSession() error {
	if !a.client.Authenticated() {
		return api.ErrNotAuthenticated
	}
	return nil
}

func (a *app) Close() {
	a.bus.Close()
}
