package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/gati-framework/gati-operator/internal/adapters/outbound/k8s"
	"github.com/gati-framework/gati-operator/internal/config"
	"github.com/gati-framework/gati-operator/internal/httpserver"
	"github.com/gati-framework/gati-operator/internal/infra/resync"
	"github.com/gati-framework/gati-operator/internal/logic/controller"
	"github.com/gati-framework/gati-operator/internal/logic/reconcile"
	"github.com/gati-framework/gati-operator/internal/logic/store"
)

const startTimeout = 30 * time.Second

// App owns the operator's components and their startup/shutdown order.
type App struct {
	logger   *slog.Logger
	appState appstater
	servers  []appServer
}

// New creates a new application instance with all dependencies wired.
func New(logger *slog.Logger, cfg *config.Config, appState appstater) (*App, error) {
	kubeConfig, err := clientcmd.BuildConfigFromFlags(
		cfg.KubeMaster,
		cfg.KubeConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(kubeConfig)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	backend := k8s.New(logger, dynamicClient)
	resourceStore := store.New(logger, backend, store.DefaultRetryConfig())

	reconciler := reconcile.New(logger, resourceStore)

	controllerService := controller.New(
		logger,
		resourceStore,
		reconciler,
		cfg.Namespace,
		store.RetryConfig{
			InitialDelay: cfg.RetryInitialDelay,
			MaxDelay:     cfg.RetryMaxDelay,
			MaxRetries:   cfg.MaxRetries,
		},
	)

	metricsServer := httpserver.NewMetricsServer(logger, cfg.MetricsPort)
	httpServer := httpserver.New(logger, appState, cfg.HTTPPort)

	// Startup order; shutdown runs in reverse, so the controller drains
	// before the HTTP surfaces disappear.
	servers := []appServer{metricsServer, httpServer, controllerService}

	if cfg.ResyncSchedule != "" {
		schedule, err := resync.ParseSchedule(cfg.ResyncSchedule, cfg.ResyncTZ)
		if err != nil {
			return nil, fmt.Errorf("resync schedule: %w", err)
		}

		servers = append(servers, resync.New(logger, schedule, controllerService))
	}

	for _, server := range servers {
		if err := appState.RegisterShutdowner(server); err != nil {
			return nil, fmt.Errorf("register shutdowner %s: %w", server.Name(), err)
		}
	}

	return &App{
		logger:   logger,
		appState: appState,
		servers:  servers,
	}, nil
}

// Run starts all components and blocks until a termination signal or context
// cancellation, then shuts them down gracefully.
func (a *App) Run(originCtx context.Context) error {
	ctx, cancel := context.WithCancel(originCtx)
	defer cancel()

	if err := a.appState.SetStarting(ctx); err != nil {
		return fmt.Errorf("set starting state: %w", err)
	}

	if err := a.startServers(ctx); err != nil {
		return err
	}

	if err := a.appState.SetRunning(ctx); err != nil {
		return fmt.Errorf("set running state: %w", err)
	}

	a.logger.InfoContext(ctx, "operator running")

	select {
	case <-ctx.Done():
		a.logger.InfoContext(ctx, "context done, terminating")
	case <-a.appState.Quit():
		a.logger.InfoContext(ctx, "received termination signal, terminating")
	}

	// Stop the components' background loops, then drain them. Shutdown
	// itself must proceed even though the run context is ending.
	cancel()

	return a.appState.Shutdown(context.WithoutCancel(ctx))
}

// startServers brings every component up in registration order: start, wait
// for readiness, then ping to verify it actually serves before the next
// component (which may depend on it) starts.
func (a *App) startServers(ctx context.Context) error {
	for _, server := range a.servers {
		a.logger.InfoContext(ctx, "starting component", "component", server.Name())

		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", server.Name(), err)
		}

		if err := a.waitReady(ctx, server); err != nil {
			return err
		}

		if err := server.Ping(ctx); err != nil {
			return fmt.Errorf("ping %s after start: %w", server.Name(), err)
		}
	}

	return nil
}

func (a *App) waitReady(ctx context.Context, server appServer) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait for %s: %w", server.Name(), ctx.Err())
	case <-time.After(startTimeout):
		return fmt.Errorf("wait for %s: not ready after %s", server.Name(), startTimeout)
	case <-server.Ready():
		return nil
	}
}
