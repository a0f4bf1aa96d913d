package app

import (
	"context"
	"os"
	"time"

	"github.com/gati-framework/gati-operator/internal/infra/appstate"
	"github.com/gati-framework/gati-operator/internal/infra/shutdown"
)

// appstater defines the interface for application state management
type appstater interface {
	RegisterShutdowner(shutdowner shutdown.Shutdowner) error
	Quit() <-chan os.Signal
	SetStarting(ctx context.Context) error
	SetRunning(ctx context.Context) error
	SetTerminating(ctx context.Context) error
	GetStartTime() time.Time
	GetState() appstate.State
	GetUptime() time.Duration
	IsHealthy() bool
	IsReady() bool
	Shutdown(ctx context.Context) error
}

// appServer is a long-running component with a lifecycle the app manages.
type appServer interface {
	Start(ctx context.Context) error
	Ready() <-chan struct{}
	Ping(ctx context.Context) error
	shutdown.Shutdowner
}
