// Package app assembles the service graph and owns process lifecycle.
package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/database"
	"github.com/trustbridge/auth/handlers"
	"github.com/trustbridge/auth/server"
	"github.com/trustbridge/auth/services/auth"
	"github.com/trustbridge/auth/services/events"
	"github.com/trustbridge/auth/services/logging"
	"github.com/trustbridge/auth/services/mail"
	"github.com/trustbridge/auth/services/refreshtoken"
	"github.com/trustbridge/auth/services/revocation"
	"github.com/trustbridge/auth/services/tokens"
	"github.com/trustbridge/auth/services/wallet"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

type App struct {
	fx *fx.App
}

// New builds the full application. customConfig overrides environment
// loading; pass nil in production.
func New(customConfig *config.Config) *App {
	fxApp := fx.New(
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
		config.NewProvider(customConfig),
		logging.Options,
		database.Module,
		fx.Supply(database.WithModels(&wallet.User{}, &refreshtoken.RefreshToken{})),
		tokens.Options,
		wallet.Options,
		refreshtoken.Options,
		revocation.Options,
		events.Options,
		mail.Options,
		auth.Options,
		server.NewProvider(),
		handlers.Options,
	)
	return &App{fx: fxApp}
}

func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.fx.Stop(ctx)
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() {
	if err := a.Start(context.Background()); err != nil {
		log.Fatalf("failed to start application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		log.Printf("failed to stop application gracefully: %v", err)
	}
}
