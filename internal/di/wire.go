//go:build wireinject
// +build wireinject

package di

import (
	"EarnPull/pkg/config"
	"EarnPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideHTTPClient,
		ProvidePageCache,
		ProvideLimiter,
		ProvidePublisher,
		ProvideCalendar,

		// Use cases
		ProvideEarningsCache,
		ProvideForexLookup,
		ProvideSnapshotJob,
		ProvideScheduler,

		// HTTP surface
		ProvideHTTPHandler,
		ProvideHTTPServer,

		// Application server
		ProvideClosers,
		server.New,
	)
	return &server.App{}, nil
}
