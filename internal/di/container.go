// Package di provides dependency injection configuration for the tagger server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/musictaggerz/tagger-server/internal/artwork"
	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/di/providers"
	"github.com/musictaggerz/tagger-server/internal/logger"
	"github.com/musictaggerz/tagger-server/internal/matcher"
	"github.com/musictaggerz/tagger-server/internal/processor"
	"github.com/musictaggerz/tagger-server/internal/scanner"
	"github.com/musictaggerz/tagger-server/internal/tagging"
	"github.com/musictaggerz/tagger-server/internal/tags"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Tagging pipeline
	do.Provide(injector, providers.ProvideTagReader)
	do.Provide(injector, providers.ProvideTagWriter)
	do.Provide(injector, providers.ProvideScanner)
	do.Provide(injector, providers.ProvideMusicBrainzClient)
	do.Provide(injector, providers.ProvideScorer)
	do.Provide(injector, providers.ProvideArtworkFetcher)
	do.Provide(injector, providers.ProvideBackupManager)
	do.Provide(injector, providers.ProvideOrchestrator)
	do.Provide(injector, providers.ProvideQueue)
	do.Provide(injector, providers.ProvideProcessor)

	// Workers
	do.Provide(injector, providers.ProvideFileWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is running.
// This triggers lazy initialization of every provider.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	// Pipeline
	_ = do.MustInvoke[*tags.FileReader](injector)
	_ = do.MustInvoke[*tags.FileWriter](injector)
	_ = do.MustInvoke[*scanner.Scanner](injector)
	_ = do.MustInvoke[*providers.MusicBrainzHandle](injector)
	_ = do.MustInvoke[*matcher.Scorer](injector)
	_ = do.MustInvoke[*artwork.Fetcher](injector)
	_ = do.MustInvoke[*tagging.Orchestrator](injector)
	_ = do.MustInvoke[*providers.QueueHandle](injector)
	_ = do.MustInvoke[*processor.Processor](injector)

	// Workers
	_ = do.MustInvoke[*providers.FileWatcherHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Rebuild the search index if the store has albums it does not know about
	providers.TriggerSearchReindexIfNeeded(injector)

	// Catch up on library changes made while the server was down
	providers.RunInitialScan(injector)

	return nil
}
