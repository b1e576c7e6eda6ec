package providers

import (
	"github.com/samber/do/v2"

	"github.com/musictaggerz/tagger-server/internal/artwork"
	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/logger"
	"github.com/musictaggerz/tagger-server/internal/matcher"
	"github.com/musictaggerz/tagger-server/internal/musicbrainz"
	"github.com/musictaggerz/tagger-server/internal/processor"
	"github.com/musictaggerz/tagger-server/internal/queue"
	"github.com/musictaggerz/tagger-server/internal/scanner"
	"github.com/musictaggerz/tagger-server/internal/tagging"
	"github.com/musictaggerz/tagger-server/internal/tags"
)

// ProvideTagReader provides the audio tag reader.
func ProvideTagReader(i do.Injector) (*tags.FileReader, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return tags.NewReader(log.Logger), nil
}

// ProvideTagWriter provides the audio tag writer.
func ProvideTagWriter(i do.Injector) (*tags.FileWriter, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return tags.NewWriter(log.Logger), nil
}

// ProvideScanner provides the album folder scanner.
func ProvideScanner(i do.Injector) (*scanner.Scanner, error) {
	log := do.MustInvoke[*logger.Logger](i)
	reader := do.MustInvoke[*tags.FileReader](i)

	return scanner.New(reader, nil, log.Logger)
}

// MusicBrainzHandle wraps the client so its idle connections are released
// on shutdown.
type MusicBrainzHandle struct {
	*musicbrainz.Client
}

// Shutdown implements do.Shutdownable.
func (h *MusicBrainzHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideMusicBrainzClient provides the rate-limited MusicBrainz client.
func ProvideMusicBrainzClient(i do.Injector) (*MusicBrainzHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return &MusicBrainzHandle{Client: musicbrainz.New(cfg.MusicBrainz, log.Logger)}, nil
}

// ProvideScorer provides the release match scorer.
func ProvideScorer(i do.Injector) (*matcher.Scorer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return matcher.NewScorer(cfg.Matching), nil
}

// ProvideArtworkFetcher provides the cover art source chain.
func ProvideArtworkFetcher(i do.Injector) (*artwork.Fetcher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	writer := do.MustInvoke[*tags.FileWriter](i)

	return artwork.NewFetcher(cfg.Artwork, writer, log.Logger), nil
}

// ProvideBackupManager provides the pre-write tag snapshot manager.
func ProvideBackupManager(i do.Injector) (*tagging.BackupManager, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	reader := do.MustInvoke[*tags.FileReader](i)
	writer := do.MustInvoke[*tags.FileWriter](i)

	return tagging.NewBackupManager(storeHandle.Store, reader, writer, log.Logger), nil
}

// ProvideOrchestrator provides the tagging orchestrator.
func ProvideOrchestrator(i do.Injector) (*tagging.Orchestrator, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	fileScanner := do.MustInvoke[*scanner.Scanner](i)
	mbHandle := do.MustInvoke[*MusicBrainzHandle](i)
	scorer := do.MustInvoke[*matcher.Scorer](i)
	writer := do.MustInvoke[*tags.FileWriter](i)
	fetcher := do.MustInvoke[*artwork.Fetcher](i)
	backups := do.MustInvoke[*tagging.BackupManager](i)

	return tagging.New(
		storeHandle.Store,
		fileScanner,
		mbHandle.Client,
		scorer,
		writer,
		fetcher,
		backups,
		sseHandle.Manager,
		log.Logger,
	), nil
}

// QueueHandle wraps the queue manager with shutdown capability.
type QueueHandle struct {
	*queue.Manager
}

// Shutdown implements do.Shutdownable.
func (h *QueueHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideQueue provides the tagging work queue and starts its worker.
func ProvideQueue(i do.Injector) (*QueueHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	orchestrator := do.MustInvoke[*tagging.Orchestrator](i)

	q := queue.New(storeHandle.Store, orchestrator, sseHandle.Manager, cfg.Matching, log.Logger)
	q.Start()

	log.Info("Tagging queue started", "max_retries", cfg.Matching.MaxRetries)

	return &QueueHandle{Manager: q}, nil
}

// ProvideProcessor provides the library processor that turns filesystem
// observations into stored albums and queued work.
func ProvideProcessor(i do.Injector) (*processor.Processor, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	fileScanner := do.MustInvoke[*scanner.Scanner](i)
	queueHandle := do.MustInvoke[*QueueHandle](i)

	return processor.New(
		storeHandle.Store,
		fileScanner,
		queueHandle.Manager,
		sseHandle.Manager,
		log.Logger,
	), nil
}
