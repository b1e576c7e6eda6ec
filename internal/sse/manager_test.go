package sse

import (
	"log/slog"
	"testing"
	"time"

	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(slog.New(slog.DiscardHandler))
}

func TestManager_EmitWithoutSubscribers(t *testing.T) {
	m := newTestManager()

	// Emitting with nobody connected must not error or block.
	album := &domain.Album{Status: domain.StatusPending}
	album.ID = "alb-1"
	m.Emit(NewAlbumCreatedEvent(album))

	assert.Equal(t, 0, m.ClientCount())
}

func TestManager_BroadcastDelivers(t *testing.T) {
	m := newTestManager()

	client := m.Connect()
	defer m.Disconnect(client.ID)

	album := &domain.Album{Status: domain.StatusTagged}
	album.ID = "alb-1"
	m.broadcast(NewAlbumUpdatedEvent(album))

	select {
	case evt := <-client.EventChan:
		assert.Equal(t, EventAlbumUpdated, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestManager_SlowClientDoesNotBlock(t *testing.T) {
	m := newTestManager()

	client := m.Connect()
	defer m.Disconnect(client.ID)

	// Fill the client buffer without draining it.
	for i := 0; i < 150; i++ {
		m.broadcast(NewQueueUpdatedEvent(i, ""))
	}

	// broadcast returned, so the slow client dropped the overflow rather
	// than stalling the publisher.
	assert.Len(t, client.EventChan, 100)
}

func TestManager_Disconnect(t *testing.T) {
	m := newTestManager()

	client := m.Connect()
	require.Equal(t, 1, m.ClientCount())

	m.Disconnect(client.ID)
	assert.Equal(t, 0, m.ClientCount())

	select {
	case <-client.Done:
	default:
		t.Fatal("Done channel should be closed after disconnect")
	}

	// Disconnecting twice is a no-op.
	m.Disconnect(client.ID)
}

func TestManager_ScanStateTracking(t *testing.T) {
	m := newTestManager()

	assert.False(t, m.IsScanning())

	m.broadcast(NewScanStartedEvent("/music"))
	assert.True(t, m.IsScanning())

	m.broadcast(NewScanCompleteEvent("/music", 3, 1, 0))
	assert.False(t, m.IsScanning())
}
