package artwork

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musictaggerz/tagger-server/internal/config"
	"github.com/musictaggerz/tagger-server/internal/domain"
	"github.com/musictaggerz/tagger-server/internal/musicbrainz"
	"github.com/musictaggerz/tagger-server/internal/tags"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type stubSource struct {
	name  string
	cover *Cover
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(_ context.Context, _ Query) (*Cover, error) {
	s.calls++
	return s.cover, s.err
}

func TestFetch_TriesSourcesInOrder(t *testing.T) {
	data := makePNG(t, 100, 80)
	failing := &stubSource{name: "first", err: errors.New("boom")}
	empty := &stubSource{name: "second"}
	hit := &stubSource{name: "third", cover: &Cover{Data: data}}

	f := &Fetcher{sources: []Source{failing, empty, hit}, logger: testLogger()}
	cover, err := f.Fetch(context.Background(), Query{})
	require.NoError(t, err)
	require.NotNil(t, cover)

	assert.Equal(t, "third", cover.Source)
	assert.Equal(t, 100, cover.Width)
	assert.Equal(t, 80, cover.Height)
	assert.Equal(t, "image/png", cover.MIME)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, empty.calls)
}

func TestFetch_RejectsUndecodableImages(t *testing.T) {
	junk := &stubSource{name: "junk", cover: &Cover{Data: []byte("not an image")}}
	f := &Fetcher{sources: []Source{junk}, logger: testLogger()}

	cover, err := f.Fetch(context.Background(), Query{})
	require.NoError(t, err)
	assert.Nil(t, cover)
}

func TestFolderSource(t *testing.T) {
	dir := t.TempDir()
	data := makePNG(t, 50, 50)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Front.PNG"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "random.png"), data, 0o644))

	src := &folderSource{logger: testLogger()}
	cover, err := src.Fetch(context.Background(), Query{Folder: dir})
	require.NoError(t, err)
	require.NotNil(t, cover)

	assert.Equal(t, filepath.Join(dir, "Front.PNG"), cover.Path)
	assert.Equal(t, "image/png", cover.MIME)
	assert.Equal(t, data, cover.Data)
}

func TestFolderSource_PrefersCoverOverFront(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "front.jpg"), []byte("front"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("cover"), 0o644))

	src := &folderSource{logger: testLogger()}
	cover, err := src.Fetch(context.Background(), Query{Folder: dir})
	require.NoError(t, err)
	require.NotNil(t, cover)
	assert.Equal(t, filepath.Join(dir, "cover.jpg"), cover.Path)
}

func TestFolderSource_NothingThere(t *testing.T) {
	src := &folderSource{logger: testLogger()}
	cover, err := src.Fetch(context.Background(), Query{Folder: t.TempDir()})
	require.NoError(t, err)
	assert.Nil(t, cover)
}

func TestCoverArtSource(t *testing.T) {
	data := makePNG(t, 60, 60)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release/rel-1/front":
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	src := newCoverArtSource(testLogger())
	src.baseURL = server.URL

	cover, err := src.Fetch(context.Background(), Query{ReleaseID: "rel-1"})
	require.NoError(t, err)
	require.NotNil(t, cover)
	assert.Equal(t, data, cover.Data)
	assert.Equal(t, "image/png", cover.MIME)

	// A release without art is a miss, not an error.
	cover, err = src.Fetch(context.Background(), Query{ReleaseID: "rel-2"})
	require.NoError(t, err)
	assert.Nil(t, cover)

	// An empty release ID never hits the network.
	cover, err = src.Fetch(context.Background(), Query{})
	require.NoError(t, err)
	assert.Nil(t, cover)
}

func TestITunesSource(t *testing.T) {
	data := makePNG(t, 70, 70)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "album", r.URL.Query().Get("entity"))
			artworkURL := server.URL + "/art/100x100bb.jpg"
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"resultCount":2,"results":[` +
				`{"artistName":"Completely Different","collectionName":"Unrelated Record","artworkUrl100":"` + artworkURL + `"},` +
				`{"artistName":"Slowdive","collectionName":"Souvlaki","artworkUrl100":"` + artworkURL + `"}]}`))
		case "/art/1400x1400bb.jpg":
			w.Write(data)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	src := newITunesSource(testLogger())
	src.baseURL = server.URL + "/search"

	cover, err := src.Fetch(context.Background(), Query{Artist: "Slowdive", Album: "Souvlaki"})
	require.NoError(t, err)
	require.NotNil(t, cover)
	assert.Equal(t, data, cover.Data)
}

func TestITunesSource_NoPlausibleMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"resultCount":1,"results":[` +
			`{"artistName":"Somebody Else","collectionName":"Wrong Album","artworkUrl100":"http://example.invalid/a/100x100bb.jpg"}]}`))
	}))
	defer server.Close()

	src := newITunesSource(testLogger())
	src.baseURL = server.URL

	cover, err := src.Fetch(context.Background(), Query{Artist: "Slowdive", Album: "Souvlaki"})
	require.NoError(t, err)
	assert.Nil(t, cover)
}

func TestMaxCoverURL(t *testing.T) {
	assert.Equal(t,
		"https://a.mzstatic.com/img/x/1400x1400bb.jpg",
		maxCoverURL("https://a.mzstatic.com/img/x/100x100bb.jpg"))
	assert.Empty(t, maxCoverURL(""))
}

func TestWordOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, wordOverlap("Slowdive", "slowdive"), 0.001)
	assert.InDelta(t, 0, wordOverlap("Slowdive", "Radiohead"), 0.001)
	assert.Greater(t, wordOverlap("The Dark Side of the Moon", "Dark Side of the Moon"), 0.7)
	assert.Zero(t, wordOverlap("", "anything"))
}

type fakeWriter struct {
	mu       sync.Mutex
	embedded map[string]string
}

func (w *fakeWriter) WriteTags(_ context.Context, _ string, _ *tags.TrackTags) error {
	return nil
}

func (w *fakeWriter) EmbedArtwork(_ context.Context, path string, _ []byte, mimeType string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.embedded == nil {
		w.embedded = make(map[string]string)
	}
	w.embedded[path] = mimeType
	return nil
}

func TestApply(t *testing.T) {
	dir := t.TempDir()
	data := makePNG(t, 120, 120)
	writer := &fakeWriter{}

	f := &Fetcher{
		sources: []Source{&stubSource{name: "stub", cover: &Cover{Data: data}}},
		writer:  writer,
		cfg:     config.ArtworkConfig{Embed: true, SaveFile: true},
		logger:  testLogger(),
	}

	album := &domain.Album{
		Path: dir,
		Tracks: []domain.Track{
			{Path: filepath.Join(dir, "01.flac")},
			{Path: filepath.Join(dir, "02.flac")},
		},
	}
	album.ID = "alb_1"

	release := &musicbrainz.Release{ID: "rel-1", Artist: "Slowdive", Title: "Souvlaki"}
	require.NoError(t, f.Apply(context.Background(), album, release))

	assert.Equal(t, filepath.Join(dir, "cover.png"), album.CoverPath)
	saved, err := os.ReadFile(album.CoverPath)
	require.NoError(t, err)
	assert.Equal(t, data, saved)

	assert.NotEmpty(t, album.CoverBlurhash)
	assert.Len(t, writer.embedded, 2)
	assert.Equal(t, "image/png", writer.embedded[album.Tracks[0].Path])
}

func TestApply_NoArtworkIsNotAnError(t *testing.T) {
	f := &Fetcher{
		sources: []Source{&stubSource{name: "empty"}},
		cfg:     config.ArtworkConfig{Embed: true, SaveFile: true},
		logger:  testLogger(),
	}

	album := &domain.Album{Path: t.TempDir()}
	require.NoError(t, f.Apply(context.Background(), album, &musicbrainz.Release{ID: "rel-1"}))
	assert.Empty(t, album.CoverPath)
	assert.Empty(t, album.CoverBlurhash)
}

func TestApply_FolderCoverKeepsItsPath(t *testing.T) {
	dir := t.TempDir()
	data := makePNG(t, 90, 90)
	existing := filepath.Join(dir, "cover.png")
	require.NoError(t, os.WriteFile(existing, data, 0o644))

	f := &Fetcher{
		sources: []Source{&folderSource{logger: testLogger()}},
		cfg:     config.ArtworkConfig{SaveFile: true},
		logger:  testLogger(),
	}

	album := &domain.Album{Path: dir}
	require.NoError(t, f.Apply(context.Background(), album, nil))
	assert.Equal(t, existing, album.CoverPath)
}

func TestNewFetcher_SkipsUnknownSources(t *testing.T) {
	f := NewFetcher(config.ArtworkConfig{
		Sources: []string{"filesystem", "bogus", "coverart", "itunes"},
	}, nil, testLogger())
	require.Len(t, f.sources, 3)
	assert.Equal(t, "filesystem", f.sources[0].Name())
	assert.Equal(t, "coverart", f.sources[1].Name())
	assert.Equal(t, "itunes", f.sources[2].Name())
}
