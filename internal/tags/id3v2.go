package tags

import (
	"os"
	"strconv"

	"github.com/musictaggerz/tagger-server/internal/errors"
)

// ID3v2.4 text frame IDs written by the pipeline.
const (
	id3FrameTitle       = "TIT2"
	id3FrameArtist      = "TPE1"
	id3FrameAlbum       = "TALB"
	id3FrameAlbumArtist = "TPE2"
	id3FrameGenre       = "TCON"
	id3FrameYear        = "TDRC"
	id3FrameTrack       = "TRCK"
	id3FrameDisc        = "TPOS"
	id3FramePicture     = "APIC"
)

// id3TextEncodingUTF8 is the ID3v2.4 encoding byte for UTF-8.
const id3TextEncodingUTF8 = 0x03

// syncsafe encodes a length as a 4-byte syncsafe integer.
func syncsafe(n int) [4]byte {
	return [4]byte{
		byte(n >> 21 & 0x7F),
		byte(n >> 14 & 0x7F),
		byte(n >> 7 & 0x7F),
		byte(n & 0x7F),
	}
}

// parseSyncsafe decodes a 4-byte syncsafe integer.
func parseSyncsafe(b []byte) int {
	return int(b[0]&0x7F)<<21 | int(b[1]&0x7F)<<14 | int(b[2]&0x7F)<<7 | int(b[3]&0x7F)
}

// id3TagSize returns the total byte length of a leading ID3v2 tag, or 0.
func id3TagSize(raw []byte) int {
	if len(raw) < 10 || string(raw[:3]) != "ID3" {
		return 0
	}
	size := 10 + parseSyncsafe(raw[6:10])
	if raw[5]&0x10 != 0 { // footer present
		size += 10
	}
	if size > len(raw) {
		return 0
	}
	return size
}

// id3TagBuilder accumulates frames for a single ID3v2.4 tag.
type id3TagBuilder struct {
	frames  []byte
	written map[string]bool
}

func newID3TagBuilder() *id3TagBuilder {
	return &id3TagBuilder{written: make(map[string]bool)}
}

func (b *id3TagBuilder) appendFrame(id string, body []byte) {
	size := syncsafe(len(body))
	b.frames = append(b.frames, id...)
	b.frames = append(b.frames, size[:]...)
	b.frames = append(b.frames, 0x00, 0x00) // frame flags
	b.frames = append(b.frames, body...)
	b.written[id] = true
}

func (b *id3TagBuilder) addText(id, value string) {
	if value == "" {
		return
	}
	body := make([]byte, 0, len(value)+1)
	body = append(body, id3TextEncodingUTF8)
	body = append(body, value...)
	b.appendFrame(id, body)
}

func (b *id3TagBuilder) addPicture(image []byte, mimeType string) {
	body := make([]byte, 0, len(image)+len(mimeType)+4)
	body = append(body, id3TextEncodingUTF8)
	body = append(body, mimeType...)
	body = append(body, 0x00)
	body = append(body, 0x03) // Picture type: front cover
	body = append(body, 0x00) // Empty description
	body = append(body, image...)
	b.appendFrame(id3FramePicture, body)
}

// marshal builds the complete tag with header.
func (b *id3TagBuilder) marshal() []byte {
	size := syncsafe(len(b.frames))
	out := make([]byte, 0, 10+len(b.frames))
	out = append(out, 'I', 'D', '3', 0x04, 0x00, 0x00)
	out = append(out, size[:]...)
	return append(out, b.frames...)
}

// trackFraction renders "n" or "n/total" for TRCK and TPOS frames.
func trackFraction(num, total int) string {
	if num <= 0 {
		return ""
	}
	s := strconv.Itoa(num)
	if total > 0 {
		s += "/" + strconv.Itoa(total)
	}
	return s
}

// writeMP3Tags strips any existing ID3v2 tag from an MP3 file and prepends a
// fresh ID3v2.4 tag with the given values, carrying over unrelated frames
// such as cover art from an existing v2.4 tag.
func writeMP3Tags(path string, t *TrackTags) error {
	return rewriteMP3(path, func(b *id3TagBuilder) {
		b.addText(id3FrameTitle, t.Title)
		b.addText(id3FrameArtist, t.Artist)
		b.addText(id3FrameAlbum, t.Album)
		b.addText(id3FrameAlbumArtist, t.AlbumArtist)
		b.addText(id3FrameGenre, t.Genre)
		if t.Year > 0 {
			b.addText(id3FrameYear, strconv.Itoa(t.Year))
		}
		b.addText(id3FrameTrack, trackFraction(t.TrackNumber, t.TrackTotal))
		b.addText(id3FrameDisc, trackFraction(t.DiscNumber, t.DiscTotal))
	})
}

// embedMP3Picture rebuilds the leading tag with the existing text frames
// preserved and the given image as the front cover.
func embedMP3Picture(path string, image []byte, mimeType string) error {
	return rewriteMP3(path, func(b *id3TagBuilder) {
		b.addPicture(image, mimeType)
	})
}

// rewriteMP3 reads the file, carries over text frames from any existing
// ID3v2.4 tag, lets build add or replace frames, and atomically replaces the
// file with the new tag prepended to the audio data.
func rewriteMP3(path string, build func(*id3TagBuilder)) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeReadFailed, "read mp3 file")
	}

	audio := raw[id3TagSize(raw):]

	b := newID3TagBuilder()
	build(b)
	for _, frame := range carryoverFrames(raw, b.written) {
		b.frames = append(b.frames, frame...)
	}

	tag := b.marshal()
	out := make([]byte, 0, len(tag)+len(audio))
	out = append(out, tag...)
	out = append(out, audio...)

	return replaceFile(path, out)
}

// carryoverFrames extracts raw frames from an existing ID3v2.4 tag that were
// not just rewritten, so embedding artwork keeps text tags and retagging keeps
// artwork. Frames from ID3v2.3 and older tags are not carried since their
// sizes and text encodings differ.
func carryoverFrames(raw []byte, written map[string]bool) [][]byte {
	tagSize := id3TagSize(raw)
	if tagSize == 0 || raw[3] != 0x04 {
		return nil
	}
	if raw[5]&0x40 != 0 { // extended header, not produced by this writer
		return nil
	}

	var frames [][]byte
	pos := 10
	for pos+10 <= tagSize {
		id := string(raw[pos : pos+4])
		if id[0] == 0x00 { // padding
			break
		}
		size := parseSyncsafe(raw[pos+4 : pos+8])
		end := pos + 10 + size
		if end > tagSize {
			break
		}
		if !written[id] {
			frames = append(frames, raw[pos:end])
		}
		pos = end
	}
	return frames
}
