package tags

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/musictaggerz/tagger-server/internal/errors"
)

// FLAC metadata block types.
const (
	flacBlockStreamInfo    = 0
	flacBlockPadding       = 1
	flacBlockVorbisComment = 4
	flacBlockPicture       = 6
)

var flacMagic = []byte("fLaC")

// flacBlock is one metadata block from the header section of a FLAC file.
type flacBlock struct {
	blockType byte
	data      []byte
}

// flacFile is the parsed metadata section of a FLAC file plus the untouched
// audio frames that follow it.
type flacFile struct {
	blocks []flacBlock
	audio  []byte
}

// parseFLAC splits a FLAC file into its metadata blocks and audio frames.
func parseFLAC(raw []byte) (*flacFile, error) {
	if len(raw) < 8 || string(raw[:4]) != string(flacMagic) {
		return nil, errors.ReadFailed("not a FLAC file")
	}

	f := &flacFile{}
	pos := 4
	for {
		if pos+4 > len(raw) {
			return nil, errors.ReadFailed("truncated FLAC metadata block header")
		}

		header := raw[pos]
		last := header&0x80 != 0
		blockType := header & 0x7F
		length := int(raw[pos+1])<<16 | int(raw[pos+2])<<8 | int(raw[pos+3])
		pos += 4

		if pos+length > len(raw) {
			return nil, errors.ReadFailed("truncated FLAC metadata block")
		}

		f.blocks = append(f.blocks, flacBlock{
			blockType: blockType,
			data:      raw[pos : pos+length],
		})
		pos += length

		if last {
			break
		}
	}

	f.audio = raw[pos:]
	return f, nil
}

// marshal reassembles the FLAC file, marking the final metadata block as last.
func (f *flacFile) marshal() []byte {
	size := len(flacMagic) + len(f.audio)
	for _, b := range f.blocks {
		size += 4 + len(b.data)
	}

	out := make([]byte, 0, size)
	out = append(out, flacMagic...)

	for i, b := range f.blocks {
		header := b.blockType
		if i == len(f.blocks)-1 {
			header |= 0x80
		}
		out = append(out, header,
			byte(len(b.data)>>16), byte(len(b.data)>>8), byte(len(b.data)))
		out = append(out, b.data...)
	}

	return append(out, f.audio...)
}

// block returns the first block of the given type, or nil.
func (f *flacFile) block(blockType byte) *flacBlock {
	for i := range f.blocks {
		if f.blocks[i].blockType == blockType {
			return &f.blocks[i]
		}
	}
	return nil
}

// duration derives the stream duration from STREAMINFO.
func (f *flacFile) duration() time.Duration {
	si := f.block(flacBlockStreamInfo)
	if si == nil || len(si.data) < 18 {
		return 0
	}

	d := si.data
	sampleRate := uint64(d[10])<<12 | uint64(d[11])<<4 | uint64(d[12])>>4
	totalSamples := uint64(d[13]&0x0F)<<32 |
		uint64(d[14])<<24 | uint64(d[15])<<16 | uint64(d[16])<<8 | uint64(d[17])

	if sampleRate == 0 || totalSamples == 0 {
		return 0
	}
	return time.Duration(totalSamples * uint64(time.Second) / sampleRate)
}

// Vorbis comment field names used by the pipeline.
const (
	vcTitle       = "TITLE"
	vcArtist      = "ARTIST"
	vcAlbum       = "ALBUM"
	vcAlbumArtist = "ALBUMARTIST"
	vcGenre       = "GENRE"
	vcDate        = "DATE"
	vcTrackNumber = "TRACKNUMBER"
	vcTrackTotal  = "TRACKTOTAL"
	vcDiscNumber  = "DISCNUMBER"
	vcDiscTotal   = "DISCTOTAL"
)

// parseVorbisComments decodes a VORBIS_COMMENT block into a field map.
// Field names are uppercased; repeated fields keep the first value.
func parseVorbisComments(data []byte) (map[string]string, error) {
	fields := make(map[string]string)

	pos := 0
	readU32 := func() (uint32, bool) {
		if pos+4 > len(data) {
			return 0, false
		}
		v := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		return v, true
	}

	vendorLen, ok := readU32()
	if !ok || pos+int(vendorLen) > len(data) {
		return nil, errors.ReadFailed("truncated vorbis comment vendor string")
	}
	pos += int(vendorLen)

	count, ok := readU32()
	if !ok {
		return nil, errors.ReadFailed("truncated vorbis comment count")
	}

	for i := uint32(0); i < count; i++ {
		length, ok := readU32()
		if !ok || pos+int(length) > len(data) {
			return nil, errors.ReadFailed("truncated vorbis comment entry")
		}
		entry := string(data[pos : pos+int(length)])
		pos += int(length)

		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		key = strings.ToUpper(key)
		if _, exists := fields[key]; !exists {
			fields[key] = value
		}
	}

	return fields, nil
}

// buildVorbisComments encodes a field map into a VORBIS_COMMENT block.
func buildVorbisComments(vendor string, fields map[string]string, order []string) []byte {
	var buf []byte

	appendU32 := func(v uint32) {
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}

	appendU32(uint32(len(vendor)))
	buf = append(buf, vendor...)

	var entries []string
	for _, key := range order {
		if value, ok := fields[key]; ok && value != "" {
			entries = append(entries, key+"="+value)
		}
	}

	appendU32(uint32(len(entries)))
	for _, entry := range entries {
		appendU32(uint32(len(entry)))
		buf = append(buf, entry...)
	}

	return buf
}

// buildFLACPicture encodes a PICTURE block holding a front cover.
func buildFLACPicture(image []byte, mimeType string) []byte {
	var buf []byte

	appendU32 := func(v uint32) {
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}

	appendU32(3) // Picture type: front cover
	appendU32(uint32(len(mimeType)))
	buf = append(buf, mimeType...)
	appendU32(0) // Description length
	appendU32(0) // Width (unknown)
	appendU32(0) // Height (unknown)
	appendU32(0) // Color depth (unknown)
	appendU32(0) // Color count (unknown)
	appendU32(uint32(len(image)))
	buf = append(buf, image...)

	return buf
}

// readFLACTags reads tags and duration from a FLAC file.
func readFLACTags(path string) (*TrackTags, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeReadFailed, "read flac file")
	}

	f, err := parseFLAC(raw)
	if err != nil {
		return nil, err
	}

	t := &TrackTags{
		Duration: f.duration(),
		Format:   "flac",
	}

	if vc := f.block(flacBlockVorbisComment); vc != nil {
		fields, err := parseVorbisComments(vc.data)
		if err != nil {
			return nil, err
		}

		t.Title = fields[vcTitle]
		t.Artist = fields[vcArtist]
		t.Album = fields[vcAlbum]
		t.AlbumArtist = fields[vcAlbumArtist]
		t.Genre = fields[vcGenre]
		t.Year = parseVorbisYear(fields[vcDate])
		t.TrackNumber, t.TrackTotal = parseVorbisNumber(fields[vcTrackNumber])
		if t.TrackTotal == 0 {
			t.TrackTotal, _ = strconv.Atoi(fields[vcTrackTotal])
		}
		t.DiscNumber, t.DiscTotal = parseVorbisNumber(fields[vcDiscNumber])
		if t.DiscTotal == 0 {
			t.DiscTotal, _ = strconv.Atoi(fields[vcDiscTotal])
		}
	}

	return t, nil
}

// extractFLACPicture returns the image data of the first PICTURE block, or nil.
func extractFLACPicture(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeReadFailed, "read flac file")
	}

	f, err := parseFLAC(raw)
	if err != nil {
		return nil, err
	}

	pic := f.block(flacBlockPicture)
	if pic == nil {
		return nil, nil
	}

	d := pic.data
	pos := 4 // skip picture type
	skipString := func() bool {
		if pos+4 > len(d) {
			return false
		}
		length := int(binary.BigEndian.Uint32(d[pos:]))
		pos += 4 + length
		return pos <= len(d)
	}

	if !skipString() { // MIME type
		return nil, errors.ReadFailed("truncated FLAC picture block")
	}
	if !skipString() { // Description
		return nil, errors.ReadFailed("truncated FLAC picture block")
	}
	pos += 16 // width, height, depth, colors
	if pos+4 > len(d) {
		return nil, errors.ReadFailed("truncated FLAC picture block")
	}
	length := int(binary.BigEndian.Uint32(d[pos:]))
	pos += 4
	if pos+length > len(d) {
		return nil, errors.ReadFailed("truncated FLAC picture block")
	}

	return d[pos : pos+length], nil
}

// flacVendor identifies this writer in rewritten vorbis comment blocks.
const flacVendor = "tagger-server"

// vorbisFieldOrder fixes the field order in rewritten comment blocks.
var vorbisFieldOrder = []string{
	vcTitle, vcArtist, vcAlbum, vcAlbumArtist, vcGenre, vcDate,
	vcTrackNumber, vcTrackTotal, vcDiscNumber, vcDiscTotal,
}

// writeFLACTags replaces the vorbis comment block of a FLAC file.
// All other metadata blocks (STREAMINFO, seektables, pictures) are preserved.
func writeFLACTags(path string, t *TrackTags) error {
	return rewriteFLAC(path, func(f *flacFile) {
		fields := map[string]string{
			vcTitle:       t.Title,
			vcArtist:      t.Artist,
			vcAlbum:       t.Album,
			vcAlbumArtist: t.AlbumArtist,
			vcGenre:       t.Genre,
		}
		if t.Year > 0 {
			fields[vcDate] = strconv.Itoa(t.Year)
		}
		if t.TrackNumber > 0 {
			fields[vcTrackNumber] = strconv.Itoa(t.TrackNumber)
		}
		if t.TrackTotal > 0 {
			fields[vcTrackTotal] = strconv.Itoa(t.TrackTotal)
		}
		if t.DiscNumber > 0 {
			fields[vcDiscNumber] = strconv.Itoa(t.DiscNumber)
		}
		if t.DiscTotal > 0 {
			fields[vcDiscTotal] = strconv.Itoa(t.DiscTotal)
		}

		data := buildVorbisComments(flacVendor, fields, vorbisFieldOrder)
		if vc := f.block(flacBlockVorbisComment); vc != nil {
			vc.data = data
		} else {
			f.blocks = append(f.blocks, flacBlock{blockType: flacBlockVorbisComment, data: data})
		}
	})
}

// embedFLACPicture replaces the cover art of a FLAC file.
func embedFLACPicture(path string, image []byte, mimeType string) error {
	return rewriteFLAC(path, func(f *flacFile) {
		data := buildFLACPicture(image, mimeType)
		if pic := f.block(flacBlockPicture); pic != nil {
			pic.data = data
		} else {
			f.blocks = append(f.blocks, flacBlock{blockType: flacBlockPicture, data: data})
		}
	})
}

// rewriteFLAC applies mutate to the parsed metadata section and atomically
// replaces the file.
func rewriteFLAC(path string, mutate func(*flacFile)) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeReadFailed, "read flac file")
	}

	f, err := parseFLAC(raw)
	if err != nil {
		return err
	}

	mutate(f)

	return replaceFile(path, f.marshal())
}

// replaceFile writes data to a temp file in the same directory and renames it
// over the original, preserving the original file mode.
func replaceFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, errors.CodeWriteFailed, "stat audio file")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tagger-*")
	if err != nil {
		return errors.Wrap(err, errors.CodeWriteFailed, "create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.CodeWriteFailed, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.CodeWriteFailed, "close temp file")
	}

	if err := os.Chmod(tmpPath, info.Mode()); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.CodeWriteFailed, "chmod temp file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.CodeWriteFailed, fmt.Sprintf("replace %s", filepath.Base(path)))
	}

	return nil
}
