package soundstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
)

// outFrameSize is the byte width of one canonical output frame (16-bit
// stereo). Read buffers must be a multiple of this.
const outFrameSize = 4

// WAVReader streams a RIFF/WAVE file as canonical output. Linear PCM
// payloads pass through the sample pipeline; MS-ADPCM payloads are
// decompressed block by block on demand. The file is never loaded into
// memory as a whole.
type WAVReader struct {
	src  io.ReadSeekCloser
	open source

	fmt *formatDesc

	conv         ConversionMode
	monoToStereo bool
	// ratio is the output-bytes-per-raw-byte multiplier of the active
	// pipeline conversions (1, 2, or 4).
	ratio     int
	bigEndian bool

	dataStart int64
	dataSize  int64
	// pos is the raw byte offset into the data region.
	pos int64

	adpcm *adpcmState

	// scratch is per-instance staging for pipeline expansion, lazily
	// grown and never shared across streams.
	scratch []byte

	err error
}

// OpenWAV opens the WAV stream at path. OpenNoMatch means the file is not
// a RIFF/WAVE container and another decoder should try it; OpenMatchButFail
// means it is a WAV but could not be opened.
func OpenWAV(path string) (*WAVReader, OpenResult, error) {
	return openWAV(fileSource(path))
}

func openWAV(open source) (*WAVReader, OpenResult, error) {
	f, err := open()
	if err != nil {
		return nil, OpenMatchButFail, fmt.Errorf("failed to open source: %w", err)
	}

	r := &WAVReader{src: f, open: open, bigEndian: hostIsBigEndian()}

	if err := r.parseContainer(); err != nil {
		f.Close()

		if errors.Is(err, ErrFormatMismatch) {
			return nil, OpenNoMatch, err
		}

		return nil, OpenMatchButFail, err
	}

	return r, OpenOK, nil
}

// parseContainer walks the container up to the start of the data region
// and derives the decode dispatch from the validated format descriptor.
func (r *WAVReader) parseContainer() error {
	parser := riff.New(r.src)

	id, _, err := parser.IDnSize()
	if err != nil || id != riff.RiffID {
		return fmt.Errorf("no RIFF magic: %w", ErrFormatMismatch)
	}

	var form [4]byte
	if err := binary.Read(r.src, binary.BigEndian, &form); err != nil || form != riff.WavFormatID {
		return fmt.Errorf("no WAVE form type: %w", ErrFormatMismatch)
	}

	streamSize, err := r.src.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to query stream size: %w", err)
	}

	if _, err := r.src.Seek(12, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind past preamble: %w", err)
	}

	fmtSize, err := findChunk(r.src, parser, riff.FmtID, streamSize)
	if err != nil {
		return fmt.Errorf("fmt chunk: %w", err)
	}

	fmtStart, err := r.src.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to query position: %w", err)
	}

	fmtChunk := &riff.Chunk{
		ID:   riff.FmtID,
		Size: int(fmtSize),
		R:    io.LimitReader(r.src, int64(fmtSize)),
	}

	desc, err := parseFormatChunk(fmtChunk)
	if err != nil {
		return err
	}

	skip := int64(fmtSize)
	if fmtSize%2 == 1 {
		skip++
	}

	if _, err := r.src.Seek(fmtStart+skip, io.SeekStart); err != nil {
		return fmt.Errorf("failed to skip fmt chunk: %w", err)
	}

	dataSize, err := findChunk(r.src, parser, riff.DataFormatID, streamSize)
	if err != nil {
		return fmt.Errorf("data chunk: %w", err)
	}

	dataStart, err := r.src.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to query position: %w", err)
	}

	r.fmt = desc
	r.dataStart = dataStart
	r.dataSize = int64(dataSize)
	r.pos = 0
	r.ratio = 1

	switch {
	case desc.formatTag == formatADPCM:
		r.conv = ConvNone
		r.adpcm = newADPCMState(desc.numChannels)
	case desc.bitsPerSample == 8:
		r.conv = ConvWiden8To16
		r.ratio *= 2
	case r.bigEndian:
		r.conv = ConvSwap16
	default:
		r.conv = ConvNone
	}

	if desc.numChannels == 1 {
		r.monoToStereo = true
		r.ratio *= 2
	}

	logger.Trace().Uint16("tag", desc.formatTag).Int("channels", desc.numChannels).
		Int("rate", desc.sampleRate).Int("bits", desc.bitsPerSample).
		Int64("data_start", dataStart).Int64("data_size", r.dataSize).
		Msg("wav stream opened")

	return nil
}

// Read decodes up to len(p) bytes of canonical output. len(p) must be a
// multiple of 4 (one 16-bit stereo frame); for each raw input byte the
// active conversions produce ratio output bytes, so an 8-bit mono source
// yields four output bytes per data byte. A return of 0 with nil error is
// end of data. Partial output decoded before an error is preserved and
// reported with a short count plus the error.
func (r *WAVReader) Read(p []byte) (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	if r.err != nil {
		return 0, r.err
	}

	usable := len(p) - len(p)%outFrameSize
	if usable == 0 {
		if len(p) == 0 {
			return 0, nil
		}

		return 0, ErrShortBuffer
	}

	rawLen := usable / r.ratio

	var (
		n   int
		err error
	)

	if r.fmt.formatTag == formatADPCM {
		n, err = r.readADPCM(p[:rawLen])
	} else {
		n, err = r.readPCM(p[:rawLen])
	}

	if err != nil && errors.Is(err, ErrMalformedContainer) {
		// unrecoverable corruption: the stream stays unusable until
		// closed and reopened
		r.err = err
	}

	if n <= 0 {
		return 0, err
	}

	n = r.pipeline(p, n)

	return n, err
}

func (r *WAVReader) readPCM(p []byte) (int, error) {
	remaining := r.dataSize - r.pos
	if remaining <= 0 {
		return 0, nil
	}

	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err := io.ReadFull(r.src, p)
	r.pos += int64(n)

	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// declared data length past the physical end of the stream
			// just reads short
			n -= n % r.fmt.frameSize()

			return n, nil
		}

		return n, fmt.Errorf("failed to read PCM data: %w", err)
	}

	return n, nil
}

// readADPCM emits whole decoded sample frames into p. The two seed
// samples of each block are emitted before any nibble decode: the older
// seed when the block header is read, the newer one on the next frame.
func (r *WAVReader) readADPCM(p []byte) (int, error) {
	frameSize := r.fmt.frameSize()
	bw := 0

	for bw+frameSize <= len(p) {
		switch r.adpcm.samplesLeft {
		case 0:
			if r.pos >= r.dataSize {
				return bw, nil
			}

			if err := r.readBlockHeader(); err != nil {
				if errors.Is(err, io.EOF) {
					return bw, nil
				}

				return bw, err
			}

			r.adpcm.putFrame(p[bw:], 1)
			r.adpcm.samplesLeft--
			bw += frameSize
		case 1:
			r.adpcm.putFrame(p[bw:], 0)
			r.adpcm.samplesLeft--
			bw += frameSize
		default:
			r.adpcm.putFrame(p[bw:], 0)
			r.adpcm.samplesLeft--
			bw += frameSize

			if err := r.adpcm.decodeFrame(r.fmt.coefs, r.readDataByte); err != nil {
				return bw, err
			}
		}
	}

	return bw, nil
}

// readBlockHeader reads the next block header into the live decode state.
// io.EOF is returned unchanged when the data region ends cleanly on a
// block boundary.
func (r *WAVReader) readBlockHeader() error {
	hdrSize := int64(adpcmHeaderSize * r.fmt.numChannels)

	if r.pos+hdrSize > r.dataSize {
		if r.pos >= r.dataSize {
			return io.EOF
		}

		return fmt.Errorf("ADPCM block header: %w", ErrUnexpectedEndOfStream)
	}

	if err := readBlockHeaderInto(r.src, r.adpcm, r.fmt.coefs, r.fmt.samplesPerBlock); err != nil {
		return err
	}

	r.pos += hdrSize

	return nil
}

func (r *WAVReader) readDataByte() (byte, error) {
	if r.pos >= r.dataSize {
		return 0, fmt.Errorf("ADPCM payload: %w", ErrUnexpectedEndOfStream)
	}

	var b [1]byte
	if _, err := io.ReadFull(r.src, b[:]); err != nil {
		return 0, fmt.Errorf("ADPCM payload: %w", ErrUnexpectedEndOfStream)
	}

	r.pos++

	return b[0], nil
}

// pipeline applies the post-decode conversions in fixed order: byte-order
// normalization, 8-to-16-bit widening, mono duplication. Returns the
// output byte count.
func (r *WAVReader) pipeline(p []byte, n int) int {
	switch r.conv {
	case ConvSwap16:
		swap16InPlace(p[:n])
	case ConvWiden8To16:
		r.growScratch(n * 2)
		widen8To16(r.scratch[:n*2], p[:n])
		copy(p, r.scratch[:n*2])
		n *= 2
	}

	if r.monoToStereo {
		r.growScratch(n * 2)
		duplicateMono16(r.scratch[:n*2], p[:n])
		copy(p, r.scratch[:n*2])
		n *= 2
	}

	return n
}

func (r *WAVReader) growScratch(n int) {
	if len(r.scratch) < n {
		r.scratch = make([]byte, n)
	}
}

// Format describes the canonical output: always two channels at the
// source sample rate.
func (r *WAVReader) Format() *audio.Format {
	if r.fmt == nil {
		return nil
	}

	return &audio.Format{NumChannels: 2, SampleRate: r.fmt.sampleRate}
}

// Copy opens a fully independent reader by reopening the underlying
// resource and replaying open-time parsing. No cursor or decode state is
// shared with the receiver.
func (r *WAVReader) Copy() (SoundReader, error) {
	nr, _, err := openWAV(r.open)
	if err != nil {
		return nil, err
	}

	return nr, nil
}

// Close releases the underlying resource. Closing a closed reader is a
// no-op.
func (r *WAVReader) Close() error {
	if r.src == nil {
		return nil
	}

	err := r.src.Close()
	r.src = nil
	r.adpcm = nil
	r.scratch = nil
	r.err = nil

	if err != nil {
		return fmt.Errorf("failed to close source: %w", err)
	}

	return nil
}
