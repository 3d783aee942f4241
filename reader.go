package soundstream

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
)

// OpenResult classifies the outcome of opening a stream so a chain of
// decoders can decide whether to try the next format.
type OpenResult int

const (
	// OpenOK means the stream was opened and is ready for reads.
	OpenOK OpenResult = iota
	// OpenNoMatch means the file is not this decoder's format; another
	// decoder may still be able to read it.
	OpenNoMatch
	// OpenMatchButFail means the file is this decoder's format but could
	// not be opened (unsupported variant or corrupt content).
	OpenMatchButFail
)

func (r OpenResult) String() string {
	switch r {
	case OpenOK:
		return "ok"
	case OpenNoMatch:
		return "no match"
	case OpenMatchButFail:
		return "match but failed"
	default:
		return fmt.Sprintf("OpenResult(%d)", int(r))
	}
}

// SoundReader is a streaming decoded-audio source. Read fills the buffer
// with canonical output (16-bit signed host-order interleaved stereo) and
// returns 0 at end of data. Implementations are not safe for concurrent
// use; the caller serializes all calls on one instance.
type SoundReader interface {
	// Read decodes up to len(p) bytes of canonical output into p. A
	// return of 0 with a nil error means end of data. On error, bytes
	// already decoded into p are preserved and counted in n.
	Read(p []byte) (n int, err error)
	// SetPosition seeks to the given playback position in milliseconds
	// and returns the position actually reached.
	SetPosition(ms int) (int, error)
	// Length returns the total stream duration in milliseconds. It never
	// disturbs the read position, even on error.
	Length() (int, error)
	// Format describes the canonical output (always two channels).
	Format() *audio.Format
	// Copy returns a fully independent reader over the same resource,
	// positioned at the start. No decode state is shared with the
	// original.
	Copy() (SoundReader, error)
	// Close releases the underlying resource. Closing a closed reader is
	// a no-op.
	Close() error
}

// source reopens the underlying resource from scratch. Copy duplicates a
// reader by invoking its source again and replaying open-time parsing.
type source func() (io.ReadSeekCloser, error)

func fileSource(path string) source {
	return func() (io.ReadSeekCloser, error) {
		return os.Open(path)
	}
}

// Open tries each known decoder against the file at path: WAV, then MP3,
// then Ogg Vorbis, then AIFF. A decoder answering "no match" hands over
// to the next; "match but failed" aborts with that decoder's error.
func Open(path string) (SoundReader, error) {
	src := fileSource(path)

	for _, d := range decoders {
		r, res, err := d.open(src)

		logger.Trace().Str("path", path).Str("decoder", d.name).
			Stringer("result", res).Msg("open attempt")

		switch res {
		case OpenOK:
			return r, nil
		case OpenNoMatch:
			continue
		default:
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}
	}

	return nil, fmt.Errorf("%s: %w", path, ErrNoDecoder)
}

type decoderEntry struct {
	name string
	open func(source) (SoundReader, OpenResult, error)
}

var decoders = []decoderEntry{
	{"wav", func(src source) (SoundReader, OpenResult, error) {
		r, res, err := openWAV(src)
		if res != OpenOK {
			return nil, res, err
		}
		return r, res, nil
	}},
	{"mp3", func(src source) (SoundReader, OpenResult, error) {
		r, res, err := openMP3(src)
		if res != OpenOK {
			return nil, res, err
		}
		return r, res, nil
	}},
	{"vorbis", func(src source) (SoundReader, OpenResult, error) {
		r, res, err := openVorbis(src)
		if res != OpenOK {
			return nil, res, err
		}
		return r, res, nil
	}},
	{"aiff", func(src source) (SoundReader, OpenResult, error) {
		r, res, err := openAIFF(src)
		if res != OpenOK {
			return nil, res, err
		}
		return r, res, nil
	}},
}

// ReadAll drains a reader into an IntBuffer holding the full canonical
// stream, for callers that want whole-sound decode (short effects) rather
// than streaming.
func ReadAll(r SoundReader) (*audio.IntBuffer, error) {
	buf := &audio.IntBuffer{
		Format:         r.Format(),
		SourceBitDepth: 16,
	}

	chunk := make([]byte, 32768)

	for {
		n, err := r.Read(chunk)

		for i := 0; i+1 < n; i += 2 {
			buf.Data = append(buf.Data, int(int16(hostOrder.Uint16(chunk[i:i+2]))))
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf, nil
			}

			return buf, err
		}

		if n == 0 {
			return buf, nil
		}
	}
}
