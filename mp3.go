package soundstream

import (
	"errors"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/go-audio/audio"
)

// MP3Reader streams an MP3 file as canonical output. go-mp3 already emits
// 16-bit little-endian stereo, so only byte-order normalization applies.
type MP3Reader struct {
	src  io.ReadSeekCloser
	dec  *gomp3.Decoder
	open source

	sampleRate int
	bigEndian  bool
}

// OpenMP3 opens the MP3 stream at path.
func OpenMP3(path string) (*MP3Reader, OpenResult, error) {
	return openMP3(fileSource(path))
}

func openMP3(open source) (*MP3Reader, OpenResult, error) {
	f, err := open()
	if err != nil {
		return nil, OpenMatchButFail, fmt.Errorf("failed to open source: %w", err)
	}

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		f.Close()

		return nil, OpenNoMatch, fmt.Errorf("%w: %v", ErrFormatMismatch, err)
	}

	return &MP3Reader{
		src:        f,
		dec:        dec,
		open:       open,
		sampleRate: dec.SampleRate(),
		bigEndian:  hostIsBigEndian(),
	}, OpenOK, nil
}

func (r *MP3Reader) Read(p []byte) (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	usable := len(p) - len(p)%outFrameSize
	if usable == 0 {
		if len(p) == 0 {
			return 0, nil
		}

		return 0, ErrShortBuffer
	}

	n, err := r.dec.Read(p[:usable])

	if n > 0 && r.bigEndian {
		swap16InPlace(p[:n])
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, nil
		}

		return n, fmt.Errorf("failed to decode mp3: %w", err)
	}

	return n, nil
}

// SetPosition seeks within the decoded stream. go-mp3 exposes the decoded
// stream as a byte-addressable seeker, so the position maps directly to a
// frame-aligned byte offset.
func (r *MP3Reader) SetPosition(ms int) (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	frames := int64(ms) * int64(r.sampleRate) / 1000

	if _, err := r.dec.Seek(frames*outFrameSize, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek: %w", err)
	}

	return ms, nil
}

func (r *MP3Reader) Length() (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	total := r.dec.Length()
	if total < 0 {
		return 0, fmt.Errorf("mp3 length unavailable: %w", ErrMalformedContainer)
	}

	frames := total / outFrameSize

	return int(frames * 1000 / int64(r.sampleRate)), nil
}

func (r *MP3Reader) Format() *audio.Format {
	return &audio.Format{NumChannels: 2, SampleRate: r.sampleRate}
}

func (r *MP3Reader) Copy() (SoundReader, error) {
	nr, _, err := openMP3(r.open)
	if err != nil {
		return nil, err
	}

	return nr, nil
}

func (r *MP3Reader) Close() error {
	if r.src == nil {
		return nil
	}

	err := r.src.Close()
	r.src = nil
	r.dec = nil

	if err != nil {
		return fmt.Errorf("failed to close source: %w", err)
	}

	return nil
}
