package soundstream

import (
	"fmt"
	"io"
	"time"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
)

// AIFFReader streams a 16-bit AIFF file as canonical output via the
// go-audio decoder. AIFF has no cheap random access, so backward seeks
// reopen the file and decode-and-drop to the target frame.
type AIFFReader struct {
	src  io.ReadSeekCloser
	dec  *aiff.Decoder
	open source

	sampleRate int
	channels   int
	intBuf     *audio.IntBuffer

	// framePos counts source frames already consumed.
	framePos int64
}

// OpenAIFF opens the AIFF stream at path.
func OpenAIFF(path string) (*AIFFReader, OpenResult, error) {
	return openAIFF(fileSource(path))
}

func openAIFF(open source) (*AIFFReader, OpenResult, error) {
	f, err := open()
	if err != nil {
		return nil, OpenMatchButFail, fmt.Errorf("failed to open source: %w", err)
	}

	dec := aiff.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()

		return nil, OpenNoMatch, fmt.Errorf("not an AIFF file: %w", ErrFormatMismatch)
	}

	dec.ReadInfo()

	format := dec.Format()
	if format == nil {
		f.Close()

		return nil, OpenMatchButFail, fmt.Errorf("missing AIFF common chunk: %w", ErrMalformedContainer)
	}

	if dec.BitDepth != 16 {
		f.Close()

		return nil, OpenMatchButFail, fmt.Errorf("%w: %d-bit AIFF", ErrUnsupportedVariant, dec.BitDepth)
	}

	if format.NumChannels != 1 && format.NumChannels != 2 {
		f.Close()

		return nil, OpenMatchButFail, fmt.Errorf("%w: %d channels", ErrUnsupportedVariant, format.NumChannels)
	}

	return &AIFFReader{
		src:        f,
		dec:        dec,
		open:       open,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
	}, OpenOK, nil
}

func (r *AIFFReader) Read(p []byte) (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	frames := (len(p) - len(p)%outFrameSize) / outFrameSize
	if frames == 0 {
		if len(p) == 0 {
			return 0, nil
		}

		return 0, ErrShortBuffer
	}

	gotFrames, err := r.readFrames(frames * r.channels)

	for i := 0; i < gotFrames; i++ {
		left := int16(r.intBuf.Data[i*r.channels])

		right := left
		if r.channels == 2 {
			right = int16(r.intBuf.Data[i*r.channels+1])
		}

		hostOrder.PutUint16(p[i*outFrameSize:], uint16(left))
		hostOrder.PutUint16(p[i*outFrameSize+2:], uint16(right))
	}

	r.framePos += int64(gotFrames)

	if err != nil {
		return gotFrames * outFrameSize, fmt.Errorf("failed to decode aiff: %w", err)
	}

	return gotFrames * outFrameSize, nil
}

// readFrames fills the staging IntBuffer with up to samples values and
// returns the number of whole frames decoded.
func (r *AIFFReader) readFrames(samples int) (int, error) {
	if r.intBuf == nil || cap(r.intBuf.Data) < samples {
		r.intBuf = &audio.IntBuffer{
			Data:   make([]int, samples),
			Format: r.dec.Format(),
		}
	}

	r.intBuf.Data = r.intBuf.Data[:samples]

	n, err := r.dec.PCMBuffer(r.intBuf)

	return n / r.channels, err
}

// SetPosition seeks by reopening the stream when moving backward and
// decode-and-dropping frames up to the target.
func (r *AIFFReader) SetPosition(ms int) (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	target := int64(ms) * int64(r.sampleRate) / 1000

	if target < r.framePos {
		fresh, _, err := openAIFF(r.open)
		if err != nil {
			return 0, err
		}

		r.src.Close()
		*r = *fresh
	}

	for r.framePos < target {
		chunk := int(target - r.framePos)
		if chunk > 4096 {
			chunk = 4096
		}

		gotFrames, err := r.readFrames(chunk * r.channels)
		if err != nil {
			return 0, fmt.Errorf("failed to seek: %w", err)
		}

		if gotFrames == 0 {
			break
		}

		r.framePos += int64(gotFrames)
	}

	return ms, nil
}

func (r *AIFFReader) Length() (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	dur, err := r.dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("failed to query duration: %w", err)
	}

	return int(dur / time.Millisecond), nil
}

func (r *AIFFReader) Format() *audio.Format {
	return &audio.Format{NumChannels: 2, SampleRate: r.sampleRate}
}

func (r *AIFFReader) Copy() (SoundReader, error) {
	nr, _, err := openAIFF(r.open)
	if err != nil {
		return nil, err
	}

	return nr, nil
}

func (r *AIFFReader) Close() error {
	if r.src == nil {
		return nil
	}

	err := r.src.Close()
	r.src = nil
	r.dec = nil
	r.intBuf = nil

	if err != nil {
		return fmt.Errorf("failed to close source: %w", err)
	}

	return nil
}
