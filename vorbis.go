package soundstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/jfreymuth/oggvorbis"
)

// VorbisReader streams an Ogg Vorbis file as canonical output. Decoded
// float samples are converted to 16-bit host-order PCM and mono sources
// are duplicated to stereo.
type VorbisReader struct {
	src  io.ReadSeekCloser
	dec  *oggvorbis.Reader
	open source

	sampleRate int
	channels   int
	fbuf       []float32
}

// OpenVorbis opens the Ogg Vorbis stream at path.
func OpenVorbis(path string) (*VorbisReader, OpenResult, error) {
	return openVorbis(fileSource(path))
}

func openVorbis(open source) (*VorbisReader, OpenResult, error) {
	f, err := open()
	if err != nil {
		return nil, OpenMatchButFail, fmt.Errorf("failed to open source: %w", err)
	}

	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()

		return nil, OpenNoMatch, fmt.Errorf("%w: %v", ErrFormatMismatch, err)
	}

	if dec.Channels() != 1 && dec.Channels() != 2 {
		f.Close()

		return nil, OpenMatchButFail, fmt.Errorf("%w: %d channels", ErrUnsupportedVariant, dec.Channels())
	}

	return &VorbisReader{
		src:        f,
		dec:        dec,
		open:       open,
		sampleRate: dec.SampleRate(),
		channels:   dec.Channels(),
	}, OpenOK, nil
}

func (r *VorbisReader) Read(p []byte) (int, error) {
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

	want := frames * r.channels
	if len(r.fbuf) < want {
		r.fbuf = make([]float32, want)
	}

	n, err := r.dec.Read(r.fbuf[:want])
	gotFrames := n / r.channels

	for i := 0; i < gotFrames; i++ {
		left := pcm16FromFloat32(r.fbuf[i*r.channels])

		right := left
		if r.channels == 2 {
			right = pcm16FromFloat32(r.fbuf[i*r.channels+1])
		}

		hostOrder.PutUint16(p[i*outFrameSize:], uint16(left))
		hostOrder.PutUint16(p[i*outFrameSize+2:], uint16(right))
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return gotFrames * outFrameSize, fmt.Errorf("failed to decode vorbis: %w", err)
	}

	return gotFrames * outFrameSize, nil
}

func (r *VorbisReader) SetPosition(ms int) (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	frame := int64(ms) * int64(r.sampleRate) / 1000

	if err := r.dec.SetPosition(frame); err != nil {
		return 0, fmt.Errorf("failed to seek: %w", err)
	}

	return ms, nil
}

func (r *VorbisReader) Length() (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	return int(r.dec.Length() * 1000 / int64(r.sampleRate)), nil
}

func (r *VorbisReader) Format() *audio.Format {
	return &audio.Format{NumChannels: 2, SampleRate: r.sampleRate}
}

func (r *VorbisReader) Copy() (SoundReader, error) {
	nr, _, err := openVorbis(r.open)
	if err != nil {
		return nil, err
	}

	return nr, nil
}

func (r *VorbisReader) Close() error {
	if r.src == nil {
		return nil
	}

	err := r.src.Close()
	r.src = nil
	r.dec = nil
	r.fbuf = nil

	if err != nil {
		return fmt.Errorf("failed to close source: %w", err)
	}

	return nil
}
