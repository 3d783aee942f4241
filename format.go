package soundstream

import (
	"fmt"

	"github.com/go-audio/riff"
)

const (
	// WAV fmt-chunk compression tags.
	formatPCM   = 1
	formatADPCM = 2
)

// formatDesc is the validated result of the fmt chunk. Together with the
// host byte order it fully determines the decode dispatch, per-sample
// byte width, and conversion mode.
type formatDesc struct {
	formatTag      uint16
	numChannels    int
	sampleRate     int
	avgBytesPerSec uint32
	blockAlign     int
	bitsPerSample  int

	// bytesPerSample is the width of one decoded sample before pipeline
	// conversions (2 for ADPCM output, 1 or 2 for PCM).
	bytesPerSample int

	// ADPCM extension, present only when formatTag == formatADPCM.
	samplesPerBlock int
	coefs           []adpcmCoefSet
}

// frameSize is the byte width of one decoded sample frame (all channels).
func (f *formatDesc) frameSize() int {
	return f.bytesPerSample * f.numChannels
}

// parseFormatChunk decodes and validates a located fmt chunk. Validation
// failures wrap ErrUnsupportedVariant for a recognized-but-unsupported
// variant and ErrMalformedContainer for inconsistent content; both are
// hard open failures.
func parseFormatChunk(ch *riff.Chunk) (*formatDesc, error) {
	var (
		tag, channels, blockAlign, bits uint16
		sampleRate, byteRate            uint32
	)

	for _, field := range []any{&tag, &channels, &sampleRate, &byteRate, &blockAlign, &bits} {
		if err := ch.ReadLE(field); err != nil {
			return nil, fmt.Errorf("truncated fmt chunk: %w", ErrMalformedContainer)
		}
	}

	f := &formatDesc{
		formatTag:      tag,
		numChannels:    int(channels),
		sampleRate:     int(sampleRate),
		avgBytesPerSec: byteRate,
		blockAlign:     int(blockAlign),
		bitsPerSample:  int(bits),
	}

	if f.numChannels != 1 && f.numChannels != 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedVariant, f.numChannels)
	}

	if f.sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %d: %w", f.sampleRate, ErrMalformedContainer)
	}

	switch tag {
	case formatPCM:
		if bits != 8 && bits != 16 {
			return nil, fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedVariant, bits)
		}

		f.bytesPerSample = int(bits) / 8
	case formatADPCM:
		if bits != 4 {
			return nil, fmt.Errorf("%w: %d-bit ADPCM", ErrUnsupportedVariant, bits)
		}

		f.bytesPerSample = 2

		if err := parseADPCMExtension(ch, f); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: compression tag %d", ErrUnsupportedVariant, tag)
	}

	return f, nil
}

// parseADPCMExtension reads the fmt extension carried by ADPCM streams:
// extension size, samples per block, and the predictor coefficient table.
// The table is immutable once read.
func parseADPCMExtension(ch *riff.Chunk, f *formatDesc) error {
	var extraSize, samplesPerBlock, coefCount uint16

	for _, field := range []any{&extraSize, &samplesPerBlock, &coefCount} {
		if err := ch.ReadLE(field); err != nil {
			return fmt.Errorf("truncated ADPCM fmt extension: %w", ErrMalformedContainer)
		}
	}

	if samplesPerBlock < 2 {
		return fmt.Errorf("%d samples per block: %w", samplesPerBlock, ErrMalformedContainer)
	}

	if coefCount == 0 {
		return fmt.Errorf("empty ADPCM coefficient table: %w", ErrMalformedContainer)
	}

	// One predictor byte, one delta, and two seed samples per channel.
	if f.blockAlign <= adpcmHeaderSize*f.numChannels {
		return fmt.Errorf("block alignment %d too small for block header: %w", f.blockAlign, ErrMalformedContainer)
	}

	f.samplesPerBlock = int(samplesPerBlock)
	f.coefs = make([]adpcmCoefSet, coefCount)

	for i := range f.coefs {
		if err := ch.ReadLE(&f.coefs[i].coef1); err != nil {
			return fmt.Errorf("truncated ADPCM coefficient table: %w", ErrMalformedContainer)
		}

		if err := ch.ReadLE(&f.coefs[i].coef2); err != nil {
			return fmt.Errorf("truncated ADPCM coefficient table: %w", ErrMalformedContainer)
		}
	}

	return nil
}
