package soundstream

import (
	"errors"
	"fmt"
	"io"
)

// msToBytePos converts a playback position in milliseconds to a byte
// offset in decoded sample frames, floor-rounded to a whole frame.
func (r *WAVReader) msToBytePos(ms int) int64 {
	frames := int64(ms) * int64(r.fmt.sampleRate) / 1000
	return frames * int64(r.fmt.frameSize())
}

// bytePosToMs is the exact inverse using integer frame counts,
// floor-rounded.
func (r *WAVReader) bytePosToMs(pos int64) int {
	frames := pos / int64(r.fmt.frameSize())
	return int(frames * 1000 / int64(r.fmt.sampleRate))
}

// SetPosition seeks to the given playback position. For ADPCM the seek is
// block-granular: the stream jumps to the containing block, re-reads its
// header, and decodes-and-drops frames until the intra-block remainder is
// satisfied. Seeking past the end of data is not an error; subsequent
// reads return 0.
func (r *WAVReader) SetPosition(ms int) (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	if r.err != nil {
		return 0, r.err
	}

	if ms < 0 {
		ms = 0
	}

	if r.fmt.formatTag == formatADPCM {
		return r.seekADPCM(ms)
	}

	return r.seekPCM(ms)
}

func (r *WAVReader) seekPCM(ms int) (int, error) {
	off := r.msToBytePos(ms)
	reached := ms

	if off > r.dataSize {
		off = r.dataSize - r.dataSize%int64(r.fmt.frameSize())
		reached = r.bytePosToMs(off)
	}

	if _, err := r.src.Seek(r.dataStart+off, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek: %w", err)
	}

	r.pos = off

	return reached, nil
}

func (r *WAVReader) seekADPCM(ms int) (int, error) {
	f := r.fmt
	frameSize := f.frameSize()

	off := r.msToBytePos(ms)
	blockPCMBytes := int64(f.samplesPerBlock * frameSize)
	blockPos := off / blockPCMBytes * int64(f.blockAlign)

	if blockPos >= r.dataSize {
		return r.seekADPCMEnd(ms)
	}

	if _, err := r.src.Seek(r.dataStart+blockPos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek: %w", err)
	}

	r.pos = blockPos

	if err := r.readBlockHeader(); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, ErrUnexpectedEndOfStream) {
			return r.seekADPCMEnd(ms)
		}

		return 0, err
	}

	// The first sample frame of the block is already decoded as part of
	// the header.
	rem := off % blockPCMBytes
	r.adpcm.samplesLeft--
	rem -= int64(frameSize)

	for rem > 0 {
		if err := r.adpcm.decodeFrame(f.coefs, r.readDataByte); err != nil {
			if errors.Is(err, ErrUnexpectedEndOfStream) {
				return r.seekADPCMEnd(ms)
			}

			if errors.Is(err, ErrMalformedContainer) {
				r.err = err
			}

			return 0, err
		}

		r.adpcm.samplesLeft--
		rem -= int64(frameSize)
	}

	return ms, nil
}

// seekADPCMEnd parks the stream at the end of the data region so the next
// read reports end of data.
func (r *WAVReader) seekADPCMEnd(ms int) (int, error) {
	if _, err := r.src.Seek(r.dataStart+r.dataSize, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek: %w", err)
	}

	r.pos = r.dataSize
	r.adpcm.samplesLeft = 0

	return ms, nil
}

// Length returns the stream duration in milliseconds. The query may
// reposition the underlying cursor but always restores it before
// returning, even on the error path, so reads and seeks see a consistent
// view regardless of when Length is called.
func (r *WAVReader) Length() (int, error) {
	if r.src == nil {
		return 0, ErrStreamClosed
	}

	orig, err := r.src.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("failed to query position: %w", err)
	}

	var (
		ms   int
		lerr error
	)

	if r.fmt.formatTag == formatADPCM {
		ms, lerr = r.lengthADPCM()
	} else {
		ms, lerr = r.lengthPCM()
	}

	if _, err := r.src.Seek(orig, io.SeekStart); err != nil && lerr == nil {
		lerr = fmt.Errorf("failed to restore position: %w", err)
	}

	return ms, lerr
}

func (r *WAVReader) lengthPCM() (int, error) {
	ms := r.bytePosToMs(r.dataSize)

	logger.Trace().Int64("data_start", r.dataStart).Int64("data_size", r.dataSize).
		Int("ms", ms).Msg("pcm length")

	return ms, nil
}

// lengthADPCM sums the duration of all full blocks with that of the
// trailing partial block, whose valid sample count is learned by decoding
// a disposable copy of its header. The live cursor and channel state are
// never touched.
func (r *WAVReader) lengthADPCM() (int, error) {
	f := r.fmt
	frameSize := int64(f.frameSize())
	blockPCMBytes := int64(f.samplesPerBlock) * frameSize

	fullBlocks := r.dataSize / int64(f.blockAlign)
	rem := r.dataSize % int64(f.blockAlign)

	ms := r.bytePosToMs(fullBlocks * blockPCMBytes)

	hdrSize := int64(adpcmHeaderSize * f.numChannels)
	if rem <= hdrSize {
		// no complete trailing header, so no trailing samples
		return ms, nil
	}

	if _, err := r.src.Seek(r.dataStart+fullBlocks*int64(f.blockAlign), io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek to final block: %w", err)
	}

	tmp := newADPCMState(f.numChannels)
	if err := readBlockHeaderInto(r.src, tmp, f.coefs, f.samplesPerBlock); err != nil {
		return 0, fmt.Errorf("final block header: %w", err)
	}

	// Two seed frames plus two nibbles per payload byte, split across
	// channels, capped at the declared block size.
	samples := 2 + int(rem-hdrSize)*2/f.numChannels
	if samples > tmp.samplesLeft {
		samples = tmp.samplesLeft
	}

	total := ms + r.bytePosToMs(int64(samples)*frameSize)

	logger.Trace().Int64("full_blocks", fullBlocks).Int("trailing_samples", samples).
		Int("ms", total).Msg("adpcm length")

	return total, nil
}
