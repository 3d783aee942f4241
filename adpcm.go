package soundstream

// MS-ADPCM block decoder. Each block opens with a per-channel header (all
// predictor bytes, then all deltas, then all first seed samples, then all
// second seed samples), followed by packed 4-bit nibbles, two per byte,
// high nibble first. Nibble consumption interleaves across channels
// before advancing to the next byte.

import (
	"errors"
	"fmt"
	"io"
)

const (
	fixedPointCoefBase     = 256
	fixedPointAdaptionBase = 256
	smallestADPCMDelta     = 16

	// adpcmHeaderSize is the per-channel byte cost of a block header:
	// one predictor byte, one 16-bit delta, two 16-bit seed samples.
	adpcmHeaderSize = 7

	maxAudioVal = 1<<15 - 1
	minAudioVal = -(1 << 15)
)

// adpcmAdaptionTable scales the step size by the nibble value. Format
// constant, not tunable.
var adpcmAdaptionTable = [16]int32{
	230, 230, 230, 230, 307, 409, 512, 614,
	768, 614, 512, 409, 307, 230, 230, 230,
}

// adpcmCoefSet is one (coef1, coef2) predictor pair from the coefficient
// table, indexed by the predictor id in each block header.
type adpcmCoefSet struct {
	coef1, coef2 int16
}

// adpcmChannelState is the per-channel decode state. It is reset at the
// start of every block (including on seek) and never shared across
// channels or streams. samp[0] is the most recent decoded sample, samp[1]
// the one before it.
type adpcmChannelState struct {
	predictor uint8
	delta     int32
	samp      [2]int16
}

// adpcmState tracks one stream's position inside the current block.
type adpcmState struct {
	channels    []adpcmChannelState
	samplesLeft int
	// nibbleParity is 0 when the next step must fetch a fresh byte and
	// consume its high nibble, 1 when the low nibble of the current byte
	// is still pending.
	nibbleParity int
	nibble       uint8
}

func newADPCMState(numChannels int) *adpcmState {
	return &adpcmState{channels: make([]adpcmChannelState, numChannels)}
}

// applyNibble advances one channel by one sample: prediction plus the
// nibble-scaled delta, clamped to 16 bits, then step-size adaption.
// Nibble values 8..15 encode negative adjustments (two's complement over
// five effective bits).
func applyNibble(nib uint8, ch *adpcmChannelState, pred int32) {
	sample := pred

	if nib&0x08 != 0 {
		sample += ch.delta * (int32(nib) - 0x10)
	} else {
		sample += ch.delta * int32(nib)
	}

	if sample > maxAudioVal {
		sample = maxAudioVal
	}

	if sample < minAudioVal {
		sample = minAudioVal
	}

	delta := ch.delta * adpcmAdaptionTable[nib] / fixedPointAdaptionBase
	if delta < smallestADPCMDelta {
		delta = smallestADPCMDelta
	}

	ch.delta = delta
	ch.samp[1] = ch.samp[0]
	ch.samp[0] = int16(sample)
}

// readBlockHeaderInto parses a block header from r into st, resetting all
// per-channel state and the nibble cursor. Field order on the wire is
// index-wise across channels. A short read fails with
// ErrUnexpectedEndOfStream; io.EOF before the first byte is reported
// unchanged so callers can tell clean end-of-stream from truncation.
func readBlockHeaderInto(r io.Reader, st *adpcmState, coefs []adpcmCoefSet, samplesPerBlock int) error {
	n := len(st.channels)

	hdr := make([]byte, adpcmHeaderSize*n)

	read, err := io.ReadFull(r, hdr)
	if err != nil {
		if read == 0 && errors.Is(err, io.EOF) {
			return io.EOF
		}

		return fmt.Errorf("ADPCM block header: %w", ErrUnexpectedEndOfStream)
	}

	for i := range st.channels {
		ch := &st.channels[i]

		ch.predictor = hdr[i]
		if int(ch.predictor) >= len(coefs) {
			return fmt.Errorf("predictor index %d outside coefficient table: %w", ch.predictor, ErrMalformedContainer)
		}

		off := n + i*2
		ch.delta = int32(int16(uint16(hdr[off]) | uint16(hdr[off+1])<<8))

		off = 3*n + i*2
		ch.samp[0] = int16(uint16(hdr[off]) | uint16(hdr[off+1])<<8)

		off = 5*n + i*2
		ch.samp[1] = int16(uint16(hdr[off]) | uint16(hdr[off+1])<<8)
	}

	st.samplesLeft = samplesPerBlock
	st.nibbleParity = 0
	st.nibble = 0

	return nil
}

// decodeFrame advances every channel by one sample, fetching a fresh
// nibble byte when the parity flag demands one. readByte supplies payload
// bytes and reports truncation.
func (st *adpcmState) decodeFrame(coefs []adpcmCoefSet, readByte func() (byte, error)) error {
	nib := st.nibble

	for i := range st.channels {
		ch := &st.channels[i]
		coef := coefs[ch.predictor]

		pred := (int32(ch.samp[0])*int32(coef.coef1) + int32(ch.samp[1])*int32(coef.coef2)) / fixedPointCoefBase

		if st.nibbleParity == 0 {
			b, err := readByte()
			if err != nil {
				return err
			}

			nib = b
			st.nibbleParity = 1
			applyNibble(nib>>4, ch, pred)
		} else {
			st.nibbleParity = 0
			applyNibble(nib&0x0F, ch, pred)
		}
	}

	st.nibble = nib

	return nil
}

// putFrame writes the sample frame held in the channel state (index 0 for
// the latest sample, 1 for the one before it) as host-order 16-bit values.
func (st *adpcmState) putFrame(dst []byte, frame int) {
	for i := range st.channels {
		hostOrder.PutUint16(dst[i*2:], uint16(st.channels[i].samp[frame]))
	}
}
