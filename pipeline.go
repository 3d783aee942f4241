package soundstream

import "encoding/binary"

// ConversionMode selects the per-sample conversion applied to raw decoded
// bytes before channel duplication.
type ConversionMode int

const (
	// ConvNone passes samples through untouched (16-bit host-order
	// sources, including ADPCM output).
	ConvNone ConversionMode = iota
	// ConvWiden8To16 widens unsigned 8-bit samples to signed 16-bit,
	// doubling the byte count.
	ConvWiden8To16
	// ConvSwap16 swaps each 16-bit sample's bytes in place (little-endian
	// source on a big-endian host).
	ConvSwap16
)

// hostOrder is the byte order decoded samples are emitted in.
var hostOrder binary.ByteOrder = binary.NativeEndian

// hostIsBigEndian probes the native byte order at run time so the swap
// step stays an explicit, testable conversion rather than a build-time
// branch.
func hostIsBigEndian() bool {
	probe := []byte{0x12, 0x34}
	return binary.NativeEndian.Uint16(probe) == binary.BigEndian.Uint16(probe)
}

// swap16InPlace reverses the byte order of each 16-bit sample. A trailing
// odd byte is left untouched.
func swap16InPlace(b []byte) {
	for i := 0; i+1 < len(b); i += 2 {
		b[i], b[i+1] = b[i+1], b[i]
	}
}

// widen8To16 converts unsigned 8-bit samples to signed 16-bit host-order
// samples. dst must hold 2*len(src) bytes.
func widen8To16(dst, src []byte) {
	for i, s := range src {
		hostOrder.PutUint16(dst[i*2:], uint16(int16(int(s)-128)<<8))
	}
}

// duplicateMono16 writes each 16-bit sample of src twice consecutively
// into dst. dst must hold 2*len(src) bytes; len(src) must be even.
func duplicateMono16(dst, src []byte) {
	for i := 0; i+1 < len(src); i += 2 {
		dst[i*2] = src[i]
		dst[i*2+1] = src[i+1]
		dst[i*2+2] = src[i]
		dst[i*2+3] = src[i+1]
	}
}

// pcm16FromFloat32 converts a [-1, 1] sample to a clamped 16-bit value.
func pcm16FromFloat32(v float32) int16 {
	if v > 1 {
		v = 1
	}

	if v < -1 {
		v = -1
	}

	s := int32(v * 32767)
	if s > 32767 {
		s = 32767
	}

	if s < -32768 {
		s = -32768
	}

	return int16(s)
}
