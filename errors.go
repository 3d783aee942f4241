package soundstream

import "errors"

var (
	// ErrFormatMismatch is returned when a container's magic bytes don't
	// match the decoder's format. This is a soft failure: another decoder
	// may be able to read the same file.
	ErrFormatMismatch = errors.New("container magic does not match")
	// ErrUnsupportedVariant is returned when the container is recognized
	// but uses an unsupported channel count, compression tag, or bit
	// depth. Terminal for the stream.
	ErrUnsupportedVariant = errors.New("unsupported format variant")
	// ErrMalformedContainer is returned for a missing required chunk, an
	// inconsistent or overflowing declared chunk size, or a truncated
	// header. Terminal at open.
	ErrMalformedContainer = errors.New("malformed container")
	// ErrChunkNotFound is returned when a required chunk is absent from
	// the container.
	ErrChunkNotFound = errors.New("chunk not found")
	// ErrUnexpectedEndOfStream is returned when a compressed block header
	// or payload byte read comes up short. Terminal for the call that
	// triggered it; output already written to the caller is preserved.
	ErrUnexpectedEndOfStream = errors.New("unexpected end of stream")
	// ErrStreamClosed is returned by operations on a closed stream.
	ErrStreamClosed = errors.New("stream is closed")
	// ErrShortBuffer is returned when the destination buffer is too small
	// to hold a single output frame.
	ErrShortBuffer = errors.New("destination buffer shorter than one output frame")
	// ErrNoDecoder is returned by Open when no decoder matched the file.
	ErrNoDecoder = errors.New("no decoder matched")
)
