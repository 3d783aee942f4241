package soundstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/riff"
)

// findChunk scans forward from the current position for the chunk with
// the given 4-byte identifier, skipping unknown chunks by their declared
// size (padded to an even boundary). On success the reader is positioned
// at the chunk's payload and its payload size is returned. The scanner
// never backtracks past its start position and never double-reads a
// chunk.
//
// Chunk sizes are declared as signed 32-bit values; a negative size, or
// one implying a range past the end of the stream, fails with
// ErrMalformedContainer.
func findChunk(r io.ReadSeeker, parser *riff.Parser, target [4]byte, streamSize int64) (int32, error) {
	for {
		id, rawSize, err := parser.IDnSize()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%q: %w", target[:], ErrChunkNotFound)
			}

			if errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, fmt.Errorf("truncated chunk header: %w", ErrMalformedContainer)
			}

			return 0, fmt.Errorf("failed to read chunk header: %w", err)
		}

		size := int32(rawSize)
		if size < 0 {
			return 0, fmt.Errorf("chunk %q declares negative size %d: %w", id[:], size, ErrMalformedContainer)
		}

		pos, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, fmt.Errorf("failed to query position: %w", err)
		}

		if pos+int64(size) > streamSize {
			return 0, fmt.Errorf("chunk %q size %d exceeds stream end: %w", id[:], size, ErrMalformedContainer)
		}

		if id == target {
			return size, nil
		}

		skip := int64(size)
		if size%2 == 1 {
			// chunks are word aligned; the padding byte is not counted
			// in the declared size
			skip++
		}

		if _, err := r.Seek(pos+skip, io.SeekStart); err != nil {
			return 0, fmt.Errorf("failed to skip chunk %q: %w", id[:], err)
		}
	}
}
