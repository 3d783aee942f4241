package soundstream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestOpenWAVClassification(t *testing.T) {
	valid := buildWAV(pcmFmtPayload(2, 44100, 16), samples16LE(1, 2, 3, 4))

	// A chunk header declaring a negative (sign-bit set) size.
	negSize := append([]byte{}, valid[:12]...)
	negSize = append(negSize, []byte("JUNK")...)
	negSize = append(negSize, 0xFF, 0xFF, 0xFF, 0xFF)

	// A fmt chunk whose declared size runs past the end of the stream.
	overrun := append([]byte{}, valid[:12]...)
	overrun = append(overrun, []byte("fmt ")...)
	overrun = binary.LittleEndian.AppendUint32(overrun, 4096)
	overrun = append(overrun, pcmFmtPayload(2, 44100, 16)...)

	tests := []struct {
		name    string
		file    []byte
		result  OpenResult
		wantErr error
	}{
		{
			name:    "not a riff container",
			file:    []byte("OggS\x00\x00\x00\x00\x00\x00\x00\x00"),
			result:  OpenNoMatch,
			wantErr: ErrFormatMismatch,
		},
		{
			name:    "riff but not wave",
			file:    buildContainer("AIFF", chunkSpec{"COMM", make([]byte, 18)}),
			result:  OpenNoMatch,
			wantErr: ErrFormatMismatch,
		},
		{
			name:    "24-bit pcm",
			file:    buildWAV(pcmFmtPayload(2, 44100, 24), make([]byte, 12)),
			result:  OpenMatchButFail,
			wantErr: ErrUnsupportedVariant,
		},
		{
			name:    "three channels",
			file:    buildWAV(pcmFmtPayload(3, 44100, 16), make([]byte, 12)),
			result:  OpenMatchButFail,
			wantErr: ErrUnsupportedVariant,
		},
		{
			name:    "gsm compression tag",
			file:    buildWAV(fmtPayload(49, 1, 8000, 0, 65), make([]byte, 65)),
			result:  OpenMatchButFail,
			wantErr: ErrUnsupportedVariant,
		},
		{
			name:    "zero sample rate",
			file:    buildWAV(pcmFmtPayload(2, 0, 16), make([]byte, 12)),
			result:  OpenMatchButFail,
			wantErr: ErrMalformedContainer,
		},
		{
			name:    "missing data chunk",
			file:    buildContainer("WAVE", chunkSpec{"fmt ", pcmFmtPayload(2, 44100, 16)}),
			result:  OpenMatchButFail,
			wantErr: ErrChunkNotFound,
		},
		{
			name:    "negative chunk size",
			file:    negSize,
			result:  OpenMatchButFail,
			wantErr: ErrMalformedContainer,
		},
		{
			name:    "chunk size exceeds stream",
			file:    overrun,
			result:  OpenMatchButFail,
			wantErr: ErrMalformedContainer,
		},
		{
			name:   "valid 16-bit stereo",
			file:   valid,
			result: OpenOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, res, err := openWAV(memSource(tt.file))

			if res != tt.result {
				t.Fatalf("result: got %s, want %s", res, tt.result)
			}

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error: got %v, want %v", err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			r.Close()
		})
	}
}

func TestOpenWAVSkipsUnknownChunks(t *testing.T) {
	// The LIST chunk is odd-sized to exercise the pad byte, and fact sits
	// between fmt and data.
	file := buildContainer("WAVE",
		chunkSpec{"LIST", []byte("INFOx")},
		chunkSpec{"fmt ", pcmFmtPayload(2, 44100, 16)},
		chunkSpec{"fact", make([]byte, 4)},
		chunkSpec{"data", samples16LE(10, -10, 20, -20)},
	)

	r := openTestWAV(t, file)
	defer r.Close()

	got := decodeAll(t, r)
	want := []int16{10, -10, 20, -20}

	if !equalSamples(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestWAVRead16BitStereo(t *testing.T) {
	want := []int16{100, -100, 2000, -2000, 32767, -32768, 0, 1}
	file := buildWAV(pcmFmtPayload(2, 44100, 16), samples16LE(want...))

	r := openTestWAV(t, file)
	defer r.Close()

	got := decodeAll(t, r)

	if !equalSamples(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestWAVRead16BitMono(t *testing.T) {
	file := buildWAV(pcmFmtPayload(1, 44100, 16), samples16LE(1000, -1000))

	r := openTestWAV(t, file)
	defer r.Close()

	got := decodeAll(t, r)
	want := []int16{1000, 1000, -1000, -1000}

	if !equalSamples(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestWAVRead8BitMono(t *testing.T) {
	file := buildWAV(pcmFmtPayload(1, 22050, 8), []byte{0, 64, 128, 192, 255})

	r := openTestWAV(t, file)
	defer r.Close()

	buf := make([]byte, 40)

	// Every source byte widens and duplicates into four output bytes.
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if n != 20 {
		t.Fatalf("got %d bytes, want 20", n)
	}

	want := []int16{-32768, -32768, -16384, -16384, 0, 0, 16384, 16384, 32512, 32512}

	got := make([]int16, 0, 10)
	for i := 0; i+1 < n; i += 2 {
		got = append(got, int16(hostOrder.Uint16(buf[i:i+2])))
	}

	if !equalSamples(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	n, err = r.Read(buf)
	if err != nil || n != 0 {
		t.Fatalf("read past end: got (%d, %v), want (0, nil)", n, err)
	}
}

func TestWAVReadBufferSizing(t *testing.T) {
	file := buildWAV(pcmFmtPayload(2, 44100, 16), samples16LE(1, 2, 3, 4, 5, 6))

	r := openTestWAV(t, file)
	defer r.Close()

	t.Run("empty buffer", func(t *testing.T) {
		n, err := r.Read(nil)
		if n != 0 || err != nil {
			t.Fatalf("got (%d, %v), want (0, nil)", n, err)
		}
	})

	t.Run("below one frame", func(t *testing.T) {
		n, err := r.Read(make([]byte, 3))
		if n != 0 || !errors.Is(err, ErrShortBuffer) {
			t.Fatalf("got (%d, %v), want ErrShortBuffer", n, err)
		}
	})

	t.Run("misaligned buffer rounds down", func(t *testing.T) {
		n, err := r.Read(make([]byte, 6))
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}

		if n != 4 {
			t.Fatalf("got %d bytes, want 4", n)
		}
	})
}

func TestWAVReadSwap16Conversion(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	file := buildWAV(pcmFmtPayload(2, 44100, 16), data)

	r := openTestWAV(t, file)
	defer r.Close()

	// Force the byte-order step regardless of the host running the test.
	r.conv = ConvSwap16

	buf := make([]byte, len(data))

	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	want := []byte{0x02, 0x01, 0x04, 0x03, 0x06, 0x05, 0x08, 0x07}
	if !bytes.Equal(buf[:n], want) {
		t.Fatalf("got % x, want % x", buf[:n], want)
	}
}

func TestWAVCopyIndependent(t *testing.T) {
	file := buildWAV(pcmFmtPayload(2, 44100, 16), samples16LE(1, 2, 3, 4, 5, 6, 7, 8))

	orig := openTestWAV(t, file)
	defer orig.Close()

	full := decodeAll(t, openTestWAV(t, file))

	// Advance the original before copying; the copy must start at zero.
	buf := make([]byte, 8)
	if _, err := orig.Read(buf); err != nil {
		t.Fatal(err)
	}

	cp, err := orig.Copy()
	if err != nil {
		t.Fatal(err)
	}
	defer cp.Close()

	if got := decodeAll(t, cp); !equalSamples(got, full) {
		t.Fatalf("copy output %v, want %v", got, full)
	}

	// The copy's reads must not have moved the original.
	rest := decodeAll(t, orig)
	if want := full[4:]; !equalSamples(rest, want) {
		t.Fatalf("original continued with %v, want %v", rest, want)
	}
}

func TestWAVFormat(t *testing.T) {
	file := buildWAV(pcmFmtPayload(1, 22050, 8), []byte{128, 128})

	r := openTestWAV(t, file)
	defer r.Close()

	f := r.Format()

	if f.NumChannels != 2 {
		t.Fatalf("channels: got %d, want 2", f.NumChannels)
	}

	if f.SampleRate != 22050 {
		t.Fatalf("sample rate: got %d, want 22050", f.SampleRate)
	}
}

func TestWAVCloseIdempotent(t *testing.T) {
	file := buildWAV(pcmFmtPayload(2, 44100, 16), samples16LE(1, 2))

	r := openTestWAV(t, file)

	if err := r.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if _, err := r.Read(make([]byte, 4)); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("read after close: got %v, want ErrStreamClosed", err)
	}

	if _, err := r.SetPosition(0); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("seek after close: got %v, want ErrStreamClosed", err)
	}

	if _, err := r.Length(); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("length after close: got %v, want ErrStreamClosed", err)
	}
}
