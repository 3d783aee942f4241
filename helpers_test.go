package soundstream

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

// memFile is an in-memory io.ReadSeekCloser standing in for an on-disk
// stream.
type memFile struct {
	*bytes.Reader
	closed bool
}

func (m *memFile) Close() error {
	m.closed = true

	return nil
}

func memSource(data []byte) source {
	return func() (io.ReadSeekCloser, error) {
		return &memFile{Reader: bytes.NewReader(data)}, nil
	}
}

type chunkSpec struct {
	id   string
	data []byte
}

// buildContainer assembles a RIFF container with the given form type and
// chunks, padding odd-sized chunks to an even boundary.
func buildContainer(form string, chunks ...chunkSpec) []byte {
	var body bytes.Buffer

	for _, c := range chunks {
		body.WriteString(c.id)
		binary.Write(&body, binary.LittleEndian, uint32(len(c.data)))
		body.Write(c.data)

		if len(c.data)%2 == 1 {
			body.WriteByte(0)
		}
	}

	var out bytes.Buffer

	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(4+body.Len()))
	out.WriteString(form)
	out.Write(body.Bytes())

	return out.Bytes()
}

func fmtPayload(tag, channels, rate, bits, blockAlign int) []byte {
	var b bytes.Buffer

	binary.Write(&b, binary.LittleEndian, uint16(tag))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*blockAlign))
	binary.Write(&b, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&b, binary.LittleEndian, uint16(bits))

	return b.Bytes()
}

func pcmFmtPayload(channels, rate, bits int) []byte {
	return fmtPayload(formatPCM, channels, rate, bits, channels*bits/8)
}

// msadpcmCoefs is the standard MS-ADPCM predictor coefficient table.
var msadpcmCoefs = [][2]int16{
	{256, 0}, {512, -256}, {0, 0}, {192, 64}, {240, 0}, {460, -208}, {392, -232},
}

func adpcmFmtPayload(channels, rate, blockAlign, samplesPerBlock int) []byte {
	var b bytes.Buffer

	b.Write(fmtPayload(formatADPCM, channels, rate, 4, blockAlign))

	binary.Write(&b, binary.LittleEndian, uint16(4+4*len(msadpcmCoefs)))
	binary.Write(&b, binary.LittleEndian, uint16(samplesPerBlock))
	binary.Write(&b, binary.LittleEndian, uint16(len(msadpcmCoefs)))

	for _, c := range msadpcmCoefs {
		binary.Write(&b, binary.LittleEndian, c[0])
		binary.Write(&b, binary.LittleEndian, c[1])
	}

	return b.Bytes()
}

// adpcmBlock assembles one compressed block: all predictor bytes, then all
// deltas, then all first seeds, then all second seeds, then the packed
// nibble payload.
func adpcmBlock(predictors []byte, deltas, samp1, samp2 []int16, nibbles []byte) []byte {
	var b bytes.Buffer

	b.Write(predictors)

	for _, group := range [][]int16{deltas, samp1, samp2} {
		for _, v := range group {
			binary.Write(&b, binary.LittleEndian, v)
		}
	}

	b.Write(nibbles)

	return b.Bytes()
}

func buildWAV(fmtData, data []byte) []byte {
	return buildContainer("WAVE", chunkSpec{"fmt ", fmtData}, chunkSpec{"data", data})
}

func samples16LE(vals ...int16) []byte {
	var b bytes.Buffer

	for _, v := range vals {
		binary.Write(&b, binary.LittleEndian, v)
	}

	return b.Bytes()
}

func openTestWAV(t *testing.T, file []byte) *WAVReader {
	t.Helper()

	r, res, err := openWAV(memSource(file))
	if err != nil {
		t.Fatalf("open failed (%s): %v", res, err)
	}

	return r
}

// decodeAll drains a reader and returns the canonical output as host-order
// 16-bit samples.
func decodeAll(t *testing.T, r SoundReader) []int16 {
	t.Helper()

	var out []int16

	buf := make([]byte, 64)

	for {
		n, err := r.Read(buf)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}

		if n == 0 {
			return out
		}

		for i := 0; i+1 < n; i += 2 {
			out = append(out, int16(hostOrder.Uint16(buf[i:i+2])))
		}
	}
}

func equalSamples(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
