// This tool prints stream information for an audio file readable by any
// of the soundstream decoders.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"hash/crc32"
	"io"
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/rhythmkit/soundstream"
)

var (
	flagPath  = flag.String("path", "", "The path of the audio file to inspect")
	flagTrace = flag.Bool("trace", false, "Enable decoder trace logging")
)

var errMissingPath = errors.New("missing path argument")

func main() {
	flag.Parse()

	if *flagTrace {
		writer := zerolog.ConsoleWriter{Out: os.Stderr}
		soundstream.SetLogger(zerolog.New(writer).Level(zerolog.TraceLevel).With().Timestamp().Logger())
	}

	err := run(*flagPath, os.Stdout)
	if err == nil {
		return
	}

	if errors.Is(err, errMissingPath) {
		fmt.Println("You must set the -path flag")
		os.Exit(1)
	}

	log.Fatal(err)
}

func run(path string, out io.Writer) error {
	if path == "" {
		return errMissingPath
	}

	r, err := soundstream.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	format := r.Format()
	fmt.Fprintf(out, "Sample rate: %d Hz\n", format.SampleRate)
	fmt.Fprintf(out, "Channels: %d\n", format.NumChannels)

	ms, err := r.Length()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Length: %d ms\n", ms)

	buf, err := soundstream.ReadAll(r)
	if err != nil {
		return err
	}

	sum := crc32.NewIEEE()

	var word [2]byte
	for _, s := range buf.Data {
		binary.LittleEndian.PutUint16(word[:], uint16(int16(s)))
		sum.Write(word[:])
	}

	fmt.Fprintf(out, "Decoded frames: %d\n", len(buf.Data)/format.NumChannels)
	fmt.Fprintf(out, "PCM checksum: %08x\n", sum.Sum32())

	return nil
}
