// Package soundstream provides streaming audio decoders for game sound
// playback.
//
// Every decoder produces the same canonical output: 16-bit signed PCM in
// host byte order, interleaved stereo (mono sources are duplicated to two
// channels). A mixer can therefore pull from any SoundReader without
// caring about the source format.
//
// The WAV reader is implemented natively and supports linear PCM
// (8/16-bit) and MS-ADPCM (4-bit) payloads with random-access seeking and
// length queries that never load the whole file into memory. MP3, Ogg
// Vorbis, and AIFF readers wrap third-party decoders behind the same
// contract.
//
// Open tries each format in turn and distinguishes "not this format"
// (keep trying) from "matched but unreadable" (stop with a descriptive
// error):
//
//	r, err := soundstream.Open("boom.wav")
//	if err != nil {
//		...
//	}
//	defer r.Close()
//	buf := make([]byte, 4096)
//	n, err := r.Read(buf)
//
// A SoundReader is not safe for concurrent use; callers must serialize
// all calls on a single instance. Independent instances (including copies
// made with Copy) share no mutable state.
package soundstream
