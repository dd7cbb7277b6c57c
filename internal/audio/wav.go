// Package audio holds the minimal RIFF/WAVE plumbing the engines need:
// reading the canonical 44-byte PCM header off an incoming stream and writing
// one back when samples get rewrapped for a decoder. Anything fancier
// (resampling, filtering, codecs) belongs to external tools, not here.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the canonical PCM WAV header length. Engines that consume
// raw samples skip exactly this much of the container.
const HeaderSize = 44

// Info describes the PCM stream behind a canonical WAV header.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	// DataBytes is the declared length of the sample payload.
	DataBytes int
}

// DecodeHeader consumes exactly HeaderSize bytes from r and parses them as a
// canonical PCM WAV header (RIFF/WAVE with an unextended fmt chunk followed
// directly by the data chunk). After a successful call, r is positioned at
// the first sample.
func DecodeHeader(r io.Reader) (Info, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Info{}, fmt.Errorf("read wav header: %w", err)
	}

	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return Info{}, fmt.Errorf("not a RIFF/WAVE stream")
	}
	if string(hdr[12:16]) != "fmt " {
		return Info{}, fmt.Errorf("unexpected chunk %q, want fmt", hdr[12:16])
	}
	if string(hdr[36:40]) != "data" {
		return Info{}, fmt.Errorf("unexpected chunk %q, want data", hdr[36:40])
	}

	le := binary.LittleEndian
	return Info{
		Channels:      int(le.Uint16(hdr[22:24])),
		SampleRate:    int(le.Uint32(hdr[24:28])),
		BitsPerSample: int(le.Uint16(hdr[34:36])),
		DataBytes:     int(le.Uint32(hdr[40:44])),
	}, nil
}

// EncodeHeader writes the canonical 44-byte header for a PCM payload of
// dataBytes length.
func EncodeHeader(w io.Writer, info Info, dataBytes int) error {
	le := binary.LittleEndian
	var hdr [HeaderSize]byte

	blockAlign := info.Channels * info.BitsPerSample / 8
	byteRate := info.SampleRate * blockAlign

	copy(hdr[0:4], "RIFF")
	le.PutUint32(hdr[4:8], uint32(36+dataBytes))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	le.PutUint32(hdr[16:20], 16) // PCM fmt chunk size
	le.PutUint16(hdr[20:22], 1)  // PCM
	le.PutUint16(hdr[22:24], uint16(info.Channels))
	le.PutUint32(hdr[24:28], uint32(info.SampleRate))
	le.PutUint32(hdr[28:32], uint32(byteRate))
	le.PutUint16(hdr[32:34], uint16(blockAlign))
	le.PutUint16(hdr[34:36], uint16(info.BitsPerSample))
	copy(hdr[36:40], "data")
	le.PutUint32(hdr[40:44], uint32(dataBytes))

	_, err := w.Write(hdr[:])
	return err
}

// WriteWAV writes a complete canonical WAV (header + samples) to w.
func WriteWAV(w io.Writer, info Info, samples []byte) error {
	if err := EncodeHeader(w, info, len(samples)); err != nil {
		return err
	}
	_, err := w.Write(samples)
	return err
}
