package audio

import (
	"bytes"
	"io"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	samples := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	info := Info{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

	var buf bytes.Buffer
	if err := WriteWAV(&buf, info, samples); err != nil {
		t.Fatalf("WriteWAV() = %v", err)
	}
	if buf.Len() != HeaderSize+len(samples) {
		t.Fatalf("wav length = %d, want %d", buf.Len(), HeaderSize+len(samples))
	}

	got, err := DecodeHeader(&buf)
	if err != nil {
		t.Fatalf("DecodeHeader() = %v", err)
	}
	if got.SampleRate != 16000 || got.Channels != 1 || got.BitsPerSample != 16 {
		t.Errorf("DecodeHeader() = %+v, want 16000/1/16", got)
	}
	if got.DataBytes != len(samples) {
		t.Errorf("DataBytes = %d, want %d", got.DataBytes, len(samples))
	}

	// The reader now sits at the first sample.
	rest, err := io.ReadAll(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rest, samples) {
		t.Errorf("remaining stream = %v, want samples %v", rest, samples)
	}
}

func TestDecodeHeaderRejectsGarbage(t *testing.T) {
	if _, err := DecodeHeader(bytes.NewReader(make([]byte, HeaderSize))); err == nil {
		t.Error("DecodeHeader(zeros) = nil, want error")
	}
	if _, err := DecodeHeader(bytes.NewReader([]byte("RIFF"))); err == nil {
		t.Error("DecodeHeader(short stream) = nil, want error")
	}
}
