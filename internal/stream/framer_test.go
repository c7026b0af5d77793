package stream

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-audio/wav"
	"github.com/loqalabs/loqa-tts/internal/engine"
)

var pcmFormat = engine.Format{SampleRate: 22050, Channels: 1, SampleWidth: 2, Encoding: engine.EncodingPCM}
var mp3Format = engine.Format{SampleRate: 44100, Channels: 1, SampleWidth: 2, Encoding: "mp3"}

func TestShouldEmitHeader(t *testing.T) {
	cases := []struct {
		browser bool
		format  engine.Format
		want    bool
	}{
		{true, pcmFormat, true},
		{false, pcmFormat, false},
		{true, mp3Format, false},
		{false, mp3Format, false},
	}
	for _, c := range cases {
		if got := ShouldEmitHeader(c.browser, c.format); got != c.want {
			t.Fatalf("ShouldEmitHeader(%v, %s) = %v, want %v", c.browser, c.format.Encoding, got, c.want)
		}
	}
}

func TestHeaderDeclaresEngineFormat(t *testing.T) {
	hdr, err := Header(pcmFormat)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if !bytes.Equal(hdr[0:4], []byte("RIFF")) || !bytes.Equal(hdr[8:12], []byte("WAVE")) {
		t.Fatalf("not a RIFF/WAVE header: %q", hdr[:12])
	}

	d := wav.NewDecoder(bytes.NewReader(hdr))
	d.ReadInfo()
	if d.SampleRate != uint32(pcmFormat.SampleRate) {
		t.Fatalf("sample rate %d, want %d", d.SampleRate, pcmFormat.SampleRate)
	}
	if int(d.NumChans) != pcmFormat.Channels {
		t.Fatalf("channels %d, want %d", d.NumChans, pcmFormat.Channels)
	}
	if int(d.BitDepth) != 8*pcmFormat.SampleWidth {
		t.Fatalf("bit depth %d, want %d", d.BitDepth, 8*pcmFormat.SampleWidth)
	}
}

func TestHeaderIsStreamingFriendly(t *testing.T) {
	hdr, err := Header(pcmFormat)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if got := binary.LittleEndian.Uint32(hdr[4:8]); got != unboundedSize {
		t.Fatalf("riff size %#x, want unbounded", got)
	}
	if got := binary.LittleEndian.Uint32(hdr[len(hdr)-4:]); got != unboundedSize {
		t.Fatalf("data size %#x, want unbounded", got)
	}
}

func TestHeaderRefusesSelfFraming(t *testing.T) {
	if _, err := Header(mp3Format); err == nil {
		t.Fatal("expected error for self-framing format")
	}
}
