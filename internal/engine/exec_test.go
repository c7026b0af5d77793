package engine

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func collectExec(t *testing.T, command string) [][]byte {
	t.Helper()
	synth, err := NewExecSynth(command, 22050, 1)
	if err != nil {
		t.Fatalf("new exec synth: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chunks, errs := synth.Synthesize(ctx, SynthRequest{Text: "hello"})
	var got [][]byte
	for c := range chunks {
		got = append(got, c)
	}
	for err := range errs {
		if err != nil {
			t.Fatalf("synthesize: %v", err)
		}
	}
	return got
}

func TestExecSynthStreamsChunks(t *testing.T) {
	// QUE= is "AA", QkI= is "BB".
	command := `sh -c 'cat >/dev/null; printf "{\"pcm_base64\":\"QUE=\",\"final\":false}\n{\"pcm_base64\":\"QkI=\",\"final\":true}\n"'`
	got := collectExec(t, command)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if !bytes.Equal(got[0], []byte("AA")) || !bytes.Equal(got[1], []byte("BB")) {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestExecSynthIgnoresOutputAfterFinal(t *testing.T) {
	// The command keeps writing well past a pipe buffer after the final line;
	// the synthesizer must still reap the process and terminate.
	command := `sh -c 'cat >/dev/null; printf "{\"pcm_base64\":\"QUE=\",\"final\":true}\n"; head -c 131072 /dev/zero'`
	got := collectExec(t, command)
	if len(got) != 1 || !bytes.Equal(got[0], []byte("AA")) {
		t.Fatalf("unexpected chunks: %q", got)
	}
}

func TestNewExecSynthRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecSynth("   ", 22050, 1); err == nil {
		t.Fatal("expected error for empty command")
	}
}
