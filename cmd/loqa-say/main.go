package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/loqalabs/loqa-tts/internal/playback"
)

const readSize = 4096

func main() {
	var (
		addr      string
		text      string
		outPath   string
		rate      int
		channels  int
		minBuffer int
	)

	flag.StringVar(&addr, "addr", "http://localhost:8000", "Server base URL")
	flag.StringVar(&text, "text", "", "Text to synthesize")
	flag.StringVar(&outPath, "out", "", "Write a WAV file instead of raw PCM on stdout")
	flag.IntVar(&rate, "rate", 22050, "Expected sample rate for WAV output")
	flag.IntVar(&channels, "channels", 1, "Expected channel count for WAV output")
	flag.IntVar(&minBuffer, "min-buffer", 1024*6, "Bytes to buffer before playback starts")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if text == "" {
		logger.Error("no text given, use -text")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, addr, text, outPath, rate, channels, minBuffer); err != nil {
		logger.Error("playback failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, addr, text, outPath string, rate, channels, minBuffer int) error {
	endpoint := addr + "/tts?text=" + url.QueryEscape(text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %s: %s", resp.Status, body)
	}

	var sink io.Writer = os.Stdout
	frameBytes := 2 * channels
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		wavSink := playback.NewWAVSink(f, rate, channels)
		defer wavSink.Close()
		sink = wavSink
	}

	buf := playback.New(playback.Config{
		MinBufferBytes: minBuffer,
		FrameBytes:     frameBytes,
	}, sink, logger)

	// Network reader feeds the buffer; playback runs on the main goroutine.
	readErr := make(chan error, 1)
	go func() {
		defer buf.Finish()
		chunk := make([]byte, readSize)
		for {
			n, err := resp.Body.Read(chunk)
			if n > 0 {
				if ferr := buf.Feed(ctx, append([]byte(nil), chunk[:n]...)); ferr != nil {
					readErr <- ferr
					return
				}
			}
			if err == io.EOF {
				readErr <- nil
				return
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	if err := buf.Run(); err != nil {
		return err
	}
	if err := <-readErr; err != nil {
		return err
	}

	logger.Info("stream finished",
		slog.Duration("time_to_first_byte", buf.TimeToFirstByte()))
	return nil
}
