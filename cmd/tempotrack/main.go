// Command tempotrack streams a WAV file through the tempo engine and prints
// one estimate line per second of audio. It is a thin harness: decoding and
// printing live here, all analysis lives in the tempo package.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/RyanBlaney/sonido-tempo/logging"
	"github.com/RyanBlaney/sonido-tempo/tempo"
	"github.com/RyanBlaney/sonido-tempo/transcode"
)

var (
	frameSize = flag.Int("frame", 1024, "analysis frame size in samples (power of two)")
	minBpm    = flag.Float64("min-bpm", 60, "lower bound of the tempo search range")
	maxBpm    = flag.Float64("max-bpm", 200, "upper bound of the tempo search range")
	verbose   = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file.wav>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	if *verbose {
		logging.SetLevel(logging.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Arg(0)); err != nil {
		logging.Fatal(err, "tempotrack failed")
	}
}

func run(ctx context.Context, path string) error {
	dec, err := transcode.Open(path, transcode.DefaultDecoderConfig())
	if err != nil {
		return err
	}
	defer dec.Close()

	info := dec.Info()

	cfg := tempo.DefaultConfig()
	cfg.SampleRate = info.SampleRate
	cfg.FrameSize = *frameSize
	cfg.MinBpm = *minBpm
	cfg.MaxBpm = *maxBpm

	engine, err := tempo.New(cfg)
	if err != nil {
		return err
	}

	logging.Info("analyzing", logging.Fields{
		"file":        path,
		"sample_rate": info.SampleRate,
		"channels":    info.Channels,
		"bit_depth":   info.BitDepth,
	})

	bytesPerSecond := 2 * info.SampleRate * info.Channels
	sinceReport := 0
	second := 0

	err = dec.Stream(ctx, func(pcm []byte) error {
		engine.Push(pcm, info.Channels, false)

		sinceReport += len(pcm)
		for sinceReport >= bytesPerSecond {
			sinceReport -= bytesPerSecond
			second++
			printEstimate(engine, second)
		}
		return nil
	})
	if err != nil {
		return err
	}

	est, ok := engine.Estimate()
	if !ok {
		fmt.Println("no estimate: input too short")
		return nil
	}
	fmt.Printf("final: %.1f BPM (stability %.2f, confidence %.2f, locked %v)\n",
		est.Bpm, est.Stability, est.Confidence, est.Locked)
	return nil
}

func printEstimate(engine *tempo.Engine, second int) {
	est, ok := engine.Estimate()
	if !ok {
		fmt.Printf("%4ds  --\n", second)
		return
	}

	lockFlag := " "
	if est.Locked {
		lockFlag = "L"
	}
	fmt.Printf("%4ds  %6.1f BPM  %s  stability %.2f  confidence %.2f\n",
		second, est.Bpm, lockFlag, est.Stability, est.Confidence)
}
