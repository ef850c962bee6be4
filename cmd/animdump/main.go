// Command animdump inspects an animated GIF and exports its frames as PNG
// files at a fixed playback rate.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"

	"github.com/gogpu/anim"
)

func main() {
	var (
		input    = flag.String("input", "", "animated GIF to inspect (required)")
		outdir   = flag.String("outdir", "", "directory for exported PNG frames (skip export if empty)")
		cacheCap = flag.Int("cap", 0, "frame cache cap, 0 = automatic")
		maxDim   = flag.Int("maxdim", 0, "downscale frames to this long side, 0 = off")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	anim.SetLogger(slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level})))

	data, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("read %s: %v", *input, err)
	}

	img, err := anim.Decode(data,
		anim.WithCacheCap(*cacheCap),
		anim.WithMaxDimension(*maxDim))
	if err != nil {
		if errors.Is(err, anim.ErrSingleFrame) {
			log.Fatalf("%s is a static image, nothing to play", *input)
		}
		log.Fatalf("decode %s: %v", *input, err)
	}
	defer img.Close()

	// SIGUSR1 doubles as a memory-pressure signal so cache shrinking can
	// be exercised from the shell.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	pressureCh := make(chan struct{}, 1)
	go func() {
		for range sig {
			select {
			case pressureCh <- struct{}{}:
			default:
			}
		}
	}()
	anim.WatchPressure(context.Background(), pressureCh)

	fmt.Printf("%s: %d frames, %dx%d, %v total", *input,
		img.FrameCount(), img.Width(), img.Height(), img.TotalDuration())
	switch lc := img.LoopCount(); {
	case lc == 0:
		fmt.Println(", loops forever")
	case lc < 0:
		fmt.Println(", plays once")
	default:
		fmt.Printf(", loops %d times\n", lc)
	}
	for i := range img.FrameCount() {
		fmt.Printf("  frame %2d: %v\n", i, img.Delay(i))
	}

	if *outdir == "" {
		return
	}

	frames, period, err := img.Images()
	if err != nil {
		log.Fatalf("export: %v", err)
	}
	if err := os.MkdirAll(*outdir, 0o755); err != nil {
		log.Fatalf("mkdir %s: %v", *outdir, err)
	}

	for i, f := range frames {
		path := filepath.Join(*outdir, fmt.Sprintf("frame_%04d.png", i))
		if err := f.SavePNG(path); err != nil {
			log.Fatalf("save %s: %v", path, err)
		}
	}
	fmt.Printf("exported %d frames at %v per frame to %s\n", len(frames), period, *outdir)
}
