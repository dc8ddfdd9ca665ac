// Command gpudemo records GPU work with gpucmd: concurrent compute uploads
// from a worker pool and a presented frame loop. The last presented frame
// is saved as PNG.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/paulbellamy/ratecounter"

	"github.com/gogpu/gpucmd"
	"github.com/gogpu/gpucmd/backend"
	"github.com/gogpu/gpucmd/backend/headless"
	_ "github.com/gogpu/gpucmd/backend/wgpu"
	"github.com/gogpu/gpucmd/gpucore"
)

const openRetries = 3

// windowCreator is implemented by drivers that can create windows without
// a platform event loop.
type windowCreator interface {
	CreateWindow(width, height uint32) (gpucore.WindowID, error)
}

// availabilitySetter lets the demo simulate a minimized window.
type availabilitySetter interface {
	SetSwapchainAvailable(id gpucore.WindowID, available bool) error
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() (err error) {
	conf, err := gpucmd.LoadConfig("")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if conf.Backend == "" {
		conf.Backend = backend.BackendHeadless
	}

	var (
		backendName = flag.String("backend", conf.Backend, "backend name")
		width       = flag.Int("width", 320, "window width")
		height      = flag.Int("height", 240, "window height")
		frames      = flag.Int("frames", 120, "frames to render")
		skipEvery   = flag.Int("skip-every", 30, "hide the window every n-th frame (0 disables)")
		workers     = flag.Int("workers", 4, "concurrent recording workers")
		elements    = flag.Int("elements", 1024, "uint32 elements per compute job")
		output      = flag.String("output", "gpudemo.png", "output file")
	)
	flag.Parse()

	opts, err := conf.Options()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dev, err := openDevice(*backendName, opts)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("close device: %w", cerr))
		}
	}()
	log.Printf("Opened %s device", dev.Backend())

	if err := runCompute(dev, *workers, *elements); err != nil {
		return fmt.Errorf("compute: %w", err)
	}

	wc, ok := dev.Driver().(windowCreator)
	if !ok {
		log.Printf("Backend %s has no offscreen windows; skipping frame loop", dev.Backend())
		return nil
	}
	win, err := wc.CreateWindow(uint32(*width), uint32(*height))
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}

	r, err := newRenderer(dev, win)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	defer r.close()

	fps := ratecounter.NewRateCounter(time.Second)
	var presented, skipped int
	start := time.Now()
	for i := range *frames {
		if as, ok := dev.Driver().(availabilitySetter); ok && *skipEvery > 0 {
			_ = as.SetSwapchainAvailable(win, i%*skipEvery != *skipEvery-1)
		}
		shown, err := r.frame(i)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if !shown {
			skipped++
			continue
		}
		presented++
		fps.Incr(1)
	}
	log.Printf("Presented %d frames, skipped %d in %v (%d fps)",
		presented, skipped, time.Since(start).Round(time.Millisecond), fps.Rate())

	if err := saveFrame(dev, win, *output); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	log.Printf("Frame saved to %s (%dx%d)", *output, *width, *height)
	return nil
}

// openDevice opens the backend, retrying transient driver failures. An
// unknown backend fails immediately.
func openDevice(name string, opts []gpucmd.Option) (*gpucmd.Device, error) {
	var dev *gpucmd.Device
	op := func() error {
		d, err := gpucmd.Open(name, opts...)
		if errors.Is(err, backend.ErrBackendNotAvailable) {
			return backoff.Permanent(err)
		}
		if err != nil {
			log.Printf("Open %s failed, retrying: %v", name, err)
			return err
		}
		dev = d
		return nil
	}
	if err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), openRetries)); err != nil {
		return nil, err
	}
	return dev, nil
}

func saveFrame(dev *gpucmd.Device, win gpucore.WindowID, path string) error {
	hd, ok := dev.Driver().(*headless.Driver)
	if !ok {
		return nil
	}
	img, n, err := hd.Frame(win)
	if err != nil {
		return err
	}
	if img == nil {
		return fmt.Errorf("no frame presented after %d frames", n)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
