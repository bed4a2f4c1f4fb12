// Command framelinkdemo runs the frame handoff pipeline headless and saves
// the last presented frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/gogpu/gg"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/framelink"
	"github.com/gogpu/framelink/gfx/wgpu"
	"github.com/gogpu/framelink/pipeline"
	"github.com/gogpu/framelink/present"
	"github.com/gogpu/framelink/producer"
)

type options struct {
	width, height int
	format        string
	method        string
	interval      time.Duration
	refresh       time.Duration
	duration      time.Duration
	represent     bool
	gpu           bool
	verbose       bool
	output        string
}

func main() {
	var o options
	flag.IntVar(&o.width, "width", 1280, "surface width")
	flag.IntVar(&o.height, "height", 720, "surface height")
	flag.StringVar(&o.format, "format", "rgba8", "pixel format (rgba8, bgra8)")
	flag.StringVar(&o.method, "method", "auto", "import method (auto, legacy-texture-cache, modern-direct-texture, copy-fallback, legacy-extension)")
	flag.DurationVar(&o.interval, "interval", 0, "producer frame interval (0 renders as fast as possible)")
	flag.DurationVar(&o.refresh, "refresh", time.Second/60, "display refresh interval")
	flag.DurationVar(&o.duration, "duration", 2*time.Second, "run time")
	flag.BoolVar(&o.represent, "represent", false, "present the last image again on idle ticks")
	flag.BoolVar(&o.gpu, "gpu", false, "present through a GPU device instead of a CPU image")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.StringVar(&o.output, "output", "framelink.png", "PNG file for the last presented frame")
	flag.Parse()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	framelink.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(o); err != nil {
		log.Fatalf("framelinkdemo: %v", err)
	}
}

func run(o options) error {
	format, err := framelink.ParsePixelFormat(o.format)
	if err != nil {
		return err
	}
	method, err := framelink.ParseImportMethod(o.method)
	if err != nil {
		return err
	}
	idle := framelink.IdleSkip
	if o.represent {
		idle = framelink.IdleRepresent
	}

	cfg := framelink.NewConfig(
		framelink.WithSize(o.width, o.height),
		framelink.WithFormat(format),
		framelink.WithMethod(method),
		framelink.WithFrameInterval(o.interval),
		framelink.WithIdlePolicy(idle),
	)
	if err := cfg.Validate(); err != nil {
		return err
	}

	canvas := producer.NewCanvas(drawScene)
	defer canvas.Close()

	deps := pipeline.Deps{
		Source: canvas,
		Clock:  present.NewTickerClock(o.refresh),
	}

	var snapshot func() (*image.RGBA, error)
	if o.gpu {
		gctx, err := wgpu.Open()
		if err != nil {
			return err
		}
		defer gctx.Close()
		if err := gctx.Initialize(); err != nil {
			return err
		}
		target, err := wgpu.NewTarget(gctx, o.width, o.height, format)
		if err != nil {
			return err
		}
		defer target.Release()

		deps.PresenterContext = gctx
		deps.Target = target
		snapshot = func() (*image.RGBA, error) {
			ctx, cancel := context.WithTimeout(context.Background(), wgpu.DefaultFenceTimeout)
			defer cancel()
			return target.Snapshot(ctx)
		}
	} else {
		target := present.NewImageTarget(o.width, o.height)
		deps.Target = target
		snapshot = func() (*image.RGBA, error) { return target.Snapshot(), nil }
	}

	p, err := pipeline.New(cfg, deps)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Initialize(); err != nil {
		return err
	}
	surface := p.Buffer().Size()

	start := time.Now()
	if err := p.Start(); err != nil {
		return err
	}
	time.Sleep(o.duration)
	if err := p.Stop(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	img, err := snapshot()
	if err != nil {
		return err
	}
	if err := savePNG(o.output, img); err != nil {
		return err
	}

	st := p.Stats()
	pr := message.NewPrinter(language.English)
	pr.Printf("surface    %dx%d %v (%s)\n", o.width, o.height, format, units.HumanSize(float64(surface)))
	pr.Printf("method     %v\n", p.Presenter().Method())
	pr.Printf("produced   %d frames (%d committed, %d aborted, %d busy, %d held)\n",
		st.Producer.Rendered, st.Producer.Committed, st.Producer.Aborted, st.Producer.Busy, st.Producer.Held)
	pr.Printf("presented  %d of %d ticks (%d skipped, %d overwritten before display)\n",
		st.Presenter.Presented, st.Presenter.Ticks, st.Presenter.Skipped, st.Handoff.Overwritten)
	pr.Printf("rate       %.1f fps over %v\n", float64(st.Presenter.Presented)/elapsed.Seconds(), elapsed.Round(time.Millisecond))
	fmt.Printf("saved      %s\n", o.output)
	return nil
}

func savePNG(path string, img image.Image) error {
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

// drawScene draws a background gradient and a ring of squares rotating
// with the frame number.
func drawScene(dc *gg.Context, f producer.Frame) {
	w, h := float64(dc.Width()), float64(dc.Height())

	steps := 64
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps)
		dc.SetColor(gg.RGB(0.1+t*0.3, 0.15+t*0.2, 0.3+t*0.3))
		dc.DrawRectangle(0, h*t, w, h/float64(steps)+1)
		_ = dc.Fill()
	}

	cx, cy := w/2, h/2
	r := math.Min(w, h) / 3
	phase := float64(f.Seq) * math.Pi / 90

	for i := 0; i < 8; i++ {
		angle := phase + float64(i)*math.Pi/4
		dc.Push()
		dc.Translate(cx+r*math.Cos(angle), cy+r*math.Sin(angle))
		dc.Rotate(angle)
		dc.SetColor(gg.HSL(float64(i)*45, 0.8, 0.6))
		dc.DrawRectangle(-r/6, -r/6, r/3, r/3)
		_ = dc.Fill()
		dc.Pop()
	}

	dc.SetRGBA(1, 1, 1, 0.9)
	dc.DrawCircle(cx, cy, r/4)
	_ = dc.Fill()
}
