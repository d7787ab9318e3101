package display

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/asssaf/st7735-go/st7735"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/rubiojr/go-strawberrypi/station"
)

const (
	WIDTH  int = 80
	HEIGHT int = 160
)

var (
	Background = color.RGBA{A: 255}
	Foreground = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Alert      = color.RGBA{R: 255, A: 255}
)

type Opts struct {
	Port      string // SPI port of the panel
	DCPin     string // data/command select
	Backlight string // backlight enable
}

var DefaultOpts = Opts{
	Port:      "SPI0.1",
	DCPin:     "GPIO9",
	Backlight: "GPIO12",
}

// Display shows the latest readings on an ST7735 panel. It implements
// station.Reporter.
type Display struct {
	mu   sync.Mutex
	p    spi.PortCloser
	dev  *st7735.Dev
	last Screen
}

// Screen holds what is currently drawn.
type Screen struct {
	Measurement *station.Measurement
	Gas         *station.GasSample
	Failure     *station.Failure
}

func Init() (*Display, error) {
	return InitWithOpts(DefaultOpts)
}

func InitWithOpts(opts Opts) (*Display, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	if _, err := driverreg.Init(); err != nil {
		return nil, err
	}

	p, err := spireg.Open(opts.Port)
	if err != nil {
		return nil, err
	}

	dc := gpioreg.ByName(opts.DCPin)
	if dc == nil {
		p.Close()
		return nil, fmt.Errorf("display: unknown pin %q", opts.DCPin)
	}
	bl := gpioreg.ByName(opts.Backlight)
	if bl == nil {
		p.Close()
		return nil, fmt.Errorf("display: unknown pin %q", opts.Backlight)
	}

	dev, err := st7735.New(p, dc, nil, bl, &st7735.DefaultOpts)
	if err != nil {
		p.Close()
		return nil, err
	}

	return &Display{p: p, dev: dev}, nil
}

func (d *Display) Close() error {
	return d.p.Close()
}

// PowerOff the display
func (d *Display) PowerOff() error {
	d.dev.SetBacklight(false)
	return nil
}

// PowerOn the display
func (d *Display) PowerOn() error {
	d.dev.SetBacklight(true)
	return nil
}

func (d *Display) FillScreen(c color.RGBA) error {
	img := image.NewRGBA(image.Rect(0, 0, WIDTH, HEIGHT))
	for x := 0; x < WIDTH; x++ {
		for y := 0; y < HEIGHT; y++ {
			img.Set(x, y, c)
		}
	}
	return d.dev.DisplayImage(0, 0, img)
}

func (d *Display) ReportClimate(ctx context.Context, m station.Measurement) error {
	return d.update(func(s *Screen) {
		s.Measurement = &m
		s.Failure = nil
	})
}

func (d *Display) ReportGas(ctx context.Context, g station.GasSample) error {
	return d.update(func(s *Screen) { s.Gas = &g })
}

func (d *Display) ReportFailure(ctx context.Context, f station.Failure) error {
	if f.Stage == station.StageGas {
		return nil
	}
	return d.update(func(s *Screen) { s.Failure = &f })
}

func (d *Display) update(fn func(*Screen)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	fn(&d.last)
	return d.dev.DisplayImage(0, 0, Render(d.last))
}

// Render draws the screen contents as text lines.
func Render(s Screen) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, WIDTH, HEIGHT))
	for x := 0; x < WIDTH; x++ {
		for y := 0; y < HEIGHT; y++ {
			img.Set(x, y, Background)
		}
	}

	var lines []string
	alert := false
	switch {
	case s.Failure != nil:
		lines = append(lines, "ERROR", string(s.Failure.Stage))
		alert = true
	case s.Measurement != nil:
		m := s.Measurement
		lines = append(lines,
			fmt.Sprintf("T %.1fC", m.Celsius()),
			fmt.Sprintf("H %.1f%%", m.Percent()),
			fmt.Sprintf("L %d", m.Light),
		)
	default:
		lines = append(lines, "waiting")
	}

	if s.Gas != nil {
		lines = append(lines, "",
			fmt.Sprintf("CO %.0f", s.Gas.CO),
			fmt.Sprintf("LPG %.0f", s.Gas.LPG),
		)
		if s.Gas.Alarm {
			lines = append(lines, "GAS!")
			alert = true
		}
	}

	c := Foreground
	if alert {
		c = Alert
	}
	drawLines(img, lines, c)

	return img
}

func drawLines(img *image.RGBA, lines []string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}
	for i, l := range lines {
		d.Dot = fixed.P(2, (i+1)*face.Height)
		d.DrawString(l)
	}
}
