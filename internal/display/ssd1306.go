package display

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

// rowHeight is the pixel pitch of one text row on a 64px panel.
const rowHeight = 9

// OLED drives a 128x64 SSD1306 over I2C.
type OLED struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
	img *image1bit.VerticalLSB
}

// NewOLED opens the I2C bus (empty name = first bus) and the panel.
func NewOLED(busName string) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open ssd1306: %w", err)
	}
	return &OLED{
		bus: bus,
		dev: dev,
		img: image1bit.NewVerticalLSB(dev.Bounds()),
	}, nil
}

// Show renders lines into the frame buffer and pushes it to the panel.
func (o *OLED) Show(lines []Line) error {
	Render(o.img, lines)
	if err := o.dev.Draw(o.dev.Bounds(), o.img, image.Point{}); err != nil {
		return fmt.Errorf("draw ssd1306: %w", err)
	}
	return nil
}

// Close blanks the panel and releases the bus.
func (o *OLED) Close() error {
	var errs []error
	if err := o.dev.Halt(); err != nil {
		errs = append(errs, err)
	}
	if err := o.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close oled: %v", errs)
	}
	return nil
}

// Render clears img and draws lines with the 7x13 bitmap face. Size 2 lines
// use a double row pitch; glyphs are not scaled.
func Render(img *image1bit.VerticalLSB, lines []Line) {
	for i := range img.Pix {
		img.Pix[i] = 0
	}
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: face,
	}
	for _, l := range lines {
		size := l.Size
		if size < 1 {
			size = 1
		}
		top := l.Row * rowHeight
		d.Dot = fixed.P(0, top+size*rowHeight-1)
		d.DrawString(l.Text)
	}
}
