package viz

import (
	"fmt"
	"slices"

	"github.com/san-kum/dplsim/internal/export"
)

// Formats the renderer understands, in file-extension form.
var Formats = []string{"svg", "txt"}

// Config carries every render setting. There is no package-level state.
type Config struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	FontFamily string  `yaml:"font_family"`
	FontSize   float64 `yaml:"font_size"`

	// FileTypes lists the formats written per figure.
	FileTypes []string `yaml:"file_types"`

	ASCIIWidth  int `yaml:"ascii_width"`
	ASCIIHeight int `yaml:"ascii_height"`

	XLimLog      export.Limits `yaml:"xlim_log"`
	YLimLog      export.Limits `yaml:"ylim_log"`
	XLimRescaled export.Limits `yaml:"xlim_rescaled"`
	YLimRescaled export.Limits `yaml:"ylim_rescaled"`

	// NDigits sets the stand-in distance 10^-NDigits used to rescale a run
	// sitting exactly at the critical point.
	NDigits int `yaml:"n_digits"`
}

func DefaultConfig() Config {
	return Config{
		Width:       600,
		Height:      400,
		FontFamily:  "sans-serif",
		FontSize:    11,
		FileTypes:   []string{"svg"},
		ASCIIWidth:  80,
		ASCIIHeight: 15,
		NDigits:     5,
	}
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("figure size must be positive, got %dx%d", c.Width, c.Height)
	}
	for _, ft := range c.FileTypes {
		if !slices.Contains(Formats, ft) {
			return fmt.Errorf("unsupported figure format %q", ft)
		}
	}
	return nil
}
