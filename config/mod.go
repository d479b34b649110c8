// Package config describes a patch build.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/nbarena/gmpatch/compress"
	"github.com/nbarena/gmpatch/filler"
	"github.com/nbarena/gmpatch/patch"
)

type Caption struct {
	Text string `yaml:"text" json:"text"`
	Y    *int   `yaml:"y,omitempty" json:"y,omitempty"`
}

// StringOverride replaces entry Index of the string table. Old is the
// text the runtime patcher expects to find there.
type StringOverride struct {
	Index int    `yaml:"index" json:"index"`
	Old   string `yaml:"old" json:"old"`
	New   string `yaml:"new" json:"new"`
}

const (
	FormatCBOR = patch.FormatCBOR
	FormatC    = patch.FormatC
)

type Config struct {
	// RequiredSprites must end up with artwork for every frame.
	RequiredSprites []string `yaml:"required_sprites" json:"required_sprites"`

	// FillerSprites lend their artwork to required frames without any.
	FillerSprites []string `yaml:"filler_sprites" json:"filler_sprites"`
	MaxFillerUses int      `yaml:"max_filler_uses" json:"max_filler_uses"`

	// Captions are keyed by "<sprite>/<frame>.png".
	Captions map[string]Caption `yaml:"captions" json:"captions"`
	Strings  []StringOverride   `yaml:"strings" json:"strings"`

	// Font is a font file path or a file name searched in the usual
	// font directories. Empty selects a built-in bitmap font.
	Font     string  `yaml:"font" json:"font"`
	FontSize float64 `yaml:"font_size" json:"font_size"`

	AutoFix     bool     `yaml:"autofix" json:"autofix"`
	Formats     []string `yaml:"formats" json:"formats"`
	Compression string   `yaml:"compression" json:"compression"`

	// Prefix starts every identifier of the C output.
	Prefix string `yaml:"prefix" json:"prefix"`
}

func Default() *Config {
	hoomans := []string{"CUST_SPR_AllNewFTC_A", "CUST_SPR_AllNewFTC_B", "CUST_SPR_ICSpeedway"}
	return &Config{
		RequiredSprites: hoomans,
		FillerSprites:   append([]string(nil), hoomans...),
		MaxFillerUses:   filler.DefaultMaxUses,
		FontSize:        22,
		Formats:         []string{FormatCBOR},
		Compression:     compress.None.String(),
		Prefix:          "gm",
	}
}

// Load reads a YAML file, or a JSON file with comments when the extension
// is .json or .jsonc, over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w while parsing %s", err, path)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.MaxFillerUses < 0 {
		errs = append(errs, fmt.Errorf("max_filler_uses must not be negative"))
	}
	if c.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("font_size must be positive"))
	}
	if _, err := compress.Parse(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if len(c.Formats) == 0 {
		errs = append(errs, fmt.Errorf("at least one output format is required"))
	}
	for _, f := range c.Formats {
		if f != FormatCBOR && f != FormatC {
			errs = append(errs, fmt.Errorf("unknown output format %q", f))
		}
	}
	for key := range c.Captions {
		if !strings.Contains(key, "/") {
			errs = append(errs, fmt.Errorf("caption key %q is not <sprite>/<frame>.png", key))
		}
	}
	seen := map[int]bool{}
	for _, s := range c.Strings {
		if s.Index < 0 {
			errs = append(errs, fmt.Errorf("string override index %d is negative", s.Index))
		}
		if seen[s.Index] {
			errs = append(errs, fmt.Errorf("string %d overridden twice", s.Index))
		}
		seen[s.Index] = true
	}

	return errors.Join(errs...)
}
