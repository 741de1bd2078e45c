// Package config provides configuration management for weft using Viper for
// loading from .weft.yml, WEFT_ environment variables and command-line flags.
//
// The path table maps each asset role (markup source, style output, ...) to a
// glob or directory. It is read once by Load and handed to every task
// constructor; nothing re-reads it while tasks run.
package config

import (
	"fmt"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Paths       Paths             `mapstructure:"paths" yaml:"paths"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Transform   TransformConfig   `mapstructure:"transform" yaml:"transform"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// Paths is the role -> glob/directory table. Source keys hold glob patterns
// (doublestar syntax), output keys hold directories under BuildRoot.
type Paths struct {
	BuildRoot string `mapstructure:"buildRoot" yaml:"buildRoot"`
	StageDir  string `mapstructure:"stageDir" yaml:"stageDir"`

	MarkupSrc      string `mapstructure:"markupSrc" yaml:"markupSrc"`
	MarkupOut      string `mapstructure:"markupOut" yaml:"markupOut"`
	MarkupData     string `mapstructure:"markupData" yaml:"markupData"`
	MarkupPartials string `mapstructure:"markupPartials" yaml:"markupPartials"`
	MarkupWatch    string `mapstructure:"markupWatch" yaml:"markupWatch"`

	ScriptSrc        string   `mapstructure:"scriptSrc" yaml:"scriptSrc"`
	ScriptOut        string   `mapstructure:"scriptOut" yaml:"scriptOut"`
	ScriptWatch      string   `mapstructure:"scriptWatch" yaml:"scriptWatch"`
	VendorScripts    []string `mapstructure:"vendorScripts" yaml:"vendorScripts"`
	VendorScriptName string   `mapstructure:"vendorScriptName" yaml:"vendorScriptName"`

	StyleSrc       string `mapstructure:"styleSrc" yaml:"styleSrc"`
	StyleOut       string `mapstructure:"styleOut" yaml:"styleOut"`
	StyleWatch     string `mapstructure:"styleWatch" yaml:"styleWatch"`
	VendorStyleSrc string `mapstructure:"vendorStyleSrc" yaml:"vendorStyleSrc"`

	ImageSrc   string `mapstructure:"imageSrc" yaml:"imageSrc"`
	ImageOut   string `mapstructure:"imageOut" yaml:"imageOut"`
	ImageWatch string `mapstructure:"imageWatch" yaml:"imageWatch"`
	ImagesSrc  string `mapstructure:"imagesSrc" yaml:"imagesSrc"`
	ImagesOut  string `mapstructure:"imagesOut" yaml:"imagesOut"`

	FontSrc   string `mapstructure:"fontSrc" yaml:"fontSrc"`
	FontOut   string `mapstructure:"fontOut" yaml:"fontOut"`
	FontWatch string `mapstructure:"fontWatch" yaml:"fontWatch"`

	SpriteSrc string `mapstructure:"spriteSrc" yaml:"spriteSrc"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type DevelopmentConfig struct {
	HotReload    bool          `mapstructure:"hot_reload" yaml:"hot_reload"`
	CSSInjection bool          `mapstructure:"css_injection" yaml:"css_injection"`
	Debounce     time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type TransformConfig struct {
	ScriptTarget string   `mapstructure:"script_target" yaml:"script_target"`
	StyleTargets []string `mapstructure:"style_targets" yaml:"style_targets"`
	MinifyStyles bool     `mapstructure:"minify_styles" yaml:"minify_styles"`
	JPEGQuality  int      `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	StrictStyles bool     `mapstructure:"strict_styles" yaml:"strict_styles"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Binding pairs a watch glob with the task it re-runs.
type Binding struct {
	Pattern string
	Task    string
}

// DefaultPaths returns the layout weft expects when .weft.yml says nothing.
func DefaultPaths() Paths {
	return Paths{
		BuildRoot: "www",
		StageDir:  "www/.stage",

		MarkupSrc:      "src/templates/*.{template,pug}",
		MarkupOut:      "www",
		MarkupData:     "src/data.yaml",
		MarkupPartials: "src/templates/partials/*.template",
		MarkupWatch:    "src/templates/**/*.{template,pug}",

		ScriptSrc:        "src/scripts/**/*.{js,jsx,ts,tsx}",
		ScriptOut:        "www/assets/js",
		ScriptWatch:      "src/scripts/**/*.{js,jsx,ts,tsx}",
		VendorScripts:    []string{"src/libs/bootstrap/js/bootstrap.bundle.min.js"},
		VendorScriptName: "vendor.js",

		StyleSrc:       "src/styles/**/*.css",
		StyleOut:       "www/assets/css",
		StyleWatch:     "src/styles/**/*.css",
		VendorStyleSrc: "src/libs/bootstrap/css/source/*.css",

		ImageSrc:   "src/image/**/*",
		ImageOut:   "www/assets/image",
		ImageWatch: "src/image/**/*",
		ImagesSrc:  "src/images/**/*",
		ImagesOut:  "www/assets/images",

		FontSrc:   "src/fonts/**/*",
		FontOut:   "www/assets/fonts",
		FontWatch: "src/fonts/**/*",

		SpriteSrc: "src/sprites/*.svg",
	}
}

// Bindings returns the (glob, task) pairs watch mode registers.
func (c *Config) Bindings() []Binding {
	p := c.Paths
	return []Binding{
		{Pattern: p.StyleWatch, Task: "css"},
		{Pattern: p.ScriptWatch, Task: "js"},
		{Pattern: p.MarkupWatch, Task: "html"},
		{Pattern: p.MarkupData, Task: "html"},
		{Pattern: p.ImageWatch, Task: "image"},
		{Pattern: p.FontWatch, Task: "fonts"},
	}
}

// Address returns the host:port the dev server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// BindEnvironment makes every config key readable from its
// WEFT_<SECTION>_<KEY> variable. viper only consults the environment for
// keys it already knows, and Unmarshal alone never tells it about them.
func BindEnvironment() error {
	for _, key := range Keys() {
		if err := viper.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists every dotted config key, e.g. "server.port".
func Keys() []string {
	return appendKeys(nil, "", reflect.TypeOf(Config{}))
}

func appendKeys(keys []string, prefix string, t reflect.Type) []string {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			keys = appendKeys(keys, name, f.Type)
			continue
		}
		keys = append(keys, name)
	}
	return keys
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyPathDefaults(&config.Paths)

	// Apply default values for ServerConfig if not set
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !viper.IsSet("server.port") {
		config.Server.Port = 8080
	}

	// Handle development settings set via viper (workaround for viper bool handling)
	if viper.IsSet("development.hot_reload") {
		config.Development.HotReload = viper.GetBool("development.hot_reload")
	} else {
		config.Development.HotReload = true
	}
	if viper.IsSet("development.css_injection") {
		config.Development.CSSInjection = viper.GetBool("development.css_injection")
	} else {
		config.Development.CSSInjection = true
	}
	if config.Development.Debounce <= 0 {
		config.Development.Debounce = 300 * time.Millisecond
	}

	// Apply default values for TransformConfig if not set
	if config.Transform.ScriptTarget == "" {
		config.Transform.ScriptTarget = "es2015"
	}
	if len(config.Transform.StyleTargets) == 0 {
		config.Transform.StyleTargets = []string{"chrome58", "firefox57", "safari11", "edge16"}
	}
	if !viper.IsSet("transform.minify_styles") {
		config.Transform.MinifyStyles = true
	}
	if !viper.IsSet("transform.strict_styles") {
		config.Transform.StrictStyles = true
	}
	if config.Transform.JPEGQuality == 0 {
		config.Transform.JPEGQuality = 85
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if viper.IsSet("log-level") {
		config.Log.Level = viper.GetString("log-level")
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyPathDefaults(p *Paths) {
	d := DefaultPaths()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	fill(&p.BuildRoot, d.BuildRoot)
	p.BuildRoot = path.Clean(p.BuildRoot)

	// Output defaults follow the build root so a custom root stays self-contained.
	under := func(def string) string {
		rel := strings.TrimPrefix(def, d.BuildRoot)
		return path.Join(p.BuildRoot, rel)
	}

	fill(&p.StageDir, under(d.StageDir))
	fill(&p.MarkupSrc, d.MarkupSrc)
	fill(&p.MarkupOut, p.BuildRoot)
	fill(&p.MarkupData, d.MarkupData)
	fill(&p.MarkupPartials, d.MarkupPartials)
	fill(&p.MarkupWatch, d.MarkupWatch)
	fill(&p.ScriptSrc, d.ScriptSrc)
	fill(&p.ScriptOut, under(d.ScriptOut))
	fill(&p.ScriptWatch, d.ScriptWatch)
	fill(&p.VendorScriptName, d.VendorScriptName)
	fill(&p.StyleSrc, d.StyleSrc)
	fill(&p.StyleOut, under(d.StyleOut))
	fill(&p.StyleWatch, d.StyleWatch)
	fill(&p.VendorStyleSrc, d.VendorStyleSrc)
	fill(&p.ImageSrc, d.ImageSrc)
	fill(&p.ImageOut, under(d.ImageOut))
	fill(&p.ImageWatch, d.ImageWatch)
	fill(&p.ImagesSrc, d.ImagesSrc)
	fill(&p.ImagesOut, under(d.ImagesOut))
	fill(&p.FontSrc, d.FontSrc)
	fill(&p.FontOut, under(d.FontOut))
	fill(&p.FontWatch, d.FontWatch)
	fill(&p.SpriteSrc, d.SpriteSrc)

	if !viper.IsSet("paths.vendorScripts") && len(p.VendorScripts) == 0 {
		p.VendorScripts = d.VendorScripts
	}
}
