package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}

// validateConfig validates configuration values for safety and correctness
func validateConfig(config *Config) error {
	if err := validatePaths(&config.Paths); err != nil {
		return fmt.Errorf("paths: %w", err)
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if q := config.Transform.JPEGQuality; q < 1 || q > 100 {
		return fmt.Errorf("transform config: jpeg_quality %d is not in range 1-100", q)
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log config: unsupported format %q (text, json)", config.Log.Format)
	}

	return nil
}

func validatePaths(p *Paths) error {
	if err := validateBuildRoot(p.BuildRoot); err != nil {
		return err
	}

	outputs := map[string]string{
		"stageDir":  p.StageDir,
		"markupOut": p.MarkupOut,
		"scriptOut": p.ScriptOut,
		"styleOut":  p.StyleOut,
		"imageOut":  p.ImageOut,
		"imagesOut": p.ImagesOut,
		"fontOut":   p.FontOut,
	}
	for key, dir := range outputs {
		if err := validatePath(dir); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", key, dir, err)
		}
		if !IsWithin(p.BuildRoot, dir) {
			return fmt.Errorf("%s '%s' is outside buildRoot '%s'", key, dir, p.BuildRoot)
		}
	}

	globs := map[string]string{
		"markupSrc":      p.MarkupSrc,
		"markupPartials": p.MarkupPartials,
		"markupWatch":    p.MarkupWatch,
		"scriptSrc":      p.ScriptSrc,
		"scriptWatch":    p.ScriptWatch,
		"styleSrc":       p.StyleSrc,
		"styleWatch":     p.StyleWatch,
		"vendorStyleSrc": p.VendorStyleSrc,
		"imageSrc":       p.ImageSrc,
		"imageWatch":     p.ImageWatch,
		"imagesSrc":      p.ImagesSrc,
		"fontSrc":        p.FontSrc,
		"fontWatch":      p.FontWatch,
		"spriteSrc":      p.SpriteSrc,
	}
	for i, v := range p.VendorScripts {
		globs[fmt.Sprintf("vendorScripts[%d]", i)] = v
	}
	for key, glob := range globs {
		if err := validateGlob(glob); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", key, glob, err)
		}
	}

	if p.MarkupData != "" {
		if err := validatePath(p.MarkupData); err != nil {
			return fmt.Errorf("invalid markupData '%s': %w", p.MarkupData, err)
		}
		globs["markupData"] = p.MarkupData
	}

	// clean empties buildRoot, so no source may live beneath it.
	for key, glob := range globs {
		base, _ := doublestar.SplitPattern(path.Clean(filepath.ToSlash(glob)))
		if IsWithin(p.BuildRoot, base) {
			return fmt.Errorf("%s '%s' lies inside buildRoot '%s', which clean would delete", key, glob, p.BuildRoot)
		}
	}

	name := p.VendorScriptName
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("vendorScriptName '%s' must be a plain file name", name)
	}

	return nil
}

// validateBuildRoot rejects roots that would make clean delete the project.
func validateBuildRoot(root string) error {
	if err := validatePath(root); err != nil {
		return fmt.Errorf("invalid buildRoot '%s': %w", root, err)
	}
	if clean := filepath.Clean(root); clean == "." || clean == "/" {
		return fmt.Errorf("buildRoot '%s' would delete the working directory on clean", root)
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(p)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", p)
	}

	if filepath.IsAbs(cleanPath) {
		return fmt.Errorf("path should be relative: %s", p)
	}

	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

func validateGlob(glob string) error {
	if err := validatePath(glob); err != nil {
		return err
	}
	if !doublestar.ValidatePattern(filepath.ToSlash(glob)) {
		return fmt.Errorf("malformed glob pattern")
	}
	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Validate port range (allow 0 for system-assigned ports in testing)
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	for _, char := range append(dangerousChars, "\\") {
		if strings.Contains(config.Host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}

	return nil
}

// IsWithin reports whether dir is root or lies beneath it.
func IsWithin(root, dir string) bool {
	root = path.Clean(filepath.ToSlash(root))
	dir = path.Clean(filepath.ToSlash(dir))
	return dir == root || strings.HasPrefix(dir, root+"/")
}
