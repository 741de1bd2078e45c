//go:build property

package config

import (
	"path"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

// TestPathProperties checks the build-root containment rules.
func TestPathProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	segment := gen.RegexMatch(`^[a-z][a-z0-9_-]{0,8}$`)
	outRoot := gen.RegexMatch(`^out[a-z0-9_-]{0,6}$`)

	properties.Property("a directory is within itself and its parents", prop.ForAll(
		func(root, child string) bool {
			return IsWithin(root, root) &&
				IsWithin(root, path.Join(root, child)) &&
				IsWithin(root, "./"+path.Join(root, child))
		},
		segment, segment,
	))

	properties.Property("a sibling sharing a prefix is not within", prop.ForAll(
		func(root, child string) bool {
			return !IsWithin(root, path.Join(root+"x", child))
		},
		segment, segment,
	))

	properties.Property("traversal segments are always rejected", prop.ForAll(
		func(a, b string) bool {
			return validatePath(path.Join(a, "..", "..", b)) != nil
		},
		segment, segment,
	))

	properties.Property("defaults under any build root validate", prop.ForAll(
		func(root string) bool {
			viper.Reset()
			p := Paths{BuildRoot: root}
			applyPathDefaults(&p)
			return validatePaths(&p) == nil &&
				IsWithin(root, p.StyleOut) &&
				IsWithin(root, p.StageDir)
		},
		outRoot,
	))

	properties.TestingRun(t)
}
