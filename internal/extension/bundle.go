package extension

import "fmt"

// BundleVersion is the extension bundle contract version this runtime
// understands.
const BundleVersion = 1

// Bundle is the shape an external extension supplies at process start: a
// namespace, a contract version, and zero or more descriptors of each kind.
// Bundles are purely declarative; the registry consumes them during
// initialization.
type Bundle struct {
	// Name is the bundle namespace. Actor discriminators are registered
	// prefixed with it ("name.action").
	Name string

	// Version is the bundle contract version, not the bundle's own release
	// version.
	Version int

	Actors       []Actor
	Checkers     []Checker
	ContentTypes []ContentType
	Instructions []Instruction
}

// Validate checks the bundle's declared contract before any of its
// descriptors are compiled.
func (b Bundle) Validate() error {
	if !namePattern.MatchString(b.Name) {
		return fmt.Errorf("invalid bundle name %q", b.Name)
	}
	if b.Version != BundleVersion {
		return fmt.Errorf("bundle %q declares unsupported contract version %d (want %d)", b.Name, b.Version, BundleVersion)
	}
	return nil
}
