package program

import (
	"fmt"
	"regexp"
)

// baseNameRegex accepts the identifiers this loader actually needs to
// accept: plain names ("x"), and the dotted/indexed names a generated
// front end might emit ("layer.weights[3]"). Declared names end up both as
// map keys here and as literal text inside a DOT label in
// internal/dotgraph, so anything that would break a DOT label (quotes,
// whitespace, newlines) is rejected outright.
var baseNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_](?:[a-zA-Z0-9_.\[\]-]*[a-zA-Z0-9_\]])?$`)

// validateBaseName rejects a declared base name that is empty or contains
// characters that would be unsafe to embed in a DOT label or confusing as
// a map key.
func validateBaseName(name string) error {
	if name == "" || !baseNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidBaseName, name)
	}
	return nil
}
