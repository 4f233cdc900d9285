package program

import "testing"

func TestValidateBaseName(t *testing.T) {
	valid := []string{"x", "scaled", "result", "layer.weights[3]", "batch-0.bases[3]"}
	for _, name := range valid {
		if err := validateBaseName(name); err != nil {
			t.Errorf("validateBaseName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "has space", `has"quote`, "trailing.", "[0]leading"}
	for _, name := range invalid {
		if err := validateBaseName(name); err == nil {
			t.Errorf("validateBaseName(%q) = nil, want error", name)
		}
	}
}
