package analyzer

import "fmt"

// NewDetector creates a detector based on the specified variant. "none"
// returns a nil Detector, which callers treat as analysis disabled.
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}
