// Package indicators provides stateless technical-analysis functions over
// closing-price series. Every function reports ErrInsufficientData instead
// of a sentinel value when the series is too short.
package indicators

import "errors"

// ErrInsufficientData means the series is shorter than the indicator's warm-up.
var ErrInsufficientData = errors.New("indicators: insufficient data")
