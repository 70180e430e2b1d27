package engine

import "math"

// EasingFunc maps a raw progress fraction in [0,1] to an eased fraction.
type EasingFunc func(t float64) float64

// Easing names recognized by the engine. Any other name, including "arc",
// shapes progress linearly and is passed to the sink verbatim: the sink
// decides what the label means visually.
const (
	EaseLinear     = "linear"
	EaseIn         = "easeIn"
	EaseOut        = "easeOut"
	EaseInOut      = "easeInOut"
	EaseInCubic    = "easeInCubic"
	EaseOutCubic   = "easeOutCubic"
	EaseInOutCubic = "easeInOutCubic"
	EaseArc        = "arc"
	DefaultEasing  = EaseLinear
)

var easings = map[string]EasingFunc{
	EaseLinear: func(t float64) float64 { return t },
	EaseIn:     func(t float64) float64 { return t * t },
	EaseOut:    func(t float64) float64 { return t * (2 - t) },
	EaseInOut: func(t float64) float64 {
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	},
	EaseInCubic:  func(t float64) float64 { return t * t * t },
	EaseOutCubic: func(t float64) float64 { return 1 - math.Pow(1-t, 3) },
	EaseInOutCubic: func(t float64) float64 {
		if t < 0.5 {
			return 4 * t * t * t
		}
		return 1 - math.Pow(-2*t+2, 3)/2
	},
}

// Ease applies the named easing to a raw fraction, clamping input and
// output to [0,1]. Unknown names fall back to linear.
func Ease(name string, t float64) float64 {
	t = clamp01(t)
	fn, ok := easings[name]
	if !ok {
		return t
	}
	return clamp01(fn(t))
}

// KnownEasing reports whether name has a dedicated easing curve.
// "arc" is known but intentionally linear.
func KnownEasing(name string) bool {
	if name == EaseArc {
		return true
	}
	_, ok := easings[name]
	return ok
}

func clamp01(t float64) float64 {
	if math.IsNaN(t) || t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
