package domain

import "time"

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WindowEnding returns the window of length d that ends at end.
func WindowEnding(end time.Time, d time.Duration) Window {
	return Window{Start: end.Add(-d), End: end}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// StreamKey identifies one source stream inside one zone.
type StreamKey struct {
	Source SourceType `json:"source_type"`
	Zone   string     `json:"zone"`
}

func (k StreamKey) String() string { return k.Zone + "/" + string(k.Source) }

// FeatureVector is the fixed-dimension summary of one stream over one window.
// Values[0] is always the stream's primary level (mean for sensors, units for
// pharmacy), which forecast scorers track.
type FeatureVector struct {
	Source SourceType `json:"source_type"`
	Zone   string     `json:"zone"`
	Window Window     `json:"window"`
	Values []float64  `json:"values"`
}

func (v FeatureVector) Key() StreamKey { return StreamKey{Source: v.Source, Zone: v.Zone} }

// Primary returns the level feature, or 0 for an empty vector.
func (v FeatureVector) Primary() float64 {
	if len(v.Values) == 0 {
		return 0
	}
	return v.Values[0]
}
