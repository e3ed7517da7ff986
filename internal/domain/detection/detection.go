package detection

import (
	"math"
	"sort"
	"strings"
)

// DefaultThreshold is the minimum confidence a detection must reach to be kept.
const DefaultThreshold = 0.15

// DefaultLabels are the fashion categories queried when the caller gives none.
var DefaultLabels = []string{
	"shirt", "pants", "dress", "sunglasses", "shoes",
	"bag", "jacket", "hat", "watch", "skirt",
}

// Box is an axis-aligned bounding box in pixels: x1, y1, x2, y2.
type Box [4]float64

// Detection is a single labeled region found in an image.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Labels returns the trimmed non-empty labels, or DefaultLabels when none remain.
func Labels(in []string) []string {
	return LabelsOr(in, DefaultLabels)
}

// LabelsOr returns the trimmed non-empty labels, or a copy of defaults when none remain.
func LabelsOr(in, defaults []string) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaults...)
	}
	return out
}

// Postprocess drops detections below threshold, rounds confidences and boxes
// to two decimals and orders by confidence desc.
func Postprocess(in []Detection, threshold float64) []Detection {
	out := make([]Detection, 0, len(in))
	for _, d := range in {
		if d.Confidence < threshold {
			continue
		}
		d.Confidence = round2(d.Confidence)
		for i := range d.Box {
			d.Box[i] = round2(d.Box[i])
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
