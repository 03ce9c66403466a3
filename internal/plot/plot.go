// Package plot renders a Result stream's latency series into a single
// self-contained HTML page (inline SVG, no external assets), downsampling
// above a point-count threshold by averaging adjacent points. Throughput
// is not plotted. The specification explicitly scopes plot *rendering
// math* out as a thin, exchangeable concern; none of the example repos
// import a charting library, so this stays on html/template and inline
// SVG rather than introducing one for a single static page.
package plot

import (
	"html/template"
	"io"
	"time"

	"culverin/internal/result"
)

// Point is one plotted sample: elapsed time since the first Result, its
// latency, and whether it succeeded (drawn in a different color).
type Point struct {
	Elapsed time.Duration
	Latency time.Duration
	OK      bool
}

// Series collects Points from a Result stream in arrival order.
type Series struct {
	points []Point
	start  time.Time
}

// NewSeries builds an empty Series.
func NewSeries() *Series { return &Series{} }

// Add appends one Result's point.
func (s *Series) Add(r *result.Result) {
	if s.start.IsZero() {
		s.start = r.Timestamp
	}
	s.points = append(s.points, Point{
		Elapsed: r.Timestamp.Sub(s.start),
		Latency: r.Latency,
		OK:      r.Error == "",
	})
}

// Downsample reduces the series to at most threshold points by averaging
// adjacent points into buckets, per §6's plot threshold rule. threshold<=0
// or a series already at or under threshold is returned unchanged.
func (s *Series) Downsample(threshold int) []Point {
	if threshold <= 0 || len(s.points) <= threshold {
		return s.points
	}
	bucketSize := (len(s.points) + threshold - 1) / threshold
	out := make([]Point, 0, threshold)
	for i := 0; i < len(s.points); i += bucketSize {
		end := i + bucketSize
		if end > len(s.points) {
			end = len(s.points)
		}
		out = append(out, averageBucket(s.points[i:end]))
	}
	return out
}

func averageBucket(pts []Point) Point {
	var sumElapsed, sumLatency time.Duration
	var okCount int
	for _, p := range pts {
		sumElapsed += p.Elapsed
		sumLatency += p.Latency
		if p.OK {
			okCount++
		}
	}
	n := time.Duration(len(pts))
	return Point{
		Elapsed: sumElapsed / n,
		Latency: sumLatency / n,
		OK:      okCount*2 >= len(pts),
	}
}

// Render writes a self-contained HTML page plotting pts as an inline SVG
// scatter of latency-vs-elapsed-time, colored by success.
func Render(w io.Writer, title string, pts []Point) error {
	svgPoints, maxX, maxY := toSVGCoords(pts)
	data := struct {
		Title  string
		Points []svgPoint
		MaxX   int
		MaxY   int
	}{Title: title, Points: svgPoints, MaxX: maxX, MaxY: maxY}
	return plotTemplate.Execute(w, data)
}

type svgPoint struct {
	X, Y int
	OK   bool
}

const plotWidth, plotHeight = 900, 300

func toSVGCoords(pts []Point) ([]svgPoint, int, int) {
	if len(pts) == 0 {
		return nil, plotWidth, plotHeight
	}
	var maxElapsed, maxLatency time.Duration
	for _, p := range pts {
		if p.Elapsed > maxElapsed {
			maxElapsed = p.Elapsed
		}
		if p.Latency > maxLatency {
			maxLatency = p.Latency
		}
	}
	if maxElapsed == 0 {
		maxElapsed = 1
	}
	if maxLatency == 0 {
		maxLatency = 1
	}

	out := make([]svgPoint, len(pts))
	for i, p := range pts {
		x := int(float64(p.Elapsed) / float64(maxElapsed) * plotWidth)
		y := plotHeight - int(float64(p.Latency)/float64(maxLatency)*plotHeight)
		out[i] = svgPoint{X: x, Y: y, OK: p.OK}
	}
	return out, plotWidth, plotHeight
}

var plotTemplate = template.Must(template.New("plot").Funcs(template.FuncMap{
	"dotColor": func(ok bool) string {
		if ok {
			return "#2a9d8f"
		}
		return "#e63946"
	},
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family:sans-serif;background:#fafafa">
<h2>{{.Title}}</h2>
<svg width="{{.MaxX}}" height="{{.MaxY}}" style="background:#fff;border:1px solid #ddd">
{{range .Points}}<circle cx="{{.X}}" cy="{{.Y}}" r="2" fill="{{dotColor .OK}}"/>
{{end}}</svg>
</body>
</html>
`))
