package mq5

// Segment is one linear piece of a sensitivity curve, y = Slope*ppm + Intercept
// where y is the Rs/R0 ratio, valid for Low <= ratio <= High.
type Segment struct {
	Low, High        float64
	Slope, Intercept float64
}

// Contains reports whether ratio falls inside the segment, bounds included.
func (s Segment) Contains(ratio float64) bool {
	return ratio >= s.Low && ratio <= s.High
}

// PPM inverts the segment line for ratio.
func (s Segment) PPM(ratio float64) float64 {
	return (ratio - s.Intercept) / s.Slope
}

// Table is an ordered piecewise-linear approximation of a curve. Segments
// are checked in order and the first one containing the ratio is used.
type Table []Segment

// PPM returns the concentration for ratio, or 0 when no segment covers it.
func (t Table) PPM(ratio float64) float64 {
	for _, s := range t {
		if s.Contains(ratio) {
			return s.PPM(ratio)
		}
	}
	return 0
}

// Curves read from the sensitivity graph in section 5.3 of the MQ-5 user
// manual, one line between each pair of plotted points:
// https://www.mouser.com/datasheet/2/744/Seeed_101020056-1217478.pdf
var (
	COTable = Table{
		{Low: 3.25, High: 3.9, Slope: -0.00217, Intercept: 4.334},
		{Low: 3.1, High: 3.25, Slope: -0.0005, Intercept: 3.5},
		{Low: 2.9, High: 3.1, Slope: -0.001, Intercept: 3.9},
		{Low: 2.8, High: 2.9, Slope: -0.00017, Intercept: 3.07},
		{Low: 2.75, High: 2.8, Slope: -0.00013, Intercept: 3.01},
		{Low: 2.5, High: 2.75, Slope: -0.00025, Intercept: 3.25},
		{Low: 2.4, High: 2.5, Slope: -0.00005, Intercept: 2.65},
		{Low: 2.25, High: 2.4, Slope: -0.00003, Intercept: 2.55},
	}

	LPGTable = Table{
		{Low: 0.49, High: 0.7, Slope: -0.0007, Intercept: 0.84},
		{Low: 0.4, High: 0.49, Slope: -0.0003, Intercept: 0.64},
		{Low: 0.37, High: 0.4, Slope: -0.00015, Intercept: 0.52},
		{Low: 0.3, High: 0.37, Slope: -0.00012, Intercept: 0.492},
		{Low: 0.28, High: 0.3, Slope: -0.00005, Intercept: 0.38},
		{Low: 0.24, High: 0.28, Slope: -0.00004, Intercept: 0.36},
		{Low: 0.19, High: 0.24, Slope: -0.00003, Intercept: 0.33},
		{Low: 0.05, High: 0.19, Slope: -0.00001, Intercept: 0.25},
	}
)
