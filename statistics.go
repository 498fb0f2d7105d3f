package reptile

import (
	"encoding/csv"
	"os"
	"strconv"
)

// Point is one recorded sample of a scalar time series.
type Point struct {
	Step  int
	Value float32
}

// History is an in-memory Metrics sink. It keeps every recorded series in
// order of first use and can dump the lot as CSV.
type History struct {
	Series []string
	Points map[string][]Point
}

func NewHistory() *History {
	return &History{
		Series: make([]string, 0, 8),
		Points: make(map[string][]Point),
	}
}

// Record implements Metrics.
func (h *History) Record(series string, step int, value float32) {
	if _, ok := h.Points[series]; !ok {
		h.Series = append(h.Series, series)
	}
	h.Points[series] = append(h.Points[series], Point{Step: step, Value: value})
}

// Last returns the most recently recorded point of a series.
func (h *History) Last(series string) (Point, bool) {
	ps := h.Points[series]
	if len(ps) == 0 {
		return Point{}, false
	}
	return ps[len(ps)-1], true
}

// Dump writes the history to filename as (series, step, value) CSV records.
func (h *History) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"series", "step", "value"}); err != nil {
		return err
	}
	var records [][]string
	for _, series := range h.Series {
		for _, p := range h.Points[series] {
			records = append(records, []string{
				series,
				strconv.Itoa(p.Step),
				strconv.FormatFloat(float64(p.Value), 'f', 6, 32),
			})
		}
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
