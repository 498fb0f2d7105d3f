package reptile

import (
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryRecord(t *testing.T) {
	assert := assert.New(t)
	h := NewHistory()

	h.Record("train/loss", 0, 1.5)
	h.Record("train/loss", 1, 1.25)
	h.Record("eval/1_shots", 0, 0.3)

	assert.Equal([]string{"train/loss", "eval/1_shots"}, h.Series, "series should be kept in order of first use")
	assert.Equal(2, len(h.Points["train/loss"]))

	last, ok := h.Last("train/loss")
	assert.True(ok)
	assert.Equal(Point{Step: 1, Value: 1.25}, last)

	_, ok = h.Last("no/such/series")
	assert.False(ok)
}

func TestHistoryDump(t *testing.T) {
	h := NewHistory()
	h.Record("train/loss", 0, 0.5)
	h.Record("train/loss", 1, 0.25)
	h.Record("eval/2_shots", 0, 0.125)

	filename := t.TempDir() + "/history.csv"
	if err := h.Dump(filename); err != nil {
		t.Fatalf("%+v", err)
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 { // header + 3 points
		t.Fatalf("expected 4 records. Got %d: %v", len(records), records)
	}
	assert.Equal(t, []string{"series", "step", "value"}, records[0])
	assert.Equal(t, []string{"train/loss", "0", "0.500000"}, records[1])
	assert.Equal(t, []string{"eval/2_shots", "0", "0.125000"}, records[3])
}

func TestNopMetrics(t *testing.T) {
	// a no-op sink must be substitutable for any Metrics
	var m Metrics = NopMetrics{}
	m.Record("train/loss", 0, 1)
}
