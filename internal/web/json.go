package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/lock-feedback/internal/history"
	"github.com/sweeney/lock-feedback/internal/logic"
)

// HistoryJSON is the JSON representation of the recorded samples.
type HistoryJSON struct {
	Band    BandJSON     `json:"band"`
	Samples []SampleJSON `json:"samples"`
}

// BandJSON is the signal band drawn on the plot.
type BandJSON struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// SampleJSON is one batch mean.
type SampleJSON struct {
	Time  string  `json:"t"`
	Value float64 `json:"v"`
}

// formatHistory renders samples oldest first. An empty history is an empty
// array, not null.
func formatHistory(band logic.Band, samples []history.Sample) []byte {
	hj := HistoryJSON{
		Band:    BandJSON{Low: band.Low, High: band.High},
		Samples: make([]SampleJSON, 0, len(samples)),
	}
	for _, s := range samples {
		hj.Samples = append(hj.Samples, SampleJSON{
			Time:  s.Time.UTC().Format(time.RFC3339Nano),
			Value: s.Value,
		})
	}

	data, _ := json.MarshalIndent(hj, "", "  ")
	return data
}
