// Package alert identifies flood-risk zones in an accumulated-runoff
// grid and models the alert event published when any are found.
package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-engine/internal/grid"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for detection. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Report describes the risk zones found in one accumulated grid.
type Report struct {
	ID         string         `json:"id"`
	Threshold  float64        `json:"threshold"`
	Count      int            `json:"count"` // cells above threshold
	Rows       int            `json:"rows"`
	Cols       int            `json:"cols"`
	DetectedAt time.Time      `json:"detected_at"`
	Zones      *grid.ByteGrid `json:"-"` // 1 where accumulated runoff exceeds the threshold
}

// Exceeded reports whether any cell crossed the threshold.
func (r Report) Exceeded() bool { return r.Count > 0 }

// Detect marks every cell of acc strictly above threshold as a risk
// zone and stamps the report with the current time.
func Detect(acc *grid.Grid, threshold float64) Report {
	zones := grid.NewByteGrid(acc.Rows, acc.Cols)
	count := 0
	for i, v := range acc.Data {
		if v > threshold {
			zones.Data[i] = 1
			count++
		}
	}

	now := clock.Now().UTC()
	return Report{
		ID:         generateID(acc.Rows, acc.Cols, threshold, count, now),
		Threshold:  threshold,
		Count:      count,
		Rows:       acc.Rows,
		Cols:       acc.Cols,
		DetectedAt: now,
		Zones:      zones,
	}
}

// generateID produces a deterministic ID from the report's key fields,
// so replaying a detection yields the same event downstream.
func generateID(rows, cols int, threshold float64, count int, t time.Time) string {
	input := fmt.Sprintf("%dx%d|%g|%d|%s", rows, cols, threshold, count, t.Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return "flood-" + hex.EncodeToString(hash[:8])
}
