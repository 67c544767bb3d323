package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// outputJSON writes data as indented JSON to stdout.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatDistance prints "-" for the infinite distance of an empty database.
func formatDistance(d float64) string {
	if math.IsInf(d, 0) {
		return "-"
	}
	return fmt.Sprintf("%.4f", d)
}

// finiteOrNil maps an infinite distance to JSON null.
func finiteOrNil(d float64) *float64 {
	if math.IsInf(d, 0) || math.IsNaN(d) {
		return nil
	}
	return &d
}
