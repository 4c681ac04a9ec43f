// Package report renders prediction history as CSV downloads.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/MeKo-Tech/teavision/internal/store"
)

// Filename returns the attachment name of a history report created at t.
func Filename(admin bool, t time.Time) string {
	prefix := "prediction_history"
	if admin {
		prefix = "admin_" + prefix
	}
	return fmt.Sprintf("%s_%s.csv", prefix, t.Format("20060102_150405"))
}

// WriteHistory writes entries as CSV. With admin set, every row starts with
// the owner's email. One Prob_<class> column is emitted per class seen in
// any entry, in sorted order.
func WriteHistory(w io.Writer, entries []store.HistoryEntry, admin bool) error {
	classes := probabilityClasses(entries)

	header := []string{"Date", "Prediction", "Confidence", "Model", "Image Type"}
	if admin {
		header = append([]string{"User Email"}, header...)
	}
	for _, c := range classes {
		header = append(header, "Prob_"+c)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		row := make([]string, 0, len(header))
		if admin {
			row = append(row, e.UserEmail)
		}
		row = append(row, e.CreatedAt, e.Prediction, percent(e.Confidence), e.ModelName, e.ImageType)
		for _, c := range classes {
			p, ok := e.Probabilities[c]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, percent(p))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write entry %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func probabilityClasses(entries []store.HistoryEntry) []string {
	seen := map[string]struct{}{}
	for _, e := range entries {
		for k := range e.Probabilities {
			seen[k] = struct{}{}
		}
	}
	classes := make([]string, 0, len(seen))
	for k := range seen {
		classes = append(classes, k)
	}
	slices.Sort(classes)
	return classes
}
