package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/teavision/internal/store"
)

func sampleEntries() []store.HistoryEntry {
	return []store.HistoryEntry{
		{
			ID:            2,
			UserEmail:     "b@example.com",
			CreatedAt:     "2024-05-20T10:00:00.000000",
			Prediction:    "Uva Region",
			Confidence:    0.875,
			Probabilities: map[string]float64{"UV": 0.875, "DI": 0.125},
			ModelName:     "svm",
			ImageType:     "region",
		},
		{
			ID:            1,
			UserEmail:     "a@example.com",
			CreatedAt:     "2024-05-19T10:00:00.000000",
			Prediction:    "OP",
			Confidence:    1,
			Probabilities: map[string]float64{"OP": 1},
			ModelName:     "knn",
			ImageType:     "group",
		},
	}
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistory(&buf, sampleEntries(), false))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Date", "Prediction", "Confidence", "Model", "Image Type", "Prob_DI", "Prob_OP", "Prob_UV"}, records[0])
	assert.Equal(t, []string{"2024-05-20T10:00:00.000000", "Uva Region", "87.50%", "svm", "region", "12.50%", "", "87.50%"}, records[1])
	assert.Equal(t, "100.00%", records[2][2])
}

func TestWriteHistoryAdmin(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistory(&buf, sampleEntries(), true))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "User Email", records[0][0])
	assert.Equal(t, "b@example.com", records[1][0])
	assert.Equal(t, "a@example.com", records[2][0])
}

func TestWriteHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistory(&buf, nil, false))
	assert.Equal(t, "Date,Prediction,Confidence,Model,Image Type\n", buf.String())
}

func TestFilename(t *testing.T) {
	ts := time.Date(2024, 5, 20, 9, 8, 7, 0, time.UTC)
	assert.Equal(t, "prediction_history_20240520_090807.csv", Filename(false, ts))
	assert.Equal(t, "admin_prediction_history_20240520_090807.csv", Filename(true, ts))
}
