package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ppe-dashboard/internal/domain/safety"
	"ppe-dashboard/internal/view"
)

func sampleRows() []view.LogRow {
	now := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
	return view.LogRows([]safety.DetectionLog{
		{ID: 1, Status: safety.StatusViolation, Missing: []string{"mask", "gloves"}, Detected: []string{"coverall"}, Timestamp: "2024-01-01T00:00:00Z", Source: "Camera 1"},
		{ID: 2, Status: safety.StatusSafe, Detected: []string{"mask"}, Timestamp: "2024-01-01T00:01:00Z", Source: "Camera, East"},
	}, now)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{" xlsx ", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleRows()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{"1", "2024-01-01T00:00:00Z", "VIOLATION", "critical", "Camera 1", "-", "mask, gloves", "coverall", "Missing mask, gloves"}, records[1])
	assert.Equal(t, "Camera, East", records[2][4])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleRows()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "critical", rows[1][3])
	assert.Equal(t, "All PPE present", rows[2][8])
}

func TestFormatMeta(t *testing.T) {
	assert.Equal(t, "detections.xlsx", FormatXLSX.Filename("detections"))
	assert.Contains(t, FormatCSV.ContentType(), "text/csv")
}
