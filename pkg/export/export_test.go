package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Dataset {
	return Dataset{
		Title:   "Bitácora",
		Headers: []string{"Fecha", "Clase", "Calificación"},
		Rows: []map[string]string{
			{"Fecha": "03/02/2025", "Clase": "Unit 1 B-check", "Calificación": "4.5"},
			{"Fecha": "04/02/2025", "Clase": "Unit 1 B-skill 1", "Calificación": ""},
		},
	}
}

func TestXLSXRoundTrip(t *testing.T) {
	x := NewXLSXExporter("Bitácora")
	data, err := x.Render(sample())
	require.NoError(t, err)

	parsed, err := x.Parse(bytes.NewReader(data), sample().Headers)
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 2)
	assert.Equal(t, "Unit 1 B-check", parsed.Rows[0]["Clase"])
	assert.Equal(t, "4.5", parsed.Rows[0]["Calificación"])
	assert.Equal(t, "", parsed.Rows[1]["Calificación"])
}

func TestCSVRoundTrip(t *testing.T) {
	c := NewCSVExporter()
	data, err := c.Render(sample())
	require.NoError(t, err)

	parsed, err := c.Parse(bytes.NewReader(data), sample().Headers)
	require.NoError(t, err)
	assert.Equal(t, sample().Rows, parsed.Rows)
}

func TestParseRejectsUnexpectedHeader(t *testing.T) {
	_, err := FromRecords([][]string{{"Date", "Class"}}, []string{"Fecha", "Clase"})
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	data, err := NewPDFExporter().Render(sample())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}
