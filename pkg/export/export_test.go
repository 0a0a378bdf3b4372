package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Dataset {
	return Dataset{
		Title:   "Final exams",
		Headers: []string{"Exam", "Date", "Location"},
		Rows: [][]string{
			{"EXAM: CS 101 01 10000", "Dec 8", "SCI 200"},
			{"EXAM: ART 5, \"Intro\"", "Dec 9", "ART 1"},
		},
		Widths: []float64{3, 1, 1},
	}
}

func TestCSVExporterQuotes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter().Write(&buf, sample()))
	assert.Equal(t, "Exam,Date,Location\n"+
		"EXAM: CS 101 01 10000,Dec 8,SCI 200\n"+
		"\"EXAM: ART 5, \"\"Intro\"\"\",Dec 9,ART 1\n", buf.String())
}

func TestExportersRejectRaggedRows(t *testing.T) {
	data := sample()
	data.Rows = append(data.Rows, []string{"short"})
	assert.Error(t, NewCSVExporter().Write(&bytes.Buffer{}, data))
	assert.Error(t, NewPDFExporter().Write(&bytes.Buffer{}, data))
	assert.Error(t, NewCSVExporter().Write(&bytes.Buffer{}, Dataset{}))
}

func TestPDFExporterWritesDocument(t *testing.T) {
	data := sample()
	for i := 0; i < 60; i++ {
		data.Rows = append(data.Rows, []string{"EXAM: CS 101 01 10000", "Dec 8", "SCI 200"})
	}
	var buf bytes.Buffer
	exporter := &PDFExporter{Subtitle: "Showing 62 exams"}
	require.NoError(t, exporter.Write(&buf, data))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestColumnWidths(t *testing.T) {
	widths := columnWidths(sample())
	assert.InDelta(t, pageWidth*3/5, widths[0], 0.001)
	equal := columnWidths(Dataset{Headers: []string{"a", "b"}})
	assert.InDelta(t, pageWidth/2, equal[1], 0.001)
}
