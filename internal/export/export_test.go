package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rmgsl/mapa-od/internal/od"
	"github.com/rmgsl/mapa-od/internal/survey"
)

func sampleMatrix() od.Matrix {
	return od.BuildMatrix([]survey.TripRecord{
		{Origin: "Raposa", Destination: "São Luís"},
		{Origin: "Raposa", Destination: "São Luís"},
		{Origin: "São Luís", Destination: "Paço do Lumiar"},
	}, od.MatrixOptions{})
}

func TestWriteCSV_Matrix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, MatrixSheet("matrix", sampleMatrix())))

	want := strings.Join([]string{
		"origin/destination,Paço do Lumiar,São Luís",
		"Raposa,0,2",
		"São Luís,1,0",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_EmptyMatrix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, MatrixSheet("matrix", od.BuildMatrix(nil, od.MatrixOptions{}))))
	assert.Equal(t, "origin/destination\n", buf.String())
}

func TestWriteCSV_Flows(t *testing.T) {
	flows := []od.FlowRecord{{Pair: od.Pair{A: "Raposa", B: "São Luís"}, Total: 7}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, FlowsSheet("flows", flows)))
	assert.Equal(t, "a,b,total\nRaposa,São Luís,7\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	heat := od.CrossTab([]survey.TripRecord{
		{Motive: "Trabalho", Period: "Manhã"},
	}, survey.AttrMotive, survey.AttrPeriod)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf,
		MatrixSheet("matrix", sampleMatrix()),
		MatrixSheet("motive x period", heat),
	))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"matrix", "motive x period"}, f.GetSheetList())

	rows, err := f.GetRows("matrix")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"origin/destination", "Paço do Lumiar", "São Luís"},
		{"Raposa", "0", "2"},
		{"São Luís", "1", "0"},
	}, rows)

	v, err := f.GetCellValue("motive x period", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "a_b", sheetName("a/b", 0, used))
	assert.Equal(t, "a_b_2", sheetName("a/b", 1, used))
	assert.Equal(t, "Sheet3", sheetName("", 2, used))

	long := strings.Repeat("x", 40)
	assert.Len(t, []rune(sheetName(long, 3, used)), 31)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "json": FormatJSON, "CSV": FormatCSV, "xlsx": FormatXLSX} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
}
