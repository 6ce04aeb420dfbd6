package survey

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const questionnaireCSV = `ORIGEM,DESTINO,ORIGEM 2,DESTINO 2,Qual o motivo da viagem?,Com que frequência você faz essa viagem?,A viagem foi realizada em qual período do dia?,Qual foi o principal meio de transporte que você usou?
São Luís,Raposa,São Luís,Raposa,Trabalho,Diariamente,Manhã,Ônibus
 São  Luís ,Paço do Lumiar,São Luís,Paço do Lumiar,Estudo,Semanalmente,Tarde,Carro
,,,,,,,
Icatu,São Luís,FORA DA RMGSL,São Luís,Saúde,Raramente,Noite,Van
`

func TestParseCSV_QuestionnaireHeaders(t *testing.T) {
	table, err := ParseCSV("survey", strings.NewReader(questionnaireCSV), DefaultSchema())
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len(), "blank rows are skipped")
	assert.Equal(t, AllAttributes(), table.Attributes)
	assert.NotEmpty(t, table.SnapshotID)
	assert.False(t, table.LoadedAt.IsZero())

	first := table.Records[0]
	assert.Equal(t, "São Luís", first.Origin)
	assert.Equal(t, "Raposa", first.Destination)
	assert.Equal(t, "Trabalho", first.Motive)
	assert.Equal(t, "Diariamente", first.Frequency)
	assert.Equal(t, "Manhã", first.Period)
	assert.Equal(t, "Ônibus", first.Mode)

	assert.Equal(t, "São Luís", table.Records[1].Origin, "whitespace is collapsed")
	assert.Equal(t, "FORA DA RMGSL", table.Records[2].OriginGroup)
}

func TestParseCSV_SemicolonDelimiter(t *testing.T) {
	data := "ORIGEM;DESTINO;Motivo\nRaposa;São Luís;Trabalho\n"
	table, err := ParseCSV("survey", strings.NewReader(data), DefaultSchema())
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "Raposa", table.Records[0].Origin)
	assert.Equal(t, []Attribute{AttrOrigin, AttrDestination, AttrMotive}, table.Attributes)
	assert.False(t, table.Has(AttrMode))
}

func TestParseCSV_PrefersAdjustedColumns(t *testing.T) {
	data := "ORIGEM,DESTINO,Motivo,motivo_ajustado,Principal Modal,Modal Agrupado\n" +
		"Raposa,São Luís,Ir ao trabalho,Trabalho,Ônibus semiurbano,Ônibus\n"
	table, err := ParseCSV("survey", strings.NewReader(data), DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, "Trabalho", table.Records[0].Motive)
	assert.Equal(t, "Ônibus", table.Records[0].Mode)
	assert.Equal(t, "motivo_ajustado", table.Columns[AttrMotive])
}

func TestParseCSV_MissingRequiredColumns(t *testing.T) {
	data := "ORIGEM,Motivo\nRaposa,Trabalho\n"
	_, err := ParseCSV("survey", strings.NewReader(data), DefaultSchema())
	require.Error(t, err)

	le, ok := AsLoadError(err)
	require.True(t, ok)
	assert.Equal(t, []Attribute{AttrDestination}, le.Missing)
	assert.Contains(t, err.Error(), "destination")
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV("survey", strings.NewReader(""), DefaultSchema())
	_, ok := AsLoadError(err)
	assert.True(t, ok)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]string{
		{"ORIGEM", "DESTINO", "Período do dia"},
		{"Raposa", "São Luís", "Manhã"},
		{"Alcântara", "São Luís", "Noite"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := ParseXLSX("survey", &buf, DefaultSchema())
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "Alcântara", table.Records[1].Origin)
	assert.Equal(t, "Noite", table.Records[1].Period)
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "od.csv")
	require.NoError(t, os.WriteFile(path, []byte(questionnaireCSV), 0644))

	src := NewFileSource("od", path)
	table, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "od", table.SourceID)
	assert.Equal(t, 3, table.Len())
}

func TestFileSource_MissingFile(t *testing.T) {
	src := NewFileSource("od", filepath.Join(t.TempDir(), "missing.csv"))
	_, err := src.Load(context.Background())
	le, ok := AsLoadError(err)
	require.True(t, ok)
	assert.ErrorIs(t, le, os.ErrNotExist)
}

func TestFileSource_UnsupportedExtension(t *testing.T) {
	src := NewFileSource("od", "survey.parquet")
	_, err := src.Load(context.Background())
	_, ok := AsLoadError(err)
	assert.True(t, ok)
}

func TestTable_Distinct(t *testing.T) {
	table, err := ParseCSV("survey", strings.NewReader(questionnaireCSV), DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, []string{"Icatu", "São Luís"}, table.Distinct(AttrOrigin))
	assert.Equal(t, []string{"Estudo", "Saúde", "Trabalho"}, table.Distinct(AttrMotive))
}
