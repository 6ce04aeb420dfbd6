package survey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"São Luís", "São Luís"},
		{"  São   Luís ", "São Luís"},
		{"Sa\u0303o Lui\u0301s", "São Luís"}, // decomposed input is recomposed
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanName(tt.in), "CleanName(%q)", tt.in)
	}
}

func TestFoldKey(t *testing.T) {
	for _, variant := range []string{"São Luís", "Sao Luis", "SÃO LUÍS", " sao  luís"} {
		assert.Equal(t, "SAO LUIS", FoldKey(variant), "FoldKey(%q)", variant)
	}
	assert.NotEqual(t, FoldKey("Raposa"), FoldKey("Rosário"))
}

func TestNormalizer_Name(t *testing.T) {
	n := NewNormalizer([]string{"São Luís", "Paço do Lumiar"})

	assert.Equal(t, "São Luís", n.Name("SAO LUIS"))
	assert.Equal(t, "São Luís", n.Name("Sao Luis"))
	assert.Equal(t, "Paço do Lumiar", n.Name("paco do lumiar"))
	assert.Equal(t, "Bacabal", n.Name(" Bacabal "), "unknown names are only cleaned")
	assert.Equal(t, "", n.Name(""))

	var none *Normalizer
	assert.Equal(t, "SAO LUIS", none.Name("SAO LUIS"))
}

type stubSource struct {
	table *Table
}

func (s *stubSource) ID() string       { return "stub" }
func (s *stubSource) Location() string { return "memory" }
func (s *stubSource) Load(context.Context) (*Table, error) {
	return s.table, nil
}

func TestNormalized(t *testing.T) {
	stub := &stubSource{table: &Table{Records: []TripRecord{
		{Origin: "SÃO LUÍS", Destination: "Raposa", OriginGroup: "Sao Luis", DestinationGroup: "RAPOSA"},
	}}}
	src := Normalized(stub, NewNormalizer([]string{"São Luís", "Raposa"}))

	table, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stub", src.ID())
	assert.Equal(t, TripRecord{
		Origin: "São Luís", Destination: "Raposa", OriginGroup: "São Luís", DestinationGroup: "Raposa",
	}, table.Records[0])
}

func TestAtLevel(t *testing.T) {
	records := []TripRecord{
		{Origin: "Icatu", Destination: "São Luís", OriginGroup: "FORA DA RMGSL", DestinationGroup: "São Luís"},
		{Origin: "Raposa", Destination: "Alcântara"},
	}

	grouped := AtLevel(records, LevelGrouped)
	assert.Equal(t, "FORA DA RMGSL", grouped[0].Origin)
	assert.Equal(t, "Raposa", grouped[1].Origin, "falls back to the raw value")
	assert.Equal(t, "Icatu", records[0].Origin, "input is not modified")

	assert.Equal(t, records, AtLevel(records, LevelRaw))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("", LevelGrouped)
	require.NoError(t, err)
	assert.Equal(t, LevelGrouped, level)

	level, err = ParseLevel("raw", LevelGrouped)
	require.NoError(t, err)
	assert.Equal(t, LevelRaw, level)

	_, err = ParseLevel("city", LevelRaw)
	assert.Error(t, err)
}

func TestParseAttribute(t *testing.T) {
	attr, err := ParseAttribute("motive")
	require.NoError(t, err)
	assert.Equal(t, AttrMotive, attr)

	_, err = ParseAttribute("income")
	var ue *UnknownAttributeError
	assert.ErrorAs(t, err, &ue)
}
