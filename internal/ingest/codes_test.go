package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTrotDiscipline(t *testing.T) {
	assert.True(t, isTrotDiscipline("ATTELE"))
	assert.True(t, isTrotDiscipline("MONTE"))
	assert.False(t, isTrotDiscipline("PLAT"))
	assert.False(t, isTrotDiscipline(""))
}

func TestMapCode_Known(t *testing.T) {
	got := mapCode(statusCodes, "race_status", "ARRIVEE_DEFINITIVE_COMPLETE", 10)
	require.NotNil(t, got)
	assert.Equal(t, "FIN", *got)

	got = mapCode(incidentCodes, "incident_code", "DISQUALIFIE_POUR_ALLURE_IRREGULIERE", 20)
	require.NotNil(t, got)
	assert.Equal(t, "DAI", *got)

	got = mapCode(betTypeCodes, "bet_type", "DEUX_SUR_QUATRE", 10)
	require.NotNil(t, got)
	assert.Equal(t, "2S4", *got)
}

func TestMapCode_UnknownTruncates(t *testing.T) {
	// A new upstream constant degrades to its truncated raw form rather
	// than failing the row.
	got := mapCode(trackCodes, "track_type", "PISTE_SYNTHETIQUE_NOUVELLE", 10)
	require.NotNil(t, got)
	assert.Equal(t, "PISTE_SYNT", *got)
}

func TestMapCode_Empty(t *testing.T) {
	assert.Nil(t, mapCode(shoeingCodes, "shoeing_code", "", 10))
}
