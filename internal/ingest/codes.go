package ingest

// The source reports enumerations as long French constants. They are
// shortened to stable codes before storage; unmapped values fall back to a
// truncated raw value so a new upstream constant degrades instead of
// failing ingestion.

// Trot disciplines. Races and history entries in any other discipline are
// not ingested.
const (
	disciplineHarness = "ATTELE"
	disciplineMounted = "MONTE"
)

func isTrotDiscipline(d string) bool {
	return d == disciplineHarness || d == disciplineMounted
}

var statusCodes = map[string]string{
	"ARRIVEE_DEFINITIVE_COMPLETE": "FIN",
	"ARRIVEE_DEFINITIVE_C":        "FIN",
	"FIN_COURSE":                  "FIN",
	"COURSE_ANNULEE":              "ANN",
	"A_PARTIR":                    "FUT",
	"EN_COURS":                    "LIVE",
	"ARRIVEE_PROVISOIRE":          "PROV",
}

var trackCodes = map[string]string{
	"SABLE":      "S",
	"POUZZOLANE": "P",
	"HERBE":      "H",
	"CENDREE":    "C",
	"MACHEFER":   "M",
}

var incidentCodes = map[string]string{
	"DISQUALIFIE_POUR_ALLURE_IRREGULIERE": "DAI",
	"DISQUALIFIE_POTEAU_GALOP":            "DPG",
	"NON_PARTANT":                         "NP",
	"DISTANCE":                            "DIST",
	"ARRETE":                              "ARR",
	"TOMBE":                               "T",
	"RESTE_AU_POTEAU":                     "RP",
	"DISQUALIFIE":                         "DAI",
	"RETROGRADE":                          "RET",
}

var shoeingCodes = map[string]string{
	"DEFERRE_ANTERIEURS_POSTERIEURS":         "D4",
	"PROTEGE_ANTERIEURS_DEFERRRE_POSTERIEURS": "PADP",
	"DEFERRE_POSTERIEURS":                    "DP",
	"DEFERRE_ANTERIEURS":                     "DA",
	"PROTEGE_ANTERIEURS":                     "PA",
	"PROTEGE_ANTERIEURS_POSTERIEURS":         "P4",
	"DEFERRE_ANTERIEURS_PROTEGE_POSTERIEURS": "DAPP",
	"REFERRE_ANTERIEURS_POSTERIEURS":         "R4",
	"PROTEGE_POSTERIEURS":                    "PP",
}

var betTypeCodes = map[string]string{
	"SIMPLE_GAGNANT":  "SG",
	"SIMPLE_PLACE":    "SP",
	"COUPLE_GAGNANT":  "CG",
	"COUPLE_PLACE":    "CP",
	"COUPLE_ORDRE":    "CO",
	"TRIO":            "TRIO",
	"TRIO_ORDRE":      "TRIOO",
	"DEUX_SUR_QUATRE": "2S4",
	"MULTI":           "MULTI",
	"MINI_MULTI":      "MM",
	"TIERCE":          "TIERCE",
	"QUARTE_PLUS":     "QUARTE",
	"QUINTE_PLUS":     "QUINTE",
	"PICK5":           "PICK5",
	"SUPER_QUATRE":    "SUP4",
}

// mapCode shortens a raw enum value via the given table. Unmapped non-empty
// values are truncated to maxLen with a warning; empty input maps to nil.
func mapCode(table map[string]string, field, raw string, maxLen int) *string {
	if raw == "" {
		return nil
	}
	if code, ok := table[raw]; ok {
		return &code
	}
	short := TruncateString(field, raw, maxLen)
	return &short
}
