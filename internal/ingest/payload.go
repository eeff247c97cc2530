package ingest

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// JSON shapes of the four source documents. Field names follow the live
// API; the documents are undocumented, so optional sub-objects are pointers
// and anything observed to vary in type is decoded as `any`.

// --- programme ---

type programmeDoc struct {
	Programme *programmePayload `json:"programme"`
}

type programmePayload struct {
	Date     *int64           `json:"date"` // ms epoch
	Reunions []meetingPayload `json:"reunions"`
}

type meetingPayload struct {
	NumOfficiel int                `json:"numOfficiel"`
	Nature      string             `json:"nature"`
	Hippodrome  *hippodromePayload `json:"hippodrome"`
	Meteo       *meteoPayload      `json:"meteo"`
	Courses     []coursePayload    `json:"courses"`
}

type hippodromePayload struct {
	Code string `json:"code"`
}

type meteoPayload struct {
	Temperature   *float64 `json:"temperature"`
	DirectionVent *string  `json:"directionVent"`
}

type coursePayload struct {
	NumOrdre               int                  `json:"numOrdre"`
	Statut                 string               `json:"statut"`
	TypePiste              string               `json:"typePiste"`
	Discipline             string               `json:"discipline"`
	CategorieStatut        string               `json:"categorieStatut"`
	CategorieParticularite *string              `json:"categorieParticularite"`
	Distance               *int64               `json:"distance"`
	Penetrometre           *penetrometrePayload `json:"penetrometre"`
	NombreDeclaresPartants *int64               `json:"nombreDeclaresPartants"`
	Conditions             *string              `json:"conditions"`
	DureeCourse            *int64               `json:"dureeCourse"` // ms
}

type penetrometrePayload struct {
	ValeurMesure any     `json:"valeurMesure"` // number or "3,4"
	Intitule     *string `json:"intitule"`
}

func parseProgrammeDoc(body []byte) (*programmePayload, error) {
	var doc programmeDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, eris.Wrap(err, "ingest: decode programme document")
	}
	if doc.Programme == nil {
		return nil, eris.New("ingest: programme document missing 'programme' object")
	}
	return doc.Programme, nil
}

// --- participants ---

type participantsDoc struct {
	Participants []participantPayload `json:"participants"`
}

type participantPayload struct {
	Nom                     string          `json:"nom"`
	NumPmu                  *int64          `json:"numPmu"`
	Age                     *int64          `json:"age"`
	Sexe                    string          `json:"sexe"`
	Entraineur              string          `json:"entraineur"`
	Driver                  string          `json:"driver"`
	Incident                string          `json:"incident"`
	Deferre                 string          `json:"deferre"`
	NombreCourses           *int64          `json:"nombreCourses"`
	Musique                 *string         `json:"musique"`
	AvisEntraineur          *string         `json:"avisEntraineur"`
	OrdreArrivee            *int64          `json:"ordreArrivee"`
	TempsObtenu             *int64          `json:"tempsObtenu"` // ms
	ReductionKilometrique   any             `json:"reductionKilometrique"`
	GainsParticipant        *gainsPayload   `json:"gainsParticipant"`
	DernierRapportReference *rapportPayload `json:"dernierRapportReference"`
	DernierRapportDirect    *rapportPayload `json:"dernierRapportDirect"`
}

type gainsPayload struct {
	GainsCarriere *int64 `json:"gainsCarriere"` // cents
}

type rapportPayload struct {
	Rapport *float64 `json:"rapport"`
}

// parseParticipantsDoc accepts both observed forms: an object wrapping a
// "participants" array, and the bare array.
func parseParticipantsDoc(body []byte) ([]participantPayload, error) {
	var doc participantsDoc
	if err := json.Unmarshal(body, &doc); err == nil && doc.Participants != nil {
		return doc.Participants, nil
	}
	var list []participantPayload
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, eris.Wrap(err, "ingest: decode participants document")
	}
	return list, nil
}

// --- performances ---

type performancesDoc struct {
	Participants []runnerHistoryPayload `json:"participants"`
}

type runnerHistoryPayload struct {
	NomCheval      string            `json:"nomCheval"`
	Nom            string            `json:"nom"`
	CoursesCourues []pastRacePayload `json:"coursesCourues"`
}

type pastRacePayload struct {
	Date           *int64                   `json:"date"` // ms epoch
	Discipline     string                   `json:"discipline"`
	Distance       *int64                   `json:"distance"`
	Allocation     *float64                 `json:"allocation"`
	TempsDuPremier *int64                   `json:"tempsDuPremier"` // ms
	Participants   []pastParticipantPayload `json:"participants"`
}

type pastParticipantPayload struct {
	ItsHim                bool            `json:"itsHim"`
	Place                 json.RawMessage `json:"place"`
	PoidsJockey           *float64        `json:"poidsJockey"`
	Corde                 *int64          `json:"corde"`
	ReductionKilometrique any             `json:"reductionKilometrique"`
	DistanceParcourue     *int64          `json:"distanceParcourue"`
}

// placePayload is the usual object form of "place"; the field is sometimes
// a bare number, which carries no finish status and is ignored.
type placePayload struct {
	Place         *int64  `json:"place"`
	StatusArrivee *string `json:"statusArrivee"`
}

func (p *pastParticipantPayload) placeInfo() (finishPlace *int64, finishStatus *string) {
	if len(p.Place) == 0 {
		return nil, nil
	}
	var obj placePayload
	if err := json.Unmarshal(p.Place, &obj); err != nil {
		return nil, nil
	}
	return obj.Place, obj.StatusArrivee
}

// name returns the runner's horse name; the API uses nomCheval in this
// document but nom has been observed too.
func (r *runnerHistoryPayload) name() string {
	if r.NomCheval != "" {
		return r.NomCheval
	}
	return r.Nom
}

func parsePerformancesDoc(body []byte) ([]runnerHistoryPayload, error) {
	var doc performancesDoc
	if err := json.Unmarshal(body, &doc); err == nil && doc.Participants != nil {
		return doc.Participants, nil
	}
	var list []runnerHistoryPayload
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, eris.Wrap(err, "ingest: decode performances document")
	}
	return list, nil
}

// --- rapports ---

type rapportsDoc struct {
	RapportsDefinitifs []betPayload `json:"rapportsDefinitifs"`
}

type betPayload struct {
	TypePari    string             `json:"typePari"`
	FamillePari *string            `json:"famillePari"`
	MiseBase    *int64             `json:"miseBase"` // cents
	Rembourse   *bool              `json:"rembourse"`
	Rapports    []betReportPayload `json:"rapports"`
}

type betReportPayload struct {
	Combinaison         string   `json:"combinaison"`
	Dividende           *int64   `json:"dividende"`           // cents
	DividendePourUnEuro *int64   `json:"dividendePourUnEuro"` // cents
	NombreGagnants      *float64 `json:"nombreGagnants"`
}

func parseRapportsDoc(body []byte) ([]betPayload, error) {
	var list []betPayload
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var doc rapportsDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, eris.Wrap(err, "ingest: decode rapports document")
	}
	return doc.RapportsDefinitifs, nil
}
