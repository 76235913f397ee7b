package dataset

// Record is one row of the condition table.  Every field is free text; an
// empty string means the cell was absent.
type Record struct {
	Condition              string `json:"condition"`
	Symptoms               string `json:"symptoms"`
	TreatmentDuration      string `json:"treatment_duration"`
	MedicalHistory         string `json:"medical_history"`
	CurrentMedications     string `json:"current_medications"`
	RiskFactors            string `json:"risk_factors"`
	StressLevels           string `json:"stress_levels"`
	HerbalRemedies         string `json:"herbal_remedies"`
	AyurvedicHerbs         string `json:"ayurvedic_herbs"`
	Formulation            string `json:"formulation"`
	Doshas                 string `json:"doshas"`
	Constitution           string `json:"constitution"`
	DietRecommendations    string `json:"diet_recommendations"`
	YogaTherapy            string `json:"yoga_therapy"`
	Prevention             string `json:"prevention"`
	PatientRecommendations string `json:"patient_recommendations"`
}

// Column ties a spreadsheet header to the Record field it fills.
type Column struct {
	Header string
	field  func(*Record) *string
}

// Value returns the column's value in r.
func (c Column) Value(r Record) string { return *c.field(&r) }

var columns = []Column{
	{"Disease", func(r *Record) *string { return &r.Condition }},
	{"Symptoms", func(r *Record) *string { return &r.Symptoms }},
	{"Duration of Treatment", func(r *Record) *string { return &r.TreatmentDuration }},
	{"Medical History", func(r *Record) *string { return &r.MedicalHistory }},
	{"Current Medications", func(r *Record) *string { return &r.CurrentMedications }},
	{"Risk Factors", func(r *Record) *string { return &r.RiskFactors }},
	{"Stress Levels", func(r *Record) *string { return &r.StressLevels }},
	{"Herbal/Alternative Remedies", func(r *Record) *string { return &r.HerbalRemedies }},
	{"Ayurvedic Herbs", func(r *Record) *string { return &r.AyurvedicHerbs }},
	{"Formulation", func(r *Record) *string { return &r.Formulation }},
	{"Doshas", func(r *Record) *string { return &r.Doshas }},
	{"Constitution/Prakriti", func(r *Record) *string { return &r.Constitution }},
	{"Diet and Lifestyle Recommendations", func(r *Record) *string { return &r.DietRecommendations }},
	{"Yoga & Physical Therapy", func(r *Record) *string { return &r.YogaTherapy }},
	{"Prevention", func(r *Record) *string { return &r.Prevention }},
	{"Patient Recommendations", func(r *Record) *string { return &r.PatientRecommendations }},
}

// Columns returns the known columns in spreadsheet order.  The first entry
// is always the condition name.
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

func (r Record) blank() bool {
	for _, c := range columns {
		if c.Value(r) != "" {
			return false
		}
	}
	return true
}
