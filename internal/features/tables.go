package features

// Unknown is the placeholder for a column nothing in the catalog knows about.
// Seeing it in a row means the catalog and the model contract have drifted.
const Unknown = "Unknown"

const (
	genderField        = "Gender"
	genderUnrecognized = "Other"
)

// Synonym maps one raw phrasing onto the canonical label the model expects.
type Synonym struct {
	From string
	To   string
}

// defaultValues holds the canonical fallback per question, taken from the
// most common answers in the OSMI training survey.
var defaultValues = map[string]Value{
	"Age":                       Number(30),
	"Gender":                    Text("Male"),
	"self_employed":             Text("No"),
	"family_history":            Text("No"),
	"work_interfere":            Text("Sometimes"),
	"no_employees":              Text("6-25"),
	"remote_work":               Text("No"),
	"tech_company":              Text("Yes"),
	"benefits":                  Text("Yes"),
	"care_options":              Text("No"),
	"wellness_program":          Text("No"),
	"seek_help":                 Text("Yes"),
	"anonymity":                 Text("Yes"),
	"leave":                     Text("Somewhat easy"),
	"mental_health_consequence": Text("No"),
	"phys_health_consequence":   Text("No"),
	"coworkers":                 Text("Some of them"),
	"supervisor":                Text("Yes"),
	"mental_health_interview":   Text("No"),
	"phys_health_interview":     Text("No"),
	"mental_vs_physical":        Text("Yes"),
	"obs_consequence":           Text("No"),
}

// synonymTables are checked in slice order; the first matching entry wins.
var synonymTables = map[string][]Synonym{
	"leave": {
		{"Very easy", "Very easy"},
		{"Somewhat easy", "Somewhat easy"},
		{"Somewhat difficult", "Somewhat difficult"},
		{"Very difficult", "Very difficult"},
		{"I don't know", "Don't know"},
		{"easy", "Somewhat easy"},
		{"difficult", "Somewhat difficult"},
	},
	"work_interfere": {
		{"I don't experience mental health issues", "Never"},
	},
	"phys_health_consequence": {
		{"Yes", "Yes"},
		{"No", "No"},
		{"Maybe", "Maybe"},
		{"them", "Maybe"},
	},
	"mental_health_consequence": {
		{"Yes", "Yes"},
		{"No", "No"},
		{"Maybe", "Maybe"},
	},
	"mental_health_interview": {
		{"Yes", "Yes"},
		{"No", "No"},
		{"Maybe", "Maybe"},
	},
	"phys_health_interview": {
		{"Yes", "Yes"},
		{"No", "No"},
		{"Maybe", "Maybe"},
	},
}

// genderVocabulary is matched as lower-case substrings of the answer. More
// specific keys come first so "female" is not read as "male".
var genderVocabulary = []Synonym{
	{"prefer not to say", "Prefer not to say"},
	{"non-binary", "Non-Binary"},
	{"trans", "Transgender"},
	{"female", "Female"},
	{"male", "Male"},
	{"other", "Other"},
}
