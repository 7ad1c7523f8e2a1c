package questionnaire

// Category labels used by the OSMI catalog.
const (
	CategoryDemographics      = "Demographics"
	CategoryEmployment        = "Employment"
	CategoryFamilyHistory     = "Family History"
	CategoryWorkImpact        = "Work Impact"
	CategoryWorkEnvironment   = "Work Environment"
	CategoryWorkBenefits      = "Work Benefits"
	CategoryWorkRelationships = "Work Relationships"
)

var (
	yesNo         = []string{"Yes", "No"}
	yesNoNotSure  = []string{"Yes", "No", "Not sure"}
	yesNoDontKnow = []string{"Yes", "No", "Don't know"}
	yesNoMaybe    = []string{"Yes", "No", "Maybe"}
)

// osmiQuestions is the fixed OSMI mental-health-in-tech survey, in the order
// the classifier's training survey asked it.
var osmiQuestions = []Question{
	{
		ID:       "Age",
		Prompt:   "Let's start with some basic information. How old are you?",
		Kind:     KindNumeric,
		Min:      18,
		Max:      100,
		Required: true,
		Icon:     "🎂",
		Category: CategoryDemographics,
	},
	{
		ID:       "Gender",
		Prompt:   "How do you identify your gender?",
		Kind:     KindSelect,
		Options:  []string{"Male", "Female", "Non-Binary", "Transgender", "Other", "Prefer not to say"},
		Required: true,
		Icon:     "🚻",
		Category: CategoryDemographics,
	},
	{
		ID:       "self_employed",
		Prompt:   "Are you self-employed?",
		Kind:     KindSelect,
		Options:  yesNo,
		Required: true,
		Icon:     "💼",
		Category: CategoryEmployment,
	},
	{
		ID:        "family_history",
		Prompt:    "Has anyone in your immediate family been diagnosed with a mental health condition?",
		Kind:      KindSelect,
		Options:   yesNoNotSure,
		Required:  true,
		Icon:      "👨‍👩‍👧‍👦",
		Category:  CategoryFamilyHistory,
		Sensitive: true,
	},
	{
		ID:        "work_interfere",
		Prompt:    "If you've experienced mental health issues, how often do they interfere with your work?",
		Kind:      KindSelect,
		Options:   []string{"Never", "Rarely", "Sometimes", "Often", "I don't experience mental health issues"},
		Required:  true,
		Icon:      "📉",
		Category:  CategoryWorkImpact,
		Sensitive: true,
	},
	{
		ID:       "no_employees",
		Prompt:   "How many people work at your company?",
		Kind:     KindSelect,
		Options:  []string{"1-5", "6-25", "26-100", "100-500", "500+"},
		Required: true,
		Icon:     "🏢",
		Category: CategoryEmployment,
	},
	{
		ID:       "remote_work",
		Prompt:   "Do you work remotely (outside of an office) at least 50% of the time?",
		Kind:     KindSelect,
		Options:  yesNo,
		Required: true,
		Icon:     "🏠",
		Category: CategoryWorkEnvironment,
	},
	{
		ID:       "tech_company",
		Prompt:   "Is your employer primarily a tech company/organization?",
		Kind:     KindSelect,
		Options:  yesNoNotSure,
		Required: true,
		Icon:     "💻",
		Category: CategoryEmployment,
	},
	{
		ID:       "benefits",
		Prompt:   "Does your employer provide mental health benefits as part of healthcare coverage?",
		Kind:     KindSelect,
		Options:  yesNoDontKnow,
		Required: true,
		Icon:     "🏥",
		Category: CategoryWorkBenefits,
	},
	{
		ID:       "care_options",
		Prompt:   "Do you know the options for mental health care available under your employer-provided coverage?",
		Kind:     KindSelect,
		Options:  yesNoNotSure,
		Required: true,
		Icon:     "ℹ️",
		Category: CategoryWorkBenefits,
	},
	{
		ID:       "wellness_program",
		Prompt:   "Has your employer ever discussed mental health as part of an employee wellness program?",
		Kind:     KindSelect,
		Options:  yesNoDontKnow,
		Required: true,
		Icon:     "💬",
		Category: CategoryWorkEnvironment,
	},
	{
		ID:       "seek_help",
		Prompt:   "Does your employer provide resources to learn more about mental health issues and how to seek help?",
		Kind:     KindSelect,
		Options:  yesNoDontKnow,
		Required: true,
		Icon:     "🆘",
		Category: CategoryWorkBenefits,
	},
	{
		ID:        "anonymity",
		Prompt:    "Is your anonymity protected if you choose to take advantage of mental health treatment programs?",
		Kind:      KindSelect,
		Options:   yesNoDontKnow,
		Required:  true,
		Icon:      "🕵️",
		Category:  CategoryWorkBenefits,
		Sensitive: true,
	},
	{
		ID:        "leave",
		Prompt:    "How easy is it for you to take medical leave for a mental health condition?",
		Kind:      KindSelect,
		Options:   []string{"Very easy", "Somewhat easy", "Somewhat difficult", "Very difficult", "I don't know"},
		Required:  true,
		Icon:      "⏸️",
		Category:  CategoryWorkEnvironment,
		Sensitive: true,
	},
	{
		ID:        "mental_health_consequence",
		Prompt:    "Do you think that discussing a mental health issue with your employer would have negative consequences?",
		Kind:      KindSelect,
		Options:   yesNoMaybe,
		Required:  true,
		Icon:      "⚠️",
		Category:  CategoryWorkEnvironment,
		Sensitive: true,
	},
	{
		ID:       "phys_health_consequence",
		Prompt:   "Do you think that discussing a physical health issue with your employer would have negative consequences?",
		Kind:     KindSelect,
		Options:  yesNoMaybe,
		Required: true,
		Icon:     "⚠️",
		Category: CategoryWorkEnvironment,
	},
	{
		ID:        "coworkers",
		Prompt:    "Would you be willing to discuss a mental health issue with your coworkers?",
		Kind:      KindSelect,
		Options:   []string{"Yes", "No", "Some of them"},
		Required:  true,
		Icon:      "👥",
		Category:  CategoryWorkRelationships,
		Sensitive: true,
	},
	{
		ID:        "supervisor",
		Prompt:    "Would you be willing to discuss a mental health issue with your direct supervisor(s)?",
		Kind:      KindSelect,
		Options:   yesNo,
		Required:  true,
		Icon:      "👔",
		Category:  CategoryWorkRelationships,
		Sensitive: true,
	},
	{
		ID:        "mental_health_interview",
		Prompt:    "Would you bring up a mental health issue with a potential employer in an interview?",
		Kind:      KindSelect,
		Options:   yesNoMaybe,
		Required:  true,
		Icon:      "💼",
		Category:  CategoryWorkRelationships,
		Sensitive: true,
	},
	{
		ID:       "phys_health_interview",
		Prompt:   "Would you bring up a physical health issue with a potential employer in an interview?",
		Kind:     KindSelect,
		Options:  yesNoMaybe,
		Required: true,
		Icon:     "💪",
		Category: CategoryWorkRelationships,
	},
	{
		ID:       "mental_vs_physical",
		Prompt:   "Do you feel that your employer takes mental health as seriously as physical health?",
		Kind:     KindSelect,
		Options:  yesNoDontKnow,
		Required: true,
		Icon:     "⚖️",
		Category: CategoryWorkEnvironment,
	},
	{
		ID:        "obs_consequence",
		Prompt:    "Have you heard of or observed negative consequences for coworkers with mental health conditions in your workplace?",
		Kind:      KindSelect,
		Options:   yesNo,
		Required:  true,
		Icon:      "👀",
		Category:  CategoryWorkEnvironment,
		Sensitive: true,
	},
}

// OSMI is the catalog served by the application. Built once at init from
// constant data and never mutated afterwards.
var OSMI = MustCatalog(osmiQuestions)
