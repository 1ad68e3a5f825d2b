package report

import (
	"slices"
	"strings"
)

// Report maps attribute labels to the values the model gave for them. Keys
// are whatever labels the model emitted, there is no guarantee any of
// ExpectedKeys are present.
type Report map[string]string

// Attribute labels requested from the model.
const (
	KeyGender           = "Gender"
	KeyAgeEstimate      = "Age Estimate"
	KeyEthnicity        = "Ethnicity"
	KeyMood             = "Mood"
	KeyFacialExpression = "Facial Expression"
	KeyGlasses          = "Glasses"
	KeyBeard            = "Beard"
	KeyHairColor        = "Hair Color"
	KeyEyeColor         = "Eye Color"
	KeyHeadwear         = "Headwear"
	KeyEmotionsDetected = "Emotions Detected"
	KeyConfidenceLevel  = "Confidence Level"
)

// ExpectedKeys is the fixed set of labels in the order they are requested.
var ExpectedKeys = []string{
	KeyGender,
	KeyAgeEstimate,
	KeyEthnicity,
	KeyMood,
	KeyFacialExpression,
	KeyGlasses,
	KeyBeard,
	KeyHairColor,
	KeyEyeColor,
	KeyHeadwear,
	KeyEmotionsDetected,
	KeyConfidenceLevel,
}

// Parse converts the model's reply into a Report. Each non-blank line is
// split on its first colon, both halves trimmed. Lines without a colon are
// dropped and a repeated key keeps its last value. Parse never fails, garbage
// in gives an empty or partial Report.
func Parse(text string) Report {
	r := Report{}
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		r[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return r
}

// Get returns the value for key, or def if the model didn't provide one.
func (r Report) Get(key, def string) string {
	if v, ok := r[key]; ok {
		return v
	}
	return def
}

// Extra returns the keys in r that weren't requested, sorted.
func (r Report) Extra() []string {
	var extra []string
	for k := range r {
		if !slices.Contains(ExpectedKeys, k) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	return extra
}

// Entry is one labelled value in a display Section.
type Entry struct {
	Label string
	Key   string
}

// Section groups related attributes for display.
type Section struct {
	Title   string
	Entries []Entry
}

// Sections is the layout of the analysis page. Confidence Level is rendered
// separately as a bar.
var Sections = []Section{
	{
		Title: "Demographic Profile",
		Entries: []Entry{
			{"Gender", KeyGender},
			{"Age Estimate", KeyAgeEstimate},
			{"Ethnicity", KeyEthnicity},
		},
	},
	{
		Title: "Physical Characteristics",
		Entries: []Entry{
			{"Hair Color", KeyHairColor},
			{"Eye Color", KeyEyeColor},
			{"Glasses", KeyGlasses},
			{"Beard", KeyBeard},
			{"Headwear", KeyHeadwear},
		},
	},
	{
		Title: "Emotional Profile",
		Entries: []Entry{
			{"Primary Mood", KeyMood},
			{"Facial Expression", KeyFacialExpression},
			{"Detected Emotions", KeyEmotionsDetected},
		},
	},
}
