package report

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldStatus describes how an expected attribute came back from the model.
type FieldStatus string

const (
	FieldPresent FieldStatus = "present"
	FieldMissing FieldStatus = "missing"
	FieldInvalid FieldStatus = "invalid"
)

// FieldResult is the outcome of checking one expected attribute.
type FieldResult struct {
	Key     string      `json:"key"`
	Value   string      `json:"value,omitempty"`
	Status  FieldStatus `json:"status"`
	Problem string      `json:"problem,omitempty"`
}

// Validation holds one FieldResult per expected attribute, in ExpectedKeys
// order.
type Validation []FieldResult

type fieldRule func(value string) error

var ageRe = regexp.MustCompile(`(?i)^\d{1,3}(\s*(years?|yrs?)(\s+old)?)?$`)

var rules = map[string]fieldRule{
	KeyGender:      oneOf("Male", "Female", "Non-binary"),
	KeyAgeEstimate: matches(ageRe, "[number] years"),
	KeyGlasses:     oneOf("Yes", "No"),
	KeyBeard:       oneOf("Yes", "No"),
	KeyHeadwear:    startsWithOneOf("Yes", "No"),
	KeyConfidenceLevel: func(value string) error {
		if !ParseConfidence(value).Known {
			return fmt.Errorf("not a percentage")
		}
		return nil
	},
}

// Validate checks every expected attribute of r on its own, so a malformed
// field never hides the well formed ones.
func Validate(r Report) Validation {
	v := make(Validation, 0, len(ExpectedKeys))
	for _, key := range ExpectedKeys {
		fr := FieldResult{Key: key, Status: FieldPresent}

		value, ok := r[key]
		switch {
		case !ok:
			fr.Status = FieldMissing
		case value == "":
			fr.Status = FieldInvalid
			fr.Problem = "empty value"
		default:
			fr.Value = value
			if rule := rules[key]; rule != nil {
				if err := rule(value); err != nil {
					fr.Status = FieldInvalid
					fr.Problem = err.Error()
				}
			}
		}

		v = append(v, fr)
	}

	return v
}

// Complete reports whether every expected attribute is present and valid.
func (v Validation) Complete() bool {
	for _, fr := range v {
		if fr.Status != FieldPresent {
			return false
		}
	}
	return true
}

// Missing returns the keys that weren't in the report.
func (v Validation) Missing() []string {
	return v.keysWithStatus(FieldMissing)
}

// Invalid returns the keys whose values failed their check.
func (v Validation) Invalid() []string {
	return v.keysWithStatus(FieldInvalid)
}

// Field returns the result for key.
func (v Validation) Field(key string) (FieldResult, bool) {
	for _, fr := range v {
		if fr.Key == key {
			return fr, true
		}
	}
	return FieldResult{}, false
}

func (v Validation) keysWithStatus(status FieldStatus) []string {
	keys := []string{}
	for _, fr := range v {
		if fr.Status == status {
			keys = append(keys, fr.Key)
		}
	}
	return keys
}

func oneOf(allowed ...string) fieldRule {
	return func(value string) error {
		for _, a := range allowed {
			if strings.EqualFold(value, a) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(allowed, "/"))
	}
}

func startsWithOneOf(allowed ...string) fieldRule {
	return func(value string) error {
		head, _, _ := strings.Cut(value, ",")
		if words := strings.Fields(head); len(words) > 0 {
			for _, a := range allowed {
				if strings.EqualFold(strings.Trim(words[0], ".;:()"), a) {
					return nil
				}
			}
		}
		return fmt.Errorf("must start with %s", strings.Join(allowed, "/"))
	}
}

func matches(re *regexp.Regexp, format string) fieldRule {
	return func(value string) error {
		if !re.MatchString(value) {
			return fmt.Errorf("expected format %q", format)
		}
		return nil
	}
}
