package form

import (
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// DateLayout is the value format of a date input.
const DateLayout = "2006-01-02"

// Degree values accepted by the education section.
const (
	DegreeBtech   = "Btech"
	DegreeMtech   = "Mtech"
	DegreeDiploma = "Diploma"
)

// Branch values accepted by the education section.
const (
	BranchComputerScience        = "Computer Science"
	BranchInformationTechnology  = "Information Technology"
	BranchMechanicalEngineering  = "Mechanical Engineering"
	BranchElectronicsEngineering = "Electronics Engineering"
	BranchElectricalEngineering  = "Electrical Engineering"
)

var (
	degrees  = []string{DegreeBtech, DegreeMtech, DegreeDiploma}
	branches = []string{
		BranchComputerScience,
		BranchInformationTechnology,
		BranchMechanicalEngineering,
		BranchElectronicsEngineering,
		BranchElectricalEngineering,
	}

	urlPattern = regexp.MustCompile(`^(ftp|http|https)://[^ "]+$`)
)

const pointWiseSuffix = " must be in point-wise format, each point starting with a capital letter and ending with a period."

// Degrees returns the accepted degree values in display order.
func Degrees() []string { return append([]string(nil), degrees...) }

// Branches returns the accepted branch values in display order.
func Branches() []string { return append([]string(nil), branches...) }

// ValidateTitle checks the portfolio title and project titles.
func ValidateTitle(title string) string {
	switch {
	case strings.TrimSpace(title) == "":
		return "Title cannot be empty"
	case utf8.RuneCountInString(title) < 3:
		return "Title must be at least 3 characters long"
	case !lettersAndSpaces(title):
		return "Title cannot contain numbers"
	}
	return ""
}

// ValidateDescription checks free text that must be written as points.
func ValidateDescription(description string) string {
	if strings.TrimSpace(description) == "" {
		return "Description cannot be empty"
	}
	if !IsPointWise(description) {
		return "Description" + pointWiseSuffix
	}
	return ""
}

// ValidateLink checks a required URL.
func ValidateLink(link string) string {
	if link == "" {
		return "Link is required"
	}
	if !urlPattern.MatchString(link) {
		return "Invalid URL format"
	}
	return ""
}

// ValidateOptionalLink accepts an empty value and otherwise behaves like ValidateLink.
func ValidateOptionalLink(link string) string {
	if link == "" {
		return ""
	}
	return ValidateLink(link)
}

// IsPointWise reports whether text is a run of sentences, each starting with
// an uppercase letter and ending in '.', '!' or '?'. It is a prose-shape
// check, not a grammar.
func IsPointWise(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	start := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		segment := strings.TrimSpace(text[start:i])
		start = i + 1
		if segment == "" {
			// runs like "..." or "?!" close the previous sentence
			continue
		}
		first, _ := utf8.DecodeRuneInString(segment)
		if !unicode.IsUpper(first) {
			return false
		}
	}
	return strings.TrimSpace(text[start:]) == ""
}

// ValidateEducationField runs the single-field rule of an education entry.
// Date ordering is handled by ValidateEducationDates.
func ValidateEducationField(field, value string) string {
	switch field {
	case FieldCollegeName:
		if strings.TrimSpace(value) == "" {
			return "College Name is required."
		}
	case FieldDegree:
		if value == "" {
			return "Degree is required."
		}
		if !slices.Contains(degrees, value) {
			return "Degree must be one of " + strings.Join(degrees, ", ") + "."
		}
	case FieldBranch:
		if value == "" {
			return "Branch is required."
		}
		if !slices.Contains(branches, value) {
			return "Branch must be one of " + strings.Join(branches, ", ") + "."
		}
	case FieldCGPAOrPercentage:
		if strings.TrimSpace(value) == "" {
			return "CGPA or Percentage is required."
		}
	case FieldYearOfJoining:
		if value == "" {
			return "Year of Joining is required."
		}
		if _, ok := ParseDate(value); !ok {
			return "Year of Joining must be a valid date."
		}
	case FieldYearOfPassing:
		if strings.TrimSpace(value) == "" {
			return "Year of Passing is required."
		}
		if _, ok := ParseDate(value); !ok {
			return "Year of Passing must be a valid date."
		}
	}
	return ""
}

// ValidateEducationDates returns the yearOfPassing error for the pair.
// An empty or unparsable side is not an ordering error.
func ValidateEducationDates(joining, passing string) string {
	joined, ok1 := ParseDate(joining)
	passed, ok2 := ParseDate(passing)
	if !ok1 || !ok2 {
		return ""
	}
	if !passed.After(joined) {
		return "Year of Passing must be after Year of Joining."
	}
	return ""
}

// ValidateEmploymentField runs the rule of one professional-history field,
// reading cross-field context from entry (which already holds value).
func ValidateEmploymentField(field, value string, entry EmploymentEntry) string {
	switch field {
	case FieldCompanyName:
		if strings.TrimSpace(value) == "" {
			return "Company name is required"
		}
	case FieldPosition:
		if strings.TrimSpace(value) == "" {
			return "Position is required"
		}
	case FieldResponsibility:
		if strings.TrimSpace(value) == "" {
			return "Responsibility is required"
		}
		if !IsPointWise(value) {
			return "Responsibility" + pointWiseSuffix
		}
	case FieldYearOfJoining:
		if value == "" {
			return "Year of joining is required"
		}
		joined, ok := ParseDate(value)
		if !ok {
			return "Year of joining must be a valid date"
		}
		if entry.IsCurrentEmployee || entry.YearOfLeaving == "" {
			return ""
		}
		if left, ok := ParseDate(entry.YearOfLeaving); ok && !joined.Before(left) {
			return "Year of joining must be before Year of leaving"
		}
	case FieldYearOfLeaving:
		if entry.IsCurrentEmployee {
			return ""
		}
		if value == "" {
			return "Year of leaving is required"
		}
		left, ok := ParseDate(value)
		if !ok {
			return "Year of leaving must be a valid date"
		}
		if joined, ok := ParseDate(entry.YearOfJoining); ok && !left.After(joined) {
			return "Year of leaving must be after Year of joining"
		}
	}
	return ""
}

// ParseDate parses a date-input value.
func ParseDate(value string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func lettersAndSpaces(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
