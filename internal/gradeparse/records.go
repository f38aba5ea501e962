// Package gradeparse turns a raw grade page (JSON or legacy HTML) into
// normalized course grade records.
package gradeparse

type Format string

const (
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// Raw is a grade page exactly as the portal returned it.
type Raw struct {
	Format Format
	Body   []byte
	// Path is the portal path the body was fetched from.
	Path string
}

type CourseGradeRecord struct {
	CourseName   string   `json:"courseName"`
	CourseCode   string   `json:"courseCode,omitempty"`
	Teacher      string   `json:"teacher,omitempty"`
	Period       string   `json:"period,omitempty"`
	CurrentScore *float64 `json:"currentScore"`
	LetterGrade  *string  `json:"letterGrade"`
}

const (
	StrategyNone        = "none"
	StrategyJSON        = "json"
	StrategyRows        = "html.rows"
	StrategyFreeText    = "html.free-text"
	StrategyLabelScore  = "html.label-percent"
	StrategyCourseGrade = "html.course-grade"
)

// Result is the outcome of one parse along with the name of the strategy that produced it.
type Result struct {
	Records  []CourseGradeRecord
	Strategy string
}

// Degraded reports a parse that found nothing, callers still treat it as a valid empty list.
func (r Result) Degraded() bool {
	return len(r.Records) == 0
}
