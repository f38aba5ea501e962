package gradeparse

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"portalproxy-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is one way of pulling grade records out of an html page.
type Strategy interface {
	Name() string
	Extract(body []byte) []CourseGradeRecord
}

// DefaultStrategies are tried in order, the first one that yields a record wins.
var DefaultStrategies = []Strategy{
	RowStrategy{},
	FreeTextStrategy{},
	LabelPercentStrategy{},
	CourseGradeStrategy{},
}

// ParseHTML runs each strategy in order and stops at the first that finds at least one record.
func ParseHTML(body []byte, strategies []Strategy) Result {
	for _, s := range strategies {
		records := s.Extract(body)
		if len(records) > 0 {
			return Result{Records: records, Strategy: s.Name()}
		}
	}
	return Result{Strategy: StrategyNone}
}

var (
	percentRegex     = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)
	cellLetterRegex  = regexp.MustCompile(`(?:^|[\s(])([A-F][+-]?)(?:$|[\s)])`)
	hasLetterRegex   = regexp.MustCompile(`[A-Za-z]`)
	freeTextRegex    = regexp.MustCompile(`([A-Za-z][A-Za-z0-9 &'./,-]{1,80}?)\s*:\s*(\d{1,3}(?:\.\d+)?)\s*%\s*(?:\(\s*([A-F][+-]?)\s*\))?`)
	labelScoreRegex  = regexp.MustCompile(`(?is)<td[^>]*>\s*([^<]{2,80}?)\s*</td>\s*<td[^>]*>\s*(\d{1,3}(?:\.\d+)?)\s*%\s*</td>`)
	courseGradeRegex = regexp.MustCompile(`(?is)<td[^>]*>\s*([^<]{2,80}?)\s*</td>\s*<td[^>]*>\s*([A-F][+-]?|\d{1,3}(?:\.\d+)?)\s*</td>`)
)

// RowStrategy reads <tr> rows with a "gradeRow" like class, taking the course name
// and grade from cells with "courseName" and "grade" like classes.
type RowStrategy struct{}

func (RowStrategy) Name() string {
	return StrategyRows
}

func (RowStrategy) Extract(body []byte) []CourseGradeRecord {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var records []CourseGradeRecord
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if !htmlutil.HasClassLike(row.Get(0), "graderow") || isHeaderRow(row) {
			return
		}

		var name, grade string
		headerCell := false
		row.Find("td, th, span, div").Each(func(_ int, cell *goquery.Selection) {
			node := cell.Get(0)
			switch {
			case name == "" && htmlutil.HasClassLike(node, "coursename"):
				name = htmlutil.CleanText(htmlutil.GetText(node))
				headerCell = goquery.NodeName(cell) == "th"
			case grade == "" && htmlutil.HasClassLike(node, "grade"):
				grade = htmlutil.CleanText(htmlutil.GetText(node))
			}
		})
		if name == "" || headerCell {
			return
		}

		record := CourseGradeRecord{CourseName: name}
		groups := percentRegex.FindStringSubmatch(htmlutil.CleanText(htmlutil.GetBlockText(row.Get(0))))
		if len(groups) > 1 {
			if percent, ok := parsePercent(groups[1]); ok {
				record.CurrentScore = ptr(percent)
			}
		}
		letter := cellLetterRegex.FindStringSubmatch(grade)
		if len(letter) > 1 {
			record.LetterGrade = ptr(letter[1])
		}
		records = append(records, record)
	})
	return records
}

// column titles, either in a <thead> or a row classed like "gradeRowHeader"
func isHeaderRow(row *goquery.Selection) bool {
	return row.ParentsFiltered("thead").Length() > 0 || htmlutil.HasClassLike(row.Get(0), "header")
}

// FreeTextStrategy matches "Name: NN% (Letter)" in the visible text of the page.
type FreeTextStrategy struct{}

func (FreeTextStrategy) Name() string {
	return StrategyFreeText
}

func (FreeTextStrategy) Extract(body []byte) []CourseGradeRecord {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var records []CourseGradeRecord
	text := htmlutil.GetBlockText(doc.Get(0))
	for _, line := range strings.Split(text, "\n") {
		line = htmlutil.CleanText(line)
		if line == "" {
			continue
		}
		for _, groups := range freeTextRegex.FindAllStringSubmatch(line, -1) {
			name := htmlutil.CleanText(groups[1])
			percent, ok := parsePercent(groups[2])
			if name == "" || !ok {
				continue
			}
			record := CourseGradeRecord{
				CourseName:   name,
				CurrentScore: ptr(percent),
			}
			if groups[3] != "" {
				record.LetterGrade = ptr(groups[3])
			}
			records = append(records, record)
		}
	}
	return records
}

// LabelPercentStrategy matches adjacent <td> cells of (label, percentage).
type LabelPercentStrategy struct{}

func (LabelPercentStrategy) Name() string {
	return StrategyLabelScore
}

func (LabelPercentStrategy) Extract(body []byte) []CourseGradeRecord {
	var records []CourseGradeRecord
	for _, groups := range labelScoreRegex.FindAllSubmatch(body, -1) {
		label := htmlutil.CleanText(html.UnescapeString(string(groups[1])))
		if !hasLetterRegex.MatchString(label) {
			continue
		}
		percent, ok := parsePercent(string(groups[2]))
		if !ok {
			continue
		}
		records = append(records, CourseGradeRecord{
			CourseName:   label,
			CurrentScore: ptr(percent),
		})
	}
	return records
}

// CourseGradeStrategy matches adjacent <td> cells of (course-like text, letter grade or bare number).
type CourseGradeStrategy struct{}

func (CourseGradeStrategy) Name() string {
	return StrategyCourseGrade
}

func (CourseGradeStrategy) Extract(body []byte) []CourseGradeRecord {
	var records []CourseGradeRecord
	for _, groups := range courseGradeRegex.FindAllSubmatch(body, -1) {
		course := htmlutil.CleanText(html.UnescapeString(string(groups[1])))
		if !hasLetterRegex.MatchString(course) || isLetterGrade(course) {
			continue
		}

		record := CourseGradeRecord{CourseName: course}
		grade := string(groups[2])
		if isLetterGrade(grade) {
			record.LetterGrade = ptr(grade)
		} else if percent, ok := parsePercent(grade); ok {
			record.CurrentScore = ptr(percent)
		} else {
			continue
		}
		records = append(records, record)
	}
	return records
}
