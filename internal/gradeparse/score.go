package gradeparse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var letterGradeRegex = regexp.MustCompile(`^[A-F][+-]?$`)

func parsePercent(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	value = strings.TrimSuffix(value, "%")
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// toPercent accepts json numbers and numeric strings ("91.5", "91.5%").
func toPercent(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return n, true
	case json.Number:
		return parsePercent(n.String())
	case string:
		return parsePercent(n)
	}
	return 0, false
}

func isLetterGrade(s string) bool {
	return letterGradeRegex.MatchString(strings.TrimSpace(s))
}

func ptr[T any](v T) *T {
	return &v
}
