package gradeparse

import (
	"bytes"
	"encoding/json"
	"strings"

	"portalproxy-backend/lib/textutil"
)

var (
	wrapperKeys = []string{"grades", "schools", "data"}

	nameKeys    = []string{"courseName", "name", "sectionName"}
	codeKeys    = []string{"courseNumber", "courseCode", "sectionID"}
	teacherKeys = []string{"teacherDisplay", "teacherName", "teacher"}
	periodKeys  = []string{"periodName", "period"}

	// score containers, in order of preference
	scoreContainers = []string{"score", "", "grade", "progressGrade", "finalGrade"}
)

// max nesting of schools -> terms -> courses (plus slack for wrappers)
const maxDepth = 6

func decodeJSON(body []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var root any
	err := decoder.Decode(&root)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// ParseJSON flattens a decoded schools -> terms -> courses payload. Any level may be a
// single object instead of a list.
func ParseJSON(root any) []CourseGradeRecord {
	payload := unwrap(root)

	var courses []map[string]any
	collectCourses(payload, 0, &courses)

	var records []CourseGradeRecord
	for _, course := range courses {
		record, ok := courseRecord(course)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records
}

func unwrap(v any) any {
	for i := 0; i < len(wrapperKeys); i++ {
		obj, ok := v.(map[string]any)
		if !ok {
			return v
		}
		found := false
		for _, key := range wrapperKeys {
			inner, ok := obj[key]
			if ok {
				v = inner
				found = true
				break
			}
		}
		if !found {
			return v
		}
	}
	return v
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		return []any{t}
	}
	return nil
}

func collectCourses(v any, depth int, out *[]map[string]any) {
	if depth > maxDepth {
		return
	}
	for _, item := range asList(v) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if terms, ok := obj["terms"]; ok {
			collectCourses(terms, depth+1, out)
			continue
		}
		if courses, ok := obj["courses"]; ok {
			collectCourses(courses, depth+1, out)
			continue
		}
		*out = append(*out, obj)
	}
}

func stringField(obj map[string]any, keys ...string) string {
	values := make([]string, 0, len(keys))
	for _, key := range keys {
		switch v := obj[key].(type) {
		case string:
			values = append(values, v)
		case json.Number:
			values = append(values, v.String())
		}
	}
	return textutil.FirstNonEmpty(values...)
}

func courseRecord(course map[string]any) (CourseGradeRecord, bool) {
	name := stringField(course, nameKeys...)
	if name == "" {
		return CourseGradeRecord{}, false
	}

	record := CourseGradeRecord{
		CourseName: name,
		CourseCode: stringField(course, codeKeys...),
		Teacher:    stringField(course, teacherKeys...),
		Period:     stringField(course, periodKeys...),
	}

	for _, container := range scoreContainers {
		fields := course
		if container != "" {
			inner, ok := course[container].(map[string]any)
			if !ok {
				continue
			}
			fields = inner
		}
		if record.CurrentScore == nil {
			if percent, ok := toPercent(fields["percent"]); ok {
				record.CurrentScore = ptr(percent)
			}
		}
		if record.LetterGrade == nil {
			letter, ok := fields["letterGrade"].(string)
			if ok && strings.TrimSpace(letter) != "" {
				record.LetterGrade = ptr(strings.TrimSpace(letter))
			}
		}
	}

	// some deployments send the score as a bare value instead of an object
	switch score := course["score"].(type) {
	case string:
		score = strings.TrimSpace(score)
		if percent, ok := parsePercent(score); ok {
			if record.CurrentScore == nil {
				record.CurrentScore = ptr(percent)
			}
		} else if score != "" && record.LetterGrade == nil {
			record.LetterGrade = ptr(score)
		}
	case json.Number:
		if percent, ok := toPercent(score); ok && record.CurrentScore == nil {
			record.CurrentScore = ptr(percent)
		}
	}

	return record, true
}
