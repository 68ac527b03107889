package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"coursewise_backend/internal/model"
	"coursewise_backend/pkg/logger"
	"coursewise_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// Parser turns free-form LLM replies into structured recommendations.
// Extraction runs in tiers; the first tier that yields courses wins.
// Parsing is total: the worst outcome is an empty course list.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

type parseTierFunc func(text string, offerings *model.SemesterOfferings) []model.ParsedCourse

// ParseRecommendationResponse extracts courses from an LLM reply using a
// fenced-JSON pass, then the Persian weekly-schedule text format, then a
// bare course-code scan over the raw text.
func (p *Parser) ParseRecommendationResponse(text string, offerings *model.SemesterOfferings) model.ParsedRecommendation {
	tiers := []struct {
		name model.ParseTier
		fn   parseTierFunc
	}{
		{model.ParseTierJSON, parseJSONTier},
		{model.ParseTierWeekly, parseWeeklyTextTier},
		{model.ParseTierTokens, parseBareTokenTier},
	}

	result := model.ParsedRecommendation{}
	for _, tier := range tiers {
		courses := tier.fn(text, offerings)
		if len(courses) == 0 {
			continue
		}
		result.Courses = courses
		result.Tier = tier.name
		break
	}

	if len(result.Courses) == 0 {
		logger.Log.Warn("No courses extracted from LLM response",
			zap.Int("responseLength", len(text)))
		return result
	}
	monitoring.LLMParseTierCounter.WithLabelValues(string(result.Tier)).Inc()

	for _, c := range result.Courses {
		result.TotalCredits += c.Credits
	}
	result.Explanation = extractExplanation(text)
	return result
}

var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

type jsonRecommendation struct {
	RecommendedCourses []struct {
		CourseCode string `json:"course_code"`
		CourseName string `json:"course_name"`
		Credits    json.RawMessage `json:"credits"`
		Instructor string `json:"instructor"`
		Reason     string `json:"reason"`
	} `json:"recommended_courses"`
	Analysis string `json:"analysis"`
}

// parseJSONTier handles replies that wrap a recommended_courses array in
// a fenced json block.
func parseJSONTier(text string, offerings *model.SemesterOfferings) []model.ParsedCourse {
	match := fencedJSONRe.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	var data jsonRecommendation
	if err := json.Unmarshal([]byte(match[1]), &data); err != nil {
		logger.Log.Warn("Fenced JSON block did not parse", zap.Error(err))
		return nil
	}

	var courses []model.ParsedCourse
	for _, c := range data.RecommendedCourses {
		if c.CourseCode == "" {
			continue
		}
		course := model.ParsedCourse{
			CourseCode: c.CourseCode,
			CourseName: c.CourseName,
			Credits:    decodeCredits(c.Credits),
			Instructor: c.Instructor,
			Reason:     c.Reason,
		}
		enrichFromOfferings(&course, offerings)
		courses = append(courses, course)
	}
	return courses
}

// decodeCredits accepts a bare number or the split theoretical/practical
// object, both of which LLMs produce.
func decodeCredits(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var split model.CourseCredits
	if err := json.Unmarshal(raw, &split); err == nil {
		return split.Total()
	}
	return 0
}

var (
	weeklyLineRe = regexp.MustCompile(`-\s*(.+?)\s*\(([A-Z0-9]+)\)\s*-\s*(.+?)\s*-\s*(\d+)\s*واحد(?:\s*-\s*استاد:\s*(.+?))?\s*$`)
	simpleLineRe = regexp.MustCompile(`-\s*(.+?)\s*\(([A-Z0-9]+)\)`)
)

// parseWeeklyTextTier reads the Persian weekly-schedule answer format:
// per-weekday sections of "- name (code) - time - N واحد - استاد: x".
func parseWeeklyTextTier(text string, offerings *model.SemesterOfferings) []model.ParsedCourse {
	var courses []model.ParsedCourse
	seen := make(map[string]bool)

	inDay := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if isWeekdayHeading(trimmed) {
			inDay = true
			continue
		}
		if strings.HasPrefix(trimmed, "**") || strings.HasPrefix(trimmed, "#") {
			// Any other heading closes the current day section.
			if !isWeekdayHeading(trimmed) {
				inDay = false
			}
			continue
		}
		if !inDay || !strings.HasPrefix(trimmed, "-") {
			continue
		}

		course, ok := parseCourseLine(trimmed)
		if !ok || seen[course.CourseCode] {
			continue
		}
		seen[course.CourseCode] = true
		enrichFromOfferings(&course, offerings)
		courses = append(courses, course)
	}
	return courses
}

func isWeekdayHeading(line string) bool {
	for _, day := range model.Weekdays {
		if strings.HasPrefix(line, "**"+day) {
			return true
		}
	}
	return false
}

func parseCourseLine(line string) (model.ParsedCourse, bool) {
	if m := weeklyLineRe.FindStringSubmatch(line); m != nil {
		credits, _ := strconv.Atoi(m[4])
		instructor := "نامشخص"
		if m[5] != "" {
			instructor = strings.TrimSpace(m[5])
		}
		return model.ParsedCourse{
			CourseName: strings.TrimSpace(m[1]),
			CourseCode: m[2],
			Time:       strings.TrimSpace(m[3]),
			Credits:    credits,
			Instructor: instructor,
		}, true
	}
	if m := simpleLineRe.FindStringSubmatch(line); m != nil {
		return model.ParsedCourse{
			CourseName: strings.TrimSpace(m[1]),
			CourseCode: m[2],
			Time:       "نامشخص",
			Instructor: "نامشخص",
		}, true
	}
	return model.ParsedCourse{}, false
}

var (
	numericCodeRe = regexp.MustCompile(`\b([0-9]{7,12})\b`)
	letterCodeRe  = regexp.MustCompile(`\b([A-Z]+[0-9]+)\b`)
)

// parseBareTokenTier scans the raw text for anything shaped like a course
// code and keeps the ones the offerings catalog can confirm, falling back
// to the raw tokens when none match.
func parseBareTokenTier(text string, offerings *model.SemesterOfferings) []model.ParsedCourse {
	var codes []string
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{numericCodeRe, letterCodeRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			code := m[1]
			if len(code) < 2 || len(code) > 15 || seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, code)
		}
	}

	var confirmed, unconfirmed []model.ParsedCourse
	for _, code := range codes {
		course := model.ParsedCourse{
			CourseCode: code,
			CourseName: fmt.Sprintf("درس %s", code),
			Time:       "نامشخص",
			Instructor: "نامشخص",
		}
		if offerings != nil && offerings.FindCourse(code) != nil {
			enrichFromOfferings(&course, offerings)
			confirmed = append(confirmed, course)
		} else {
			unconfirmed = append(unconfirmed, course)
		}
	}

	courses := confirmed
	if len(courses) == 0 {
		courses = unconfirmed
	}
	if len(courses) > 10 {
		courses = courses[:10]
	}
	return courses
}

// enrichFromOfferings fills gaps in a parsed course from the offerings
// catalog, which is authoritative over whatever the LLM wrote.
func enrichFromOfferings(course *model.ParsedCourse, offerings *model.SemesterOfferings) {
	if offerings == nil {
		return
	}
	offered := offerings.FindCourse(course.CourseCode)
	if offered == nil {
		return
	}
	if offered.CourseName != "" {
		course.CourseName = offered.CourseName
	}
	course.Credits = offered.Credits.Total()
	if len(offered.TimeSlots) > 0 {
		course.Time = strings.Join(offered.TimeSlots, "، ")
	}
	if offered.Instructor != "" {
		course.Instructor = offered.Instructor
	}
}

var explanationRe = regexp.MustCompile(`(?s)💡\s*\*\*توجیه انتخاب:\*\*(.*?)(?:⚠️|\*\*نکات|$)`)

func extractExplanation(text string) string {
	if m := explanationRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
