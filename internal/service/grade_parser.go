package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"coursewise_backend/internal/model"
	"coursewise_backend/pkg/logger"

	"go.uber.org/zap"
)

const gradeParserSystemPrompt = "You are an expert at parsing Iranian university grade information. Parse the user's grade text into structured JSON format."

// GradeParser extracts structured grades from pasted transcript text.
// The LLM pass comes first; when it fails or returns malformed JSON, a
// regex fallback keeps the operation total at reduced confidence.
type GradeParser struct {
	llm LLMClient
}

func NewGradeParser(llm LLMClient) *GradeParser {
	return &GradeParser{llm: llm}
}

func (p *GradeParser) ParseGradeText(ctx context.Context, text string, knownCourses []model.Course) model.GradeParseResult {
	prompt := gradeParsingPrompt(text, knownCourses)

	response, err := p.llm.Complete(ctx, gradeParserSystemPrompt, prompt)
	if err != nil {
		logger.Log.Warn("LLM grade parsing unavailable, using regex fallback", zap.Error(err))
		return fallbackGradeParsing(text)
	}

	result, ok := parseGradeJSON(response, text)
	if !ok {
		logger.Log.Warn("LLM grade response was not valid JSON, using regex fallback")
		return fallbackGradeParsing(text)
	}
	return result
}

func gradeParsingPrompt(text string, knownCourses []model.Course) string {
	var courseList strings.Builder
	if len(knownCourses) == 0 {
		courseList.WriteString("No course list provided - infer from text")
	} else {
		limit := len(knownCourses)
		if limit > 30 {
			limit = 30
		}
		for _, c := range knownCourses[:limit] {
			fmt.Fprintf(&courseList, "- %s: %s\n", c.CourseCode, c.CourseName)
		}
	}

	return fmt.Sprintf(`Parse the following grade text from an Iranian university student. Extract course codes, names, grades, and status.

**Input Text:** %q

**Valid Courses (Code → Name):**
%s

**Instructions:**
1. Extract each course mentioned in the text
2. Match Persian course names to course codes using the Valid Courses list above
3. If exact match not found, find the closest match or leave course_code as null
4. Extract numerical grades (0-20 scale) or status (passed/failed)
5. Extract semester when course was taken (if mentioned)
6. Determine status: "passed" (grade >= 10), "failed" (grade < 10 or explicitly failed), "withdrawn"
7. Provide confidence score (0-1) for each parsing

**Output Format (JSON):**
`+"```json"+`
{
    "success": true,
    "parsed_grades": [
        {"course_code": "CS101", "course_name": "Programming Fundamentals", "grade": 18.5, "status": "passed", "semester_taken": 1, "confidence": 0.95},
        {"course_code": "MATH201", "course_name": "Calculus", "grade": null, "status": "failed", "semester_taken": 2, "confidence": 0.90}
    ],
    "warnings": ["Unknown course code: PHYS101"],
    "confidence": 0.92
}
`+"```"+`

**Notes:**
- Iranian grading scale: 0-20 (passing grade >= 10)
- Common formats: "Math1: 17", "CS101: 18", "Physics: failed", "Data Structure = 19.5"
- Handle Persian/Farsi course names if present
- Extract semester info if mentioned: "ترم 1", "ترم اول", "semester 2", etc.
- If semester not mentioned, leave semester_taken as null
- Flag unknown course codes as warnings
`, text, courseList.String())
}

type gradeJSONResponse struct {
	Success      bool `json:"success"`
	ParsedGrades []struct {
		CourseCode    string   `json:"course_code"`
		CourseName    string   `json:"course_name"`
		Grade         *float64 `json:"grade"`
		Status        string   `json:"status"`
		SemesterTaken int      `json:"semester_taken"`
		Confidence    float64  `json:"confidence"`
	} `json:"parsed_grades"`
	Warnings   []string `json:"warnings"`
	Confidence float64  `json:"confidence"`
}

func parseGradeJSON(response, original string) (model.GradeParseResult, bool) {
	jsonText := response
	if m := fencedJSONRe.FindStringSubmatch(response); m != nil {
		jsonText = m[1]
	}

	var data gradeJSONResponse
	if err := json.Unmarshal([]byte(jsonText), &data); err != nil {
		return model.GradeParseResult{}, false
	}

	result := model.GradeParseResult{
		Success:    data.Success,
		Warnings:   data.Warnings,
		Confidence: data.Confidence,
		RawText:    original,
	}
	for _, g := range data.ParsedGrades {
		status := g.Status
		if status == "" {
			status = "unknown"
		}
		confidence := g.Confidence
		if confidence == 0 {
			confidence = 0.5
		}
		result.Grades = append(result.Grades, model.ParsedGrade{
			CourseCode:    g.CourseCode,
			CourseName:    g.CourseName,
			Grade:         g.Grade,
			Status:        status,
			SemesterTaken: g.SemesterTaken,
			Confidence:    confidence,
		})
	}
	return result, true
}

var gradeFallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)([A-Z]+\d+)[:=]\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)([A-Z]+\d+)[:=]\s*(failed?|passe?d?)`),
	regexp.MustCompile(`(?i)(\w+)[:=]\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)(\w+)[:=]\s*(failed?|passe?d?)`),
}

// fallbackGradeParsing scans "CODE: grade" shapes with fixed 0.7
// confidence. It never errors; unparseable text yields an unsuccessful
// result.
func fallbackGradeParsing(text string) model.GradeParseResult {
	result := model.GradeParseResult{
		Warnings:   []string{"Using basic parsing - LLM parsing failed"},
		Confidence: 0.7,
		RawText:    text,
	}

	seen := make(map[string]bool)
	for _, pattern := range gradeFallbackPatterns {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			code := strings.ToUpper(m[1])
			if seen[code] {
				continue
			}
			value := strings.ToLower(m[2])

			var grade *float64
			var status string
			switch {
			case strings.HasPrefix(value, "fail"):
				status = model.GradeStatusFailed
			case strings.HasPrefix(value, "pass"):
				status = model.GradeStatusPassed
			default:
				f, err := strconv.ParseFloat(value, 64)
				if err != nil {
					continue
				}
				grade = &f
				status = model.GradeStatusPassed
				if f < model.PassingGrade {
					status = model.GradeStatusFailed
				}
			}

			seen[code] = true
			result.Grades = append(result.Grades, model.ParsedGrade{
				CourseCode: code,
				Grade:      grade,
				Status:     status,
				Confidence: 0.7,
			})
		}
	}

	result.Success = len(result.Grades) > 0
	return result
}

// FormatGradesForConfirmation renders parsed grades as the Persian
// summary the bot echoes back before committing anything.
func (p *GradeParser) FormatGradesForConfirmation(result model.GradeParseResult) string {
	if !result.Success || len(result.Grades) == 0 {
		return "❌ هیچ نمره‌ای از متن وارد شده استخراج نشد."
	}

	var b strings.Builder
	b.WriteString("📚 **نمرات شناسایی شده:**\n\n")
	for i, g := range result.Grades {
		emoji := "✅"
		if g.Status == model.GradeStatusFailed {
			emoji = "❌"
		} else if g.Status == model.GradeStatusWithdrawn {
			emoji = "⚪"
		}

		gradeText := g.Status
		if g.Grade != nil {
			gradeText = fmt.Sprintf("%.1f", *g.Grade)
		}

		fmt.Fprintf(&b, "%d. %s **%s**", i+1, emoji, g.CourseCode)
		if g.CourseName != "" {
			fmt.Fprintf(&b, " (%s)", g.CourseName)
		}
		fmt.Fprintf(&b, ": %s", gradeText)
		if g.SemesterTaken > 0 {
			fmt.Fprintf(&b, " - ترم %d", g.SemesterTaken)
		}
		b.WriteString("\n")
	}

	if len(result.Warnings) > 0 {
		b.WriteString("\n⚠️ **هشدارها:**\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	fmt.Fprintf(&b, "\n📊 **اطمینان:** %.0f%%\n", result.Confidence*100)
	return b.String()
}
