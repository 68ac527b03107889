package service

import (
	"context"
	"errors"
	"testing"

	"coursewise_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLLM returns a canned response or error for every completion.
type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Complete(context.Context, string, string) (string, error) {
	return s.response, s.err
}

func (s *stubLLM) HealthCheck(context.Context) error {
	return s.err
}

func TestParseGradeTextUsesLLMResponse(t *testing.T) {
	llm := &stubLLM{response: "```json\n" + `{
		"success": true,
		"parsed_grades": [
			{"course_code": "MATH101", "course_name": "ریاضی 1", "grade": 17.5, "status": "passed", "semester_taken": 1, "confidence": 0.95},
			{"course_code": "CS101", "grade": null, "status": "failed", "confidence": 0.9}
		],
		"warnings": [],
		"confidence": 0.92
	}` + "\n```"}

	result := NewGradeParser(llm).ParseGradeText(context.Background(), "ریاضی 17.5، مبانی افتادم", nil)

	assert.True(t, result.Success)
	require.Len(t, result.Grades, 2)
	require.NotNil(t, result.Grades[0].Grade)
	assert.InDelta(t, 17.5, *result.Grades[0].Grade, 0.001)
	assert.Equal(t, 1, result.Grades[0].SemesterTaken)
	assert.Nil(t, result.Grades[1].Grade)
	assert.Equal(t, model.GradeStatusFailed, result.Grades[1].Status)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)
}

func TestParseGradeTextFallsBackOnLLMError(t *testing.T) {
	llm := &stubLLM{err: errors.New("connection refused")}

	result := NewGradeParser(llm).ParseGradeText(context.Background(), "MATH101: 17.5, CS101: failed", nil)

	assert.True(t, result.Success)
	require.Len(t, result.Grades, 2)
	assert.Equal(t, "MATH101", result.Grades[0].CourseCode)
	require.NotNil(t, result.Grades[0].Grade)
	assert.InDelta(t, 17.5, *result.Grades[0].Grade, 0.001)
	assert.Equal(t, model.GradeStatusPassed, result.Grades[0].Status)
	assert.Equal(t, model.GradeStatusFailed, result.Grades[1].Status)
	assert.InDelta(t, 0.7, result.Confidence, 0.001)
}

func TestParseGradeTextFallsBackOnMalformedJSON(t *testing.T) {
	llm := &stubLLM{response: "متوجه نشدم"}

	result := NewGradeParser(llm).ParseGradeText(context.Background(), "CS201: 9", nil)

	assert.True(t, result.Success)
	require.Len(t, result.Grades, 1)
	assert.Equal(t, model.GradeStatusFailed, result.Grades[0].Status, "below passing threshold")
}

func TestFallbackGradeParsingTotalOnGarbage(t *testing.T) {
	result := fallbackGradeParsing("هیچ نمره‌ای اینجا نیست")

	assert.False(t, result.Success)
	assert.Empty(t, result.Grades)
}

func TestFormatGradesForConfirmation(t *testing.T) {
	parser := NewGradeParser(&stubLLM{})

	grade := 17.5
	result := model.GradeParseResult{
		Success:    true,
		Confidence: 0.9,
		Grades: []model.ParsedGrade{
			{CourseCode: "MATH101", CourseName: "ریاضی 1", Grade: &grade, Status: model.GradeStatusPassed, SemesterTaken: 1},
			{CourseCode: "CS101", Status: model.GradeStatusFailed},
		},
	}

	text := parser.FormatGradesForConfirmation(result)
	assert.Contains(t, text, "MATH101")
	assert.Contains(t, text, "17.5")
	assert.Contains(t, text, "ترم 1")
	assert.Contains(t, text, "❌")

	empty := parser.FormatGradesForConfirmation(model.GradeParseResult{})
	assert.Contains(t, empty, "هیچ نمره‌ای")
}
