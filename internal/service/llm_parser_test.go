package service

import (
	"testing"

	"coursewise_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parserOfferings() *model.SemesterOfferings {
	return &model.SemesterOfferings{
		Semester: "mehr_1404",
		GeneralCourses: []model.OfferedCourse{
			{CourseCode: "MATH101", CourseName: "ریاضی عمومی 1",
				Credits:    model.CourseCredits{Theoretical: 3},
				TimeSlots:  []string{"شنبه 8:00-10:00"},
				Instructor: "دکتر محمدی"},
			{CourseCode: "CS101", CourseName: "مبانی برنامه‌نویسی",
				Credits:   model.CourseCredits{Theoretical: 3, Practical: 1},
				TimeSlots: []string{"یکشنبه 10:00-12:00"}},
		},
	}
}

func TestParseRecommendationResponseJSONTier(t *testing.T) {
	response := "توضیحات مدل\n```json\n" + `{
		"recommended_courses": [
			{"course_code": "MATH101", "course_name": "ریاضی", "credits": 3, "reason": "درس مردودی"},
			{"course_code": "CS101", "credits": {"theoretical": 3, "practical": 1}},
			{"course_code": "CS999", "course_name": "درس ناشناخته", "credits": 2}
		]
	}` + "\n```\n"

	result := NewParser().ParseRecommendationResponse(response, parserOfferings())

	assert.Equal(t, model.ParseTierJSON, result.Tier)
	require.Len(t, result.Courses, 3)

	// Offerings are authoritative over LLM text.
	assert.Equal(t, "ریاضی عمومی 1", result.Courses[0].CourseName)
	assert.Equal(t, "شنبه 8:00-10:00", result.Courses[0].Time)
	assert.Equal(t, "دکتر محمدی", result.Courses[0].Instructor)
	assert.Equal(t, 4, result.Courses[1].Credits, "split credits summed")

	// Unknown codes keep the parsed values.
	assert.Equal(t, "درس ناشناخته", result.Courses[2].CourseName)
	assert.Equal(t, 9, result.TotalCredits)
}

func TestParseRecommendationResponseWeeklyTextTier(t *testing.T) {
	response := `📚 پیشنهاد دروس:

**شنبه:**
- ریاضی عمومی 1 (MATH101) - 8:00-10:00 - 3 واحد - استاد: دکتر محمدی

**یکشنبه:**
- مبانی برنامه‌نویسی (CS101) - 10:00-12:00 - 4 واحد

💡 **توجیه انتخاب:** تمرکز بر دروس پایه
`

	result := NewParser().ParseRecommendationResponse(response, parserOfferings())

	assert.Equal(t, model.ParseTierWeekly, result.Tier)
	require.Len(t, result.Courses, 2)
	assert.Equal(t, "MATH101", result.Courses[0].CourseCode)
	assert.Equal(t, "دکتر محمدی", result.Courses[0].Instructor)
	assert.Equal(t, "CS101", result.Courses[1].CourseCode)
	assert.Equal(t, "تمرکز بر دروس پایه", result.Explanation)
}

func TestParseRecommendationResponseBareTokenTier(t *testing.T) {
	response := "پیشنهاد می‌کنم MATH101 و CS101 و همچنین CS999 را بردارید."

	result := NewParser().ParseRecommendationResponse(response, parserOfferings())

	assert.Equal(t, model.ParseTierTokens, result.Tier)
	// Offerings-confirmed codes win; the unknown CS999 is dropped.
	require.Len(t, result.Courses, 2)
	codes := []string{result.Courses[0].CourseCode, result.Courses[1].CourseCode}
	assert.Contains(t, codes, "MATH101")
	assert.Contains(t, codes, "CS101")
}

func TestParseRecommendationResponseBareTokensUnconfirmedFallback(t *testing.T) {
	result := NewParser().ParseRecommendationResponse("فقط CS999 موجود است", parserOfferings())

	assert.Equal(t, model.ParseTierTokens, result.Tier)
	require.Len(t, result.Courses, 1)
	assert.Equal(t, "CS999", result.Courses[0].CourseCode)
}

func TestParseRecommendationResponseNoCourses(t *testing.T) {
	result := NewParser().ParseRecommendationResponse("متأسفانه نمی‌توانم پیشنهادی بدهم.", parserOfferings())

	assert.Empty(t, result.Courses)
	assert.Zero(t, result.TotalCredits)
}

func TestParseRecommendationResponseMalformedJSONFallsThrough(t *testing.T) {
	response := "```json\n{broken\n```\nدرس MATH101 پیشنهاد می‌شود"

	result := NewParser().ParseRecommendationResponse(response, parserOfferings())

	assert.Equal(t, model.ParseTierTokens, result.Tier)
	require.Len(t, result.Courses, 1)
	assert.Equal(t, "MATH101", result.Courses[0].CourseCode)
}

func TestDecodeCredits(t *testing.T) {
	assert.Equal(t, 3, decodeCredits([]byte(`3`)))
	assert.Equal(t, 4, decodeCredits([]byte(`{"theoretical": 3, "practical": 1}`)))
	assert.Equal(t, 0, decodeCredits([]byte(`"three"`)))
	assert.Equal(t, 0, decodeCredits(nil))
}
