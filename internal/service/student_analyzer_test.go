package service

import (
	"testing"

	"coursewise_backend/internal/model"
	"coursewise_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	logger.Log = zap.NewNop()
}

func gradePtr(v float64) *float64 { return &v }

func testCourse(code, name string, theoretical, practical int, courseType string) model.Course {
	return model.Course{
		CourseCode:         code,
		CourseName:         name,
		TheoreticalCredits: theoretical,
		PracticalCredits:   practical,
		CourseType:         courseType,
	}
}

func testChart() *model.CurriculumChart {
	return &model.CurriculumChart{
		TotalCreditsRequired: 140,
		Semesters: map[string]model.CurriculumSemester{
			"1": {Courses: []model.CurriculumCourse{
				{CourseCode: "MATH101", CourseName: "ریاضی 1", TheoreticalCredits: 3, IsMandatory: true},
				{CourseCode: "CS101", CourseName: "مبانی برنامه‌نویسی", TheoreticalCredits: 3, PracticalCredits: 1, IsMandatory: true},
			}},
			"2": {Courses: []model.CurriculumCourse{
				{CourseCode: "MATH102", CourseName: "ریاضی 2", TheoreticalCredits: 3, Prerequisites: []string{"MATH101"}, IsMandatory: true},
				{CourseCode: "CS102", CourseName: "برنامه‌نویسی پیشرفته", TheoreticalCredits: 3, PracticalCredits: 1, Prerequisites: []string{"CS101"}, IsMandatory: true},
			}},
		},
		SpecializationTracks: model.SpecializationTracks{Tracks: []model.SpecializationTrack{
			{TrackName: "هوش مصنوعی", Courses: []string{"CS401", "CS402"}, MinCredits: 6},
			{TrackName: "نرم‌افزار", Courses: []string{"CS411", "CS412"}, MinCredits: 6},
		}},
	}
}

func TestComputeStatusUsesLatestAttemptOnly(t *testing.T) {
	math := testCourse("MATH101", "ریاضی 1", 3, 0, model.CourseTypeFoundation)
	student := &model.Student{
		EntryYear:       1402,
		CurrentSemester: 3,
		Grades: []model.StudentGrade{
			{Course: math, Grade: gradePtr(8), Status: model.GradeStatusFailed, AttemptNumber: 1, SemesterTaken: 1},
			{Course: math, Grade: gradePtr(16), Status: model.GradeStatusPassed, AttemptNumber: 2, SemesterTaken: 2},
		},
	}

	status := ComputeStatus(student, testChart())

	assert.InDelta(t, 16.0, status.GPA, 0.001)
	assert.Equal(t, 3, status.TotalCreditsPassed)
	assert.Empty(t, status.FailedCourses)
	require.Len(t, status.CompletedCourses, 1)
	assert.Equal(t, 2, status.CompletedCourses[0].AttemptNumber)
}

func TestComputeStatusGPAIncludesFailingGrades(t *testing.T) {
	student := &model.Student{
		EntryYear:       1402,
		CurrentSemester: 2,
		Grades: []model.StudentGrade{
			{Course: testCourse("MATH101", "ریاضی 1", 3, 0, model.CourseTypeFoundation),
				Grade: gradePtr(8), Status: model.GradeStatusFailed, AttemptNumber: 1, SemesterTaken: 1},
			{Course: testCourse("CS101", "مبانی", 3, 1, model.CourseTypeCore),
				Grade: gradePtr(18), Status: model.GradeStatusPassed, AttemptNumber: 1, SemesterTaken: 1},
		},
	}

	status := ComputeStatus(student, testChart())

	// (8*3 + 18*4) / 7 = 13.71, failed credits excluded from passed total.
	assert.InDelta(t, 13.71, status.GPA, 0.001)
	assert.Equal(t, 4, status.TotalCreditsPassed)
	require.Len(t, status.FailedCourses, 1)
	assert.Equal(t, "MATH101", status.FailedCourses[0].CourseCode)
}

func TestComputeStatusWithoutGradesYieldsDefaults(t *testing.T) {
	student := &model.Student{EntryYear: 1403, CurrentSemester: 1}

	status := ComputeStatus(student, testChart())

	assert.Zero(t, status.GPA)
	assert.Zero(t, status.TotalCreditsPassed)
	assert.Empty(t, status.CompletedCourses)
	assert.Empty(t, status.FailedCourses)
	assert.Equal(t, model.StandingProbation, status.Standing)
}

func TestComputeStatusSkipsWithdrawnAndPendingGrades(t *testing.T) {
	student := &model.Student{
		EntryYear:       1402,
		CurrentSemester: 2,
		Grades: []model.StudentGrade{
			{Course: testCourse("CS101", "مبانی", 3, 1, model.CourseTypeCore),
				Grade: gradePtr(15), Status: model.GradeStatusPassed, AttemptNumber: 1, SemesterTaken: 1},
			{Course: testCourse("MATH101", "ریاضی 1", 3, 0, model.CourseTypeFoundation),
				Grade: gradePtr(12), Status: model.GradeStatusWithdrawn, AttemptNumber: 1, SemesterTaken: 1},
			{Course: testCourse("PHYS101", "فیزیک 1", 3, 0, model.CourseTypeFoundation),
				Grade: nil, Status: "", AttemptNumber: 1, SemesterTaken: 2},
		},
	}

	status := ComputeStatus(student, testChart())

	assert.InDelta(t, 15.0, status.GPA, 0.001)
	assert.Len(t, status.CompletedCourses, 1)
}

func TestDetermineStanding(t *testing.T) {
	cases := []struct {
		name     string
		gpa      float64
		expected model.AcademicStanding
	}{
		{"probation below 12", 11.99, model.StandingProbation},
		{"normal at 12", 12.0, model.StandingNormal},
		{"good standing at 15", 15.0, model.StandingGoodStanding},
		{"excellent at 17", 17.0, model.StandingExcellent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, determineStanding(tc.gpa, nil, 3))
		})
	}
}

func TestDetermineStandingRecentFailures(t *testing.T) {
	course := testCourse("CS101", "مبانی", 3, 0, model.CourseTypeCore)
	failed := func(code string, sem int) model.StudentGrade {
		c := course
		c.CourseCode = code
		return model.StudentGrade{Course: c, Grade: gradePtr(7), AttemptNumber: 1, SemesterTaken: sem}
	}

	// Three failures in the latest semester force probation even with a
	// passing GPA.
	latest := []model.StudentGrade{
		failed("A1", 3), failed("A2", 3), failed("A3", 3),
		{Course: course, Grade: gradePtr(19), AttemptNumber: 1, SemesterTaken: 2},
	}
	assert.Equal(t, model.StandingProbation, determineStanding(13.0, latest, 3))

	// The same failures in an older semester do not.
	older := []model.StudentGrade{
		failed("A1", 1), failed("A2", 1), failed("A3", 1),
		{Course: course, Grade: gradePtr(19), AttemptNumber: 1, SemesterTaken: 3},
	}
	assert.Equal(t, model.StandingNormal, determineStanding(13.0, older, 3))
}

func TestGroupAssignment(t *testing.T) {
	assert.Equal(t, "", groupAssignment(1402, "40212345"), "no groups before 1403")
	assert.Equal(t, "A", groupAssignment(1403, "40312344"), "even last digit")
	assert.Equal(t, "B", groupAssignment(1403, "40312345"), "odd last digit")
	assert.Equal(t, "A", groupAssignment(1403, ""), "default on missing number")
	assert.Equal(t, "A", groupAssignment(1403, "4031234X"), "default on parse failure")
}

func TestSpecializationStatusSelectsLeadingTrack(t *testing.T) {
	completed := []model.CourseAttempt{
		{CourseCode: "CS401", Credits: 3},
		{CourseCode: "CS402", Credits: 3},
		{CourseCode: "CS411", Credits: 3},
	}

	status := specializationStatus(completed, 6, testChart())

	assert.True(t, status.SelectionAllowed)
	assert.Equal(t, "هوش مصنوعی", status.SelectedGroup)
	assert.Equal(t, 6, status.CompletedSpecializedCredits)
	assert.True(t, status.ProgressByGroup["هوش مصنوعی"].IsSufficient)
	assert.False(t, status.ProgressByGroup["نرم‌افزار"].IsSufficient)
}

func TestSpecializationStatusNoneBelowThreeCredits(t *testing.T) {
	status := specializationStatus(nil, 5, testChart())
	assert.Empty(t, status.SelectedGroup)
}

func TestGraduationProgressLevels(t *testing.T) {
	cases := []struct {
		credits int
		level   string
	}{
		{20, "مقدماتی"},
		{35, "میانی"},
		{70, "پیشرفته"},
		{105, "نهایی"},
	}
	for _, tc := range cases {
		progress := graduationProgress(tc.credits, nil, testChart())
		assert.Equal(t, tc.level, progress.AcademicLevel, "credits=%d", tc.credits)
	}
}

func TestGraduationProgressEstimatedSemesters(t *testing.T) {
	progress := graduationProgress(104, nil, testChart())
	assert.Equal(t, 36, progress.RemainingCredits)
	assert.Equal(t, 2, progress.EstimatedSemestersRemaining)

	progress = graduationProgress(139, nil, testChart())
	assert.Equal(t, 1, progress.EstimatedSemestersRemaining, "never below one semester")
}

func TestCreditLimitBands(t *testing.T) {
	cases := []struct {
		gpa      float64
		max, min int
	}{
		{11.9, 16, 14},
		{12.0, 18, 12},
		{14.9, 18, 12},
		{15.0, 20, 12},
		{16.9, 20, 12},
		{17.0, 24, 12},
		{20.0, 24, 12},
	}
	for _, tc := range cases {
		limit := CreditLimitFor(tc.gpa)
		assert.Equal(t, tc.max, limit.MaxCredits, "gpa=%.1f", tc.gpa)
		assert.Equal(t, tc.min, limit.MinCredits, "gpa=%.1f", tc.gpa)
	}
}
