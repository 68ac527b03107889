package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"coursewise_backend/internal/config"
	"coursewise_backend/internal/model"
	"coursewise_backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOfferings() *model.SemesterOfferings {
	return &model.SemesterOfferings{
		Semester:         "mehr_1404",
		GroupBasedSystem: true,
		AvailableGroups: []model.OfferingGroup{
			{GroupID: "A", Courses: []model.OfferedCourse{
				{CourseCode: "MATH101", CourseName: "ریاضی 1",
					Credits:   model.CourseCredits{Theoretical: 3},
					TimeSlots: []string{"شنبه 8:00-10:00"}, ExamDate: "1404/10/15"},
				{CourseCode: "CS101", CourseName: "مبانی برنامه‌نویسی",
					Credits:   model.CourseCredits{Theoretical: 3, Practical: 1},
					TimeSlots: []string{"یکشنبه 10:00-12:00"}, ExamDate: "1404/10/18"},
			}},
			{GroupID: "B", Courses: []model.OfferedCourse{
				{CourseCode: "MATH101", CourseName: "ریاضی 1",
					Credits:   model.CourseCredits{Theoretical: 3},
					TimeSlots: []string{"یکشنبه 8:00-10:00"}, ExamDate: "1404/10/15"},
			}},
		},
		GeneralCourses: []model.OfferedCourse{
			{CourseCode: "LANG101", CourseName: "زبان عمومی",
				Credits: model.CourseCredits{Theoretical: 3}, CourseType: model.CourseTypeGeneral,
				Difficulty: model.DifficultyEasy, TimeSlots: []string{"چهارشنبه 8:00-10:00"}},
		},
		AdvancedCourses: []model.OfferedCourse{
			{CourseCode: "CS201", CourseName: "ساختمان داده‌ها",
				Credits: model.CourseCredits{Theoretical: 3}, CourseType: model.CourseTypeCore,
				Difficulty: model.DifficultyHard,
				TimeSlots:  []string{"شنبه 9:00-11:00"}, ExamDate: "1404/10/15"},
		},
	}
}

func TestSlotOverlap(t *testing.T) {
	assert.True(t, slotOverlap("شنبه 8:00-10:00", "شنبه 9:00-11:00"))
	assert.False(t, slotOverlap("شنبه 8:00-10:00", "شنبه 10:00-12:00"), "half-open intervals")
	assert.False(t, slotOverlap("شنبه 8:00-10:00", "یکشنبه 8:00-10:00"), "different days")
	assert.False(t, slotOverlap("bogus", "شنبه 8:00-10:00"), "unparseable fails open")
}

func TestScheduleConflictsIncludesExamDates(t *testing.T) {
	offerings := testOfferings()

	conflicts := scheduleConflicts("MATH101", []string{"CS201"}, offerings)
	require.Len(t, conflicts, 2, "lecture overlap plus shared exam date")

	conflicts = scheduleConflicts("CS101", []string{"LANG101"}, offerings)
	assert.Empty(t, conflicts)
}

func TestIsCourseOffered(t *testing.T) {
	offerings := testOfferings()

	assert.True(t, isCourseOffered("MATH101", offerings, "A"))
	assert.True(t, isCourseOffered("LANG101", offerings, "A"))
	assert.True(t, isCourseOffered("CS201", offerings, ""))
	assert.False(t, isCourseOffered("NOPE999", offerings, "A"))
}

func TestCheckGroupRestriction(t *testing.T) {
	offerings := testOfferings()

	freshman := &model.AcademicStatus{
		CurriculumVersion: model.CurriculumPost1403,
		CurrentSemester:   1,
		GroupAssignment:   "B",
	}
	// CS101 only runs for group A this semester.
	assert.NotEmpty(t, checkGroupRestriction("CS101", freshman, offerings))
	assert.Empty(t, checkGroupRestriction("MATH101", freshman, offerings))

	// Restriction lifts from semester 3.
	senior := &model.AcademicStatus{
		CurriculumVersion: model.CurriculumPost1403,
		CurrentSemester:   3,
		GroupAssignment:   "B",
	}
	assert.Empty(t, checkGroupRestriction("CS101", senior, offerings))

	// Pre-1403 students never had groups.
	old := &model.AcademicStatus{
		CurriculumVersion: model.CurriculumPre1403,
		CurrentSemester:   1,
	}
	assert.Empty(t, checkGroupRestriction("CS101", old, offerings))
}

func TestMissingPrerequisites(t *testing.T) {
	chart := testChart()

	missing := missingPrerequisites("MATH102", chart, map[string]bool{})
	assert.Equal(t, []string{"MATH101"}, missing)

	missing = missingPrerequisites("MATH102", chart, map[string]bool{"MATH101": true})
	assert.Empty(t, missing)

	// Courses outside the chart carry no prerequisites.
	assert.Empty(t, missingPrerequisites("CS401", chart, map[string]bool{}))
}

func TestCoursePriority(t *testing.T) {
	chart := testChart()
	status := &model.AcademicStatus{
		CurrentSemester: 2,
		FailedCourses: []model.CourseAttempt{
			{CourseCode: "MATH101", AttemptNumber: 2},
		},
	}

	// Failed (100 + 2*10) + prerequisite-for-others (50) + overdue (30).
	assert.Equal(t, 200, coursePriority("MATH101", status, chart))

	// CS102: prereq for nothing here, elective no, scheduled this semester.
	assert.Equal(t, 30, coursePriority("CS102", status, chart))

	// Track course: elective bonus only.
	assert.Equal(t, 10, coursePriority("CS401", status, chart))
}

func TestAnalyzeSelectionBalanceScoring(t *testing.T) {
	offerings := testOfferings()
	chart := testChart()

	// One hard of two courses: ratio 0.5, no deductions.
	balance := analyzeSelectionBalance([]string{"CS201", "LANG101"}, offerings, chart)
	assert.Equal(t, 100, balance.BalanceScore)

	// All hard: -30.
	balance = analyzeSelectionBalance([]string{"CS201"}, offerings, chart)
	assert.Equal(t, 70, balance.BalanceScore)

	// No hard at all: -10.
	balance = analyzeSelectionBalance([]string{"LANG101"}, offerings, chart)
	assert.Equal(t, 90, balance.BalanceScore)
}

func writeTestData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	chart := `{
		"entry_years": [1403],
		"total_credits_required": 140,
		"semesters": {
			"1": {"semester_name": "نیمسال اول", "courses": [
				{"course_code": "MATH101", "course_name": "ریاضی 1", "theoretical_credits": 3, "prerequisites": [], "is_mandatory": true},
				{"course_code": "CS101", "course_name": "مبانی", "theoretical_credits": 3, "practical_credits": 1, "prerequisites": [], "is_mandatory": true}
			]},
			"2": {"semester_name": "نیمسال دوم", "courses": [
				{"course_code": "MATH102", "course_name": "ریاضی 2", "theoretical_credits": 3, "prerequisites": ["MATH101"], "is_mandatory": true}
			]}
		},
		"specialization_tracks": {"tracks": []},
		"general_electives": []
	}`
	general := `{
		"course_categories": {
			"religious_courses": {"courses": [
				{"course_code": "GEN201", "course_name": "اندیشه اسلامی 1", "credits": 2, "prerequisites": []},
				{"course_code": "GEN202", "course_name": "تاریخ اسلام", "credits": 2, "prerequisites": []}
			]},
			"physical_education": {"courses": [
				{"course_code": "PE101", "course_name": "تربیت بدنی 1", "credits": 1, "prerequisites": []},
				{"course_code": "PE102", "course_name": "تربیت بدنی 2", "credits": 1, "prerequisites": ["PE101"]}
			]},
			"language_courses": {"courses": [
				{"course_code": "LANG201", "course_name": "زبان تخصصی", "credits": 2, "prerequisites": ["LANG101"]}
			]}
		}
	}`
	offerings := `{
		"semester": "mehr_1404",
		"group_based_system": false,
		"general_courses": [
			{"course_code": "GEN201", "course_name": "اندیشه اسلامی 1", "credits": 2},
			{"course_code": "GEN202", "course_name": "تاریخ اسلام", "credits": 2},
			{"course_code": "PE102", "course_name": "تربیت بدنی 2", "credits": 1},
			{"course_code": "LANG201", "course_name": "زبان تخصصی", "credits": 2},
			{"course_code": "MATH102", "course_name": "ریاضی 2", "credits": 3}
		],
		"advanced_courses": [
			{"course_code": "CS111", "course_name": "درس آزاد 1", "credits": 3},
			{"course_code": "CS112", "course_name": "درس آزاد 2", "credits": 3},
			{"course_code": "CS113", "course_name": "درس آزاد 3", "credits": 3},
			{"course_code": "CS114", "course_name": "درس آزاد 4", "credits": 3},
			{"course_code": "CS115", "course_name": "درس آزاد 5", "credits": 3},
			{"course_code": "CS116", "course_name": "درس آزاد 6", "credits": 3}
		]
	}`

	require.NoError(t, os.WriteFile(filepath.Join(dir, "curriculum_1403_onwards.json"), []byte(chart), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "general_courses.json"), []byte(general), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "offerings"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "offerings", "mehr_1404.json"), []byte(offerings), 0644))
	return dir
}

func testRulesService(t *testing.T) *RulesService {
	t.Helper()
	repo, err := repository.NewCurriculumRepository(&config.DataConfig{Type: "local", LocalPath: writeTestData(t)}, nil)
	require.NoError(t, err)
	return NewRulesService(repo)
}

func TestValidateCourseGeneralEducationRules(t *testing.T) {
	svc := testRulesService(t)
	ctx := context.Background()
	offerings, err := svc.CurriculumRepo.OfferingsFor(ctx, "mehr_1404")
	require.NoError(t, err)

	status := &model.AcademicStatus{EntryYear: 1403, CurrentSemester: 3, GPA: 15}

	// Two religious courses in the same selection.
	result := svc.ValidateCourse(ctx, "GEN201", status, offerings, []string{"GEN202"})
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0], "معارف")

	// PE cap: 2 credits already passed blocks further PE.
	peDone := &model.AcademicStatus{
		EntryYear: 1403, CurrentSemester: 3, GPA: 15,
		CompletedCourses: []model.CourseAttempt{
			{CourseCode: "PE101", Credits: 1, Grade: 18},
			{CourseCode: "PE102", Credits: 1, Grade: 17},
		},
	}
	result = svc.ValidateCourse(ctx, "PE102", peDone, offerings, nil)
	assert.False(t, result.IsValid)

	// Language chain prerequisite.
	result = svc.ValidateCourse(ctx, "LANG201", status, offerings, nil)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0], "LANG101")
}

func TestValidateCoursePrerequisiteGate(t *testing.T) {
	svc := testRulesService(t)
	ctx := context.Background()
	offerings, err := svc.CurriculumRepo.OfferingsFor(ctx, "mehr_1404")
	require.NoError(t, err)

	status := &model.AcademicStatus{EntryYear: 1403, CurrentSemester: 2, GPA: 15}
	result := svc.ValidateCourse(ctx, "MATH102", status, offerings, nil)
	assert.False(t, result.IsValid)

	status.CompletedCourses = []model.CourseAttempt{{CourseCode: "MATH101", Credits: 3, Grade: 14}}
	result = svc.ValidateCourse(ctx, "MATH102", status, offerings, nil)
	assert.True(t, result.IsValid)
}

func TestValidateCourseNotOffered(t *testing.T) {
	svc := testRulesService(t)
	ctx := context.Background()
	offerings, err := svc.CurriculumRepo.OfferingsFor(ctx, "mehr_1404")
	require.NoError(t, err)

	status := &model.AcademicStatus{EntryYear: 1403, CurrentSemester: 2, GPA: 15}
	result := svc.ValidateCourse(ctx, "CS999", status, offerings, nil)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0], "ارائه نمی‌شود")
}

func TestValidateSelectionCreditCeiling(t *testing.T) {
	svc := testRulesService(t)
	ctx := context.Background()
	offerings, err := svc.CurriculumRepo.OfferingsFor(ctx, "mehr_1404")
	require.NoError(t, err)

	// GPA below 12 caps at 16 but only 9 valid credits are picked here, so
	// the minimum warning fires instead.
	status := &model.AcademicStatus{
		EntryYear: 1403, CurrentSemester: 3, GPA: 11.0,
		CompletedCourses: []model.CourseAttempt{{CourseCode: "MATH101", Credits: 3, Grade: 13}},
	}
	validation := svc.ValidateSelection(ctx, []string{"MATH102", "GEN201", "LANG201"}, status, offerings)
	assert.Equal(t, 16, validation.CreditLimit.MaxCredits)
	assert.Equal(t, 14, validation.CreditLimit.MinCredits)
	assert.NotEmpty(t, validation.Warnings)
}

func TestValidateSelectionOverCreditCeiling(t *testing.T) {
	svc := testRulesService(t)
	ctx := context.Background()
	offerings, err := svc.CurriculumRepo.OfferingsFor(ctx, "mehr_1404")
	require.NoError(t, err)

	// Six valid 3-credit courses make 18, over the 16-credit cap at GPA 11.
	status := &model.AcademicStatus{EntryYear: 1403, CurrentSemester: 3, GPA: 11.0}
	codes := []string{"CS111", "CS112", "CS113", "CS114", "CS115", "CS116"}
	validation := svc.ValidateSelection(ctx, codes, status, offerings)

	assert.Equal(t, 18, validation.TotalCredits)
	assert.Equal(t, 16, validation.CreditLimit.MaxCredits)
	assert.False(t, validation.IsValid)
	require.NotEmpty(t, validation.Errors)
	assert.Contains(t, validation.Errors[0], "حد مجاز")
}
