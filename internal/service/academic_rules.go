package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"coursewise_backend/internal/model"
	"coursewise_backend/internal/repository"
	"coursewise_backend/pkg/logger"

	"go.uber.org/zap"
)

// RulesService validates course choices against curriculum, credit,
// group, general-education and scheduling rules. Rule violations are
// reported inside the result, never as Go errors.
type RulesService struct {
	CurriculumRepo *repository.CurriculumRepository
}

func NewRulesService(curriculumRepo *repository.CurriculumRepository) *RulesService {
	return &RulesService{CurriculumRepo: curriculumRepo}
}

// ValidateCourse runs the ordered checks for a single course. selected
// holds the other course codes in the same tentative selection and only
// affects conflict and per-term category checks.
func (s *RulesService) ValidateCourse(
	ctx context.Context,
	code string,
	status *model.AcademicStatus,
	offerings *model.SemesterOfferings,
	selected []string,
) model.CourseValidationResult {
	result := model.CourseValidationResult{CourseCode: code}

	if !isCourseOffered(code, offerings, status.GroupAssignment) {
		result.Errors = append(result.Errors, fmt.Sprintf("درس %s در این ترم ارائه نمی‌شود", code))
		return result
	}

	chart, err := s.CurriculumRepo.ChartFor(ctx, status.EntryYear)
	if err != nil {
		chart = &model.CurriculumChart{}
		logger.Log.Warn("Validating without curriculum chart", zap.String("course", code), zap.Error(err))
	}

	completed := status.CompletedCodes()
	for _, missing := range missingPrerequisites(code, chart, completed) {
		result.Errors = append(result.Errors, fmt.Sprintf("پیش‌نیاز %s گذرانده نشده است", missing))
	}

	if msg := checkGroupRestriction(code, status, offerings); msg != "" {
		result.Errors = append(result.Errors, msg)
	}

	genErrors, genWarnings := s.checkGeneralCourseRules(ctx, code, status, selected)
	result.Errors = append(result.Errors, genErrors...)
	result.Warnings = append(result.Warnings, genWarnings...)

	for _, conflict := range scheduleConflicts(code, selected, offerings) {
		result.Errors = append(result.Errors, conflict)
	}

	result.PriorityScore = coursePriority(code, status, chart)
	result.Warnings = append(result.Warnings, courseWarnings(code, status, chart)...)
	result.IsValid = len(result.Errors) == 0
	return result
}

// ValidateSelection validates a full tentative course set: each course
// against the rest, then the credit total against the GPA band, plus
// balance and priority analyses.
func (s *RulesService) ValidateSelection(
	ctx context.Context,
	codes []string,
	status *model.AcademicStatus,
	offerings *model.SemesterOfferings,
) model.SelectionValidation {
	validation := model.SelectionValidation{
		CourseResults: make(map[string]model.CourseValidationResult, len(codes)),
		CreditLimit:   CreditLimitFor(status.GPA),
	}

	for _, code := range codes {
		others := make([]string, 0, len(codes)-1)
		for _, other := range codes {
			if other != code {
				others = append(others, other)
			}
		}
		result := s.ValidateCourse(ctx, code, status, offerings, others)
		validation.CourseResults[code] = result
		if result.IsValid {
			if course := offerings.FindCourse(code); course != nil {
				validation.TotalCredits += course.Credits.Total()
			}
		}
	}

	if validation.TotalCredits > validation.CreditLimit.MaxCredits {
		validation.Errors = append(validation.Errors,
			fmt.Sprintf("تعداد واحدها (%d) از حد مجاز (%d) بیشتر است",
				validation.TotalCredits, validation.CreditLimit.MaxCredits))
	} else if validation.TotalCredits < validation.CreditLimit.MinCredits {
		validation.Warnings = append(validation.Warnings,
			fmt.Sprintf("تعداد واحدها (%d) کمتر از حداقل مجاز (%d) است",
				validation.TotalCredits, validation.CreditLimit.MinCredits))
	}

	chart, err := s.CurriculumRepo.ChartFor(ctx, status.EntryYear)
	if err != nil {
		chart = &model.CurriculumChart{}
	}

	validation.Balance = analyzeSelectionBalance(codes, offerings, chart)
	validation.Warnings = append(validation.Warnings, validation.Balance.Warnings...)

	validation.Priorities = analyzeSelectionPriorities(codes, status, chart)
	validation.Warnings = append(validation.Warnings, validation.Priorities.Suggestions...)

	validation.IsValid = len(validation.Errors) == 0
	return validation
}

func isCourseOffered(code string, offerings *model.SemesterOfferings, group string) bool {
	if offerings.GroupBasedSystem && group != "" {
		for _, g := range offerings.AvailableGroups {
			if g.GroupID != group {
				continue
			}
			for _, c := range g.Courses {
				if c.CourseCode == code {
					return true
				}
			}
		}
	}

	for _, list := range [][]model.OfferedCourse{offerings.GeneralCourses, offerings.AdvancedCourses} {
		for _, c := range list {
			if c.CourseCode != code {
				continue
			}
			if group == "" || len(c.Sections) == 0 {
				return true
			}
			for _, sec := range c.Sections {
				if sec.Group == "" || sec.Group == group {
					return true
				}
			}
			return true
		}
	}
	return false
}

func chartCourse(code string, chart *model.CurriculumChart) *model.CurriculumCourse {
	for _, sem := range chart.Semesters {
		for i := range sem.Courses {
			if sem.Courses[i].CourseCode == code {
				return &sem.Courses[i]
			}
		}
	}
	return nil
}

func missingPrerequisites(code string, chart *model.CurriculumChart, completed map[string]bool) []string {
	course := chartCourse(code, chart)
	if course == nil {
		// Specialization-track and general electives carry no chart
		// prerequisites of their own.
		return nil
	}
	var missing []string
	for _, prereq := range course.Prerequisites {
		if !completed[prereq] {
			missing = append(missing, prereq)
		}
	}
	return missing
}

// checkGroupRestriction applies only to post-1403 students in their first
// two semesters: such students may only take grouped courses offered to
// their own cohort.
func checkGroupRestriction(code string, status *model.AcademicStatus, offerings *model.SemesterOfferings) string {
	if status.CurriculumVersion != model.CurriculumPost1403 ||
		status.CurrentSemester > 2 ||
		status.GroupAssignment == "" {
		return ""
	}

	inAnyGroup := false
	for _, g := range offerings.AvailableGroups {
		for _, c := range g.Courses {
			if c.CourseCode == code {
				inAnyGroup = true
				if g.GroupID == status.GroupAssignment {
					return ""
				}
			}
		}
	}
	if inAnyGroup {
		return fmt.Sprintf("درس %s برای گروه %s ارائه نمی‌شود", code, status.GroupAssignment)
	}
	return ""
}

func (s *RulesService) checkGeneralCourseRules(
	ctx context.Context,
	code string,
	status *model.AcademicStatus,
	selected []string,
) (errors, warnings []string) {
	rules, err := s.CurriculumRepo.GeneralRules(ctx)
	if err != nil {
		logger.Log.Warn("General course rules unavailable", zap.Error(err))
		warnings = append(warnings, "خطا در بررسی قوانین دروس عمومی")
		return nil, warnings
	}

	inSet := func(codes []string, c string) bool {
		for _, x := range codes {
			if x == c {
				return true
			}
		}
		return false
	}

	religious := rules.CourseCategories.ReligiousCourses.Codes()
	if inSet(religious, code) {
		for _, other := range selected {
			if inSet(religious, other) {
				errors = append(errors, "در هر ترم فقط یک درس معارف اسلامی قابل انتخاب است")
				break
			}
		}
	}

	pe := rules.CourseCategories.PhysicalEducation.Codes()
	if inSet(pe, code) {
		peCredits := 0
		for _, c := range status.CompletedCourses {
			if inSet(pe, c.CourseCode) {
				peCredits += c.Credits
			}
		}
		if peCredits >= 2 {
			errors = append(errors, "حداکثر 2 واحد تربیت بدنی در کل دوره مجاز است")
		}
	}

	for _, lang := range rules.CourseCategories.LanguageCourses.Courses {
		if lang.CourseCode != code {
			continue
		}
		completed := status.CompletedCodes()
		for _, prereq := range lang.Prerequisites {
			if !completed[prereq] {
				errors = append(errors, fmt.Sprintf("پیش‌نیاز %s برای درس زبان گذرانده نشده است", prereq))
			}
		}
	}

	return errors, warnings
}

func scheduleConflicts(code string, others []string, offerings *model.SemesterOfferings) []string {
	course := offerings.FindCourse(code)
	if course == nil {
		return nil
	}

	var conflicts []string
	for _, otherCode := range others {
		other := offerings.FindCourse(otherCode)
		if other == nil {
			continue
		}
		if detail := slotsOverlap(course.TimeSlots, other.TimeSlots); detail != "" {
			conflicts = append(conflicts, fmt.Sprintf("تداخل زمانی با درس %s: %s", otherCode, detail))
		}
		if detail := slotsOverlap(course.LabSlots, other.LabSlots); detail != "" {
			conflicts = append(conflicts, fmt.Sprintf("تداخل زمانی با درس %s: %s", otherCode, detail))
		}
		if course.ExamDate != "" && course.ExamDate == other.ExamDate {
			conflicts = append(conflicts,
				fmt.Sprintf("تداخل زمانی با درس %s: امتحان در تاریخ %s", otherCode, course.ExamDate))
		}
	}
	return conflicts
}

func slotsOverlap(slots1, slots2 []string) string {
	for _, s1 := range slots1 {
		for _, s2 := range slots2 {
			if slotOverlap(s1, s2) {
				return fmt.Sprintf("تداخل در %s و %s", s1, s2)
			}
		}
	}
	return ""
}

// slotOverlap compares two "روز HH:MM-HH:MM" slots as half-open
// intervals. Unparseable slots fail open: no conflict reported.
func slotOverlap(slot1, slot2 string) bool {
	day1, start1, end1, ok1 := parseSlot(slot1)
	day2, start2, end2, ok2 := parseSlot(slot2)
	if !ok1 || !ok2 {
		if !ok1 {
			logger.Log.Warn("Unparseable time slot", zap.String("slot", slot1))
		}
		if !ok2 {
			logger.Log.Warn("Unparseable time slot", zap.String("slot", slot2))
		}
		return false
	}
	if day1 != day2 {
		return false
	}
	return start1 < end2 && start2 < end1
}

func parseSlot(slot string) (day string, start, end int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(slot), " ", 2)
	if len(parts) != 2 {
		return "", 0, 0, false
	}
	day = parts[0]
	times := strings.SplitN(parts[1], "-", 2)
	if len(times) != 2 {
		return "", 0, 0, false
	}
	start, ok = parseClock(times[0])
	if !ok {
		return "", 0, 0, false
	}
	end, ok = parseClock(times[1])
	if !ok {
		return "", 0, 0, false
	}
	return day, start, end, true
}

func parseClock(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return h*60 + m, true
}

// coursePriority scores one course for the rule-based pass. Failed
// courses dominate, then courses that unlock others, then schedule
// position relative to the student's term.
func coursePriority(code string, status *model.AcademicStatus, chart *model.CurriculumChart) int {
	priority := 0

	for _, failed := range status.FailedCourses {
		if failed.CourseCode == code {
			priority += 100
			priority += failed.AttemptNumber * 10
			break
		}
	}

	if isPrerequisiteForOthers(code, chart) {
		priority += 50
	}

	if isElectiveCourse(code, chart) {
		priority += 10
	}

	if sem := recommendedSemester(code, chart); sem > 0 {
		if sem <= status.CurrentSemester {
			priority += 30
		} else if sem == status.CurrentSemester+1 {
			priority += 20
		}
	}

	return priority
}

func isPrerequisiteForOthers(code string, chart *model.CurriculumChart) bool {
	for _, sem := range chart.Semesters {
		for _, course := range sem.Courses {
			for _, prereq := range course.Prerequisites {
				if prereq == code {
					return true
				}
			}
		}
	}
	return false
}

func isElectiveCourse(code string, chart *model.CurriculumChart) bool {
	for _, track := range chart.SpecializationTracks.Tracks {
		for _, c := range track.Courses {
			if c == code {
				return true
			}
		}
	}
	for _, c := range chart.GeneralElectives {
		if c.CourseCode == code {
			return true
		}
	}
	return false
}

func recommendedSemester(code string, chart *model.CurriculumChart) int {
	for semKey, sem := range chart.Semesters {
		for _, course := range sem.Courses {
			if course.CourseCode == code {
				if n, err := strconv.Atoi(semKey); err == nil {
					return n
				}
			}
		}
	}
	return 0
}

func courseWarnings(code string, status *model.AcademicStatus, chart *model.CurriculumChart) []string {
	var warnings []string

	if isSpecializationCourse(code, chart) && status.GPA < 14.0 {
		warnings = append(warnings, fmt.Sprintf("درس %s سطح دشواری بالایی دارد", code))
	}

	if trackCreditsFor(code, status, chart) > 18 {
		warnings = append(warnings, "تعداد واحدهای انتخابی از این گرایش بالا است")
	}

	return warnings
}

func isSpecializationCourse(code string, chart *model.CurriculumChart) bool {
	for _, track := range chart.SpecializationTracks.Tracks {
		for _, c := range track.Courses {
			if c == code {
				return true
			}
		}
	}
	return false
}

func trackCreditsFor(code string, status *model.AcademicStatus, chart *model.CurriculumChart) int {
	for _, track := range chart.SpecializationTracks.Tracks {
		found := false
		for _, c := range track.Courses {
			if c == code {
				found = true
				break
			}
		}
		if !found {
			continue
		}
		credits := 0
		for _, completed := range status.CompletedCourses {
			for _, c := range track.Courses {
				if completed.CourseCode == c {
					credits += completed.Credits
				}
			}
		}
		return credits
	}
	return 0
}

// analyzeSelectionBalance tallies difficulty and type distributions and
// scores the mix: too many hard or specialized courses costs points.
func analyzeSelectionBalance(codes []string, offerings *model.SemesterOfferings, chart *model.CurriculumChart) model.BalanceAnalysis {
	analysis := model.BalanceAnalysis{
		DifficultyCounts: map[string]int{model.DifficultyEasy: 0, model.DifficultyMedium: 0, model.DifficultyHard: 0},
		TypeCounts: map[string]int{
			model.CourseTypeFoundation:  0,
			model.CourseTypeCore:        0,
			model.CourseTypeSpecialized: 0,
			model.CourseTypeGeneral:     0,
		},
	}

	for _, code := range codes {
		difficulty := model.DifficultyMedium
		courseType := courseTypeFor(code, chart)
		if offered := offerings.FindCourse(code); offered != nil {
			if offered.Difficulty != "" {
				difficulty = offered.Difficulty
			}
			if offered.CourseType != "" {
				courseType = offered.CourseType
			}
		}
		if _, ok := analysis.DifficultyCounts[difficulty]; ok {
			analysis.DifficultyCounts[difficulty]++
		}
		if _, ok := analysis.TypeCounts[courseType]; ok {
			analysis.TypeCounts[courseType]++
		}
	}

	if analysis.DifficultyCounts[model.DifficultyHard] > 2 {
		analysis.Warnings = append(analysis.Warnings,
			"تعداد دروس سخت زیاد است - توصیه می‌شود تعادل ایجاد کنید")
	}
	if analysis.TypeCounts[model.CourseTypeSpecialized] > 3 {
		analysis.Warnings = append(analysis.Warnings,
			"تعداد دروس تخصصی زیاد است - دروس عمومی را نیز در نظر بگیرید")
	}

	score := 100
	total := 0
	for _, n := range analysis.DifficultyCounts {
		total += n
	}
	if total > 0 {
		hardRatio := float64(analysis.DifficultyCounts[model.DifficultyHard]) / float64(total)
		if hardRatio > 0.6 {
			score -= 30
		} else if hardRatio < 0.1 {
			score -= 10
		}
		specializedRatio := float64(analysis.TypeCounts[model.CourseTypeSpecialized]) / float64(total)
		if specializedRatio > 0.7 {
			score -= 20
		}
	}
	if score < 0 {
		score = 0
	}
	analysis.BalanceScore = score
	return analysis
}

func courseTypeFor(code string, chart *model.CurriculumChart) string {
	if course := chartCourse(code, chart); course != nil && course.CourseType != "" {
		return course.CourseType
	}
	if isSpecializationCourse(code, chart) {
		return model.CourseTypeSpecialized
	}
	return model.CourseTypeGeneral
}

func analyzeSelectionPriorities(codes []string, status *model.AcademicStatus, chart *model.CurriculumChart) model.PriorityAnalysis {
	analysis := model.PriorityAnalysis{}

	selected := make(map[string]bool, len(codes))
	for _, c := range codes {
		selected[c] = true
	}

	var missed []string
	for _, failed := range status.FailedCourses {
		if selected[failed.CourseCode] {
			analysis.SelectedFailedCourses = append(analysis.SelectedFailedCourses, failed.CourseCode)
		} else {
			missed = append(missed, failed.CourseCode)
		}
	}
	analysis.MissedFailedCourses = missed
	if len(missed) > 0 {
		analysis.Suggestions = append(analysis.Suggestions,
			fmt.Sprintf("دروس مردودی نادیده گرفته شده: %s", strings.Join(missed, "، ")))
	}

	completed := status.CompletedCodes()
	seen := make(map[string]bool)
	for _, code := range codes {
		for _, prereq := range missingPrerequisites(code, chart, completed) {
			if !seen[prereq] {
				seen[prereq] = true
				analysis.MissingPrerequisites = append(analysis.MissingPrerequisites, prereq)
			}
		}
	}
	if len(analysis.MissingPrerequisites) > 0 {
		analysis.Suggestions = append(analysis.Suggestions,
			fmt.Sprintf("پیش‌نیازهای مفقود: %s", strings.Join(analysis.MissingPrerequisites, "، ")))
	}

	return analysis
}
