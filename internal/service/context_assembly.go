package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"coursewise_backend/internal/model"
	"coursewise_backend/internal/repository"
)

const contextVersion = "1.0"

// ContextService assembles the complete recommendation context from all
// data sources and renders it into a Persian prompt for the LLM.
type ContextService struct {
	Analyzer       *AnalyzerService
	Rules          *RulesService
	CurriculumRepo *repository.CurriculumRepository
}

func NewContextService(analyzer *AnalyzerService, rules *RulesService, curriculumRepo *repository.CurriculumRepository) *ContextService {
	return &ContextService{
		Analyzer:       analyzer,
		Rules:          rules,
		CurriculumRepo: curriculumRepo,
	}
}

func (s *ContextService) AssembleContext(
	ctx context.Context,
	studentID uint,
	targetSemester string,
	prefs model.UserPreferences,
) (*model.RecommendationContext, error) {
	status, err := s.Analyzer.AnalyzeStatus(ctx, studentID)
	if err != nil {
		return nil, err
	}

	chart, err := s.CurriculumRepo.ChartFor(ctx, status.EntryYear)
	if err != nil {
		return nil, err
	}

	offerings, err := s.CurriculumRepo.OfferingsFor(ctx, targetSemester)
	if err != nil {
		return nil, err
	}

	rc := &model.RecommendationContext{
		Metadata: model.ContextMetadata{
			StudentID:      studentID,
			TargetSemester: targetSemester,
			GeneratedAt:    time.Now(),
			ContextVersion: contextVersion,
		},
		Profile:     buildProfile(status),
		History:     buildHistory(status, chart),
		Curriculum:  buildCurriculumContext(status, chart),
		Offerings:   buildOfferingsContext(offerings, status),
		Rules:       buildRulesContext(status),
		Constraints: buildConstraints(status),
		Preferences: prefs,
		Available:   s.extractAvailableCourses(ctx, status, offerings),
		Scheduling: model.SchedulingContext{
			Weekdays: model.Weekdays,
			TimeBands: map[string]string{
				"morning":   "8:00-13:00",
				"afternoon": "14:00-19:00",
				"evening":   "19:30-22:00",
			},
		},
	}
	return rc, nil
}

// ChooseStrategy picks the single advisory strategy for a student.
// Checks run in order; the first match wins.
func (s *ContextService) ChooseStrategy(status *model.AcademicStatus) model.RecommendationStrategy {
	return chooseStrategy(status)
}

func buildProfile(status *model.AcademicStatus) model.StudentProfile {
	return model.StudentProfile{
		Status:             *status,
		GPACategory:        categorizeGPA(status.GPA),
		CreditAllowance:    CreditLimitFor(status.GPA),
		AcademicLevel:      status.Graduation.AcademicLevel,
		ProgressPercent:    status.Graduation.ProgressPercentage,
		RemainingCredits:   status.Graduation.RemainingCredits,
		EstimatedSemesters: status.Graduation.EstimatedSemestersRemaining,
	}
}

func categorizeGPA(gpa float64) string {
	switch {
	case gpa >= 17.0:
		return "عالی"
	case gpa >= 15.0:
		return "خوب"
	case gpa >= 12.0:
		return "قابل قبول"
	default:
		return "ضعیف"
	}
}

func buildHistory(status *model.AcademicStatus, chart *model.CurriculumChart) model.AcademicHistory {
	history := model.AcademicHistory{
		CompletedCourses: status.CompletedCourses,
		CompletedByType:  make(map[string][]model.CourseAttempt),
		FailedCourses:    status.FailedCourses,
	}

	for _, c := range status.CompletedCourses {
		t := c.CourseType
		if t == "" {
			t = model.CourseTypeGeneral
		}
		history.CompletedByType[t] = append(history.CompletedByType[t], c)

		switch {
		case c.Grade >= 17.0:
			history.GradeBands.High = append(history.GradeBands.High, c)
		case c.Grade >= 14.0:
			history.GradeBands.Average = append(history.GradeBands.Average, c)
		default:
			history.GradeBands.Low = append(history.GradeBands.Low, c)
		}
	}

	for _, c := range status.FailedCourses {
		if c.AttemptNumber > 1 {
			history.MultipleAttempts = append(history.MultipleAttempts, c)
		}
	}

	for code, met := range status.PrerequisiteStatus {
		if met {
			history.MetPrerequisites = append(history.MetPrerequisites, code)
		} else {
			history.UnmetPrerequisites = append(history.UnmetPrerequisites, code)
		}
	}
	sort.Strings(history.MetPrerequisites)
	sort.Strings(history.UnmetPrerequisites)

	history.BlockedFutureCourses = findBlockingCourses(status, chart)
	return history
}

// findBlockingCourses lists future mandatory courses the student cannot
// yet take because of unmet prerequisites.
func findBlockingCourses(status *model.AcademicStatus, chart *model.CurriculumChart) []string {
	completed := status.CompletedCodes()
	var blocked []string

	for semKey, sem := range chart.Semesters {
		semNum, err := strconv.Atoi(semKey)
		if err != nil || semNum <= status.CurrentSemester {
			continue
		}
		for _, course := range sem.Courses {
			if !course.IsMandatory || len(course.Prerequisites) == 0 {
				continue
			}
			for _, prereq := range course.Prerequisites {
				if !completed[prereq] {
					blocked = append(blocked, course.CourseCode)
					break
				}
			}
		}
	}
	sort.Strings(blocked)
	return blocked
}

func buildCurriculumContext(status *model.AcademicStatus, chart *model.CurriculumChart) model.CurriculumContext {
	cc := model.CurriculumContext{
		TotalCreditsRequired: chart.TotalCreditsRequired,
		Description:          chart.Description,
		CurrentSemester:      semesterCourses(chart, status.CurrentSemester),
		NextSemester:         semesterCourses(chart, status.CurrentSemester+1),
		SpecializationTracks: chart.SpecializationTracks,
		GeneralElectives:     chart.GeneralElectives,
	}

	if status.EntryYear >= model.Post1403EntryYear && status.GroupAssignment != "" {
		cc.GroupRestrictions = model.GroupRestrictions{
			Applicable:         true,
			StudentGroup:       status.GroupAssignment,
			RestrictionsActive: status.CurrentSemester <= 2,
			FreedomSemester:    3,
		}
	}
	return cc
}

func semesterCourses(chart *model.CurriculumChart, semester int) model.CurriculumSemester {
	if sem, ok := chart.Semesters[strconv.Itoa(semester)]; ok {
		return sem
	}
	return model.CurriculumSemester{SemesterName: fmt.Sprintf("نیمسال %d", semester)}
}

func buildOfferingsContext(offerings *model.SemesterOfferings, status *model.AcademicStatus) model.OfferingsContext {
	oc := model.OfferingsContext{
		Semester:         offerings.Semester,
		PersianName:      offerings.PersianName,
		GroupBasedSystem: offerings.GroupBasedSystem,
		AvailableGroups:  filterGroups(offerings, status),
		GeneralCourses:   offerings.GeneralCourses,
		AdvancedCourses:  offerings.AdvancedCourses,
		SpecialNotes:     offerings.SpecialNotes,
		Capacity:         extractCapacityInfo(offerings),
	}
	return oc
}

// filterGroups narrows grouped offerings to the student's own cohort
// while the first-year restriction is active.
func filterGroups(offerings *model.SemesterOfferings, status *model.AcademicStatus) []model.OfferingGroup {
	if status.GroupAssignment == "" || status.CurrentSemester > 2 {
		return offerings.AvailableGroups
	}
	var groups []model.OfferingGroup
	for _, g := range offerings.AvailableGroups {
		if g.GroupID == status.GroupAssignment {
			groups = append(groups, g)
		}
	}
	return groups
}

func extractCapacityInfo(offerings *model.SemesterOfferings) model.CapacityInfo {
	info := model.CapacityInfo{AvailableSpots: make(map[string]int)}

	for _, g := range offerings.AvailableGroups {
		for _, c := range g.Courses {
			info.TotalCourses++
			if c.Capacity > 0 && c.Enrolled >= c.Capacity {
				info.FullCourses++
			} else if c.Capacity > 0 && float64(c.Enrolled) >= float64(c.Capacity)*0.8 {
				info.HighDemandCourses = append(info.HighDemandCourses, c.CourseCode)
			}
			spots := c.Capacity - c.Enrolled
			if spots < 0 {
				spots = 0
			}
			info.AvailableSpots[c.CourseCode] = spots
		}
	}
	return info
}

func buildRulesContext(status *model.AcademicStatus) model.RulesContext {
	return model.RulesContext{
		CreditLimit:             CreditLimitFor(status.GPA),
		IsProbation:             status.Standing == model.StandingProbation,
		GroupRestrictionsActive: status.GroupRestrictionsActive(),
		SpecializationSelectionRequired: status.CurrentSemester >= 5 &&
			status.Specialization.SelectedGroup == "",
	}
}

func buildConstraints(status *model.AcademicStatus) model.Constraints {
	limit := CreditLimitFor(status.GPA)

	maxDifficult := 3
	if status.GPA < 15.0 {
		maxDifficult = 2
	}

	unmet := false
	for _, met := range status.PrerequisiteStatus {
		if !met {
			unmet = true
			break
		}
	}

	return model.Constraints{
		CreditLimit:             limit,
		RecommendedRange:        [2]int{limit.MinCredits + 2, limit.MaxCredits - 2},
		MustTakeFailed:          len(status.FailedCourses) > 0,
		PrerequisiteGaps:        unmet,
		GroupRestrictionsActive: status.GroupRestrictionsActive(),
		Strategy:                chooseStrategy(status),
		MaxDifficultCourses:     maxDifficult,
		MinEasyCourses:          1,
		SpecializationFocus:     status.CurrentSemester >= 5,
	}
}

func chooseStrategy(status *model.AcademicStatus) model.RecommendationStrategy {
	switch {
	case len(status.FailedCourses) > 2:
		return model.StrategyRecoveryFocused
	case status.GPA < 12.0:
		return model.StrategyGPAImprovement
	case status.CurrentSemester >= 7:
		return model.StrategyGraduationFocused
	case status.CurrentSemester >= 5:
		return model.StrategySpecializationFocused
	default:
		return model.StrategyFoundationBuilding
	}
}

// extractAvailableCourses lists every course the student could sit in,
// each annotated with its validation verdict.
func (s *ContextService) extractAvailableCourses(
	ctx context.Context,
	status *model.AcademicStatus,
	offerings *model.SemesterOfferings,
) []model.AvailableCourse {
	var available []model.AvailableCourse

	if offerings.GroupBasedSystem {
		for _, g := range offerings.AvailableGroups {
			if status.GroupAssignment != "" && g.GroupID != status.GroupAssignment {
				continue
			}
			for _, course := range g.Courses {
				available = append(available, model.AvailableCourse{
					OfferedCourse: course,
					Validation:    s.Rules.ValidateCourse(ctx, course.CourseCode, status, offerings, nil),
					Source:        "group_" + g.GroupID,
				})
			}
		}
	}

	appendSections := func(courses []model.OfferedCourse, source string) {
		for _, course := range courses {
			if status.GroupAssignment != "" && len(course.Sections) > 0 {
				matched := false
				for _, sec := range course.Sections {
					if sec.Group == "" || sec.Group == status.GroupAssignment {
						matched = true
						break
					}
				}
				if !matched {
					continue
				}
			}
			available = append(available, model.AvailableCourse{
				OfferedCourse: course,
				Validation:    s.Rules.ValidateCourse(ctx, course.CourseCode, status, offerings, nil),
				Source:        source,
			})
		}
	}
	appendSections(offerings.GeneralCourses, "general")
	appendSections(offerings.AdvancedCourses, "advanced")

	return available
}

// FormatForLLM renders the context into the Persian prompt. The output is
// deterministic for a given context so prompts can be asserted in tests.
func (s *ContextService) FormatForLLM(rc *model.RecommendationContext) string {
	var b strings.Builder

	status := rc.Profile.Status
	group := status.GroupAssignment
	if group == "" {
		group = "ندارد"
	}

	fmt.Fprintf(&b, "# اطلاعات دانشجو\n\n")
	fmt.Fprintf(&b, "**معدل کل:** %.2f\n", status.GPA)
	fmt.Fprintf(&b, "**واحدهای گذرانده:** %d\n", status.TotalCreditsPassed)
	fmt.Fprintf(&b, "**ترم فعلی:** %d\n", status.CurrentSemester)
	fmt.Fprintf(&b, "**سال ورود:** %d\n", status.EntryYear)
	fmt.Fprintf(&b, "**وضعیت تحصیلی:** %s\n", status.Standing)
	fmt.Fprintf(&b, "**نسخه چارت:** %s\n", status.CurriculumVersion)
	fmt.Fprintf(&b, "**گروه:** %s\n\n", group)
	fmt.Fprintf(&b, "**حد مجاز واحد:** %d-%d واحد\n",
		rc.Profile.CreditAllowance.MinCredits, rc.Profile.CreditAllowance.MaxCredits)
	fmt.Fprintf(&b, "**سطح تحصیلی:** %s\n", rc.Profile.AcademicLevel)
	fmt.Fprintf(&b, "**پیشرفت تحصیلی:** %.1f%%\n\n", rc.Profile.ProgressPercent)

	if len(rc.History.FailedCourses) > 0 {
		fmt.Fprintf(&b, "# دروس مردودی (اولویت بالا)\n\n")
		for _, c := range rc.History.FailedCourses {
			fmt.Fprintf(&b, "- %s (%s): نمره %.2f\n", c.CourseName, c.CourseCode, c.Grade)
		}
		b.WriteString("\n")
	}

	probation := "خیر"
	if rc.Rules.IsProbation {
		probation = "بله"
	}
	restrictions := "غیرفعال"
	if rc.Rules.GroupRestrictionsActive {
		restrictions = "فعال"
	}
	fmt.Fprintf(&b, "# قوانین تحصیلی مربوطه\n\n")
	fmt.Fprintf(&b, "## محدودیت‌های خاص دانشجو:\n")
	fmt.Fprintf(&b, "- حداکثر واحد: %d\n", rc.Rules.CreditLimit.MaxCredits)
	fmt.Fprintf(&b, "- حداقل واحد: %d\n", rc.Rules.CreditLimit.MinCredits)
	fmt.Fprintf(&b, "- وضعیت مشروطی: %s\n", probation)
	fmt.Fprintf(&b, "- محدودیت گروه: %s\n\n", restrictions)

	valid := make([]model.AvailableCourse, 0, len(rc.Available))
	for _, c := range rc.Available {
		if c.Validation.IsValid {
			valid = append(valid, c)
		}
	}
	if len(valid) > 0 {
		fmt.Fprintf(&b, "# دروس قابل انتخاب\n\n")
		for _, c := range valid {
			fmt.Fprintf(&b, "- **%s** (%s): %d واحد، اولویت: %d، زمان: %s\n",
				c.CourseName, c.CourseCode, c.Credits.Total(),
				c.Validation.PriorityScore, strings.Join(c.TimeSlots, "، "))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "# راهنمای پیشنهاد\n\n")
	fmt.Fprintf(&b, "**استراتژی توصیه شده:** %s\n", rc.Constraints.Strategy)
	fmt.Fprintf(&b, "**محدوده واحد پیشنهادی:** %d-%d واحد\n",
		rc.Constraints.RecommendedRange[0], rc.Constraints.RecommendedRange[1])
	fmt.Fprintf(&b, "**حداکثر دروس سخت:** %d\n", rc.Constraints.MaxDifficultCourses)
	fmt.Fprintf(&b, "**حداقل دروس آسان:** %d\n\n", rc.Constraints.MinEasyCourses)
	b.WriteString(`## اولویت‌های انتخاب:
1. دروس مردودی (اولویت بالا)
2. دروس پیش‌نیاز برای ترم‌های آینده
3. دروس اجباری ترم جاری
4. دروس گرایش (در صورت انتخاب گرایش)
5. دروس اختیاری تکمیلی

## خروجی مورد انتظار:
لطفاً پیشنهاد دروس را در فرمت زیر ارائه دهید:

📚 **پیشنهاد دروس برای ترم ` + rc.Metadata.TargetSemester + `:**

🗓️ **برنامه هفتگی:**

**شنبه:**
- [نام درس] ([کد درس]) - [ساعت] - [تعداد واحد] واحد

[ادامه برای باقی روزها]

📊 **خلاصه:**
- مجموع واحدها: [تعداد] واحد
- دروس مردودی: [تعداد]
- دروس جدید: [تعداد]
- توجیه انتخاب: [توضیح کوتاه]
`)

	return b.String()
}
