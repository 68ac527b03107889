package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"coursewise_backend/internal/model"
	"coursewise_backend/internal/util"
	"coursewise_backend/pkg/logger"
	"coursewise_backend/pkg/monitoring"
	"coursewise_backend/pkg/tracing"

	"go.uber.org/zap"
)

const recommendationSystemPrompt = `شما یک مشاور تحصیلی خبره برای دانشجویان مهندسی کامپیوتر ایرانی هستید.
وظیفه شما ارائه پیشنهادات هوشمندانه و دقیق برای انتخاب واحد است.

در پاسخ خود:
1. قوانین تحصیلی را دقیقاً رعایت کنید
2. اولویت را به دروس مردودی و پیش‌نیازها دهید
3. برنامه زمانی متعادل و بدون تداخل ارائه دهید
4. توضیح روشن و کاربردی برای هر پیشنهاد بدهید
5. پاسخ را به فارسی و در فرمت خواسته شده ارائه دهید`

// RecommendationService merges the rule-based selection with an
// optional LLM second opinion and produces the final advisory output.
// The LLM is never authoritative: credits, prerequisites and schedule
// are re-verified deterministically after the merge.
type RecommendationService struct {
	Context *ContextService
	Rules   *RulesService
	LLM     LLMClient
	Parser  *Parser
}

func NewRecommendationService(contextSvc *ContextService, rules *RulesService, llm LLMClient, parser *Parser) *RecommendationService {
	return &RecommendationService{
		Context: contextSvc,
		Rules:   rules,
		LLM:     llm,
		Parser:  parser,
	}
}

func (s *RecommendationService) Generate(
	ctx context.Context,
	studentID uint,
	targetSemester string,
	prefs model.UserPreferences,
	useLLM bool,
) (*model.RecommendationResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "recommendation.generate")
	defer span.End()

	rc, err := s.Context.AssembleContext(ctx, studentID, targetSemester, prefs)
	if err != nil {
		return nil, err
	}
	return s.generateFromContext(ctx, rc, studentID, targetSemester, useLLM), nil
}

// generateFromContext runs the full pipeline on an already assembled
// context. An LLM failure degrades to the rule-based pass alone.
func (s *RecommendationService) generateFromContext(
	ctx context.Context,
	rc *model.RecommendationContext,
	studentID uint,
	targetSemester string,
	useLLM bool,
) *model.RecommendationResult {
	ruleBased := ruleBasedRecommendations(rc)

	var llmBased *model.LLMRecommendation
	var llmCourses []model.ParsedCourse
	var llmAnalysis *model.LLMQualityAnalysis
	llmUsed := false
	if useLLM {
		rec, err := s.llmRecommendations(ctx, rc)
		if err != nil {
			logger.Log.Warn("LLM recommendation failed, using rule-based only",
				zap.Uint("studentId", studentID), zap.Error(err))
		} else {
			llmBased = rec
			llmCourses = rec.Parsed.Courses
			llmUsed = true
		}
	}

	final := mergeRecommendations(ruleBased, llmCourses, rc)
	if llmUsed {
		llmAnalysis = analyzeLLMQuality(llmCourses, rc)
	}

	schedule := buildWeeklySchedule(final)
	validation := s.validateFinal(ctx, final, rc)
	balance := scheduleBalance(schedule, final)

	totalCredits := 0
	for _, c := range final {
		totalCredits += c.Credits.Total()
	}

	result := &model.RecommendationResult{
		StudentID:      studentID,
		TargetSemester: targetSemester,
		Strategy:       rc.Constraints.Strategy,
		Courses:        final,
		RuleBased:      append([]model.RecommendedCourse(nil), ruleBased...),
		LLMBased:       llmBased,
		TotalCredits:   totalCredits,
		CreditLimit:    rc.Constraints.CreditLimit,
		Schedule:       schedule,
		Validation:     validation,
		Balance:        balance,
		AcademicContext: model.AcademicContext{
			GPA:                     rc.Profile.Status.GPA,
			CurrentSemester:         rc.Profile.Status.CurrentSemester,
			FailedCoursesCount:      len(rc.History.FailedCourses),
			GroupRestrictionsActive: rc.Rules.GroupRestrictionsActive,
		},
		Explanation: buildExplanation(rc, final, schedule, balance),
		LLMUsed:     llmUsed,
		LLMAnalysis: llmAnalysis,
		GeneratedAt: time.Now(),
	}

	monitoring.RecommendationCounter.WithLabelValues(
		string(rc.Constraints.Strategy), strconv.FormatBool(llmUsed)).Inc()
	logger.Log.Info("Generated recommendations",
		zap.Uint("studentId", studentID),
		zap.String("semester", targetSemester),
		zap.Int("courses", len(final)),
		zap.Bool("llmUsed", llmUsed))
	return result
}

// ruleBasedRecommendations fills the selection greedily in priority
// tiers, never exceeding the credit ceiling. The elective tier only runs
// while the total is below the minimum.
func ruleBasedRecommendations(rc *model.RecommendationContext) []model.RecommendedCourse {
	maxCredits := rc.Constraints.CreditLimit.MaxCredits
	minCredits := rc.Constraints.CreditLimit.MinCredits

	var recs []model.RecommendedCourse
	taken := make(map[string]bool)
	credits := 0

	add := func(course *model.AvailableCourse, priority int, reason string) bool {
		c := course.Credits.Total()
		if taken[course.CourseCode] || credits+c > maxCredits {
			return false
		}
		taken[course.CourseCode] = true
		credits += c
		recs = append(recs, recommendedFromAvailable(course, priority, reason))
		return true
	}

	// Tier 1: failed courses, weighted by attempt count.
	for _, failed := range rc.History.FailedCourses {
		if course := findValidAvailable(failed.CourseCode, rc.Available); course != nil {
			add(course, 100+failed.AttemptNumber*10,
				fmt.Sprintf("درس مردودی - تلاش %d", failed.AttemptNumber))
		}
	}

	// Tier 2: unmet prerequisites that unlock future courses.
	for _, code := range rc.History.UnmetPrerequisites {
		if course := findValidAvailable(code, rc.Available); course != nil {
			add(course, 80, "پیش‌نیاز برای دروس آینده")
		}
	}

	// Tier 3: mandatory courses of the current chart semester.
	completed := make(map[string]bool)
	for _, c := range rc.History.CompletedCourses {
		completed[c.CourseCode] = true
	}
	for _, chartCourse := range rc.Curriculum.CurrentSemester.Courses {
		if completed[chartCourse.CourseCode] {
			continue
		}
		if course := findValidAvailable(chartCourse.CourseCode, rc.Available); course != nil {
			add(course, 70, "درس اجباری ترم جاری")
		}
	}

	// Tier 4: specialization track courses once tracks are open.
	if rc.Profile.Status.CurrentSemester >= 5 {
		for _, code := range specializationCandidates(rc, completed) {
			if course := findValidAvailable(code, rc.Available); course != nil {
				add(course, 60, "تقویت گرایش تخصصی")
			}
		}
	}

	// Tier 5: electives, only until the minimum is reached.
	if credits < minCredits {
		for _, code := range electiveCandidates(rc, completed) {
			if course := findValidAvailable(code, rc.Available); course != nil {
				add(course, 40, "تکمیل حداقل واحد مجاز")
			}
			if credits >= minCredits {
				break
			}
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority > recs[j].Priority
	})
	return recs
}

func findValidAvailable(code string, available []model.AvailableCourse) *model.AvailableCourse {
	for i := range available {
		if available[i].CourseCode == code && available[i].Validation.IsValid {
			return &available[i]
		}
	}
	return nil
}

func recommendedFromAvailable(course *model.AvailableCourse, priority int, reason string) model.RecommendedCourse {
	difficulty := course.Difficulty
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}
	courseType := course.CourseType
	if courseType == "" {
		courseType = model.CourseTypeGeneral
	}
	return model.RecommendedCourse{
		CourseCode: course.CourseCode,
		CourseName: course.CourseName,
		Credits:    course.Credits,
		CourseType: courseType,
		Difficulty: difficulty,
		TimeSlots:  course.TimeSlots,
		ExamDate:   course.ExamDate,
		Instructor: course.Instructor,
		Priority:   priority,
		Reason:     reason,
		Source:     "rules",
	}
}

// specializationCandidates lists untaken courses of the student's
// leading track. When no track is selected yet, the one with the most
// completed credits leads.
func specializationCandidates(rc *model.RecommendationContext, completed map[string]bool) []string {
	selected := rc.Profile.Status.Specialization.SelectedGroup
	if selected == "" {
		best := 0
		for name, progress := range rc.Profile.Status.Specialization.ProgressByGroup {
			if progress.CreditsCompleted > best {
				best = progress.CreditsCompleted
				selected = name
			}
		}
	}
	if selected == "" {
		return nil
	}

	for _, track := range rc.Curriculum.SpecializationTracks.Tracks {
		if track.TrackName != selected {
			continue
		}
		var pending []string
		for _, code := range track.Courses {
			if !completed[code] {
				pending = append(pending, code)
			}
		}
		return pending
	}
	return nil
}

func electiveCandidates(rc *model.RecommendationContext, completed map[string]bool) []string {
	var codes []string
	for _, c := range rc.Curriculum.GeneralElectives {
		if !completed[c.CourseCode] {
			codes = append(codes, c.CourseCode)
		}
	}
	for _, track := range rc.Curriculum.SpecializationTracks.Tracks {
		for _, code := range track.Courses {
			if !completed[code] {
				codes = append(codes, code)
			}
		}
	}
	return codes
}

func (s *RecommendationService) llmRecommendations(ctx context.Context, rc *model.RecommendationContext) (*model.LLMRecommendation, error) {
	ctx, span := tracing.Tracer.Start(ctx, "recommendation.llm")
	defer span.End()

	prompt := s.Context.FormatForLLM(rc)
	response, err := s.LLM.Complete(ctx, recommendationSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	offerings := offeringsFromContext(rc)
	parsed := s.Parser.ParseRecommendationResponse(response, offerings)
	if len(parsed.Courses) == 0 {
		return nil, util.ErrNoCoursesExtracted
	}
	return &model.LLMRecommendation{Raw: response, Parsed: parsed}, nil
}

func offeringsFromContext(rc *model.RecommendationContext) *model.SemesterOfferings {
	return &model.SemesterOfferings{
		Semester:         rc.Offerings.Semester,
		PersianName:      rc.Offerings.PersianName,
		GroupBasedSystem: rc.Offerings.GroupBasedSystem,
		AvailableGroups:  rc.Offerings.AvailableGroups,
		GeneralCourses:   rc.Offerings.GeneralCourses,
		AdvancedCourses:  rc.Offerings.AdvancedCourses,
		SpecialNotes:     rc.Offerings.SpecialNotes,
	}
}

// mergeRecommendations combines both passes. LLM picks lead with
// descending priority from 90; rule-based courses the LLM skipped follow
// at a 20-point discount, floored at zero. The final list is capped at
// ten entries.
func mergeRecommendations(
	ruleBased []model.RecommendedCourse,
	llmCourses []model.ParsedCourse,
	rc *model.RecommendationContext,
) []model.RecommendedCourse {
	if len(llmCourses) == 0 {
		return ruleBased
	}

	var combined []model.RecommendedCourse
	llmCodes := make(map[string]bool)

	limit := len(llmCourses)
	if limit > 10 {
		limit = 10
	}
	for i, parsed := range llmCourses[:limit] {
		llmCodes[parsed.CourseCode] = true
		credits := parsed.Credits
		if credits == 0 {
			// Weekly-text and bare-token replies often omit credits.
			credits = 3
		}
		rec := model.RecommendedCourse{
			CourseCode: parsed.CourseCode,
			CourseName: parsed.CourseName,
			Credits:    model.CourseCredits{Theoretical: credits},
			CourseType: model.CourseTypeCore,
			Difficulty: model.DifficultyMedium,
			Instructor: parsed.Instructor,
			Priority:   90 - i,
			Reason:     fmt.Sprintf("پیشنهاد LLM - اولویت %d", i+1),
			Source:     "llm",
		}
		if parsed.Time != "" && parsed.Time != "نامشخص" {
			rec.TimeSlots = []string{parsed.Time}
		}
		if full := findAvailable(parsed.CourseCode, rc.Available); full != nil {
			rec.CourseName = full.CourseName
			rec.Credits = full.Credits
			rec.TimeSlots = full.TimeSlots
			rec.ExamDate = full.ExamDate
			rec.Instructor = full.Instructor
			if full.CourseType != "" {
				rec.CourseType = full.CourseType
			}
			if full.Difficulty != "" {
				rec.Difficulty = full.Difficulty
			}
		}
		combined = append(combined, rec)
	}

	for _, rec := range ruleBased {
		if llmCodes[rec.CourseCode] {
			continue
		}
		rec.Priority -= 20
		if rec.Priority < 0 {
			rec.Priority = 0
		}
		combined = append(combined, rec)
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Priority > combined[j].Priority
	})
	if len(combined) > 10 {
		combined = combined[:10]
	}
	return combined
}

func findAvailable(code string, available []model.AvailableCourse) *model.AvailableCourse {
	for i := range available {
		if available[i].CourseCode == code {
			return &available[i]
		}
	}
	return nil
}

// buildWeeklySchedule places each course's meetings on the Persian week.
// A course whose slot overlaps an already placed one is dropped from the
// calendar but stays in the recommendation list, flagged.
func buildWeeklySchedule(recs []model.RecommendedCourse) model.WeeklySchedule {
	schedule := model.WeeklySchedule{Days: make(map[string][]model.ScheduleEntry, len(model.Weekdays))}
	for _, day := range model.Weekdays {
		schedule.Days[day] = nil
	}

	placed := make(map[string][][2]int) // day -> placed intervals

	for i := range recs {
		for _, slot := range recs[i].TimeSlots {
			day, start, end, ok := parseSlot(slot)
			if !ok {
				logger.Log.Warn("Invalid time slot format", zap.String("slot", slot))
				continue
			}
			if _, known := schedule.Days[day]; !known {
				continue
			}

			conflict := false
			for _, iv := range placed[day] {
				if start < iv[1] && iv[0] < end {
					conflict = true
					break
				}
			}
			if conflict {
				recs[i].HasConflict = true
				recs[i].ConflictsWith = append(recs[i].ConflictsWith, slot)
				schedule.Conflicts = append(schedule.Conflicts,
					fmt.Sprintf("تداخل زمانی: %s در %s", recs[i].CourseName, slot))
				continue
			}

			placed[day] = append(placed[day], [2]int{start, end})
			parts := strings.SplitN(strings.TrimSpace(slot), " ", 2)
			times := strings.SplitN(parts[1], "-", 2)
			schedule.Days[day] = append(schedule.Days[day], model.ScheduleEntry{
				CourseCode: recs[i].CourseCode,
				CourseName: recs[i].CourseName,
				Start:      strings.TrimSpace(times[0]),
				End:        strings.TrimSpace(times[1]),
				Instructor: recs[i].Instructor,
			})
		}
	}
	return schedule
}

func (s *RecommendationService) validateFinal(
	ctx context.Context,
	recs []model.RecommendedCourse,
	rc *model.RecommendationContext,
) model.SelectionValidation {
	codes := make([]string, 0, len(recs))
	for _, rec := range recs {
		codes = append(codes, rec.CourseCode)
	}
	offerings := offeringsFromContext(rc)
	status := rc.Profile.Status
	return s.Rules.ValidateSelection(ctx, codes, &status, offerings)
}

// scheduleBalance scores the weekly layout: full marks minus 20 when any
// day carries more than three courses and minus 30 when over 60% of the
// selection is hard.
func scheduleBalance(schedule model.WeeklySchedule, recs []model.RecommendedCourse) model.BalanceAnalysis {
	analysis := model.BalanceAnalysis{
		DifficultyCounts: map[string]int{model.DifficultyEasy: 0, model.DifficultyMedium: 0, model.DifficultyHard: 0},
		TypeCounts: map[string]int{
			model.CourseTypeFoundation:  0,
			model.CourseTypeCore:        0,
			model.CourseTypeSpecialized: 0,
			model.CourseTypeGeneral:     0,
		},
	}

	for _, rec := range recs {
		if _, ok := analysis.DifficultyCounts[rec.Difficulty]; ok {
			analysis.DifficultyCounts[rec.Difficulty]++
		}
		if _, ok := analysis.TypeCounts[rec.CourseType]; ok {
			analysis.TypeCounts[rec.CourseType]++
		}
	}

	score := 100
	for _, entries := range schedule.Days {
		if len(entries) > 3 {
			score -= 20
			analysis.Warnings = append(analysis.Warnings, "توزیع دروس در روزهای هفته نامتعادل است")
			break
		}
	}
	if len(recs) > 0 {
		hardRatio := float64(analysis.DifficultyCounts[model.DifficultyHard]) / float64(len(recs))
		if hardRatio > 0.6 {
			score -= 30
			analysis.Warnings = append(analysis.Warnings, "نسبت دروس سخت بالا است")
		}
	}
	if score < 0 {
		score = 0
	}
	analysis.BalanceScore = score
	return analysis
}

// analyzeLLMQuality grades the raw LLM list before the merge repaired
// it: how many suggestions exist in the catalog, how broad the coverage
// is, and whether the implied week stays manageable.
func analyzeLLMQuality(llmCourses []model.ParsedCourse, rc *model.RecommendationContext) *model.LLMQualityAnalysis {
	analysis := &model.LLMQualityAnalysis{}

	if len(llmCourses) == 0 {
		analysis.Issues = append(analysis.Issues, "No courses recommended")
		return analysis
	}

	availableCodes := make(map[string]bool, len(rc.Available))
	for _, c := range rc.Available {
		availableCodes[c.CourseCode] = true
	}

	valid := 0
	var invalid []string
	for _, c := range llmCourses {
		if availableCodes[c.CourseCode] {
			valid++
		} else {
			invalid = append(invalid, c.CourseCode)
		}
	}
	analysis.ValidityScore = float64(valid) / float64(len(llmCourses)) * 100

	if len(invalid) > 0 {
		analysis.Issues = append(analysis.Issues,
			fmt.Sprintf("Invalid course codes: %s", strings.Join(invalid, ", ")))
	} else {
		analysis.Strengths = append(analysis.Strengths, "All recommended courses are available")
	}

	totalCredits := 0
	for _, c := range llmCourses {
		totalCredits += c.Credits
	}
	if totalCredits >= 12 && totalCredits <= 24 {
		analysis.Strengths = append(analysis.Strengths,
			fmt.Sprintf("Appropriate credit count: %d", totalCredits))
	} else {
		analysis.Issues = append(analysis.Issues,
			fmt.Sprintf("Credit count may be inappropriate: %d", totalCredits))
	}

	if valid >= 3 {
		analysis.CoverageScore = 80
		analysis.Strengths = append(analysis.Strengths, "Good course coverage")
	} else {
		analysis.CoverageScore = 40
		analysis.Issues = append(analysis.Issues, "Limited course coverage")
	}

	dayLoads := make(map[string]int)
	for _, c := range llmCourses {
		if day, _, _, ok := parseSlot(c.Time); ok {
			dayLoads[day]++
		}
	}
	analysis.BalanceScore = 80
	for _, n := range dayLoads {
		if n > 3 {
			analysis.BalanceScore = 50
			analysis.Issues = append(analysis.Issues, "Some days may be overloaded")
			break
		}
	}
	return analysis
}

func buildExplanation(
	rc *model.RecommendationContext,
	recs []model.RecommendedCourse,
	schedule model.WeeklySchedule,
	balance model.BalanceAnalysis,
) string {
	var b strings.Builder

	failedCount := len(rc.History.FailedCourses)
	switch rc.Constraints.Strategy {
	case model.StrategyRecoveryFocused:
		fmt.Fprintf(&b, "با توجه به %d درس مردودی، تمرکز بر جبران دروس است.\n", failedCount)
	case model.StrategyGPAImprovement:
		fmt.Fprintf(&b, "با توجه به معدل %.2f، تمرکز بر بهبود عملکرد است.\n", rc.Profile.Status.GPA)
	case model.StrategyGraduationFocused:
		b.WriteString("با توجه به نزدیکی به پایان دوره، تمرکز بر فارغ‌التحصیلی است.\n")
	case model.StrategySpecializationFocused:
		b.WriteString("با توجه به ترم پیشرفته، تمرکز بر تقویت گرایش تخصصی است.\n")
	default:
		b.WriteString("استراتژی متعادل برای پیشرفت تحصیلی.\n")
	}

	groups := map[string][]string{}
	var order []string
	for _, rec := range recs {
		label := "اولویت پایین"
		if rec.Priority >= 80 {
			label = "اولویت بالا"
		} else if rec.Priority >= 60 {
			label = "اولویت متوسط"
		}
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], rec.CourseName)
	}
	for _, label := range order {
		fmt.Fprintf(&b, "\n%s: %s", label, strings.Join(groups[label], "، "))
	}

	quality := "قابل بهبود"
	if balance.BalanceScore >= 70 {
		quality = "خوب"
	}
	fmt.Fprintf(&b, "\n\nامتیاز تعادل برنامه: %d (%s)", balance.BalanceScore, quality)
	if len(schedule.Conflicts) > 0 {
		fmt.Fprintf(&b, "\nتعداد تداخل‌های زمانی: %d", len(schedule.Conflicts))
	}

	b.WriteString(`

مراحل بعدی:
1. بررسی جدول زمانی و تأیید عدم تداخل
2. مطالعه سرفصل دروس پیشنهادی
3. مشورت با استاد راهنما در صورت نیاز
4. ثبت‌نام در زمان تعیین شده`)

	return b.String()
}
