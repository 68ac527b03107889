package service

import (
	"context"
	"math"
	"sort"
	"strconv"

	"coursewise_backend/internal/model"
	"coursewise_backend/internal/repository"
	"coursewise_backend/pkg/logger"

	"go.uber.org/zap"
)

// AnalyzerService derives a student's academic status from grade history
// and the curriculum chart. The status is recomputed per request.
type AnalyzerService struct {
	StudentRepo    *repository.StudentRepository
	CurriculumRepo *repository.CurriculumRepository
}

func NewAnalyzerService(studentRepo *repository.StudentRepository, curriculumRepo *repository.CurriculumRepository) *AnalyzerService {
	return &AnalyzerService{
		StudentRepo:    studentRepo,
		CurriculumRepo: curriculumRepo,
	}
}

func (s *AnalyzerService) AnalyzeStatus(ctx context.Context, studentID uint) (*model.AcademicStatus, error) {
	student, err := s.StudentRepo.FindByIDWithGrades(studentID)
	if err != nil {
		return nil, err
	}

	chart, err := s.CurriculumRepo.ChartFor(ctx, student.EntryYear)
	if err != nil {
		// A missing chart degrades prerequisite and specialization analysis
		// but the grade-derived parts of the status still hold.
		logger.Log.Warn("Curriculum chart unavailable, analyzing grades only",
			zap.Uint("studentId", studentID), zap.Error(err))
		chart = &model.CurriculumChart{TotalCreditsRequired: DefaultTotalCreditsRequired}
	}

	status := ComputeStatus(student, chart)
	return status, nil
}

// DefaultTotalCreditsRequired applies when a chart omits the degree total.
const DefaultTotalCreditsRequired = 140

// ComputeStatus is the pure core of the analyzer: no I/O, deterministic
// for a given student record and chart.
func ComputeStatus(student *model.Student, chart *model.CurriculumChart) *model.AcademicStatus {
	latest := latestAttempts(student.Grades)

	gpa, passedCredits := gpaAndPassedCredits(latest)
	completed, failed := splitAttempts(latest)

	status := &model.AcademicStatus{
		StudentID:          student.ID,
		GPA:                gpa,
		TotalCreditsPassed: passedCredits,
		Standing:           determineStanding(gpa, latest, student.CurrentSemester),
		EntryYear:          student.EntryYear,
		CurrentSemester:    student.CurrentSemester,
		CurriculumVersion:  model.CurriculumVersionFor(student.EntryYear),
		GroupAssignment:    groupAssignment(student.EntryYear, student.StudentNumber),
		FailedCourses:      failed,
		CompletedCourses:   completed,
	}

	status.PrerequisiteStatus = prerequisiteStatus(completed, chart)
	status.Specialization = specializationStatus(completed, student.CurrentSemester, chart)
	status.Graduation = graduationProgress(passedCredits, completed, chart)
	return status
}

// latestAttempts keeps only the highest attempt number per course code,
// skipping attempts without a recorded grade.
func latestAttempts(grades []model.StudentGrade) []model.StudentGrade {
	byCourse := make(map[string]model.StudentGrade)
	for _, g := range grades {
		if g.Grade == nil || g.Status == model.GradeStatusWithdrawn {
			continue
		}
		code := g.Course.CourseCode
		if prev, ok := byCourse[code]; !ok || g.AttemptNumber > prev.AttemptNumber {
			byCourse[code] = g
		}
	}

	out := make([]model.StudentGrade, 0, len(byCourse))
	for _, g := range byCourse {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Course.CourseCode < out[j].Course.CourseCode
	})
	return out
}

// gpaAndPassedCredits computes GPA over authoritative attempts, failing
// grades included in the average, and the credit total over passing ones.
func gpaAndPassedCredits(latest []model.StudentGrade) (float64, int) {
	var points float64
	var credits, passed int
	for _, g := range latest {
		c := g.Course.TotalCredits()
		points += *g.Grade * float64(c)
		credits += c
		if *g.Grade >= model.PassingGrade {
			passed += c
		}
	}
	if credits == 0 {
		return 0, 0
	}
	return math.Round(points/float64(credits)*100) / 100, passed
}

func splitAttempts(latest []model.StudentGrade) (completed, failed []model.CourseAttempt) {
	for _, g := range latest {
		attempt := model.CourseAttempt{
			CourseCode:    g.Course.CourseCode,
			CourseName:    g.Course.CourseName,
			Grade:         *g.Grade,
			Credits:       g.Course.TotalCredits(),
			CourseType:    g.Course.CourseType,
			AttemptNumber: g.AttemptNumber,
			SemesterTaken: g.SemesterTaken,
		}
		if attempt.Grade >= model.PassingGrade {
			completed = append(completed, attempt)
		} else {
			failed = append(failed, attempt)
		}
	}
	return completed, failed
}

// determineStanding: probation on overall GPA below 12 or more than two
// authoritative failures in the most recent semester with grades.
func determineStanding(gpa float64, latest []model.StudentGrade, currentSemester int) model.AcademicStanding {
	if gpa < 12.0 {
		return model.StandingProbation
	}

	lastSemester := 0
	for _, g := range latest {
		if g.SemesterTaken > lastSemester {
			lastSemester = g.SemesterTaken
		}
	}
	recentFailed := 0
	for _, g := range latest {
		if g.SemesterTaken == lastSemester && *g.Grade < model.PassingGrade {
			recentFailed++
		}
	}
	if recentFailed > 2 {
		return model.StandingProbation
	}

	switch {
	case gpa >= 17.0:
		return model.StandingExcellent
	case gpa >= 15.0:
		return model.StandingGoodStanding
	default:
		return model.StandingNormal
	}
}

// groupAssignment splits post-1403 cohorts into A/B by student number
// parity. Pre-1403 entries have no group system.
func groupAssignment(entryYear int, studentNumber string) string {
	if entryYear < model.Post1403EntryYear {
		return ""
	}
	if studentNumber == "" {
		return "A"
	}
	last, err := strconv.Atoi(studentNumber[len(studentNumber)-1:])
	if err != nil {
		return "A"
	}
	if last%2 == 0 {
		return "A"
	}
	return "B"
}

func prerequisiteStatus(completed []model.CourseAttempt, chart *model.CurriculumChart) map[string]bool {
	completedCodes := make(map[string]bool, len(completed))
	for _, c := range completed {
		completedCodes[c.CourseCode] = true
	}

	status := make(map[string]bool)
	for _, sem := range chart.Semesters {
		for _, course := range sem.Courses {
			met := true
			for _, prereq := range course.Prerequisites {
				if !completedCodes[prereq] {
					met = false
					break
				}
			}
			status[course.CourseCode] = met
		}
	}
	return status
}

// specializationStatus tallies passed credits per track. The leading
// track counts as selected once it reaches 3 credits.
func specializationStatus(completed []model.CourseAttempt, currentSemester int, chart *model.CurriculumChart) model.SpecializationStatus {
	status := model.SpecializationStatus{
		SelectionAllowed: currentSemester >= 5,
		ProgressByGroup:  make(map[string]model.TrackProgress),
	}

	creditsByCode := make(map[string]int, len(completed))
	for _, c := range completed {
		creditsByCode[c.CourseCode] = c.Credits
	}

	bestTrack := ""
	bestCredits := 0
	for _, track := range chart.SpecializationTracks.Tracks {
		credits := 0
		for _, code := range track.Courses {
			credits += creditsByCode[code]
		}
		minRequired := track.MinCredits
		if minRequired == 0 {
			minRequired = 6
		}
		status.ProgressByGroup[track.TrackName] = model.TrackProgress{
			CreditsCompleted: credits,
			MinimumRequired:  minRequired,
			IsSufficient:     credits >= minRequired,
		}
		if credits > bestCredits {
			bestCredits = credits
			bestTrack = track.TrackName
		}
	}

	if bestCredits >= 3 {
		status.SelectedGroup = bestTrack
		status.CompletedSpecializedCredits = bestCredits
	}
	return status
}

func graduationProgress(passedCredits int, completed []model.CourseAttempt, chart *model.CurriculumChart) model.GraduationProgress {
	required := chart.TotalCreditsRequired
	if required <= 0 {
		required = DefaultTotalCreditsRequired
	}

	byType := map[string]int{
		model.CourseTypeFoundation:  0,
		model.CourseTypeCore:        0,
		model.CourseTypeSpecialized: 0,
		model.CourseTypeGeneral:     0,
	}
	for _, c := range completed {
		if _, ok := byType[c.CourseType]; ok {
			byType[c.CourseType] += c.Credits
		}
	}

	var level string
	switch {
	case passedCredits < 35:
		level = "مقدماتی"
	case passedCredits < 70:
		level = "میانی"
	case passedCredits < 105:
		level = "پیشرفته"
	default:
		level = "نهایی"
	}

	remaining := required - passedCredits
	estSemesters := remaining / 18
	if estSemesters < 1 {
		estSemesters = 1
	}

	return model.GraduationProgress{
		CreditsPassed:               passedCredits,
		CreditsRequired:             required,
		ProgressPercentage:          math.Round(float64(passedCredits)/float64(required)*1000) / 10,
		AcademicLevel:               level,
		CreditsByType:               byType,
		RemainingCredits:            remaining,
		EstimatedSemestersRemaining: estSemesters,
	}
}

// CreditLimitFor maps GPA to the per-term credit band. Band lower bounds
// are inclusive.
func CreditLimitFor(gpa float64) model.CreditLimit {
	switch {
	case gpa >= 17.0:
		return model.CreditLimit{MaxCredits: 24, MinCredits: 12}
	case gpa >= 15.0:
		return model.CreditLimit{MaxCredits: 20, MinCredits: 12}
	case gpa >= 12.0:
		return model.CreditLimit{MaxCredits: 18, MinCredits: 12}
	default:
		return model.CreditLimit{MaxCredits: 16, MinCredits: 14}
	}
}
