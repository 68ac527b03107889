package model

// AcademicStanding is derived from GPA and recent failures.
type AcademicStanding string

const (
	StandingNormal       AcademicStanding = "normal"
	StandingGoodStanding AcademicStanding = "good_standing"
	StandingExcellent    AcademicStanding = "excellent"
	StandingProbation    AcademicStanding = "probation"
)

// CourseAttempt is the authoritative (latest-attempt) record for one course
// in a student's history.
type CourseAttempt struct {
	CourseCode    string  `json:"courseCode"`
	CourseName    string  `json:"courseName"`
	Grade         float64 `json:"grade"`
	Credits       int     `json:"credits"`
	CourseType    string  `json:"courseType"`
	AttemptNumber int     `json:"attemptNumber"`
	SemesterTaken int     `json:"semesterTaken"`
}

type TrackProgress struct {
	CreditsCompleted int  `json:"creditsCompleted"`
	MinimumRequired  int  `json:"minimumRequired"`
	IsSufficient     bool `json:"isSufficient"`
}

type SpecializationStatus struct {
	SelectionAllowed            bool                     `json:"selectionAllowed"`
	SelectedGroup               string                   `json:"selectedGroup"`
	CompletedSpecializedCredits int                      `json:"completedSpecializedCredits"`
	ProgressByGroup             map[string]TrackProgress `json:"progressByGroup"`
}

type GraduationProgress struct {
	CreditsPassed               int            `json:"creditsPassed"`
	CreditsRequired             int            `json:"creditsRequired"`
	ProgressPercentage          float64        `json:"progressPercentage"`
	AcademicLevel               string         `json:"academicLevel"`
	CreditsByType               map[string]int `json:"creditsByType"`
	RemainingCredits            int            `json:"remainingCredits"`
	EstimatedSemestersRemaining int            `json:"estimatedSemestersRemaining"`
}

// AcademicStatus is the per-request snapshot of a student's academic state.
// It is recomputed from the grade store on every recommendation request and
// never persisted.
type AcademicStatus struct {
	StudentID          uint                 `json:"studentId"`
	GPA                float64              `json:"gpa"`
	TotalCreditsPassed int                  `json:"totalCreditsPassed"`
	Standing           AcademicStanding     `json:"standing"`
	EntryYear          int                  `json:"entryYear"`
	CurrentSemester    int                  `json:"currentSemester"`
	CurriculumVersion  CurriculumVersion    `json:"curriculumVersion"`
	GroupAssignment    string               `json:"groupAssignment"` // "A"/"B", empty when not applicable
	FailedCourses      []CourseAttempt      `json:"failedCourses"`
	CompletedCourses   []CourseAttempt      `json:"completedCourses"`
	PrerequisiteStatus map[string]bool      `json:"prerequisiteStatus"`
	Specialization     SpecializationStatus `json:"specialization"`
	Graduation         GraduationProgress   `json:"graduation"`
}

// CompletedCodes returns the set of course codes the student has passed.
func (s *AcademicStatus) CompletedCodes() map[string]bool {
	codes := make(map[string]bool, len(s.CompletedCourses))
	for _, c := range s.CompletedCourses {
		codes[c.CourseCode] = true
	}
	return codes
}

func (s *AcademicStatus) FailedCodes() map[string]bool {
	codes := make(map[string]bool, len(s.FailedCourses))
	for _, c := range s.FailedCourses {
		codes[c.CourseCode] = true
	}
	return codes
}

// GroupRestrictionsActive reports whether the first-year A/B cohort split
// limits this student's section choices.
func (s *AcademicStatus) GroupRestrictionsActive() bool {
	return s.GroupAssignment != "" && s.CurrentSemester <= 2
}

// CreditLimit is the GPA-derived per-term credit band.
type CreditLimit struct {
	MaxCredits int `json:"maxCredits"`
	MinCredits int `json:"minCredits"`
}

// CourseValidationResult is the outcome of validating one course against a
// student's status. Rule violations are data, not errors: they accumulate
// in Errors and never surface as Go errors.
type CourseValidationResult struct {
	CourseCode    string   `json:"courseCode"`
	IsValid       bool     `json:"isValid"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	PriorityScore int      `json:"priorityScore"`
}

type BalanceAnalysis struct {
	DifficultyCounts map[string]int `json:"difficultyCounts"`
	TypeCounts       map[string]int `json:"typeCounts"`
	Warnings         []string       `json:"warnings"`
	BalanceScore     int            `json:"balanceScore"`
}

type PriorityAnalysis struct {
	SelectedFailedCourses []string `json:"selectedFailedCourses"`
	MissedFailedCourses   []string `json:"missedFailedCourses"`
	MissingPrerequisites  []string `json:"missingPrerequisites"`
	Suggestions           []string `json:"suggestions"`
}

// SelectionValidation aggregates per-course results for a full proposed
// course set.
type SelectionValidation struct {
	CourseResults map[string]CourseValidationResult `json:"courseResults"`
	TotalCredits  int                               `json:"totalCredits"`
	CreditLimit   CreditLimit                       `json:"creditLimit"`
	Errors        []string                          `json:"errors"`
	Warnings      []string                          `json:"warnings"`
	IsValid       bool                              `json:"isValid"`
	Balance       BalanceAnalysis                   `json:"balance"`
	Priorities    PriorityAnalysis                  `json:"priorities"`
}

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)
