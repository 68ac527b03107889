package model

import "time"

// RecommendationContext is the single self-contained input for both the
// rule-based selection pass and the LLM prompt. All sections are explicit
// structs so a field typo is a compile error, not a runtime KeyError.
type RecommendationContext struct {
	Metadata    ContextMetadata   `json:"metadata"`
	Profile     StudentProfile    `json:"studentProfile"`
	History     AcademicHistory   `json:"academicHistory"`
	Curriculum  CurriculumContext `json:"curriculumContext"`
	Offerings   OfferingsContext  `json:"semesterOfferings"`
	Rules       RulesContext      `json:"academicRules"`
	Constraints Constraints       `json:"recommendationConstraints"`
	Preferences UserPreferences   `json:"userPreferences"`
	Available   []AvailableCourse `json:"availableCourses"`
	Scheduling  SchedulingContext `json:"schedulingInfo"`
}

type ContextMetadata struct {
	StudentID      uint      `json:"studentId"`
	TargetSemester string    `json:"targetSemester"`
	GeneratedAt    time.Time `json:"generatedAt"`
	ContextVersion string    `json:"contextVersion"`
}

type StudentProfile struct {
	Status             AcademicStatus `json:"status"`
	GPACategory        string         `json:"gpaCategory"`
	CreditAllowance    CreditLimit    `json:"creditAllowance"`
	AcademicLevel      string         `json:"academicLevel"`
	ProgressPercent    float64        `json:"progressPercent"`
	RemainingCredits   int            `json:"remainingCredits"`
	EstimatedSemesters int            `json:"estimatedSemesters"`
}

type GradeBands struct {
	High    []CourseAttempt `json:"high"`    // >= 17
	Average []CourseAttempt `json:"average"` // 14 - 17
	Low     []CourseAttempt `json:"low"`     // 10 - 14
}

type AcademicHistory struct {
	CompletedCourses     []CourseAttempt            `json:"completedCourses"`
	CompletedByType      map[string][]CourseAttempt `json:"completedByType"`
	GradeBands           GradeBands                 `json:"gradeBands"`
	FailedCourses        []CourseAttempt            `json:"failedCourses"`
	MultipleAttempts     []CourseAttempt            `json:"multipleAttempts"`
	MetPrerequisites     []string                   `json:"metPrerequisites"`
	UnmetPrerequisites   []string                   `json:"unmetPrerequisites"`
	BlockedFutureCourses []string                   `json:"blockedFutureCourses"`
}

type CurriculumContext struct {
	TotalCreditsRequired int                  `json:"totalCreditsRequired"`
	Description          string               `json:"description"`
	CurrentSemester      CurriculumSemester   `json:"currentSemesterExpectations"`
	NextSemester         CurriculumSemester   `json:"nextSemesterPreview"`
	SpecializationTracks SpecializationTracks `json:"specializationTracks"`
	GeneralElectives     []CurriculumCourse   `json:"generalElectives"`
	GroupRestrictions    GroupRestrictions    `json:"groupRestrictions"`
}

type GroupRestrictions struct {
	Applicable         bool   `json:"applicable"`
	StudentGroup       string `json:"studentGroup"`
	RestrictionsActive bool   `json:"restrictionsActive"`
	FreedomSemester    int    `json:"freedomSemester"`
}

type OfferingsContext struct {
	Semester         string          `json:"semester"`
	PersianName      string          `json:"persianName"`
	GroupBasedSystem bool            `json:"groupBasedSystem"`
	AvailableGroups  []OfferingGroup `json:"availableGroups"`
	GeneralCourses   []OfferedCourse `json:"generalCourses"`
	AdvancedCourses  []OfferedCourse `json:"advancedCourses"`
	SpecialNotes     []string        `json:"specialNotes"`
	Capacity         CapacityInfo    `json:"capacityInfo"`
}

type CapacityInfo struct {
	TotalCourses      int            `json:"totalCourses"`
	FullCourses       int            `json:"fullCourses"`
	HighDemandCourses []string       `json:"highDemandCourses"`
	AvailableSpots    map[string]int `json:"availableSpots"`
}

type RulesContext struct {
	CreditLimit                     CreditLimit `json:"creditLimit"`
	IsProbation                     bool        `json:"isProbation"`
	GroupRestrictionsActive         bool        `json:"groupRestrictionsActive"`
	SpecializationSelectionRequired bool        `json:"specializationSelectionRequired"`
}

// RecommendationStrategy is chosen from the student's status; exactly one
// strategy applies per request, first matching rule wins.
type RecommendationStrategy string

const (
	StrategyRecoveryFocused       RecommendationStrategy = "recovery_focused"
	StrategyGPAImprovement        RecommendationStrategy = "gpa_improvement"
	StrategyGraduationFocused     RecommendationStrategy = "graduation_focused"
	StrategySpecializationFocused RecommendationStrategy = "specialization_focused"
	StrategyFoundationBuilding    RecommendationStrategy = "foundation_building"
)

type Constraints struct {
	CreditLimit             CreditLimit            `json:"creditLimit"`
	RecommendedRange        [2]int                 `json:"recommendedRange"`
	MustTakeFailed          bool                   `json:"mustTakeFailed"`
	PrerequisiteGaps        bool                   `json:"prerequisiteGaps"`
	GroupRestrictionsActive bool                   `json:"groupRestrictionsActive"`
	Strategy                RecommendationStrategy `json:"strategy"`
	MaxDifficultCourses     int                    `json:"maxDifficultCourses"`
	MinEasyCourses          int                    `json:"minEasyCourses"`
	SpecializationFocus     bool                   `json:"specializationFocus"`
}

type UserPreferences struct {
	DesiredCredits    int    `json:"desiredCredits"`
	Interests         string `json:"interests"`
	PreferredSchedule string `json:"preferredSchedule"`
	AdditionalNotes   string `json:"additionalNotes"`
}

// AvailableCourse is one offered course annotated with its validation
// verdict for this particular student.
type AvailableCourse struct {
	OfferedCourse
	Validation CourseValidationResult `json:"validation"`
	Source     string                 `json:"source"` // group_<id> / general / advanced
}

type SchedulingContext struct {
	Weekdays  []string          `json:"weekdays"`
	TimeBands map[string]string `json:"timeBands"`
}

// Weekdays of the Iranian academic week, Saturday first.
var Weekdays = []string{"شنبه", "یکشنبه", "دوشنبه", "سه‌شنبه", "چهارشنبه", "پنج‌شنبه", "جمعه"}
