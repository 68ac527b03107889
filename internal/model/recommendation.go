package model

import "time"

// RecommendedCourse is one entry in a final recommendation, annotated with
// its priority and where it came from.
type RecommendedCourse struct {
	CourseCode    string        `json:"courseCode"`
	CourseName    string        `json:"courseName"`
	Credits       CourseCredits `json:"credits"`
	CourseType    string        `json:"courseType"`
	Difficulty    string        `json:"difficulty"`
	TimeSlots     []string      `json:"timeSlots"`
	ExamDate      string        `json:"examDate"`
	Instructor    string        `json:"instructor"`
	Priority      int           `json:"priority"`
	Reason        string        `json:"reason"`
	Source        string        `json:"source"` // llm / rules
	HasConflict   bool          `json:"hasConflict"`
	ConflictsWith []string      `json:"conflictsWith,omitempty"`
}

// ScheduleEntry is one placed course meeting on the weekly calendar.
type ScheduleEntry struct {
	CourseCode string `json:"courseCode"`
	CourseName string `json:"courseName"`
	Start      string `json:"start"` // HH:MM
	End        string `json:"end"`
	Instructor string `json:"instructor"`
}

// WeeklySchedule maps Persian weekday names to the ordered meetings placed
// on that day. Conflicting courses are dropped from the calendar but stay
// in the recommendation list, flagged.
type WeeklySchedule struct {
	Days      map[string][]ScheduleEntry `json:"days"`
	Conflicts []string                   `json:"conflicts"`
}

// RecommendationResult is the full advisory output for one request.
// Courses holds the final merged list; RuleBased and LLMBased preserve
// the two passes it was built from.
type RecommendationResult struct {
	StudentID       uint                   `json:"studentId"`
	TargetSemester  string                 `json:"targetSemester"`
	Strategy        RecommendationStrategy `json:"strategy"`
	Courses         []RecommendedCourse    `json:"courses"`
	RuleBased       []RecommendedCourse    `json:"ruleBased"`
	LLMBased        *LLMRecommendation     `json:"llmBased,omitempty"`
	TotalCredits    int                    `json:"totalCredits"`
	CreditLimit     CreditLimit            `json:"creditLimit"`
	Schedule        WeeklySchedule         `json:"weeklySchedule"`
	Validation      SelectionValidation    `json:"validation"`
	Balance         BalanceAnalysis        `json:"balance"`
	AcademicContext AcademicContext        `json:"academicContext"`
	Explanation     string                 `json:"explanation"`
	LLMUsed         bool                   `json:"llmUsed"`
	LLMAnalysis     *LLMQualityAnalysis    `json:"llmAnalysis,omitempty"`
	GeneratedAt     time.Time              `json:"generatedAt"`
}

// LLMRecommendation pairs the raw LLM reply with its parsed form so
// callers can audit what the model actually said.
type LLMRecommendation struct {
	Raw    string               `json:"raw"`
	Parsed ParsedRecommendation `json:"parsed"`
}

// AcademicContext echoes the status snapshot the recommendation was
// computed from, saving callers a second status call.
type AcademicContext struct {
	GPA                     float64 `json:"gpa"`
	CurrentSemester         int     `json:"currentSemester"`
	FailedCoursesCount      int     `json:"failedCoursesCount"`
	GroupRestrictionsActive bool    `json:"groupRestrictionsActive"`
}

// LLMQualityAnalysis scores how usable the LLM's raw suggestion was
// before the deterministic merge re-verified it.
type LLMQualityAnalysis struct {
	ValidityScore float64  `json:"validityScore"`
	CoverageScore float64  `json:"coverageScore"`
	BalanceScore  float64  `json:"balanceScore"`
	Issues        []string `json:"issues"`
	Strengths     []string `json:"strengths"`
}

// ParsedCourse is one course extracted from an LLM reply, before it is
// enriched against the offerings catalog.
type ParsedCourse struct {
	CourseCode string `json:"courseCode"`
	CourseName string `json:"courseName"`
	Credits    int    `json:"credits"`
	Time       string `json:"time"`
	Instructor string `json:"instructor"`
	Reason     string `json:"reason"`
}

// ParseTier records which extraction pass produced the result.
type ParseTier string

const (
	ParseTierJSON   ParseTier = "json"
	ParseTierWeekly ParseTier = "weekly_text"
	ParseTierTokens ParseTier = "bare_tokens"
)

// ParsedRecommendation is the structured form of an LLM free-text reply.
type ParsedRecommendation struct {
	Courses      []ParsedCourse `json:"courses"`
	TotalCredits int            `json:"totalCredits"`
	Explanation  string         `json:"explanation"`
	Tier         ParseTier      `json:"tier"`
}

// ParsedGrade is one grade line extracted from pasted transcript text.
// Grade is nil when the student reported only pass/fail.
type ParsedGrade struct {
	CourseCode    string   `json:"courseCode"`
	CourseName    string   `json:"courseName,omitempty"`
	Grade         *float64 `json:"grade"`
	Status        string   `json:"status"`
	SemesterTaken int      `json:"semesterTaken,omitempty"`
	Confidence    float64  `json:"confidence"`
}

// GradeParseResult carries extracted grades plus warnings for the caller
// to surface back to the student. Parsing is total: malformed input
// yields an unsuccessful result, never an error.
type GradeParseResult struct {
	Success    bool          `json:"success"`
	Grades     []ParsedGrade `json:"parsedGrades"`
	Warnings   []string      `json:"warnings"`
	Confidence float64       `json:"confidence"`
	RawText    string        `json:"rawText"`
}
