package model

// Student is the persistent student record. Entry year is in the Persian
// calendar and decides which curriculum chart governs the student.
// swagger:model
type Student struct {
	BaseModel
	TelegramID      int64          `gorm:"uniqueIndex" json:"telegramId"`
	StudentNumber   string         `gorm:"size:20" json:"studentNumber"`
	FullName        string         `gorm:"size:120" json:"fullName"`
	EntryYear       int            `json:"entryYear"`
	CurrentSemester int            `json:"currentSemester"`
	Grades          []StudentGrade `json:"grades,omitempty"`
}

// StudentGrade is one attempt at one course. A student may hold several
// attempts for the same course; only the highest attempt number is
// authoritative when deriving academic status.
// swagger:model
type StudentGrade struct {
	BaseModel
	StudentID     uint     `gorm:"index" json:"studentId"`
	CourseID      uint     `gorm:"index" json:"courseId"`
	Course        Course   `json:"course"`
	Grade         *float64 `gorm:"type:decimal(4,2)" json:"grade"` // 0-20, null while pending
	Status        string   `gorm:"size:16" json:"status"`          // passed / failed / withdrawn
	AttemptNumber int      `gorm:"default:1" json:"attemptNumber"`
	SemesterTaken int      `json:"semesterTaken"`
}

const (
	GradeStatusPassed    = "passed"
	GradeStatusFailed    = "failed"
	GradeStatusWithdrawn = "withdrawn"
)

// PassingGrade is the Iranian 0-20 scale passing threshold.
const PassingGrade = 10.0
