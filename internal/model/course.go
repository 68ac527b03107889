package model

import "strings"

// Course mirrors one curriculum course in the database. Prerequisites are
// stored as a comma-separated list of course codes; the curriculum chart
// JSON remains the authority for structural rules.
// swagger:model
type Course struct {
	BaseModel
	CourseCode         string `gorm:"uniqueIndex;size:20" json:"courseCode"`
	CourseName         string `gorm:"size:120" json:"courseName"`
	TheoreticalCredits int    `json:"theoreticalCredits"`
	PracticalCredits   int    `json:"practicalCredits"`
	CourseType         string `gorm:"size:20" json:"courseType"` // foundation / core / specialized / general
	Prerequisites      string `gorm:"size:255" json:"prerequisites"`
	IsMandatory        bool   `json:"isMandatory"`
}

func (c *Course) TotalCredits() int {
	return c.TheoreticalCredits + c.PracticalCredits
}

func (c *Course) PrerequisiteCodes() []string {
	if c.Prerequisites == "" {
		return nil
	}
	parts := strings.Split(c.Prerequisites, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

const (
	CourseTypeFoundation  = "foundation"
	CourseTypeCore        = "core"
	CourseTypeSpecialized = "specialized"
	CourseTypeGeneral     = "general"
)
