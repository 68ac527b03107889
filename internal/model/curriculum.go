package model

import (
	"encoding/json"
	"fmt"
)

// CurriculumVersion selects which chart governs a student.
type CurriculumVersion string

const (
	CurriculumPre1403  CurriculumVersion = "pre_1403"
	CurriculumPost1403 CurriculumVersion = "post_1403"
)

// Post1403EntryYear is the first entry year governed by the new chart.
const Post1403EntryYear = 1403

func CurriculumVersionFor(entryYear int) CurriculumVersion {
	if entryYear >= Post1403EntryYear {
		return CurriculumPost1403
	}
	return CurriculumPre1403
}

// CurriculumChart is the typed form of one curriculum JSON document.
// Loaders validate entries at parse time so the pipeline never sees
// untyped maps.
type CurriculumChart struct {
	EntryYears           []int                         `json:"entry_years"`
	Description          string                        `json:"description"`
	TotalCreditsRequired int                           `json:"total_credits_required"`
	MinimumGPA           float64                       `json:"minimum_gpa"`
	Semesters            map[string]CurriculumSemester `json:"semesters"`
	SpecializationTracks SpecializationTracks          `json:"specialization_tracks"`
	GeneralElectives     []CurriculumCourse            `json:"general_electives"`
}

type CurriculumSemester struct {
	SemesterName string             `json:"semester_name"`
	Courses      []CurriculumCourse `json:"courses"`
}

type CurriculumCourse struct {
	CourseCode         string   `json:"course_code"`
	CourseName         string   `json:"course_name"`
	TheoreticalCredits int      `json:"theoretical_credits"`
	PracticalCredits   int      `json:"practical_credits"`
	CourseType         string   `json:"course_type"`
	Prerequisites      []string `json:"prerequisites"`
	IsMandatory        bool     `json:"is_mandatory"`
	Difficulty         string   `json:"difficulty"`
}

func (c *CurriculumCourse) TotalCredits() int {
	return c.TheoreticalCredits + c.PracticalCredits
}

type SpecializationTracks struct {
	Tracks []SpecializationTrack `json:"tracks"`
}

type SpecializationTrack struct {
	TrackName  string   `json:"track_name"`
	Courses    []string `json:"courses"`
	MinCredits int      `json:"min_credits"`
}

// CourseCredits accepts both the split {"theoretical":2,"practical":1}
// form and a bare number, which both occur in offerings files.
type CourseCredits struct {
	Theoretical int `json:"theoretical"`
	Practical   int `json:"practical"`
}

func (c *CourseCredits) Total() int {
	return c.Theoretical + c.Practical
}

func (c *CourseCredits) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		c.Theoretical = n
		c.Practical = 0
		return nil
	}
	type split CourseCredits
	var s split
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("credits must be a number or {theoretical,practical}: %w", err)
	}
	*c = CourseCredits(s)
	return nil
}

// SemesterOfferings is the typed per-semester course catalog.
type SemesterOfferings struct {
	Semester         string          `json:"semester"`
	PersianName      string          `json:"persian_name"`
	GroupBasedSystem bool            `json:"group_based_system"`
	AvailableGroups  []OfferingGroup `json:"available_groups"`
	GeneralCourses   []OfferedCourse `json:"general_courses"`
	AdvancedCourses  []OfferedCourse `json:"advanced_courses"`
	SpecialNotes     []string        `json:"special_notes"`
}

type OfferingGroup struct {
	GroupID string          `json:"group_id"`
	Courses []OfferedCourse `json:"courses"`
}

type OfferedCourse struct {
	CourseCode string           `json:"course_code"`
	CourseName string           `json:"course_name"`
	Credits    CourseCredits    `json:"credits"`
	CourseType string           `json:"course_type"`
	Difficulty string           `json:"difficulty"`
	TimeSlots  []string         `json:"time_slots"`
	LabSlots   []string         `json:"lab_slots"`
	ExamDate   string           `json:"exam_date"`
	Instructor string           `json:"instructor"`
	Capacity   int              `json:"capacity"`
	Enrolled   int              `json:"enrolled"`
	Sections   []OfferedSection `json:"sections"`
}

type OfferedSection struct {
	Group      string   `json:"group"`
	TimeSlots  []string `json:"time_slots"`
	Instructor string   `json:"instructor"`
}

// FindCourse looks a course code up across grouped, general and advanced
// catalogs. The first match wins; grouped offerings are searched first
// because they carry the schedule most specific to the student.
func (o *SemesterOfferings) FindCourse(code string) *OfferedCourse {
	for gi := range o.AvailableGroups {
		for ci := range o.AvailableGroups[gi].Courses {
			if o.AvailableGroups[gi].Courses[ci].CourseCode == code {
				return &o.AvailableGroups[gi].Courses[ci]
			}
		}
	}
	for ci := range o.GeneralCourses {
		if o.GeneralCourses[ci].CourseCode == code {
			return &o.GeneralCourses[ci]
		}
	}
	for ci := range o.AdvancedCourses {
		if o.AdvancedCourses[ci].CourseCode == code {
			return &o.AdvancedCourses[ci]
		}
	}
	return nil
}

// GeneralCourseRules captures the cross-cutting general-education rules
// (religious studies, physical education, language chain).
type GeneralCourseRules struct {
	CourseCategories struct {
		ReligiousCourses  CourseCategory `json:"religious_courses"`
		PhysicalEducation CourseCategory `json:"physical_education"`
		LanguageCourses   CourseCategory `json:"language_courses"`
	} `json:"course_categories"`
}

type CourseCategory struct {
	Courses []GeneralCourse `json:"courses"`
}

type GeneralCourse struct {
	CourseCode    string   `json:"course_code"`
	CourseName    string   `json:"course_name"`
	Credits       int      `json:"credits"`
	Prerequisites []string `json:"prerequisites"`
}

func (c *CourseCategory) Codes() []string {
	codes := make([]string, 0, len(c.Courses))
	for _, course := range c.Courses {
		codes = append(codes, course.CourseCode)
	}
	return codes
}
