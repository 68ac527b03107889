package util

import "errors"

var (
	ErrStudentNotFound       = errors.New("student not found")
	ErrStudentExists         = errors.New("student already registered")
	ErrCourseNotFound        = errors.New("course not found")
	ErrCurriculumUnavailable = errors.New("curriculum chart unavailable")
	ErrOfferingsUnavailable  = errors.New("semester offerings unavailable")
	ErrNoCoursesExtracted    = errors.New("no courses could be extracted from response")
	ErrLLMUnavailable        = errors.New("language model unavailable")
)
