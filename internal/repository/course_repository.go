package repository

import (
	"errors"

	"coursewise_backend/internal/model"
	"coursewise_backend/internal/util"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) FindByCode(code string) (*model.Course, error) {
	var course model.Course
	err := r.DB.Where("course_code = ?", code).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	return &course, err
}

func (r *CourseRepository) FindByCodes(codes []string) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Where("course_code IN ?", codes).Find(&courses).Error
	return courses, err
}

// FindOrCreateByCode upserts a course record from parsed grade input where
// only partial course information is known.
func (r *CourseRepository) FindOrCreateByCode(course *model.Course) (*model.Course, error) {
	var existing model.Course
	err := r.DB.Where("course_code = ?", course.CourseCode).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := r.DB.Create(course).Error; err != nil {
		return nil, err
	}
	return course, nil
}

func (r *CourseRepository) All() ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.Order("course_code ASC").Find(&courses).Error
	return courses, err
}
