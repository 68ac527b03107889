package repository

import (
	"errors"

	"coursewise_backend/internal/model"
	"coursewise_backend/internal/util"

	"gorm.io/gorm"
)

type StudentRepository struct {
	DB *gorm.DB
}

func NewStudentRepository(db *gorm.DB) *StudentRepository {
	return &StudentRepository{DB: db}
}

func (r *StudentRepository) Create(student *model.Student) error {
	return r.DB.Create(student).Error
}

func (r *StudentRepository) FindByID(id uint) (*model.Student, error) {
	var student model.Student
	err := r.DB.First(&student, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrStudentNotFound
	}
	return &student, err
}

// FindByIDWithGrades loads the student together with every grade attempt
// and the course each attempt belongs to.
func (r *StudentRepository) FindByIDWithGrades(id uint) (*model.Student, error) {
	var student model.Student
	err := r.DB.Preload("Grades.Course").First(&student, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrStudentNotFound
	}
	return &student, err
}

func (r *StudentRepository) FindByTelegramID(telegramID int64) (*model.Student, error) {
	var student model.Student
	err := r.DB.Where("telegram_id = ?", telegramID).First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrStudentNotFound
	}
	return &student, err
}

func (r *StudentRepository) Update(student *model.Student) error {
	return r.DB.Save(student).Error
}

// AddGrade records one course attempt. The attempt number is derived from
// existing attempts for the same course so callers never pass it.
func (r *StudentRepository) AddGrade(grade *model.StudentGrade) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var prior int64
		if err := tx.Model(&model.StudentGrade{}).
			Where("student_id = ? AND course_id = ?", grade.StudentID, grade.CourseID).
			Count(&prior).Error; err != nil {
			return err
		}
		grade.AttemptNumber = int(prior) + 1
		return tx.Create(grade).Error
	})
}

func (r *StudentRepository) GradesForStudent(studentID uint) ([]model.StudentGrade, error) {
	var grades []model.StudentGrade
	err := r.DB.Preload("Course").
		Where("student_id = ?", studentID).
		Order("semester_taken ASC, attempt_number ASC").
		Find(&grades).Error
	return grades, err
}
