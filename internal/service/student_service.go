package service

import (
	"context"

	"coursewise_backend/internal/model"
	"coursewise_backend/internal/repository"
	"coursewise_backend/internal/util"
	"coursewise_backend/pkg/logger"

	"go.uber.org/zap"
)

// StudentService covers registration and grade intake. Status analysis
// lives in AnalyzerService; this service only manages the records the
// analyzer reads.
type StudentService struct {
	StudentRepo *repository.StudentRepository
	CourseRepo  *repository.CourseRepository
	Parser      *GradeParser
}

func NewStudentService(studentRepo *repository.StudentRepository, courseRepo *repository.CourseRepository, parser *GradeParser) *StudentService {
	return &StudentService{
		StudentRepo: studentRepo,
		CourseRepo:  courseRepo,
		Parser:      parser,
	}
}

type RegisterStudentInput struct {
	TelegramID      int64  `json:"telegramId"`
	StudentNumber   string `json:"studentNumber" binding:"required"`
	FullName        string `json:"fullName" binding:"required"`
	EntryYear       int    `json:"entryYear" binding:"required"`
	CurrentSemester int    `json:"currentSemester" binding:"required"`
}

func (s *StudentService) Register(input RegisterStudentInput) (*model.Student, error) {
	if input.TelegramID != 0 {
		if _, err := s.StudentRepo.FindByTelegramID(input.TelegramID); err == nil {
			return nil, util.ErrStudentExists
		}
	}

	student := &model.Student{
		TelegramID:      input.TelegramID,
		StudentNumber:   input.StudentNumber,
		FullName:        input.FullName,
		EntryYear:       input.EntryYear,
		CurrentSemester: input.CurrentSemester,
	}
	if err := s.StudentRepo.Create(student); err != nil {
		return nil, err
	}

	logger.Log.Info("Registered student",
		zap.Uint("studentId", student.ID),
		zap.Int("entryYear", student.EntryYear))
	return student, nil
}

func (s *StudentService) Get(studentID uint) (*model.Student, error) {
	return s.StudentRepo.FindByID(studentID)
}

// ParseGrades runs the grade-text parser against the known course list so
// Persian course names can be matched to codes.
func (s *StudentService) ParseGrades(ctx context.Context, studentID uint, text string) (model.GradeParseResult, string, error) {
	if _, err := s.StudentRepo.FindByID(studentID); err != nil {
		return model.GradeParseResult{}, "", err
	}

	courses, err := s.CourseRepo.All()
	if err != nil {
		logger.Log.Warn("Course list unavailable for grade parsing", zap.Error(err))
		courses = nil
	}

	result := s.Parser.ParseGradeText(ctx, text, courses)
	return result, s.Parser.FormatGradesForConfirmation(result), nil
}

// GradeEntry is one confirmed grade the student submits after reviewing
// the parsed summary.
type GradeEntry struct {
	CourseCode    string   `json:"courseCode" binding:"required"`
	CourseName    string   `json:"courseName"`
	Grade         *float64 `json:"grade"`
	Status        string   `json:"status"`
	SemesterTaken int      `json:"semesterTaken"`
}

// ConfirmGrades persists reviewed grade entries. Unknown course codes are
// created on the fly with default credits so the attempt is never lost.
func (s *StudentService) ConfirmGrades(studentID uint, entries []GradeEntry) (int, error) {
	if _, err := s.StudentRepo.FindByID(studentID); err != nil {
		return 0, err
	}

	saved := 0
	for _, entry := range entries {
		course, err := s.CourseRepo.FindOrCreateByCode(&model.Course{
			CourseCode:         entry.CourseCode,
			CourseName:         entry.CourseName,
			TheoreticalCredits: 3,
			CourseType:         model.CourseTypeGeneral,
		})
		if err != nil {
			return saved, err
		}

		status := entry.Status
		if status == "" && entry.Grade != nil {
			status = model.GradeStatusPassed
			if *entry.Grade < model.PassingGrade {
				status = model.GradeStatusFailed
			}
		}

		grade := &model.StudentGrade{
			StudentID:     studentID,
			CourseID:      course.ID,
			Grade:         entry.Grade,
			Status:        status,
			SemesterTaken: entry.SemesterTaken,
		}
		if err := s.StudentRepo.AddGrade(grade); err != nil {
			return saved, err
		}
		saved++
	}

	logger.Log.Info("Recorded grades", zap.Uint("studentId", studentID), zap.Int("count", saved))
	return saved, nil
}
