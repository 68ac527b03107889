package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"coursewise_backend/internal/config"
	"coursewise_backend/internal/model"
	"coursewise_backend/internal/util"
	"coursewise_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	curriculumPost1403File = "curriculum_1403_onwards.json"
	curriculumPre1403File  = "curriculum_before_1403.json"
	generalCoursesFile     = "general_courses.json"
	offeringsDir           = "offerings"
)

// objectStore abstracts where reference JSON lives: local disk in
// development, a MinIO bucket in deployment.
type objectStore interface {
	ReadObject(ctx context.Context, name string) ([]byte, error)
}

type localStore struct {
	basePath string
}

func (s *localStore) ReadObject(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(name)))
}

type minioStore struct {
	client *minio.Client
	bucket string
}

func (s *minioStore) ReadObject(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// CurriculumRepository serves parsed curriculum charts, general-course
// rules and per-semester offerings. Parsed documents are cached in memory
// behind a RWMutex; offerings additionally pass through Redis so several
// instances share one parse of the same semester file.
type CurriculumRepository struct {
	store    objectStore
	redis    *redis.Client
	cacheTTL time.Duration

	mu        sync.RWMutex
	charts    map[model.CurriculumVersion]*model.CurriculumChart
	general   *model.GeneralCourseRules
	offerings map[string]*model.SemesterOfferings
}

func NewCurriculumRepository(cfg *config.DataConfig, rdb *redis.Client) (*CurriculumRepository, error) {
	var store objectStore
	switch cfg.Type {
	case "minio":
		client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
			Secure: cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init minio data store: %w", err)
		}
		store = &minioStore{client: client, bucket: cfg.MinioBucket}
	default:
		store = &localStore{basePath: cfg.LocalPath}
	}

	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &CurriculumRepository{
		store:     store,
		redis:     rdb,
		cacheTTL:  ttl,
		charts:    make(map[model.CurriculumVersion]*model.CurriculumChart),
		offerings: make(map[string]*model.SemesterOfferings),
	}, nil
}

// ChartFor returns the curriculum chart governing the given entry year.
func (r *CurriculumRepository) ChartFor(ctx context.Context, entryYear int) (*model.CurriculumChart, error) {
	version := model.CurriculumVersionFor(entryYear)

	r.mu.RLock()
	chart, ok := r.charts[version]
	r.mu.RUnlock()
	if ok {
		return chart, nil
	}

	name := curriculumPre1403File
	if version == model.CurriculumPost1403 {
		name = curriculumPost1403File
	}

	data, err := r.store.ReadObject(ctx, name)
	if err != nil {
		logger.Log.Error("Failed to read curriculum chart", zap.String("file", name), zap.Error(err))
		return nil, util.ErrCurriculumUnavailable
	}

	chart = &model.CurriculumChart{}
	if err := json.Unmarshal(data, chart); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := validateChart(chart, name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.charts[version] = chart
	r.mu.Unlock()
	return chart, nil
}

// GeneralRules returns the cross-cutting general-education rules document.
func (r *CurriculumRepository) GeneralRules(ctx context.Context) (*model.GeneralCourseRules, error) {
	r.mu.RLock()
	rules := r.general
	r.mu.RUnlock()
	if rules != nil {
		return rules, nil
	}

	data, err := r.store.ReadObject(ctx, generalCoursesFile)
	if err != nil {
		logger.Log.Error("Failed to read general course rules", zap.Error(err))
		return nil, util.ErrCurriculumUnavailable
	}

	rules = &model.GeneralCourseRules{}
	if err := json.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("parse %s: %w", generalCoursesFile, err)
	}

	r.mu.Lock()
	r.general = rules
	r.mu.Unlock()
	return rules, nil
}

// OfferingsFor returns the offerings catalog for a semester key such as
// "mehr_1404".
func (r *CurriculumRepository) OfferingsFor(ctx context.Context, semester string) (*model.SemesterOfferings, error) {
	r.mu.RLock()
	off, ok := r.offerings[semester]
	r.mu.RUnlock()
	if ok {
		return off, nil
	}

	name := offeringsDir + "/" + semester + ".json"
	data, err := r.readThroughRedis(ctx, name)
	if err != nil {
		logger.Log.Error("Failed to read semester offerings",
			zap.String("semester", semester), zap.Error(err))
		return nil, util.ErrOfferingsUnavailable
	}

	off = &model.SemesterOfferings{}
	if err := json.Unmarshal(data, off); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := validateOfferings(off, name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.offerings[semester] = off
	r.mu.Unlock()
	return off, nil
}

// Invalidate drops all cached documents so the next read reparses.
func (r *CurriculumRepository) Invalidate() {
	r.mu.Lock()
	r.charts = make(map[model.CurriculumVersion]*model.CurriculumChart)
	r.general = nil
	r.offerings = make(map[string]*model.SemesterOfferings)
	r.mu.Unlock()
}

func (r *CurriculumRepository) readThroughRedis(ctx context.Context, name string) ([]byte, error) {
	if r.redis == nil {
		return r.store.ReadObject(ctx, name)
	}

	key := "coursewise:data:" + name
	if data, err := r.redis.Get(ctx, key).Bytes(); err == nil {
		return data, nil
	}

	data, err := r.store.ReadObject(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := r.redis.Set(ctx, key, data, r.cacheTTL).Err(); err != nil {
		logger.Log.Warn("Failed to cache reference data in redis", zap.Error(err))
	}
	return data, nil
}

// validateChart rejects malformed charts at parse time. A course entry
// without a code cannot participate in any rule and would fail far from
// the source otherwise.
func validateChart(chart *model.CurriculumChart, name string) error {
	if chart.TotalCreditsRequired <= 0 {
		return fmt.Errorf("%s: total_credits_required missing", name)
	}
	for semKey, sem := range chart.Semesters {
		for i, course := range sem.Courses {
			if course.CourseCode == "" {
				return fmt.Errorf("%s: semester %s course %d has no course_code", name, semKey, i)
			}
		}
	}
	return nil
}

func validateOfferings(off *model.SemesterOfferings, name string) error {
	check := func(where string, courses []model.OfferedCourse) error {
		for i, c := range courses {
			if c.CourseCode == "" {
				return fmt.Errorf("%s: %s course %d has no course_code", name, where, i)
			}
		}
		return nil
	}
	for _, g := range off.AvailableGroups {
		if err := check("group "+g.GroupID, g.Courses); err != nil {
			return err
		}
	}
	if err := check("general", off.GeneralCourses); err != nil {
		return err
	}
	return check("advanced", off.AdvancedCourses)
}
