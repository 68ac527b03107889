package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"coursewise_backend/internal/config"
	"coursewise_backend/internal/model"
	"coursewise_backend/internal/util"
	"coursewise_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	logger.Log = zap.NewNop()
}

func newTestRepo(t *testing.T, files map[string]string) *CurriculumRepository {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	repo, err := NewCurriculumRepository(&config.DataConfig{Type: "local", LocalPath: dir}, nil)
	require.NoError(t, err)
	return repo
}

const validChart = `{
	"entry_years": [1403],
	"description": "چارت آزمایشی",
	"total_credits_required": 140,
	"semesters": {
		"1": {"semester_name": "نیمسال اول", "courses": [
			{"course_code": "MATH101", "course_name": "ریاضی 1", "theoretical_credits": 3, "prerequisites": [], "is_mandatory": true}
		]}
	},
	"specialization_tracks": {"tracks": [
		{"track_name": "هوش مصنوعی", "courses": ["CS401"], "min_credits": 6}
	]},
	"general_electives": []
}`

func TestChartForParsesAndCaches(t *testing.T) {
	repo := newTestRepo(t, map[string]string{"curriculum_1403_onwards.json": validChart})

	chart, err := repo.ChartFor(context.Background(), 1403)
	require.NoError(t, err)
	assert.Equal(t, 140, chart.TotalCreditsRequired)
	require.Contains(t, chart.Semesters, "1")
	assert.Equal(t, "MATH101", chart.Semesters["1"].Courses[0].CourseCode)

	// Cached copy survives the file disappearing.
	again, err := repo.ChartFor(context.Background(), 1404)
	require.NoError(t, err)
	assert.Same(t, chart, again)
}

func TestChartForSelectsVersionByEntryYear(t *testing.T) {
	preChart := `{
		"entry_years": [1402],
		"total_credits_required": 138,
		"semesters": {},
		"specialization_tracks": {"tracks": []},
		"general_electives": []
	}`
	repo := newTestRepo(t, map[string]string{
		"curriculum_1403_onwards.json": validChart,
		"curriculum_before_1403.json":  preChart,
	})

	post, err := repo.ChartFor(context.Background(), 1403)
	require.NoError(t, err)
	pre, err := repo.ChartFor(context.Background(), 1402)
	require.NoError(t, err)

	assert.Equal(t, 140, post.TotalCreditsRequired)
	assert.Equal(t, 138, pre.TotalCreditsRequired)
}

func TestChartForMissingFile(t *testing.T) {
	repo := newTestRepo(t, nil)

	_, err := repo.ChartFor(context.Background(), 1403)
	assert.ErrorIs(t, err, util.ErrCurriculumUnavailable)
}

func TestChartForRejectsMissingCourseCode(t *testing.T) {
	bad := `{
		"total_credits_required": 140,
		"semesters": {
			"1": {"courses": [{"course_name": "بدون کد", "theoretical_credits": 3}]}
		}
	}`
	repo := newTestRepo(t, map[string]string{"curriculum_1403_onwards.json": bad})

	_, err := repo.ChartFor(context.Background(), 1403)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "course_code")
}

func TestOfferingsForAcceptsBothCreditForms(t *testing.T) {
	offerings := `{
		"semester": "mehr_1404",
		"group_based_system": true,
		"available_groups": [
			{"group_id": "A", "courses": [
				{"course_code": "CS101", "course_name": "مبانی", "credits": {"theoretical": 3, "practical": 1}}
			]}
		],
		"general_courses": [
			{"course_code": "GEN201", "course_name": "اندیشه", "credits": 2}
		],
		"advanced_courses": []
	}`
	repo := newTestRepo(t, map[string]string{"offerings/mehr_1404.json": offerings})

	off, err := repo.OfferingsFor(context.Background(), "mehr_1404")
	require.NoError(t, err)

	cs := off.FindCourse("CS101")
	require.NotNil(t, cs)
	assert.Equal(t, 4, cs.Credits.Total())

	gen := off.FindCourse("GEN201")
	require.NotNil(t, gen)
	assert.Equal(t, 2, gen.Credits.Total())
}

func TestOfferingsForRejectsMissingCourseCode(t *testing.T) {
	bad := `{
		"semester": "mehr_1404",
		"general_courses": [{"course_name": "بدون کد", "credits": 2}],
		"advanced_courses": []
	}`
	repo := newTestRepo(t, map[string]string{"offerings/mehr_1404.json": bad})

	_, err := repo.OfferingsFor(context.Background(), "mehr_1404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "course_code")
}

func TestOfferingsForMissingSemester(t *testing.T) {
	repo := newTestRepo(t, nil)

	_, err := repo.OfferingsFor(context.Background(), "bahman_1404")
	assert.ErrorIs(t, err, util.ErrOfferingsUnavailable)
}

func TestInvalidateDropsCaches(t *testing.T) {
	repo := newTestRepo(t, map[string]string{"curriculum_1403_onwards.json": validChart})

	_, err := repo.ChartFor(context.Background(), 1403)
	require.NoError(t, err)

	repo.Invalidate()

	// After invalidation the file is gone, so the read fails instead of
	// serving the stale cache.
	store := repo.store.(*localStore)
	require.NoError(t, os.Remove(filepath.Join(store.basePath, "curriculum_1403_onwards.json")))

	_, err = repo.ChartFor(context.Background(), 1403)
	assert.ErrorIs(t, err, util.ErrCurriculumUnavailable)
}

func TestGeneralRulesParsing(t *testing.T) {
	rules := `{
		"course_categories": {
			"religious_courses": {"courses": [{"course_code": "GEN201", "course_name": "اندیشه", "credits": 2, "prerequisites": []}]},
			"physical_education": {"courses": [{"course_code": "PE101", "course_name": "تربیت بدنی", "credits": 1, "prerequisites": []}]},
			"language_courses": {"courses": [{"course_code": "LANG201", "course_name": "زبان تخصصی", "credits": 2, "prerequisites": ["LANG101"]}]}
		}
	}`
	repo := newTestRepo(t, map[string]string{"general_courses.json": rules})

	parsed, err := repo.GeneralRules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GEN201"}, parsed.CourseCategories.ReligiousCourses.Codes())
	assert.Equal(t, []string{"LANG101"}, parsed.CourseCategories.LanguageCourses.Courses[0].Prerequisites)
}

func TestCurriculumVersionFor(t *testing.T) {
	assert.Equal(t, model.CurriculumPre1403, model.CurriculumVersionFor(1402))
	assert.Equal(t, model.CurriculumPost1403, model.CurriculumVersionFor(1403))
}
