package course_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/learnai-dashboard/internal/domain"
	"github.com/mkrupp/learnai-dashboard/internal/repo/course"
)

func TestDefaultRepository_Catalog(t *testing.T) {
	t.Parallel()

	repo := course.NewDefaultRepository()
	courses := repo.AllCourses()
	require.Len(t, courses, 6)

	tests := []struct {
		id          string
		title       string
		progress    int
		level       domain.Level
		lessonCount int
		lessons     int
		completed   int
	}{
		{id: "1", title: "Blockchain Basics", progress: 60, level: domain.LevelBeginner, lessonCount: 58, lessons: 6, completed: 3},
		{id: "2", title: "Solidity Smart Contract Development", progress: 45, level: domain.LevelIntermediate, lessonCount: 52, lessons: 5, completed: 2},
		{id: "3", title: "Foundry Fundamentals", progress: 70, level: domain.LevelIntermediate, lessonCount: 48, lessons: 5, completed: 3},
		{id: "4", title: "Advanced Foundry", progress: 80, level: domain.LevelAdvanced, lessonCount: 55, lessons: 5, completed: 3},
		{id: "5", title: "Uniswap v4", progress: 35, level: domain.LevelAdvanced, lessonCount: 42, lessons: 5, completed: 1},
		{id: "6", title: "Full-Stack Web3 Development Crash Course", progress: 55, level: domain.LevelIntermediate, lessonCount: 60, lessons: 6, completed: 2},
	}

	for i, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()

			c := courses[i]
			assert.Equal(t, tt.id, c.ID, "insertion order")
			assert.Equal(t, tt.title, c.Title)
			assert.Equal(t, tt.progress, c.Progress)
			assert.Equal(t, tt.level, c.Level)
			assert.Equal(t, tt.lessonCount, c.LessonCount)
			require.Len(t, c.Lessons, tt.lessons)
			assert.Equal(t, tt.completed, domain.ComputeLessonProgress(c.Lessons).Completed)
			assert.NotEmpty(t, c.Thumbnail)
		})
	}
}

func TestStaticRepository_FindCourseByID(t *testing.T) {
	t.Parallel()

	repo := course.NewDefaultRepository()

	c, found := repo.FindCourseByID("3")
	require.True(t, found)
	assert.Equal(t, "Foundry Fundamentals", c.Title)
	assert.Equal(t, "3-1", c.Lessons[0].ID)

	_, found = repo.FindCourseByID("999")
	assert.False(t, found)

	_, found = repo.FindCourseByID("")
	assert.False(t, found)
}

func TestStaticRepository_MutationsDoNotLeak(t *testing.T) {
	t.Parallel()

	repo := course.NewDefaultRepository()

	c, _ := repo.FindCourseByID("1")
	c.Title = "changed"
	c.Lessons[3].Completed = true

	all := repo.AllCourses()
	all[0].Lessons[4].Completed = true
	all[1].Progress = 0

	fresh, _ := repo.FindCourseByID("1")
	assert.Equal(t, "Blockchain Basics", fresh.Title)
	assert.False(t, fresh.Lessons[3].Completed)
	assert.False(t, fresh.Lessons[4].Completed)

	second, _ := repo.FindCourseByID("2")
	assert.Equal(t, 45, second.Progress)
}

func TestNewStaticRepository_DuplicateIDs(t *testing.T) {
	t.Parallel()

	repo := course.NewStaticRepository([]domain.Course{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "other"},
		{ID: "a", Title: "second"},
	})

	assert.Len(t, repo.AllCourses(), 2)

	c, _ := repo.FindCourseByID("a")
	assert.Equal(t, "first", c.Title)
}

func TestNewRepository(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	valid := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(valid, []byte(`[{"id":"x","title":"X","lessons":[]}]`), 0o600))

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`[{"id":"x","unknown":1}]`), 0o600))

	tests := []struct {
		name    string
		path    string
		wantLen int
		wantErr bool
	}{
		{name: "built-in", path: "", wantLen: 6},
		{name: "file", path: valid, wantLen: 1},
		{name: "unknown field", path: invalid, wantErr: true},
		{name: "missing file", path: filepath.Join(dir, "missing.json"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo, err := course.NewRepository(course.RepositoryConfig{Path: tt.path})
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Len(t, repo.AllCourses(), tt.wantLen)
		})
	}
}
