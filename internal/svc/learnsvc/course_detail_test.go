package learnsvc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/learnai-dashboard/internal/domain"
	"github.com/mkrupp/learnai-dashboard/internal/repo/course"
	"github.com/mkrupp/learnai-dashboard/internal/repo/kv"
	"github.com/mkrupp/learnai-dashboard/internal/svc/learnsvc"
	"github.com/mkrupp/learnai-dashboard/internal/svc/sessionsvc"
)

func TestLearnService_OpenCourse_Access(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name     string
		hydrate  bool
		login    bool
		enroll   string
		courseID string
		wantErr  error
	}{
		{name: "not hydrated", courseID: "1", wantErr: learnsvc.ErrNotHydrated},
		{name: "anonymous", hydrate: true, courseID: "1", wantErr: domain.ErrNoActiveUser},
		{name: "not enrolled", hydrate: true, login: true, courseID: "1", wantErr: domain.ErrNotEnrolled},
		{name: "enrolled in unknown course", hydrate: true, login: true, enroll: "99", courseID: "99", wantErr: domain.ErrCourseNotFound},
		{name: "enrolled", hydrate: true, login: true, enroll: "1", courseID: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, store := newTestService(t, tt.hydrate)

			if tt.login {
				require.NoError(t, store.Login(ctx, "a@x.com", "A"))
			}

			if tt.enroll != "" {
				require.NoError(t, store.Enroll(ctx, tt.enroll))
			}

			detail, err := svc.OpenCourse(ctx, tt.courseID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.courseID, detail.CourseID())
		})
	}
}

func TestCourseDetail_ToggleLesson(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newTestService(t, true)
	require.NoError(t, store.Login(ctx, "a@x.com", "A"))
	require.NoError(t, store.Enroll(ctx, "1"))

	detail, err := svc.OpenCourse(ctx, "1")
	require.NoError(t, err)

	view := detail.View()
	assert.Equal(t, domain.LessonProgress{Completed: 3, Total: 6, Percent: 50}, view.LessonProgress)
	assert.Equal(t, 60, view.CatalogProgress)
	assert.True(t, view.ProgressDiverges)
	assert.False(t, view.Complete)

	require.NoError(t, detail.ToggleLesson("1-4"))
	view = detail.View()
	assert.Equal(t, domain.LessonProgress{Completed: 4, Total: 6, Percent: 67}, view.LessonProgress)
	assert.True(t, view.Lessons[3].Completed)
	assert.False(t, view.Course.Lessons[3].Completed, "course record keeps catalog flags")

	require.ErrorIs(t, detail.ToggleLesson("2-1"), domain.ErrLessonNotFound)

	for _, id := range []string{"1-5", "1-6"} {
		require.NoError(t, detail.ToggleLesson(id))
	}

	view = detail.View()
	assert.Equal(t, 100, view.LessonProgress.Percent)
	assert.True(t, view.Complete)

	reopened, err := svc.OpenCourse(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 50, reopened.View().LessonProgress.Percent, "reopening discards toggles")
}

func TestCourseDetail_CatalogUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	catalog := course.NewDefaultRepository()

	repo := kv.NewMemoryKVRepository()
	store, err := sessionsvc.NewStore(ctx, func(context.Context) (kv.Repository, error) { return repo, nil })
	require.NoError(t, err)
	store.Hydrate(ctx)
	require.NoError(t, store.Login(ctx, "a@x.com", "A"))
	require.NoError(t, store.Enroll(ctx, "2"))

	svc := learnsvc.NewLearnService(store, catalog)

	detail, err := svc.OpenCourse(ctx, "2")
	require.NoError(t, err)

	for _, l := range detail.View().Lessons {
		require.NoError(t, detail.ToggleLesson(l.ID))
	}

	c, _ := catalog.FindCourseByID("2")
	assert.Equal(t, 2, domain.ComputeLessonProgress(c.Lessons).Completed)

	persisted := repo.Snapshot()
	assert.Equal(t, `["2"]`, persisted[sessionsvc.EnrollmentsKey("a@x.com")], "toggles are not persisted")
}
