package learnsvc

import (
	"context"
	"sync"

	"github.com/mkrupp/learnai-dashboard/internal/domain"
)

// CourseDetail is an opened course with view-local lesson completion flags. Toggles
// never reach the catalog or the session store and are lost when the course is
// opened again.
type CourseDetail struct {
	m       sync.Mutex
	course  domain.Course
	lessons []domain.Lesson
}

// CourseDetailView is a snapshot of a CourseDetail.
type CourseDetailView struct {
	Course          domain.Course         `json:"course"`
	Lessons         []domain.Lesson       `json:"lessons"`
	LessonProgress  domain.LessonProgress `json:"lessonProgress"`
	CatalogProgress int                   `json:"catalogProgress"`
	// ProgressDiverges is set when lesson flags and the stored course progress disagree.
	ProgressDiverges bool `json:"progressDiverges"`
	Complete         bool `json:"complete"`
}

// OpenCourse opens courseID for the active user.
// Returns ErrNotHydrated, domain.ErrNoActiveUser, domain.ErrNotEnrolled or
// domain.ErrCourseNotFound, checked in that order.
func (s *LearnService) OpenCourse(ctx context.Context, courseID string) (*CourseDetail, error) {
	snap := s.session.Snapshot()

	switch {
	case !snap.Hydrated:
		return nil, ErrNotHydrated
	case snap.User == nil:
		return nil, domain.ErrNoActiveUser
	case !s.session.IsEnrolled(courseID):
		return nil, domain.ErrNotEnrolled
	}

	c, found := s.catalog.FindCourseByID(courseID)
	if !found {
		return nil, domain.ErrCourseNotFound
	}

	s.log.DebugContext(ctx, "course opened", "course", c.ID)

	return &CourseDetail{
		course:  c,
		lessons: domain.CloneLessons(c.Lessons),
	}, nil
}

// CourseID returns the ID of the opened course.
func (d *CourseDetail) CourseID() string {
	return d.course.ID
}

// ToggleLesson flips the completion flag of lessonID.
// Returns domain.ErrLessonNotFound if the course has no such lesson.
func (d *CourseDetail) ToggleLesson(lessonID string) error {
	d.m.Lock()
	defer d.m.Unlock()

	for i := range d.lessons {
		if d.lessons[i].ID == lessonID {
			d.lessons[i].Completed = !d.lessons[i].Completed

			return nil
		}
	}

	return domain.ErrLessonNotFound
}

// View returns the current state of the detail.
func (d *CourseDetail) View() CourseDetailView {
	d.m.Lock()
	defer d.m.Unlock()

	lessons := domain.CloneLessons(d.lessons)
	progress := domain.ComputeLessonProgress(lessons)

	return CourseDetailView{
		Course:           d.course.Clone(),
		Lessons:          lessons,
		LessonProgress:   progress,
		CatalogProgress:  d.course.Progress,
		ProgressDiverges: progress.Percent != d.course.Progress,
		Complete:         domain.IsCourseComplete(lessons),
	}
}
