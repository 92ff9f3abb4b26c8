package domain

import "errors"

var (
	// ErrCourseNotFound is returned when a course ID is not in the catalog.
	ErrCourseNotFound = errors.New("course not found")
	// ErrLessonNotFound is returned when a lesson ID is not part of a course.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrNotEnrolled is returned when the active user is not enrolled in a course.
	ErrNotEnrolled = errors.New("not enrolled")
)

// Level is the difficulty of a course.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// Lesson is a single unit of a course.
type Lesson struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Duration  string `json:"duration"` // Human readable, e.g. "15 min"
	Completed bool   `json:"completed"`
}

// Course is a catalog entry. Courses are reference data and must not be mutated
// once published in a catalog; use Clone for view-local changes.
type Course struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Progress    int      `json:"progress"` // Stored percentage, independent of lesson flags
	Level       Level    `json:"level"`
	Instructor  string   `json:"instructor"`
	Thumbnail   string   `json:"thumbnail"` // Gradient tokens, e.g. "from-purple-500 to-blue-500"
	Duration    string   `json:"duration"`
	LessonCount int      `json:"lessonCount"`
	Lessons     []Lesson `json:"lessons"`
}

// Clone returns a deep copy of the course.
func (c Course) Clone() Course {
	c.Lessons = CloneLessons(c.Lessons)

	return c
}

// CloneLessons returns a copy of the lesson list that shares no memory with lessons.
func CloneLessons(lessons []Lesson) []Lesson {
	if lessons == nil {
		return nil
	}

	out := make([]Lesson, len(lessons))
	copy(out, lessons)

	return out
}
