package domain

import "math"

// LessonProgress is the completion state of a lesson list.
type LessonProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"` // 0..100, 0 for an empty list
}

// AggregateProgress summarizes a set of courses.
type AggregateProgress struct {
	TotalLessons   int `json:"totalLessons"`   // Sum of LessonCount
	AveragePercent int `json:"averagePercent"` // Rounded mean of the stored Progress fields
}

// ComputeLessonProgress counts completed lessons and derives the rounded percentage.
func ComputeLessonProgress(lessons []Lesson) LessonProgress {
	var completed int

	for _, lesson := range lessons {
		if lesson.Completed {
			completed++
		}
	}

	return LessonProgress{
		Completed: completed,
		Total:     len(lessons),
		Percent:   roundedRatio(completed*100, len(lessons)),
	}
}

// ComputeAggregateProgress sums lesson counts and averages the stored course progress.
// Note that it reads Course.Progress, not the lesson flags.
func ComputeAggregateProgress(courses []Course) AggregateProgress {
	var totalLessons, totalPercent int

	for _, course := range courses {
		totalLessons += course.LessonCount
		totalPercent += course.Progress
	}

	return AggregateProgress{
		TotalLessons:   totalLessons,
		AveragePercent: roundedRatio(totalPercent, len(courses)),
	}
}

// IsCourseComplete reports whether the rounded lesson percentage reaches 100.
// False for an empty list.
func IsCourseComplete(lessons []Lesson) bool {
	return ComputeLessonProgress(lessons).Percent == 100
}

// roundedRatio returns round(num/den), rounding halves up, or 0 when den is 0.
func roundedRatio(num, den int) int {
	if den == 0 {
		return 0
	}

	return int(math.Floor(float64(num)/float64(den) + 0.5))
}
