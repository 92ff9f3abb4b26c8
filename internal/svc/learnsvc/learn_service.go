// Package learnsvc derives the dashboard, catalog and course detail views from the
// session store and the course catalog, and serves them over HTTP.
package learnsvc

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mkrupp/learnai-dashboard/internal/domain"
	"github.com/mkrupp/learnai-dashboard/internal/infra/logging"
	"github.com/mkrupp/learnai-dashboard/internal/repo/course"
	"github.com/mkrupp/learnai-dashboard/internal/svc/sessionsvc"
)

// ErrNotHydrated is returned by views that cannot be built before the session is loaded.
var ErrNotHydrated = errors.New("session not hydrated")

const (
	// DemoEmail and DemoUsername identify the one-click demo account.
	DemoEmail    = "demo@student.learnai.app"
	DemoUsername = "Demo Learner"

	recommendedLimit = 3
)

// Session is the part of the session store the views depend on.
type Session interface {
	Snapshot() sessionsvc.Snapshot
	Login(ctx context.Context, email, username string) error
	Logout(ctx context.Context)
	Enroll(ctx context.Context, courseID string) error
	Unenroll(ctx context.Context, courseID string) error
	IsEnrolled(courseID string) bool
}

var _ Session = (*sessionsvc.Store)(nil)

// LearnService builds view models from session state and catalog data. It holds no
// view state of its own; every call re-derives from the current snapshot.
type LearnService struct {
	session Session
	catalog course.Repository
	log     logging.Logger
}

// NewLearnService creates a LearnService.
func NewLearnService(session Session, catalog course.Repository) *LearnService {
	return &LearnService{
		session: session,
		catalog: catalog,
		log:     logging.GetLogger("svc.learnsvc.learn_service"),
	}
}

// DemoLogin logs in the demo account.
func (s *LearnService) DemoLogin(ctx context.Context) error {
	if err := s.session.Login(ctx, DemoEmail, DemoUsername); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	return nil
}

// DashboardView is the learner's home screen.
type DashboardView struct {
	Ready           bool            `json:"ready"`
	User            *domain.User    `json:"user,omitempty"`
	Query           string          `json:"query,omitempty"`
	MyCourses       []domain.Course `json:"myCourses"`
	Results         []domain.Course `json:"results"`
	HasAnyEnrolled  bool            `json:"hasAnyEnrolled"`
	TotalLessons    int             `json:"totalLessons"`
	AverageProgress int             `json:"averageProgress"`
	PrimaryCourse   *domain.Course  `json:"primaryCourse,omitempty"`
	Recommended     []domain.Course `json:"recommended"`
}

// Dashboard builds the dashboard for the active user. Results holds the enrolled courses
// whose title or description contains query, ignoring case.
// Returns domain.ErrNoActiveUser for anonymous sessions. Before hydration the view is
// returned with Ready unset.
func (s *LearnService) Dashboard(ctx context.Context, query string) (view DashboardView, err error) {
	snap := s.session.Snapshot()
	if !snap.Hydrated {
		return DashboardView{}, nil //nolint:exhaustruct
	}

	if snap.User == nil {
		return DashboardView{}, domain.ErrNoActiveUser //nolint:exhaustruct
	}

	enrolled := domain.NewEnrollmentSet(snap.EnrolledCourseIDs...)

	var myCourses, recommended []domain.Course

	for _, c := range s.catalog.AllCourses() {
		switch {
		case enrolled.Contains(c.ID):
			myCourses = append(myCourses, c)
		case len(recommended) < recommendedLimit:
			recommended = append(recommended, c)
		}
	}

	aggregate := domain.ComputeAggregateProgress(myCourses)

	view = DashboardView{
		Ready:           true,
		User:            snap.User,
		Query:           query,
		MyCourses:       nonNil(myCourses),
		Results:         nonNil(searchCourses(myCourses, query)),
		HasAnyEnrolled:  enrolled.Len() > 0,
		TotalLessons:    aggregate.TotalLessons,
		AverageProgress: aggregate.AveragePercent,
		Recommended:     nonNil(recommended),
	}

	if len(myCourses) > 0 {
		primary := myCourses[0]
		view.PrimaryCourse = &primary
	}

	s.log.DebugContext(ctx, "dashboard built", logging.Group("dashboard",
		"courses", len(view.MyCourses),
		"results", len(view.Results),
		"recommended", len(view.Recommended),
	))

	return view, nil
}

func searchCourses(courses []domain.Course, query string) []domain.Course {
	query = strings.ToLower(query)
	if query == "" {
		return slices.Clone(courses)
	}

	var out []domain.Course

	for _, c := range courses {
		if strings.Contains(strings.ToLower(c.Title), query) ||
			strings.Contains(strings.ToLower(c.Description), query) {
			out = append(out, c)
		}
	}

	return out
}

// CardAction is what a catalog card offers the learner.
type CardAction string

const (
	CardActionLoading  CardAction = "loading"
	CardActionLogin    CardAction = "login"
	CardActionEnroll   CardAction = "enroll"
	CardActionContinue CardAction = "continue"
)

// Label returns the button caption for the action.
func (a CardAction) Label() string {
	switch a {
	case CardActionLogin:
		return "Login to enroll"
	case CardActionEnroll:
		return "Enroll"
	case CardActionContinue:
		return "Continue learning"
	default:
		return "Loading..."
	}
}

// CatalogCard is one course in the catalog view.
type CatalogCard struct {
	Course      domain.Course `json:"course"`
	Enrolled    bool          `json:"enrolled"`
	Action      CardAction    `json:"action"`
	ActionLabel string        `json:"actionLabel"`
}

// CatalogView lists every course sorted by title.
type CatalogView struct {
	Ready     bool          `json:"ready"`
	Anonymous bool          `json:"anonymous"`
	Cards     []CatalogCard `json:"cards"`
}

// Catalog builds the catalog view. Courses are sorted by title, ignoring case, with ties
// broken by ID.
func (s *LearnService) Catalog(_ context.Context) CatalogView {
	snap := s.session.Snapshot()
	enrolled := domain.NewEnrollmentSet(snap.EnrolledCourseIDs...)

	courses := s.catalog.AllCourses()
	slices.SortStableFunc(courses, func(a, b domain.Course) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)),
			strings.Compare(a.ID, b.ID),
		)
	})

	view := CatalogView{
		Ready:     snap.Hydrated,
		Anonymous: snap.Hydrated && snap.User == nil,
		Cards:     make([]CatalogCard, 0, len(courses)),
	}

	for _, c := range courses {
		card := CatalogCard{Course: c}
		card.Enrolled = snap.Hydrated && snap.User != nil && enrolled.Contains(c.ID)

		switch {
		case !snap.Hydrated:
			card.Action = CardActionLoading
		case snap.User == nil:
			card.Action = CardActionLogin
		case card.Enrolled:
			card.Action = CardActionContinue
		default:
			card.Action = CardActionEnroll
		}

		card.ActionLabel = card.Action.Label()
		view.Cards = append(view.Cards, card)
	}

	return view
}

// ActionResult reports what PrimaryAction did.
type ActionResult string

const (
	// ActionNone means the session is still loading and nothing happened.
	ActionNone ActionResult = "none"
	// ActionEnrolled means the learner was enrolled in the course.
	ActionEnrolled ActionResult = "enrolled"
	// ActionOpen means the learner is already enrolled and should open the course.
	ActionOpen ActionResult = "open"
)

// PrimaryAction performs the catalog card's main action for courseID: enroll when not
// yet enrolled, otherwise report that the course should be opened.
// Returns domain.ErrNoActiveUser for anonymous sessions and domain.ErrCourseNotFound for
// unknown courses.
func (s *LearnService) PrimaryAction(ctx context.Context, courseID string) (result ActionResult, err error) {
	log := s.log.With(logging.Group("course", "id", courseID))

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "primary action failed", "error", err)
		} else {
			log.DebugContext(ctx, "primary action", "result", result)
		}
	}()

	snap := s.session.Snapshot()
	if !snap.Hydrated {
		return ActionNone, nil
	}

	if snap.User == nil {
		return ActionNone, domain.ErrNoActiveUser
	}

	if _, found := s.catalog.FindCourseByID(courseID); !found {
		return ActionNone, domain.ErrCourseNotFound
	}

	if s.session.IsEnrolled(courseID) {
		return ActionOpen, nil
	}

	if err := s.session.Enroll(ctx, courseID); err != nil {
		return ActionNone, fmt.Errorf("enroll: %w", err)
	}

	return ActionEnrolled, nil
}

// Enroll enrolls the active user in a catalog course.
// Returns domain.ErrCourseNotFound for unknown courses.
func (s *LearnService) Enroll(ctx context.Context, courseID string) error {
	if _, found := s.catalog.FindCourseByID(courseID); !found {
		return domain.ErrCourseNotFound
	}

	if err := s.session.Enroll(ctx, courseID); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}

	return nil
}

// Unenroll removes courseID from the active user's enrollments. Unknown ids are accepted
// so that stale enrollments can be cleaned up.
func (s *LearnService) Unenroll(ctx context.Context, courseID string) error {
	if err := s.session.Unenroll(ctx, courseID); err != nil {
		return fmt.Errorf("unenroll: %w", err)
	}

	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
