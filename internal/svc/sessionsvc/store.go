// Package sessionsvc owns the learner's identity and enrollment state and mirrors it
// into a key/value repository.
package sessionsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mkrupp/learnai-dashboard/internal/domain"
	context_ "github.com/mkrupp/learnai-dashboard/internal/infra/context"
	"github.com/mkrupp/learnai-dashboard/internal/infra/logging"
	"github.com/mkrupp/learnai-dashboard/internal/repo/kv"
)

// Snapshot is a consistent copy of the store state.
type Snapshot struct {
	Hydrated          bool         `json:"hydrated"`
	User              *domain.User `json:"user"`
	EnrolledCourseIDs []string     `json:"enrolledCourseIds"`
	Version           uint64       `json:"version"`
}

// Listener is called after every state change with the resulting snapshot.
type Listener func(Snapshot)

// Store is the session and enrollment store. In-memory state is authoritative; the
// repository is rewritten after every change once hydration has completed.
type Store struct {
	repo kv.Repository
	log  logging.Logger

	m           sync.Mutex
	user        *domain.User
	enrollments domain.EnrollmentSet
	hydrated    bool
	version     uint64

	listenersM sync.Mutex
	listeners  map[uint64]Listener
	nextID     uint64
}

// NewStore creates an anonymous, not yet hydrated store backed by the repository the
// factory returns.
func NewStore(ctx context.Context, repoFactory kv.RepositoryFactory) (*Store, error) {
	repo, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new kv repo: %w", err)
	}

	return &Store{
		repo:      repo,
		log:       logging.GetLogger("svc.sessionsvc.store"),
		listeners: make(map[uint64]Listener),
	}, nil
}

// Close closes the underlying repository.
func (s *Store) Close() error {
	if err := s.repo.Close(); err != nil {
		return fmt.Errorf("close kv repo: %w", err)
	}

	return nil
}

// Hydrate loads the persisted identity and its enrollments. It runs once; later calls
// return immediately. Unreadable or malformed data degrades to an anonymous session, and
// the store is hydrated afterwards in every case.
func (s *Store) Hydrate(ctx context.Context) {
	s.m.Lock()

	if s.hydrated {
		s.m.Unlock()

		return
	}

	s.hydrateLocked(ctx)
	s.hydrated = true
	s.persistLocked(ctx)
	snap := s.changedLocked()

	s.m.Unlock()
	s.notify(snap)
}

func (s *Store) hydrateLocked(ctx context.Context) {
	raw, found, err := s.repo.Get(ctx, UserKey)
	if err != nil {
		s.log.ErrorContext(ctx, "hydrate failed", "error", err)

		return
	}

	if !found {
		s.log.DebugContext(ctx, "hydrated anonymous session")

		return
	}

	identity := domain.ParseIdentity(raw)
	if !identity.OK() {
		s.log.WarnContext(ctx, "discarding persisted identity",
			"error", identity.Err,
			logging.Group("identity", "source", identity.Source.String()),
		)

		return
	}

	user := identity.User
	s.user = &user
	s.enrollments = s.loadEnrollments(ctx, user.Email)

	s.log.DebugContext(context_.WithSessionEmail(ctx, user.Email), "hydrated session",
		logging.Group("identity", "source", identity.Source.String()),
		logging.Group("enrollments", "count", s.enrollments.Len()),
	)
}

// Login makes the learner with email the active user and replaces the in-memory
// enrollments with that learner's persisted ones.
// Returns domain.ErrInvalidEmail if the email is blank.
func (s *Store) Login(ctx context.Context, email, username string) (err error) {
	defer func() {
		if err != nil {
			s.log.ErrorContext(ctx, "login failed", "error", err)
		}
	}()

	user, err := domain.NewUser(email, username)
	if err != nil {
		return fmt.Errorf("new user: %w", err)
	}

	s.m.Lock()

	s.user = &user
	s.enrollments = s.loadEnrollments(ctx, user.Email)
	s.persistLocked(ctx)
	snap := s.changedLocked()

	s.m.Unlock()
	s.notify(snap)

	s.log.InfoContext(context_.WithSessionEmail(ctx, user.Email), "logged in",
		logging.Group("enrollments", "count", len(snap.EnrolledCourseIDs)),
	)

	return nil
}

// Logout clears the active user and the in-memory enrollments. Persisted enrollment
// history is kept so that a later Login restores it.
func (s *Store) Logout(ctx context.Context) {
	s.m.Lock()

	if s.user != nil {
		ctx = context_.WithSessionEmail(ctx, s.user.Email)
	}

	s.user = nil
	s.enrollments = domain.EnrollmentSet{}
	s.persistLocked(ctx)
	snap := s.changedLocked()

	s.m.Unlock()
	s.notify(snap)

	s.log.InfoContext(ctx, "logged out")
}

// Enroll adds courseID to the active user's enrollments. Enrolling twice has no effect.
// Returns domain.ErrNoActiveUser when nobody is logged in.
func (s *Store) Enroll(ctx context.Context, courseID string) error {
	return s.mutateEnrollments(ctx, "enroll", func(set *domain.EnrollmentSet) bool {
		return set.Add(courseID)
	})
}

// Unenroll removes courseID from the active user's enrollments. Unenrolling an absent
// course has no effect.
// Returns domain.ErrNoActiveUser when nobody is logged in.
func (s *Store) Unenroll(ctx context.Context, courseID string) error {
	return s.mutateEnrollments(ctx, "unenroll", func(set *domain.EnrollmentSet) bool {
		return set.Remove(courseID)
	})
}

func (s *Store) mutateEnrollments(
	ctx context.Context,
	op string,
	mutate func(*domain.EnrollmentSet) bool,
) error {
	s.m.Lock()

	if s.user == nil {
		s.m.Unlock()
		s.log.WarnContext(ctx, op+" without active user")

		return domain.ErrNoActiveUser
	}

	ctx = context_.WithSessionEmail(ctx, s.user.Email)

	if !mutate(&s.enrollments) {
		s.m.Unlock()
		s.log.DebugContext(ctx, op+" unchanged")

		return nil
	}

	s.persistLocked(ctx)
	snap := s.changedLocked()

	s.m.Unlock()
	s.notify(snap)

	s.log.DebugContext(ctx, op, logging.Group("enrollments", "ids", snap.EnrolledCourseIDs))

	return nil
}

// IsEnrolled reports whether the active user is enrolled in courseID. It is false before
// hydration and for anonymous sessions.
func (s *Store) IsEnrolled(courseID string) bool {
	s.m.Lock()
	defer s.m.Unlock()

	return s.hydrated && s.user != nil && s.enrollments.Contains(courseID)
}

// Hydrated reports whether hydration has completed.
func (s *Store) Hydrated() bool {
	s.m.Lock()
	defer s.m.Unlock()

	return s.hydrated
}

// CurrentUser returns the active user.
// Returns false for anonymous sessions.
func (s *Store) CurrentUser() (domain.User, bool) {
	s.m.Lock()
	defer s.m.Unlock()

	if s.user == nil {
		return domain.User{}, false
	}

	return *s.user, true
}

// EnrolledCourseIDs returns the active user's enrollments in enrollment order.
func (s *Store) EnrolledCourseIDs() []string {
	s.m.Lock()
	defer s.m.Unlock()

	return s.enrollments.IDs()
}

// Version returns a counter that increases with every state change.
func (s *Store) Version() uint64 {
	s.m.Lock()
	defer s.m.Unlock()

	return s.version
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.m.Lock()
	defer s.m.Unlock()

	return s.snapshotLocked()
}

// Subscribe registers l to be called after every state change. Listeners run on the
// goroutine that made the change, outside the store lock.
// Returns a function that removes the listener.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.listenersM.Lock()
	defer s.listenersM.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	var once sync.Once

	return func() {
		once.Do(func() {
			s.listenersM.Lock()
			defer s.listenersM.Unlock()

			delete(s.listeners, id)
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.listenersM.Lock()
	listeners := make([]Listener, 0, len(s.listeners))

	for id := range s.nextID {
		if l, ok := s.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	s.listenersM.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) changedLocked() Snapshot {
	s.version++

	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Hydrated:          s.hydrated,
		EnrolledCourseIDs: s.enrollments.IDs(),
		Version:           s.version,
	}

	if s.user != nil {
		user := *s.user
		snap.User = &user
	}

	return snap
}

// loadEnrollments reads the persisted enrollments for email. Missing, unreadable and
// malformed lists yield an empty set.
func (s *Store) loadEnrollments(ctx context.Context, email string) domain.EnrollmentSet {
	ctx = context_.WithSessionEmail(ctx, email)
	key := EnrollmentsKey(email)

	raw, found, err := s.repo.Get(ctx, key)
	if err != nil {
		s.log.ErrorContext(ctx, "load enrollments failed", "error", err, logging.Group("kv", "key", key))

		return domain.EnrollmentSet{}
	}

	if !found {
		return domain.EnrollmentSet{}
	}

	set, err := domain.ParseEnrollments(raw)
	if err != nil {
		s.log.WarnContext(ctx, "discarding persisted enrollments", "error", err, logging.Group("kv", "key", key))

		return domain.EnrollmentSet{}
	}

	return set
}

// persistLocked mirrors the in-memory state into the repository. Nothing is written
// before hydration. Failures are logged and leave the in-memory state untouched.
func (s *Store) persistLocked(ctx context.Context) {
	if !s.hydrated {
		s.log.DebugContext(ctx, "persist skipped before hydration")

		return
	}

	if err := s.writeLocked(ctx); err != nil {
		level := logging.LevelError
		if errors.Is(err, kv.ErrStorageFull) {
			level = logging.LevelWarn
		}

		s.log.Log(ctx, level, "persist failed", "error", err)
	}
}

func (s *Store) writeLocked(ctx context.Context) error {
	if s.user == nil {
		if err := s.repo.Remove(ctx, UserKey); err != nil {
			return fmt.Errorf("remove identity: %w", err)
		}

		return nil
	}

	identity, err := domain.MarshalIdentity(*s.user)
	if err != nil {
		return err
	}

	enrollments, err := s.enrollments.Marshal()
	if err != nil {
		return err
	}

	var errs []error

	if err := s.repo.Set(ctx, UserKey, identity); err != nil {
		errs = append(errs, fmt.Errorf("set identity: %w", err))
	}

	if err := s.repo.Set(ctx, EnrollmentsKey(s.user.Email), enrollments); err != nil {
		errs = append(errs, fmt.Errorf("set enrollments: %w", err))
	}

	return errors.Join(errs...)
}
