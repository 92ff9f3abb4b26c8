package learnsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/mkrupp/learnai-dashboard/internal/domain"
	context_ "github.com/mkrupp/learnai-dashboard/internal/infra/context"
	"github.com/mkrupp/learnai-dashboard/internal/infra/logging"
	http_ "github.com/mkrupp/learnai-dashboard/internal/infra/transport/http"
)

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	// URLWidthParam is the query parameter selecting the thumbnail width.
	URLWidthParam string `env:"URL_WIDTH_PARAM" default:"width"`

	// URLQueryParam is the query parameter holding the dashboard search text.
	URLQueryParam string `env:"URL_QUERY_PARAM" default:"q"`
}

// HTTPTransport serves the session, dashboard, catalog and course detail views as JSON.
type HTTPTransport struct {
	learnSvc    *LearnService
	thumbnailer *Thumbnailer
	session     Session
	log         logging.Logger
	cfg         HTTPTransportConfig
	router      *mux.Router

	detailsM sync.Mutex
	details  map[detailKey]*CourseDetail
}

type detailKey struct {
	email    string
	courseID string
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates an HTTPTransport and registers its routes.
func NewHTTPTransport(
	learnSvc *LearnService,
	session Session,
	thumbnailer *Thumbnailer,
	cfg HTTPTransportConfig,
) *HTTPTransport {
	ht := &HTTPTransport{
		learnSvc:    learnSvc,
		thumbnailer: thumbnailer,
		session:     session,
		log:         logging.GetLogger("svc.learnsvc.http_transport"),
		cfg:         cfg,
		details:     make(map[detailKey]*CourseDetail),
	}

	router := mux.NewRouter()
	router.Use(ht.sessionMiddleware)

	router.HandleFunc("/session", ht.HandleSession).Methods(http.MethodGet)
	router.HandleFunc("/session/login", ht.HandleLogin).Methods(http.MethodPost)
	router.HandleFunc("/session/demo", ht.HandleDemoLogin).Methods(http.MethodPost)
	router.HandleFunc("/session/logout", ht.HandleLogout).Methods(http.MethodPost)

	router.HandleFunc("/dashboard", ht.HandleDashboard).Methods(http.MethodGet)

	router.HandleFunc("/courses", ht.HandleCatalog).Methods(http.MethodGet)
	router.HandleFunc("/courses/{id}", ht.HandleOpenCourse).Methods(http.MethodGet)
	router.HandleFunc("/courses/{id}/action", ht.HandlePrimaryAction).Methods(http.MethodPost)
	router.HandleFunc("/courses/{id}/enroll", ht.HandleEnroll).Methods(http.MethodPost)
	router.HandleFunc("/courses/{id}/enroll", ht.HandleUnenroll).Methods(http.MethodDelete)
	router.HandleFunc("/courses/{id}/lessons/{lessonID}/toggle", ht.HandleToggleLesson).Methods(http.MethodPost)
	router.HandleFunc("/courses/{id}/thumbnail.{format:png|jpeg|jpg|tiff}", ht.HandleThumbnail).
		Methods(http.MethodGet)

	ht.router = router

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// sessionMiddleware tags the request context with the active learner for log records.
func (ht *HTTPTransport) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if snap := ht.session.Snapshot(); snap.User != nil {
			r = r.WithContext(context_.WithSessionEmail(r.Context(), snap.User.Email))
		}

		next.ServeHTTP(w, r)
	})
}

// HandleSession returns the session snapshot.
func (ht *HTTPTransport) HandleSession(w http.ResponseWriter, r *http.Request) {
	ht.writeJSON(w, r, http.StatusOK, ht.session.Snapshot())
}

// HandleLogin logs in with the "email" and "username" form values.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := ht.session.Login(r.Context(), r.FormValue("email"), r.FormValue("username")); err != nil {
		ht.writeError(w, r, fmt.Errorf("login: %w", err))

		return
	}

	ht.writeJSON(w, r, http.StatusOK, ht.session.Snapshot())
}

// HandleDemoLogin logs in the demo account.
func (ht *HTTPTransport) HandleDemoLogin(w http.ResponseWriter, r *http.Request) {
	if err := ht.learnSvc.DemoLogin(r.Context()); err != nil {
		ht.writeError(w, r, fmt.Errorf("demo login: %w", err))

		return
	}

	ht.writeJSON(w, r, http.StatusOK, ht.session.Snapshot())
}

// HandleLogout ends the session.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ht.session.Logout(r.Context())
	ht.writeJSON(w, r, http.StatusOK, ht.session.Snapshot())
}

// HandleDashboard returns the dashboard, filtered by the search query parameter.
func (ht *HTTPTransport) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := ht.learnSvc.Dashboard(r.Context(), r.URL.Query().Get(ht.cfg.URLQueryParam))
	if err != nil {
		ht.writeError(w, r, fmt.Errorf("dashboard: %w", err))

		return
	}

	ht.writeJSON(w, r, http.StatusOK, view)
}

// HandleCatalog returns the catalog view.
func (ht *HTTPTransport) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	ht.writeJSON(w, r, http.StatusOK, ht.learnSvc.Catalog(r.Context()))
}

// HandlePrimaryAction runs the catalog card action for a course.
func (ht *HTTPTransport) HandlePrimaryAction(w http.ResponseWriter, r *http.Request) {
	courseID := mux.Vars(r)["id"]

	result, err := ht.learnSvc.PrimaryAction(r.Context(), courseID)
	if err != nil {
		ht.writeError(w, r, fmt.Errorf("primary action: %w", err))

		return
	}

	ht.writeJSON(w, r, http.StatusOK, map[string]any{
		"courseId": courseID,
		"result":   result,
		"session":  ht.session.Snapshot(),
	})
}

// HandleEnroll enrolls the active learner in a course.
func (ht *HTTPTransport) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	if err := ht.learnSvc.Enroll(r.Context(), mux.Vars(r)["id"]); err != nil {
		ht.writeError(w, r, fmt.Errorf("enroll: %w", err))

		return
	}

	ht.writeJSON(w, r, http.StatusOK, ht.session.Snapshot())
}

// HandleUnenroll removes a course from the active learner's enrollments.
func (ht *HTTPTransport) HandleUnenroll(w http.ResponseWriter, r *http.Request) {
	if err := ht.learnSvc.Unenroll(r.Context(), mux.Vars(r)["id"]); err != nil {
		ht.writeError(w, r, fmt.Errorf("unenroll: %w", err))

		return
	}

	ht.writeJSON(w, r, http.StatusOK, ht.session.Snapshot())
}

// HandleOpenCourse opens a course detail, discarding earlier lesson toggles.
func (ht *HTTPTransport) HandleOpenCourse(w http.ResponseWriter, r *http.Request) {
	detail, err := ht.openDetail(r, true)
	if err != nil {
		ht.writeError(w, r, fmt.Errorf("open course: %w", err))

		return
	}

	ht.writeJSON(w, r, http.StatusOK, detail.View())
}

// HandleToggleLesson flips a lesson of the opened course detail.
func (ht *HTTPTransport) HandleToggleLesson(w http.ResponseWriter, r *http.Request) {
	detail, err := ht.openDetail(r, false)
	if err != nil {
		ht.writeError(w, r, fmt.Errorf("open course: %w", err))

		return
	}

	lessonID := mux.Vars(r)["lessonID"]
	if err := detail.ToggleLesson(lessonID); err != nil {
		ht.writeError(w, r, fmt.Errorf("toggle lesson %s: %w", lessonID, err))

		return
	}

	ht.writeJSON(w, r, http.StatusOK, detail.View())
}

// openDetail returns the learner's open detail for the course in the route, opening a
// new one when reset is set or none exists. Access is rechecked on every call.
func (ht *HTTPTransport) openDetail(r *http.Request, reset bool) (*CourseDetail, error) {
	courseID := mux.Vars(r)["id"]

	fresh, err := ht.learnSvc.OpenCourse(r.Context(), courseID)
	if err != nil {
		return nil, err
	}

	email, _ := context_.SessionEmailFromContext(r.Context())
	key := detailKey{email: email, courseID: courseID}

	ht.detailsM.Lock()
	defer ht.detailsM.Unlock()

	if detail, ok := ht.details[key]; ok && !reset {
		return detail, nil
	}

	ht.details[key] = fresh

	return fresh, nil
}

// HandleThumbnail renders the course cover image.
func (ht *HTTPTransport) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	c, found := ht.learnSvc.catalog.FindCourseByID(vars["id"])
	if !found {
		ht.writeError(w, r, domain.ErrCourseNotFound)

		return
	}

	var width int

	if widthStr := r.URL.Query().Get(ht.cfg.URLWidthParam); widthStr != "" {
		width_, err := strconv.Atoi(widthStr)
		if err != nil {
			ht.writeError(w, r, errors.Join(errBadRequest, fmt.Errorf("parse width: %w", err)))

			return
		}

		width = width_
	}

	format := vars["format"]
	if format == "jpg" {
		format = FormatJPEG
	}

	thumb, err := ht.thumbnailer.Render(c, width, format)
	if err != nil {
		ht.writeError(w, r, fmt.Errorf("render thumbnail: %w", err))

		return
	}

	w.Header().Set("Content-Type", thumb.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if _, err := w.Write(thumb.Data); err != nil {
		ht.log.ErrorContext(r.Context(), "write thumbnail failed", "error", err)
	}
}

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoActiveUser):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotEnrolled):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrCourseNotFound), errors.Is(err, domain.ErrLessonNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, errBadRequest),
		errors.Is(err, ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotHydrated):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (ht *HTTPTransport) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String(), "status", status))

	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "error", err)
	} else {
		log.DebugContext(r.Context(), "request rejected", "error", err)
	}

	message := http.StatusText(status)
	if status < http.StatusInternalServerError {
		message = err.Error()
	}

	ht.writeJSON(w, r, status, map[string]string{"error": message})
}

func (ht *HTTPTransport) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		ht.log.ErrorContext(r.Context(), "encode response failed", "error", err)
	}
}
