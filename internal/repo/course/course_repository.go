// Package course provides read-only access to the course catalog.
package course

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mkrupp/learnai-dashboard/internal/domain"
)

//go:embed catalog.json
var defaultCatalog []byte

// Repository provides access to the course catalog.
type Repository interface {
	// FindCourseByID returns a copy of the course with the given ID.
	// Returns false if the course does not exist.
	FindCourseByID(id string) (domain.Course, bool)

	// AllCourses returns copies of all courses in catalog order.
	AllCourses() []domain.Course
}

// RepositoryConfig holds configuration for the catalog.
type RepositoryConfig struct {
	// Path to a JSON catalog; the built-in catalog is used when empty
	Path string `env:"FILE" default:""`
}

// StaticRepository implements Repository over an immutable in-memory list.
type StaticRepository struct {
	courses []domain.Course
	byID    map[string]int
}

var _ Repository = (*StaticRepository)(nil)

// NewRepository loads the configured catalog.
func NewRepository(cfg RepositoryConfig) (*StaticRepository, error) {
	if cfg.Path == "" {
		return NewDefaultRepository(), nil
	}

	file, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()

	courses, err := decodeCatalog(file)
	if err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", cfg.Path, err)
	}

	return NewStaticRepository(courses), nil
}

// NewDefaultRepository returns the built-in six course catalog.
func NewDefaultRepository() *StaticRepository {
	courses, err := decodeCatalog(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("decode built-in catalog: %v", err))
	}

	return NewStaticRepository(courses)
}

// NewStaticRepository creates a catalog from courses. The first course wins on duplicate IDs.
func NewStaticRepository(courses []domain.Course) *StaticRepository {
	repo := &StaticRepository{
		courses: make([]domain.Course, 0, len(courses)),
		byID:    make(map[string]int, len(courses)),
	}

	for _, c := range courses {
		if _, exists := repo.byID[c.ID]; exists {
			continue
		}

		repo.byID[c.ID] = len(repo.courses)
		repo.courses = append(repo.courses, c.Clone())
	}

	return repo
}

// FindCourseByID implements Repository.FindCourseByID.
func (r *StaticRepository) FindCourseByID(id string) (domain.Course, bool) {
	i, ok := r.byID[id]
	if !ok {
		return domain.Course{}, false //nolint:exhaustruct
	}

	return r.courses[i].Clone(), true
}

// AllCourses implements Repository.AllCourses.
func (r *StaticRepository) AllCourses() []domain.Course {
	out := make([]domain.Course, len(r.courses))
	for i, c := range r.courses {
		out[i] = c.Clone()
	}

	return out
}

func decodeCatalog(r io.Reader) ([]domain.Course, error) {
	var courses []domain.Course

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&courses); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	return courses, nil
}
