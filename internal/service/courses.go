package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/authz"
	"github.com/geocoder89/coursehub/internal/cache"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/validation"
)

const (
	maxLatest = 50
	latestTTL = 10 * time.Second
)

type CourseStore interface {
	Create(ctx context.Context, c course.Course) (course.Course, error)
	Update(ctx context.Context, c course.Course) (course.Course, error)
	GetByID(ctx context.Context, id int64) (course.Course, error)
	Search(ctx context.Context, filter course.SearchFilter) ([]course.Course, int, error)
	Latest(ctx context.Context, limit int) ([]course.Course, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type CategoryCounter interface {
	CountLive(ctx context.Context, ids []int64) (int, error)
}

type CourseUpdate struct {
	ID  int64
	Req course.UpdateCourseRequest
}

type CourseSearchQuery struct {
	ListQuery
	Title        string
	Status       string
	InstructorID int64
	CategoryID   int64
}

var courseSortColumns = map[string]string{
	"title":      "c.title",
	"created_at": "c.created_at",
	"updated_at": "c.updated_at",
	"status":     "c.status",
}

type CourseService struct {
	courses    CourseStore
	users      UserLookup
	categories CategoryCounter
	now        func() time.Time

	create    func(context.Context, course.CreateCourseRequest) (course.Course, error)
	update    func(context.Context, CourseUpdate) (course.Course, error)
	archive   func(context.Context, int64) (course.Course, error)
	unarchive func(context.Context, int64) (course.Course, error)

	latest *cache.Cache[[]course.Course]
}

func NewCourseService(courses CourseStore, users UserLookup, categories CategoryCounter) *CourseService {
	s := &CourseService{
		courses:    courses,
		users:      users,
		categories: categories,
		now:        time.Now,
		latest:     cache.New[[]course.Course](latestTTL),
	}

	s.create = invalidating(s.latest, authz.Guard(adminOnly, s.doCreate))
	s.update = invalidating(s.latest, authz.Guard(staff, s.doUpdate))
	s.archive = invalidating(s.latest, authz.Guard(adminOnly, s.doArchive))
	s.unarchive = invalidating(s.latest, authz.Guard(adminOnly, s.doUnarchive))

	return s
}

// invalidating drops cached listings after every successful write.
func invalidating[In any](c *cache.Cache[[]course.Course], fn func(context.Context, In) (course.Course, error)) func(context.Context, In) (course.Course, error) {
	return func(ctx context.Context, in In) (course.Course, error) {
		out, err := fn(ctx, in)
		if err == nil {
			c.Clear()
		}
		return out, err
	}
}

func mapCourseErr(err error) error {
	if errors.Is(err, course.ErrNotFound) {
		return apperr.NotFound("Course not found")
	}
	return err
}

// loadCourse returns the course including archived ones.
func (s *CourseService) loadCourse(ctx context.Context, id int64) (course.Course, error) {
	c, err := s.courses.GetByID(ctx, id)
	return c, mapCourseErr(err)
}

func (s *CourseService) checkCategories(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return apperr.Invalid("Category IDs must not be empty")
	}

	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return apperr.Invalid("Duplicate category IDs found")
		}
		seen[id] = struct{}{}
	}

	n, err := s.categories.CountLive(ctx, ids)
	if err != nil {
		return err
	}
	if n != len(ids) {
		return apperr.NotFound("One or more categories not found")
	}
	return nil
}

func (s *CourseService) Create(ctx context.Context, req course.CreateCourseRequest) (course.Course, error) {
	return s.create(ctx, req)
}

func (s *CourseService) doCreate(ctx context.Context, req course.CreateCourseRequest) (course.Course, error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return course.Course{}, err
	}

	instructorID := caller.UserID
	if req.InstructorID != nil {
		instructorID = *req.InstructorID
	}

	instructor, err := s.users.GetByID(ctx, instructorID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return course.Course{}, apperr.NotFound("Instructor not found")
		}
		return course.Course{}, err
	}
	if instructor.DeletedAt != nil {
		return course.Course{}, apperr.NotFound("Instructor not found")
	}
	if !instructor.HasRole(user.RoleInstructor) {
		return course.Course{}, apperr.Invalid("User is not an instructor")
	}

	if err := s.checkCategories(ctx, req.CategoryIDs); err != nil {
		return course.Course{}, err
	}

	c, err := s.courses.Create(ctx, course.Course{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		InstructorID: instructor.ID,
		Status:       course.StatusDraft,
		CategoryIDs:  req.CategoryIDs,
	})
	if err != nil {
		return course.Course{}, mapCourseErr(err)
	}

	slog.Default().InfoContext(ctx, "course created", "course_id", c.ID, "instructor_id", c.InstructorID)
	return c, nil
}

func (s *CourseService) Update(ctx context.Context, u CourseUpdate) (course.Course, error) {
	return s.update(ctx, u)
}

func (s *CourseService) doUpdate(ctx context.Context, u CourseUpdate) (course.Course, error) {
	caller, err := currentIdentity(ctx)
	if err != nil {
		return course.Course{}, err
	}

	c, err := s.loadCourse(ctx, u.ID)
	if err != nil {
		return course.Course{}, err
	}
	if err := canModifyCourse(caller, c); err != nil {
		return course.Course{}, err
	}
	if c.DeletedAt != nil {
		return course.Course{}, apperr.Forbidden("Cannot modify an archived course")
	}

	req := u.Req
	if req.Title != nil {
		c.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		c.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		if err := validation.StatusTransition(c.Status, *req.Status); err != nil {
			return course.Course{}, err
		}
		if *req.Status == course.StatusArchived {
			now := s.now()
			c.DeletedAt = &now
		}
		c.Status = *req.Status
	}
	if req.CategoryIDs != nil {
		if err := s.checkCategories(ctx, req.CategoryIDs); err != nil {
			return course.Course{}, err
		}
		c.CategoryIDs = req.CategoryIDs
	}

	updated, err := s.courses.Update(ctx, c)
	return updated, mapCourseErr(err)
}

func (s *CourseService) Archive(ctx context.Context, id int64) (course.Course, error) {
	return s.archive(ctx, id)
}

func (s *CourseService) doArchive(ctx context.Context, id int64) (course.Course, error) {
	c, err := s.loadCourse(ctx, id)
	if err != nil {
		return course.Course{}, err
	}
	if c.DeletedAt != nil {
		return course.Course{}, apperr.Invalid("Course is already archived")
	}
	if err := validation.StatusTransition(c.Status, course.StatusArchived); err != nil {
		return course.Course{}, err
	}

	now := s.now()
	c.Status = course.StatusArchived
	c.DeletedAt = &now

	updated, err := s.courses.Update(ctx, c)
	return updated, mapCourseErr(err)
}

func (s *CourseService) Unarchive(ctx context.Context, id int64) (course.Course, error) {
	return s.unarchive(ctx, id)
}

func (s *CourseService) doUnarchive(ctx context.Context, id int64) (course.Course, error) {
	c, err := s.loadCourse(ctx, id)
	if err != nil {
		return course.Course{}, err
	}
	if c.DeletedAt == nil && c.Status != course.StatusArchived {
		return course.Course{}, apperr.Invalid("Course is not archived")
	}

	c.Status = course.StatusDraft
	c.DeletedAt = nil

	updated, err := s.courses.Update(ctx, c)
	return updated, mapCourseErr(err)
}

// Get returns a course that has not been archived.
func (s *CourseService) Get(ctx context.Context, id int64) (course.Course, error) {
	c, err := s.loadCourse(ctx, id)
	if err != nil {
		return course.Course{}, err
	}
	if c.DeletedAt != nil {
		return course.Course{}, apperr.NotFound("Course not found")
	}
	return c, nil
}

func (s *CourseService) Search(ctx context.Context, q CourseSearchQuery) (Page[course.Course], error) {
	p, orderBy, err := q.resolve(validation.CourseSortFields, courseSortColumns, "c.created_at DESC", "c.id DESC")
	if err != nil {
		return Page[course.Course]{}, err
	}

	filter := course.SearchFilter{OrderBy: orderBy, Limit: p.Limit, Offset: p.Offset()}

	if t := strings.TrimSpace(q.Title); t != "" {
		filter.Title = &t
	}
	if q.Status != "" {
		st, ok := course.ParseStatus(q.Status)
		if !ok {
			return Page[course.Course]{}, apperr.Invalid("Invalid status: %s", q.Status)
		}
		filter.Status = &st
	}
	if q.InstructorID > 0 {
		filter.InstructorID = &q.InstructorID
	}
	if q.CategoryID > 0 {
		filter.CategoryID = &q.CategoryID
	}

	items, total, err := s.courses.Search(ctx, filter)
	if err != nil {
		return Page[course.Course]{}, err
	}
	return newPage(items, p, total), nil
}

// Latest lists the most recently created published courses.
func (s *CourseService) Latest(ctx context.Context, limit int) ([]course.Course, error) {
	if limit <= 0 {
		limit = validation.DefaultLimit
	}
	if limit > maxLatest {
		return nil, apperr.Invalid("Limit must be at most %d", maxLatest)
	}

	key := strconv.Itoa(limit)
	if items, ok := s.latest.Get(key); ok {
		return items, nil
	}

	items, err := s.courses.Latest(ctx, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []course.Course{}
	}
	s.latest.Set(key, items)
	return items, nil
}
