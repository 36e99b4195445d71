package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/authz"
	"github.com/geocoder89/coursehub/internal/domain/chapter"
	"github.com/geocoder89/coursehub/internal/domain/course"
	"github.com/geocoder89/coursehub/internal/domain/lesson"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/validation"
)

type ChapterStore interface {
	OrderTaken(ctx context.Context, courseID int64, order int, excludeID int64) (bool, error)
	Create(ctx context.Context, nc chapter.NewChapter) (chapter.Chapter, error)
	BulkCreate(ctx context.Context, items []chapter.NewChapter) ([]chapter.Chapter, error)
	GetByID(ctx context.Context, id int64) (chapter.Chapter, error)
	GetMany(ctx context.Context, ids []int64) ([]chapter.Chapter, error)
	ListByCourse(ctx context.Context, filter chapter.ListFilter) ([]chapter.Chapter, int, error)
	Update(ctx context.Context, id int64, changes chapter.Changes) (chapter.Chapter, error)
	SetDeleted(ctx context.Context, ids []int64, deleted bool) ([]chapter.Chapter, error)
	Lessons(ctx context.Context, chapterID int64) ([]lesson.Lesson, error)
	Renumber(ctx context.Context, courseID int64) ([]chapter.Chapter, error)
}

type CourseReader interface {
	GetByID(ctx context.Context, id int64) (course.Course, error)
}

type ChapterUpdate struct {
	ID  int64
	Req chapter.UpdateChapterRequest
}

type ChapterReorder struct {
	ID    int64
	Order int
}

type ChapterListQuery struct {
	ListQuery
	CourseID       int64
	IncludeDeleted bool
}

var chapterSortColumns = map[string]string{
	"title":        "ch.title",
	"order_number": "ch.order_number",
	"status":       "ch.status",
	"created_at":   "ch.created_at",
	"updated_at":   "ch.updated_at",
}

type ChapterService struct {
	chapters ChapterStore
	courses  CourseReader

	create      func(context.Context, chapter.CreateChapterRequest) (chapter.Chapter, error)
	bulkCreate  func(context.Context, chapter.BulkCreateRequest) ([]chapter.Chapter, error)
	update      func(context.Context, ChapterUpdate) (chapter.Chapter, error)
	reorder     func(context.Context, ChapterReorder) (chapter.Chapter, error)
	renumber    func(context.Context, int64) ([]chapter.Chapter, error)
	remove      func(context.Context, int64) error
	restore     func(context.Context, int64) (chapter.Chapter, error)
	bulkDelete  func(context.Context, []int64) ([]chapter.Chapter, error)
	bulkRestore func(context.Context, []int64) ([]chapter.Chapter, error)
}

func NewChapterService(chapters ChapterStore, courses CourseReader) *ChapterService {
	s := &ChapterService{chapters: chapters, courses: courses}

	s.create = authz.Guard(staff, s.doCreate)
	s.bulkCreate = authz.Guard(staff, s.doBulkCreate)
	s.update = authz.Guard(staff, s.doUpdate)
	s.reorder = authz.Guard(staff, s.doReorder)
	s.renumber = authz.Guard(staff, s.doRenumber)
	s.remove = authz.GuardErr(staff, s.doDelete)
	s.restore = authz.Guard(staff, s.doRestore)
	s.bulkDelete = authz.Guard(staff, s.doBulkDelete)
	s.bulkRestore = authz.Guard(staff, s.doBulkRestore)

	return s
}

func mapChapterErr(err error) error {
	switch {
	case errors.Is(err, chapter.ErrNotFound):
		return apperr.NotFound("Chapter not found")
	case errors.Is(err, chapter.ErrOrderTaken):
		return apperr.Conflict("Chapter order is already taken in this course")
	case errors.Is(err, lesson.ErrOrderTaken):
		return apperr.Conflict("Lesson order is already taken in this chapter")
	}
	return err
}

func (s *ChapterService) checkOrder(ctx context.Context, courseID int64, order int, excludeID int64) error {
	msg, err := validation.ChapterOrder(ctx, s.chapters, courseID, order, excludeID)
	if err != nil {
		return err
	}
	if msg != "" {
		return apperr.Invalid("%s", msg)
	}
	return nil
}

func (s *ChapterService) Create(ctx context.Context, req chapter.CreateChapterRequest) (chapter.Chapter, error) {
	return s.create(ctx, req)
}

func (s *ChapterService) doCreate(ctx context.Context, req chapter.CreateChapterRequest) (chapter.Chapter, error) {
	if _, err := writableCourse(ctx, s.courses, req.CourseID); err != nil {
		return chapter.Chapter{}, err
	}
	if err := s.checkOrder(ctx, req.CourseID, req.Order, 0); err != nil {
		return chapter.Chapter{}, err
	}

	c, err := s.chapters.Create(ctx, chapter.NewChapter{
		CourseID:    req.CourseID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Order:       req.Order,
	})
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	return c, nil
}

func (s *ChapterService) BulkCreate(ctx context.Context, req chapter.BulkCreateRequest) ([]chapter.Chapter, error) {
	return s.bulkCreate(ctx, req)
}

// doBulkCreate validates the whole batch before writing anything. Shape and
// duplicate problems are reported together, then every order already taken
// in the course is reported together.
func (s *ChapterService) doBulkCreate(ctx context.Context, req chapter.BulkCreateRequest) ([]chapter.Chapter, error) {
	if err := validation.BulkSize(len(req.Chapters), "chapters"); err != nil {
		return nil, err
	}
	if _, err := writableCourse(ctx, s.courses, req.CourseID); err != nil {
		return nil, err
	}

	orders := make([]int, 0, len(req.Chapters))
	for _, ch := range req.Chapters {
		orders = append(orders, ch.Order)
	}
	v := validation.UniqueOrders("chapter", orders)
	for _, ch := range req.Chapters {
		lessonOrders := make([]int, 0, len(ch.Lessons))
		for _, l := range ch.Lessons {
			lessonOrders = append(lessonOrders, l.Order)
		}
		v = append(v, validation.UniqueOrders("lesson", lessonOrders)...)
	}
	if !v.Empty() {
		return nil, v.Err()
	}

	var conflicts []string
	for _, ch := range req.Chapters {
		msg, err := validation.ChapterOrder(ctx, s.chapters, req.CourseID, ch.Order, 0)
		if err != nil {
			return nil, err
		}
		if msg != "" {
			conflicts = append(conflicts, msg)
		}
	}
	if len(conflicts) > 0 {
		return nil, apperr.Invalid("Order conflicts found: %s", strings.Join(conflicts, "; ")).WithDetails(conflicts)
	}

	items := make([]chapter.NewChapter, 0, len(req.Chapters))
	for _, ch := range req.Chapters {
		nc := chapter.NewChapter{
			CourseID:    req.CourseID,
			Title:       strings.TrimSpace(ch.Title),
			Description: strings.TrimSpace(ch.Description),
			Order:       ch.Order,
		}
		for _, l := range ch.Lessons {
			nc.Lessons = append(nc.Lessons, lesson.NewLesson{
				Title:   strings.TrimSpace(l.Title),
				Content: l.Content,
				Order:   l.Order,
				Type:    l.Type,
			})
		}
		items = append(items, nc)
	}

	out, err := s.chapters.BulkCreate(ctx, items)
	if err != nil {
		return nil, mapChapterErr(err)
	}

	slog.Default().InfoContext(ctx, "chapters bulk created", "course_id", req.CourseID, "count", len(out))
	return out, nil
}

func (s *ChapterService) Update(ctx context.Context, u ChapterUpdate) (chapter.Chapter, error) {
	return s.update(ctx, u)
}

func (s *ChapterService) doUpdate(ctx context.Context, u ChapterUpdate) (chapter.Chapter, error) {
	current, err := s.chapters.GetByID(ctx, u.ID)
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	if _, err := writableCourse(ctx, s.courses, current.CourseID); err != nil {
		return chapter.Chapter{}, err
	}

	req := u.Req
	changes := chapter.Changes{Title: req.Title, Description: req.Description}
	if changes.Title != nil {
		t := strings.TrimSpace(*changes.Title)
		changes.Title = &t
	}

	if req.Status != nil {
		if err := validation.StatusTransition(current.Status, *req.Status); err != nil {
			return chapter.Chapter{}, err
		}
		changes.Status = req.Status

		switch {
		case *req.Status == course.StatusArchived && current.Status != course.StatusArchived:
			changes.Archive = true
		case current.Status == course.StatusArchived && *req.Status == course.StatusDraft:
			changes.Restore = true
		}
	}

	if current.DeletedAt != nil && !changes.Restore {
		return chapter.Chapter{}, apperr.Invalid("Chapter is already deleted")
	}

	// A restored chapter takes its order back, so it must still be free.
	if req.Order != nil && *req.Order != current.Order {
		if err := s.checkOrder(ctx, current.CourseID, *req.Order, current.ID); err != nil {
			return chapter.Chapter{}, err
		}
		changes.Order = req.Order
	} else if changes.Restore {
		if err := s.checkOrder(ctx, current.CourseID, current.Order, current.ID); err != nil {
			return chapter.Chapter{}, err
		}
	}

	c, err := s.chapters.Update(ctx, current.ID, changes)
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	return c, nil
}

func (s *ChapterService) Reorder(ctx context.Context, r ChapterReorder) (chapter.Chapter, error) {
	return s.reorder(ctx, r)
}

func (s *ChapterService) doReorder(ctx context.Context, r ChapterReorder) (chapter.Chapter, error) {
	current, err := s.chapters.GetByID(ctx, r.ID)
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	if current.DeletedAt != nil {
		return chapter.Chapter{}, apperr.NotFound("Chapter not found")
	}
	if _, err := writableCourse(ctx, s.courses, current.CourseID); err != nil {
		return chapter.Chapter{}, err
	}
	if err := s.checkOrder(ctx, current.CourseID, r.Order, current.ID); err != nil {
		return chapter.Chapter{}, err
	}
	if r.Order == current.Order {
		return current, nil
	}

	c, err := s.chapters.Update(ctx, current.ID, chapter.Changes{Order: &r.Order})
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	return c, nil
}

// Renumber closes the gaps left by deletes and moves: the live chapters of
// the course get orders 1..N in their current sequence.
func (s *ChapterService) Renumber(ctx context.Context, courseID int64) ([]chapter.Chapter, error) {
	return s.renumber(ctx, courseID)
}

func (s *ChapterService) doRenumber(ctx context.Context, courseID int64) ([]chapter.Chapter, error) {
	if _, err := writableCourse(ctx, s.courses, courseID); err != nil {
		return nil, err
	}

	out, err := s.chapters.Renumber(ctx, courseID)
	if err != nil {
		return nil, mapChapterErr(err)
	}

	slog.Default().InfoContext(ctx, "chapters renumbered", "course_id", courseID, "count", len(out))
	return out, nil
}

func (s *ChapterService) Delete(ctx context.Context, id int64) error {
	return s.remove(ctx, id)
}

func (s *ChapterService) doDelete(ctx context.Context, id int64) error {
	current, err := s.chapters.GetByID(ctx, id)
	if err != nil {
		return mapChapterErr(err)
	}
	if current.DeletedAt != nil {
		return apperr.Invalid("Chapter is already deleted")
	}
	if _, err := writableCourse(ctx, s.courses, current.CourseID); err != nil {
		return err
	}

	_, err = s.chapters.SetDeleted(ctx, []int64{id}, true)
	return mapChapterErr(err)
}

func (s *ChapterService) Restore(ctx context.Context, id int64) (chapter.Chapter, error) {
	return s.restore(ctx, id)
}

func (s *ChapterService) doRestore(ctx context.Context, id int64) (chapter.Chapter, error) {
	current, err := s.chapters.GetByID(ctx, id)
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	if current.DeletedAt == nil {
		return chapter.Chapter{}, apperr.Invalid("Chapter is not deleted")
	}
	if _, err := writableCourse(ctx, s.courses, current.CourseID); err != nil {
		return chapter.Chapter{}, err
	}
	if err := s.checkOrder(ctx, current.CourseID, current.Order, current.ID); err != nil {
		return chapter.Chapter{}, err
	}

	out, err := s.chapters.SetDeleted(ctx, []int64{id}, false)
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	return out[0], nil
}

func (s *ChapterService) BulkDelete(ctx context.Context, ids []int64) ([]chapter.Chapter, error) {
	return s.bulkDelete(ctx, ids)
}

func (s *ChapterService) BulkRestore(ctx context.Context, ids []int64) ([]chapter.Chapter, error) {
	return s.bulkRestore(ctx, ids)
}

func (s *ChapterService) doBulkDelete(ctx context.Context, ids []int64) ([]chapter.Chapter, error) {
	found, err := s.loadBulk(ctx, ids)
	if err != nil {
		return nil, err
	}

	var v validation.Violations
	for _, c := range found {
		if c.DeletedAt != nil {
			v.Add("Chapter %d is already deleted", c.ID)
		}
	}
	if !v.Empty() {
		return nil, v.Err()
	}

	out, err := s.chapters.SetDeleted(ctx, ids, true)
	if err != nil {
		return nil, mapBulkErr(err)
	}

	slog.Default().InfoContext(ctx, "chapters bulk deleted", "ids", ids)
	return out, nil
}

func (s *ChapterService) doBulkRestore(ctx context.Context, ids []int64) ([]chapter.Chapter, error) {
	found, err := s.loadBulk(ctx, ids)
	if err != nil {
		return nil, err
	}

	var v validation.Violations
	for _, c := range found {
		if c.DeletedAt == nil {
			v.Add("Chapter %d is not deleted", c.ID)
		}
	}
	if !v.Empty() {
		return nil, v.Err()
	}

	// Two restored chapters may also collide with each other.
	claimed := make(map[int64]map[int]int64, 1)
	for _, c := range found {
		if other, dup := claimed[c.CourseID][c.Order]; dup {
			v.Add("Chapters %d and %d share order %d", other, c.ID, c.Order)
			continue
		}
		if claimed[c.CourseID] == nil {
			claimed[c.CourseID] = make(map[int]int64)
		}
		claimed[c.CourseID][c.Order] = c.ID

		msg, err := validation.ChapterOrder(ctx, s.chapters, c.CourseID, c.Order, c.ID)
		if err != nil {
			return nil, err
		}
		if msg != "" {
			v.Add("%s", msg)
		}
	}
	if !v.Empty() {
		return nil, apperr.Invalid("Order conflicts found: %s", strings.Join(v, "; ")).WithDetails(v)
	}

	out, err := s.chapters.SetDeleted(ctx, ids, false)
	if err != nil {
		return nil, mapBulkErr(err)
	}

	slog.Default().InfoContext(ctx, "chapters bulk restored", "ids", ids)
	return out, nil
}

// loadBulk validates ids and returns their chapters after checking the
// caller may modify every owning course.
func (s *ChapterService) loadBulk(ctx context.Context, ids []int64) ([]chapter.Chapter, error) {
	var found []chapter.Chapter

	err := validation.BulkIDs(ctx, "chapter", ids, func(ctx context.Context, ids []int64) (int, error) {
		var err error
		found, err = s.chapters.GetMany(ctx, ids)
		return len(found), err
	})
	if err != nil {
		return nil, err
	}

	checked := make(map[int64]struct{}, 1)
	for _, c := range found {
		if _, ok := checked[c.CourseID]; ok {
			continue
		}
		if _, err := writableCourse(ctx, s.courses, c.CourseID); err != nil {
			return nil, err
		}
		checked[c.CourseID] = struct{}{}
	}

	return found, nil
}

func mapBulkErr(err error) error {
	if errors.Is(err, chapter.ErrNotFound) {
		return apperr.NotFound("One or more chapters not found")
	}
	return mapChapterErr(err)
}

// Get returns a live chapter without its lessons.
func (s *ChapterService) Get(ctx context.Context, id int64) (chapter.Chapter, error) {
	c, err := s.chapters.GetByID(ctx, id)
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	if c.DeletedAt != nil {
		return chapter.Chapter{}, apperr.NotFound("Chapter not found")
	}
	return c, nil
}

func (s *ChapterService) GetWithLessons(ctx context.Context, id int64) (chapter.Chapter, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return chapter.Chapter{}, err
	}

	lessons, err := s.chapters.Lessons(ctx, id)
	if err != nil {
		return chapter.Chapter{}, err
	}
	if lessons == nil {
		lessons = []lesson.Lesson{}
	}
	c.Lessons = lessons
	return c, nil
}

func (s *ChapterService) ListByCourse(ctx context.Context, q ChapterListQuery) (Page[chapter.Chapter], error) {
	p, orderBy, err := q.resolve(validation.ChapterSortFields, chapterSortColumns, "ch.order_number ASC", "ch.id ASC")
	if err != nil {
		return Page[chapter.Chapter]{}, err
	}

	c, err := s.courses.GetByID(ctx, q.CourseID)
	if err != nil {
		return Page[chapter.Chapter]{}, mapCourseErr(err)
	}

	includeDeleted := false
	if q.IncludeDeleted {
		caller, err := currentIdentity(ctx)
		if err == nil && (caller.IsAdmin() || (caller.HasRole(user.RoleInstructor) && caller.UserID == c.InstructorID)) {
			includeDeleted = true
		}
	}

	items, total, err := s.chapters.ListByCourse(ctx, chapter.ListFilter{
		CourseID:       q.CourseID,
		IncludeDeleted: includeDeleted,
		OrderBy:        orderBy,
		Limit:          p.Limit,
		Offset:         p.Offset(),
	})
	if err != nil {
		return Page[chapter.Chapter]{}, err
	}
	return newPage(items, p, total), nil
}
