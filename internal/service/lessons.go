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
	"github.com/geocoder89/coursehub/internal/validation"
)

type LessonStore interface {
	OrderTaken(ctx context.Context, chapterID int64, order int, excludeID int64) (bool, error)
	Create(ctx context.Context, nl lesson.NewLesson) (lesson.Lesson, error)
	BulkCreate(ctx context.Context, items []lesson.NewLesson) ([]lesson.Lesson, error)
	GetByID(ctx context.Context, id int64) (lesson.Lesson, error)
	GetMany(ctx context.Context, ids []int64) ([]lesson.Lesson, error)
	ListByChapter(ctx context.Context, chapterID int64) ([]lesson.Lesson, error)
	Search(ctx context.Context, filter lesson.SearchFilter) ([]lesson.Lesson, int, error)
	Update(ctx context.Context, id int64, changes lesson.Changes) (lesson.Lesson, error)
	BulkUpdate(ctx context.Context, updates []lesson.Update) ([]lesson.Lesson, error)
	SoftDelete(ctx context.Context, id int64) error
	SetDeleted(ctx context.Context, ids []int64, deleted bool) ([]lesson.Lesson, error)
	Renumber(ctx context.Context, chapterID int64) ([]lesson.Lesson, error)
}

type ChapterReader interface {
	GetByID(ctx context.Context, id int64) (chapter.Chapter, error)
}

type LessonUpdate struct {
	ID  int64
	Req lesson.UpdateLessonRequest
}

type LessonSearchQuery struct {
	ListQuery
	ChapterID *int64
	CourseID  *int64
	Title     string
	Type      string
	Status    string
}

var lessonSortColumns = map[string]string{
	"title":        "l.title",
	"order_number": "l.order_number",
	"status":       "l.status",
	"type":         "l.type",
	"created_at":   "l.created_at",
}

type LessonService struct {
	lessons  LessonStore
	chapters ChapterReader
	courses  CourseReader

	create      func(context.Context, lesson.CreateLessonRequest) (lesson.Lesson, error)
	bulkCreate  func(context.Context, lesson.BulkCreateRequest) ([]lesson.Lesson, error)
	update      func(context.Context, LessonUpdate) (lesson.Lesson, error)
	bulkUpdate  func(context.Context, lesson.BulkUpdateRequest) ([]lesson.Lesson, error)
	remove      func(context.Context, int64) error
	restore     func(context.Context, int64) (lesson.Lesson, error)
	bulkDelete  func(context.Context, []int64) ([]lesson.Lesson, error)
	bulkRestore func(context.Context, []int64) ([]lesson.Lesson, error)
	renumber    func(context.Context, int64) ([]lesson.Lesson, error)
}

func NewLessonService(lessons LessonStore, chapters ChapterReader, courses CourseReader) *LessonService {
	s := &LessonService{lessons: lessons, chapters: chapters, courses: courses}

	s.create = authz.Guard(staff, s.doCreate)
	s.bulkCreate = authz.Guard(staff, s.doBulkCreate)
	s.update = authz.Guard(staff, s.doUpdate)
	s.bulkUpdate = authz.Guard(staff, s.doBulkUpdate)
	s.remove = authz.GuardErr(staff, s.doDelete)
	s.restore = authz.Guard(staff, s.doRestore)
	s.bulkDelete = authz.Guard(staff, s.doBulkDelete)
	s.bulkRestore = authz.Guard(staff, s.doBulkRestore)
	s.renumber = authz.Guard(staff, s.doRenumber)

	return s
}

func mapLessonErr(err error) error {
	switch {
	case errors.Is(err, lesson.ErrNotFound):
		return apperr.NotFound("Lesson not found")
	case errors.Is(err, lesson.ErrOrderTaken):
		return apperr.Conflict("Lesson order is already taken in this chapter")
	}
	return err
}

func mapBulkLessonErr(err error) error {
	if errors.Is(err, lesson.ErrNotFound) {
		return apperr.NotFound("One or more lessons not found")
	}
	return mapLessonErr(err)
}

// writableChapter returns a live chapter after checking the caller may change its course.
func (s *LessonService) writableChapter(ctx context.Context, chapterID int64) (chapter.Chapter, error) {
	ch, err := s.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return chapter.Chapter{}, mapChapterErr(err)
	}
	if ch.DeletedAt != nil {
		return chapter.Chapter{}, apperr.NotFound("Chapter not found")
	}
	if _, err := writableCourse(ctx, s.courses, ch.CourseID); err != nil {
		return chapter.Chapter{}, err
	}
	return ch, nil
}

// lessonChanges turns an update request into repository changes. Order is
// left to the caller since single and bulk writes check it differently.
func lessonChanges(current lesson.Lesson, req lesson.UpdateLessonRequest) (lesson.Changes, error) {
	changes := lesson.Changes{Content: req.Content, Type: req.Type}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		changes.Title = &t
	}
	if req.Status != nil {
		if err := validation.StatusTransition(current.Status, *req.Status); err != nil {
			return lesson.Changes{}, err
		}
		if *req.Status == course.StatusArchived {
			return lesson.Changes{}, apperr.Invalid("Lessons are archived through their chapter; delete the lesson instead")
		}
		changes.Status = req.Status
	}
	return changes, nil
}

func (s *LessonService) Create(ctx context.Context, req lesson.CreateLessonRequest) (lesson.Lesson, error) {
	return s.create(ctx, req)
}

func (s *LessonService) doCreate(ctx context.Context, req lesson.CreateLessonRequest) (lesson.Lesson, error) {
	if _, err := s.writableChapter(ctx, req.ChapterID); err != nil {
		return lesson.Lesson{}, err
	}
	if err := validation.LessonOrder(ctx, s.lessons, req.ChapterID, req.Order, 0); err != nil {
		return lesson.Lesson{}, err
	}

	l, err := s.lessons.Create(ctx, lesson.NewLesson{
		ChapterID: req.ChapterID,
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		Order:     req.Order,
		Type:      req.Type,
	})
	return l, mapLessonErr(err)
}

func (s *LessonService) BulkCreate(ctx context.Context, req lesson.BulkCreateRequest) ([]lesson.Lesson, error) {
	return s.bulkCreate(ctx, req)
}

// doBulkCreate rejects the batch on any bad or repeated order before looking
// at the chapter's existing lessons, then reports every taken order at once.
func (s *LessonService) doBulkCreate(ctx context.Context, req lesson.BulkCreateRequest) ([]lesson.Lesson, error) {
	if err := validation.BulkSize(len(req.Lessons), "lessons"); err != nil {
		return nil, err
	}
	if _, err := s.writableChapter(ctx, req.ChapterID); err != nil {
		return nil, err
	}

	orders := make([]int, 0, len(req.Lessons))
	for _, l := range req.Lessons {
		orders = append(orders, l.Order)
	}
	if v := validation.UniqueOrders("lesson", orders); !v.Empty() {
		return nil, v.Err()
	}

	var conflicts validation.Violations
	for _, l := range req.Lessons {
		msg, err := validation.LessonOrderTaken(ctx, s.lessons, req.ChapterID, l.Order, 0)
		if err != nil {
			return nil, err
		}
		if msg != "" {
			conflicts.Add("%s", msg)
		}
	}
	if !conflicts.Empty() {
		return nil, takenOrdersErr(conflicts)
	}

	items := make([]lesson.NewLesson, 0, len(req.Lessons))
	for _, l := range req.Lessons {
		items = append(items, lesson.NewLesson{
			ChapterID: req.ChapterID,
			Title:     strings.TrimSpace(l.Title),
			Content:   l.Content,
			Order:     l.Order,
			Type:      l.Type,
		})
	}

	out, err := s.lessons.BulkCreate(ctx, items)
	if err != nil {
		return nil, mapLessonErr(err)
	}

	slog.Default().InfoContext(ctx, "lessons bulk created", "chapter_id", req.ChapterID, "count", len(out))
	return out, nil
}

func takenOrdersErr(conflicts validation.Violations) error {
	return apperr.Invalid("One or more lesson orders have been taken in this chapter: %s",
		strings.Join(conflicts, "; ")).WithDetails(conflicts)
}

func (s *LessonService) Update(ctx context.Context, u LessonUpdate) (lesson.Lesson, error) {
	return s.update(ctx, u)
}

func (s *LessonService) doUpdate(ctx context.Context, u LessonUpdate) (lesson.Lesson, error) {
	current, err := s.lessons.GetByID(ctx, u.ID)
	if err != nil {
		return lesson.Lesson{}, mapLessonErr(err)
	}
	if current.DeletedAt != nil {
		return lesson.Lesson{}, apperr.NotFound("Lesson not found")
	}
	if _, err := s.writableChapter(ctx, current.ChapterID); err != nil {
		return lesson.Lesson{}, err
	}

	changes, err := lessonChanges(current, u.Req)
	if err != nil {
		return lesson.Lesson{}, err
	}
	if o := u.Req.Order; o != nil && *o != current.Order {
		if err := validation.LessonOrder(ctx, s.lessons, current.ChapterID, *o, current.ID); err != nil {
			return lesson.Lesson{}, err
		}
		changes.Order = o
	}

	l, err := s.lessons.Update(ctx, current.ID, changes)
	return l, mapLessonErr(err)
}

func (s *LessonService) BulkUpdate(ctx context.Context, req lesson.BulkUpdateRequest) ([]lesson.Lesson, error) {
	return s.bulkUpdate(ctx, req)
}

// doBulkUpdate validates every item before writing. Field and status
// problems are reported together, then repeated orders, then orders already
// held by other lessons. Orders are checked against the stored state, so two
// lessons cannot swap positions in one batch.
func (s *LessonService) doBulkUpdate(ctx context.Context, req lesson.BulkUpdateRequest) ([]lesson.Lesson, error) {
	ids := make([]int64, 0, len(req.Lessons))
	for _, item := range req.Lessons {
		ids = append(ids, item.ID)
	}

	found, err := s.loadBulk(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]lesson.Lesson, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}

	var v validation.Violations
	updates := make([]lesson.Update, 0, len(req.Lessons))
	var chapterIDs []int64
	orders := make(map[int64][]int)

	for _, item := range req.Lessons {
		current := byID[item.ID]
		if current.DeletedAt != nil {
			v.Add("Lesson %d is deleted", current.ID)
			continue
		}

		changes, err := lessonChanges(current, item.UpdateLessonRequest)
		if err != nil {
			v.Add("Lesson %d: %s", current.ID, apperr.ResponseFor(err).Message)
			continue
		}
		if o := item.Order; o != nil && *o != current.Order {
			if _, seen := orders[current.ChapterID]; !seen {
				chapterIDs = append(chapterIDs, current.ChapterID)
			}
			orders[current.ChapterID] = append(orders[current.ChapterID], *o)
			changes.Order = o
		}
		updates = append(updates, lesson.Update{ID: current.ID, Changes: changes})
	}
	if !v.Empty() {
		return nil, v.Err()
	}

	for _, chapterID := range chapterIDs {
		v = append(v, validation.UniqueOrders("lesson", orders[chapterID])...)
	}
	if !v.Empty() {
		return nil, v.Err()
	}

	var conflicts validation.Violations
	for _, u := range updates {
		if u.Changes.Order == nil {
			continue
		}
		msg, err := validation.LessonOrderTaken(ctx, s.lessons, byID[u.ID].ChapterID, *u.Changes.Order, u.ID)
		if err != nil {
			return nil, err
		}
		if msg != "" {
			conflicts.Add("%s", msg)
		}
	}
	if !conflicts.Empty() {
		return nil, takenOrdersErr(conflicts)
	}

	out, err := s.lessons.BulkUpdate(ctx, updates)
	if err != nil {
		return nil, mapBulkLessonErr(err)
	}

	slog.Default().InfoContext(ctx, "lessons bulk updated", "ids", ids)
	return out, nil
}

func (s *LessonService) Delete(ctx context.Context, id int64) error {
	return s.remove(ctx, id)
}

func (s *LessonService) doDelete(ctx context.Context, id int64) error {
	current, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return mapLessonErr(err)
	}
	if current.DeletedAt != nil {
		return apperr.Invalid("Lesson is already deleted")
	}
	if _, err := s.writableChapter(ctx, current.ChapterID); err != nil {
		return err
	}
	return mapLessonErr(s.lessons.SoftDelete(ctx, id))
}

func (s *LessonService) Restore(ctx context.Context, id int64) (lesson.Lesson, error) {
	return s.restore(ctx, id)
}

// doRestore brings a lesson back into its live chapter. Its order must not
// have been reused meanwhile.
func (s *LessonService) doRestore(ctx context.Context, id int64) (lesson.Lesson, error) {
	current, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return lesson.Lesson{}, mapLessonErr(err)
	}
	if current.DeletedAt == nil {
		return lesson.Lesson{}, apperr.Invalid("Lesson is not deleted")
	}
	if _, err := s.writableChapter(ctx, current.ChapterID); err != nil {
		return lesson.Lesson{}, err
	}
	if err := validation.LessonOrder(ctx, s.lessons, current.ChapterID, current.Order, current.ID); err != nil {
		return lesson.Lesson{}, err
	}

	out, err := s.lessons.SetDeleted(ctx, []int64{id}, false)
	if err != nil {
		return lesson.Lesson{}, mapLessonErr(err)
	}
	return out[0], nil
}

func (s *LessonService) BulkDelete(ctx context.Context, ids []int64) ([]lesson.Lesson, error) {
	return s.bulkDelete(ctx, ids)
}

func (s *LessonService) doBulkDelete(ctx context.Context, ids []int64) ([]lesson.Lesson, error) {
	found, err := s.loadBulk(ctx, ids)
	if err != nil {
		return nil, err
	}

	var v validation.Violations
	for _, l := range found {
		if l.DeletedAt != nil {
			v.Add("Lesson %d is already deleted", l.ID)
		}
	}
	if !v.Empty() {
		return nil, v.Err()
	}

	out, err := s.lessons.SetDeleted(ctx, ids, true)
	if err != nil {
		return nil, mapBulkLessonErr(err)
	}

	slog.Default().InfoContext(ctx, "lessons bulk deleted", "ids", ids)
	return out, nil
}

func (s *LessonService) BulkRestore(ctx context.Context, ids []int64) ([]lesson.Lesson, error) {
	return s.bulkRestore(ctx, ids)
}

func (s *LessonService) doBulkRestore(ctx context.Context, ids []int64) ([]lesson.Lesson, error) {
	found, err := s.loadBulk(ctx, ids)
	if err != nil {
		return nil, err
	}

	var v validation.Violations
	for _, l := range found {
		if l.DeletedAt == nil {
			v.Add("Lesson %d is not deleted", l.ID)
		}
	}
	if !v.Empty() {
		return nil, v.Err()
	}

	claimed := make(map[int64]map[int]int64)
	for _, l := range found {
		if other, dup := claimed[l.ChapterID][l.Order]; dup {
			v.Add("Lessons %d and %d share order %d", other, l.ID, l.Order)
			continue
		}
		if claimed[l.ChapterID] == nil {
			claimed[l.ChapterID] = make(map[int]int64)
		}
		claimed[l.ChapterID][l.Order] = l.ID

		msg, err := validation.LessonOrderTaken(ctx, s.lessons, l.ChapterID, l.Order, l.ID)
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

	out, err := s.lessons.SetDeleted(ctx, ids, false)
	if err != nil {
		return nil, mapBulkLessonErr(err)
	}

	slog.Default().InfoContext(ctx, "lessons bulk restored", "ids", ids)
	return out, nil
}

// loadBulk validates ids and returns their lessons after checking every
// owning chapter is live and writable by the caller.
func (s *LessonService) loadBulk(ctx context.Context, ids []int64) ([]lesson.Lesson, error) {
	var found []lesson.Lesson

	err := validation.BulkIDs(ctx, "lesson", ids, func(ctx context.Context, ids []int64) (int, error) {
		var err error
		found, err = s.lessons.GetMany(ctx, ids)
		return len(found), err
	})
	if err != nil {
		return nil, err
	}

	checked := make(map[int64]struct{}, 1)
	for _, l := range found {
		if _, ok := checked[l.ChapterID]; ok {
			continue
		}
		if _, err := s.writableChapter(ctx, l.ChapterID); err != nil {
			return nil, err
		}
		checked[l.ChapterID] = struct{}{}
	}

	return found, nil
}

// Renumber gives the live lessons of a chapter orders 1..N in their current
// sequence.
func (s *LessonService) Renumber(ctx context.Context, chapterID int64) ([]lesson.Lesson, error) {
	return s.renumber(ctx, chapterID)
}

func (s *LessonService) doRenumber(ctx context.Context, chapterID int64) ([]lesson.Lesson, error) {
	if _, err := s.writableChapter(ctx, chapterID); err != nil {
		return nil, err
	}

	out, err := s.lessons.Renumber(ctx, chapterID)
	if err != nil {
		return nil, mapLessonErr(err)
	}
	if out == nil {
		out = []lesson.Lesson{}
	}

	slog.Default().InfoContext(ctx, "lessons renumbered", "chapter_id", chapterID, "count", len(out))
	return out, nil
}

func (s *LessonService) Get(ctx context.Context, id int64) (lesson.Lesson, error) {
	l, err := s.lessons.GetByID(ctx, id)
	if err != nil {
		return lesson.Lesson{}, mapLessonErr(err)
	}
	if l.DeletedAt != nil {
		return lesson.Lesson{}, apperr.NotFound("Lesson not found")
	}
	return l, nil
}

func (s *LessonService) ListByChapter(ctx context.Context, chapterID int64) ([]lesson.Lesson, error) {
	ch, err := s.chapters.GetByID(ctx, chapterID)
	if err != nil {
		return nil, mapChapterErr(err)
	}
	if ch.DeletedAt != nil {
		return nil, apperr.NotFound("Chapter not found")
	}

	items, err := s.lessons.ListByChapter(ctx, chapterID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []lesson.Lesson{}
	}
	return items, nil
}

// Search pages through live lessons of live chapters.
func (s *LessonService) Search(ctx context.Context, q LessonSearchQuery) (Page[lesson.Lesson], error) {
	p, orderBy, err := q.resolve(validation.LessonSortFields, lessonSortColumns, "l.created_at DESC", "l.id DESC")
	if err != nil {
		return Page[lesson.Lesson]{}, err
	}

	filter := lesson.SearchFilter{
		ChapterID: q.ChapterID,
		CourseID:  q.CourseID,
		Title:     strings.TrimSpace(q.Title),
		OrderBy:   orderBy,
		Limit:     p.Limit,
		Offset:    p.Offset(),
	}

	var v validation.Violations
	if q.Type != "" {
		t, ok := lesson.ParseType(q.Type)
		if ok {
			filter.Type = &t
		} else {
			v.Add("Invalid lesson type: %s", q.Type)
		}
	}
	if q.Status != "" {
		st, ok := course.ParseStatus(q.Status)
		if ok {
			filter.Status = &st
		} else {
			v.Add("Invalid status: %s", q.Status)
		}
	}
	if err := v.Err(); err != nil {
		return Page[lesson.Lesson]{}, err
	}

	items, total, err := s.lessons.Search(ctx, filter)
	if err != nil {
		return Page[lesson.Lesson]{}, err
	}
	return newPage(items, p, total), nil
}
