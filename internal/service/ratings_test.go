package service

import (
	"context"
	"testing"

	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/domain/rating"
	"github.com/geocoder89/coursehub/internal/domain/user"
)

type fakeRatings struct {
	byID    map[int64]rating.Rating
	counts  map[int]int
	deleted []int64
}

func (f *fakeRatings) Create(_ context.Context, userID int64, req rating.CreateRatingRequest) (rating.Rating, error) {
	for _, r := range f.byID {
		if r.UserID == userID && r.CourseID == req.CourseID {
			return rating.Rating{}, rating.ErrAlreadyRated
		}
	}
	return rating.Rating{ID: 100, UserID: userID, CourseID: req.CourseID, Rating: req.Rating}, nil
}

func (f *fakeRatings) GetByID(_ context.Context, id int64) (rating.Rating, error) {
	r, ok := f.byID[id]
	if !ok {
		return rating.Rating{}, rating.ErrNotFound
	}
	return r, nil
}

func (f *fakeRatings) Update(_ context.Context, id int64, req rating.UpdateRatingRequest) (rating.Rating, error) {
	r := f.byID[id]
	r.Rating, r.Review = req.Rating, req.Review
	return r, nil
}

func (f *fakeRatings) SoftDelete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRatings) ListByCourse(context.Context, rating.ListFilter) ([]rating.Rating, int, error) {
	return nil, 0, nil
}

func (f *fakeRatings) Counts(context.Context, int64) (map[int]int, error) {
	return f.counts, nil
}

func TestRatingOwnership(t *testing.T) {
	store := &fakeRatings{byID: map[int64]rating.Rating{1: {ID: 1, UserID: 4, CourseID: 9, Rating: 3}}}
	s := NewRatingService(store, &fakeCourses{})

	_, err := s.Update(as(t, 5, user.RoleUser), RatingUpdate{ID: 1, Req: rating.UpdateRatingRequest{Rating: 5}})
	wantKind(t, err, apperr.KindForbidden)
	wantMessage(t, err, "User is not the owner of this rating")

	err = s.Delete(as(t, 5, user.RoleUser), 1)
	wantKind(t, err, apperr.KindForbidden)

	updated, err := s.Update(as(t, 4, user.RoleUser), RatingUpdate{ID: 1, Req: rating.UpdateRatingRequest{Rating: 5}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Rating != 5 {
		t.Fatalf("expected rating 5, got %d", updated.Rating)
	}

	if err := s.Delete(as(t, 4, user.RoleUser), 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected one delete, got %v", store.deleted)
	}

	err = s.Delete(as(t, 4, user.RoleUser), 2)
	wantKind(t, err, apperr.KindNotFound)
	wantMessage(t, err, "Course rating not found")
}

func TestRate_OncePerCourse(t *testing.T) {
	store := &fakeRatings{byID: map[int64]rating.Rating{1: {ID: 1, UserID: 4, CourseID: 9}}}
	s := NewRatingService(store, &fakeCourses{})

	_, err := s.Rate(as(t, 4, user.RoleUser), rating.CreateRatingRequest{CourseID: 9, Rating: 4})
	wantKind(t, err, apperr.KindConflict)
	wantMessage(t, err, "User already rated this course")

	if _, err := s.Rate(as(t, 4, user.RoleUser), rating.CreateRatingRequest{CourseID: 10, Rating: 4}); err != nil {
		t.Fatalf("Rate: %v", err)
	}
}

func TestDistribution(t *testing.T) {
	store := &fakeRatings{counts: map[int]int{5: 3, 4: 1}}
	s := NewRatingService(store, &fakeCourses{})

	d, err := s.Distribution(context.Background(), 9)
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	if d.Total != 4 || d.Percentages[5] != 75 || d.Counts[1] != 0 {
		t.Fatalf("unexpected distribution %+v", d)
	}
	if d.Average != 4.75 {
		t.Fatalf("expected average 4.75, got %v", d.Average)
	}
}
