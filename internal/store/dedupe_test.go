package store_test

import (
	"testing"

	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/internal/store"
	"github.com/mickamy/golfstats/orm"
)

// seedDuplicateCourses recreates the legacy state the old loader left
// behind: three copies of one course, each owning a tournament.
func seedDuplicateCourses(t *testing.T, s *store.Store) []int64 {
	t.Helper()
	ctx := t.Context()

	if _, err := orm.Exec(ctx, s.DB(), "DROP INDEX ux_courses_name_location"); err != nil {
		t.Fatalf("drop unique index: %v", err)
	}

	var ids []int64
	for i, par := range []*int{nil, ptr(72), ptr(71)} {
		c := &model.Course{CourseName: "TPC Sawgrass", Location: "Ponte Vedra Beach, FL", Par: par}
		if err := model.Courses(s.DB()).Create(ctx, c); err != nil {
			t.Fatalf("create course: %v", err)
		}
		ids = append(ids, c.ID)

		tm := &model.Tournament{TournamentName: "The Players Championship", ExternalID: ptr(string(rune('a' + i))), CourseID: &c.ID, HasCut: true}
		if err := model.Tournaments(s.DB()).Create(ctx, tm); err != nil {
			t.Fatalf("create tournament: %v", err)
		}
	}
	unique := &model.Course{CourseName: "Pebble Beach Golf Links", Location: "Pebble Beach, CA"}
	if err := model.Courses(s.DB()).Create(ctx, unique); err != nil {
		t.Fatalf("create course: %v", err)
	}
	return ids
}

func TestAnalyzeCourseDuplicates(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ids := seedDuplicateCourses(t, s)

	groups, err := s.AnalyzeCourseDuplicates(t.Context())
	if err != nil {
		t.Fatalf("AnalyzeCourseDuplicates: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %+v, want 1", groups)
	}
	g := groups[0]
	if g.KeepID != ids[0] || len(g.IDs) != 3 || g.AffectedTournaments != 2 {
		t.Errorf("group = %+v, keep %d", g, ids[0])
	}
	if dups := g.Duplicates(); len(dups) != 2 || dups[0] != ids[1] || dups[1] != ids[2] {
		t.Errorf("Duplicates() = %v", dups)
	}
}

func TestDedupeCoursesDryRun(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	seedDuplicateCourses(t, s)

	report, err := s.DedupeCourses(t.Context(), true)
	if err != nil {
		t.Fatalf("DedupeCourses: %v", err)
	}
	if report.CoursesRemoved != 2 || report.TournamentsRepointed != 2 || report.CoursesRemaining != 2 {
		t.Errorf("report = %+v", report)
	}
	n, err := model.Courses(s.DB()).Count(t.Context())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Errorf("courses after dry run = %d, want 4", n)
	}
}

func TestDedupeCourses(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	ctx := t.Context()
	ids := seedDuplicateCourses(t, s)

	report, err := s.DedupeCourses(ctx, false)
	if err != nil {
		t.Fatalf("DedupeCourses: %v", err)
	}
	if report.GroupsFixed != 1 || report.CoursesRemoved != 2 || report.TournamentsRepointed != 2 {
		t.Errorf("report = %+v", report)
	}
	if report.CoursesRemaining != 2 || report.DuplicateGroupsRemain != 0 {
		t.Errorf("remaining = %d courses, %d groups", report.CoursesRemaining, report.DuplicateGroupsRemain)
	}

	n, err := model.Tournaments(s.DB()).Where("course_id = ?", ids[0]).Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("tournaments on kept course = %d, want 3", n)
	}
	kept, err := s.Courses().Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get kept course: %v", err)
	}
	if kept.Par == nil || *kept.Par != 72 {
		t.Errorf("kept par = %v, want 72 from first duplicate", kept.Par)
	}

	again, err := s.DedupeCourses(ctx, false)
	if err != nil {
		t.Fatalf("second DedupeCourses: %v", err)
	}
	if again.GroupsFixed != 0 || again.CoursesRemoved != 0 || again.CoursesRemaining != 2 {
		t.Errorf("second report = %+v", again)
	}
}
