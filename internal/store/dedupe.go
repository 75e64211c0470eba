package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/orm"
	"github.com/mickamy/golfstats/scope"
)

// DuplicateGroup is a set of course rows sharing (course_name, location).
type DuplicateGroup struct {
	CourseName          string  `json:"course_name"`
	Location            string  `json:"location"`
	IDs                 []int64 `json:"ids"`
	KeepID              int64   `json:"keep_id"`
	AffectedTournaments int64   `json:"affected_tournaments"`
}

// Duplicates are the ids that will be merged into KeepID.
func (g DuplicateGroup) Duplicates() []int64 {
	out := make([]int64, 0, len(g.IDs))
	for _, id := range g.IDs {
		if id != g.KeepID {
			out = append(out, id)
		}
	}
	return out
}

// DedupeReport summarizes a course merge.
type DedupeReport struct {
	DryRun                bool             `json:"dry_run"`
	Groups                []DuplicateGroup `json:"groups"`
	GroupsFixed           int              `json:"groups_fixed"`
	CoursesRemoved        int64            `json:"courses_removed"`
	TournamentsRepointed  int64            `json:"tournaments_repointed"`
	CoursesRemaining      int64            `json:"courses_remaining"`
	DuplicateGroupsRemain int              `json:"duplicate_groups_remaining"`
}

// AnalyzeCourseDuplicates lists every (course_name, location) with more
// than one row. The lowest id in a group is the one kept.
func (s *Store) AnalyzeCourseDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	return analyzeCourseDuplicates(ctx, s.db)
}

// DedupeCourses merges duplicate courses in one transaction: tournaments
// are re-pointed at the kept row, then the duplicates are deleted.
// With dryRun nothing is written. Running it twice is a no-op.
func (s *Store) DedupeCourses(ctx context.Context, dryRun bool) (DedupeReport, error) {
	var report DedupeReport
	err := orm.InTransaction(ctx, s.db, func(q orm.Querier) error {
		var err error
		report, err = dedupeCourses(ctx, q, dryRun)
		return err
	})
	if err != nil {
		return DedupeReport{}, err
	}
	s.log.WithFields(logrus.Fields{
		"dry_run":    dryRun,
		"groups":     len(report.Groups),
		"removed":    report.CoursesRemoved,
		"repointed":  report.TournamentsRepointed,
		"remaining":  report.CoursesRemaining,
		"unresolved": report.DuplicateGroupsRemain,
	}).Info("course dedupe finished")
	return report, nil
}

func analyzeCourseDuplicates(ctx context.Context, q orm.Querier) ([]DuplicateGroup, error) {
	rows, err := orm.QueryRows(ctx, q, `SELECT course_name, location, MIN(id)
		FROM courses
		GROUP BY course_name, location
		HAVING COUNT(*) > 1
		ORDER BY course_name, location`)
	if err != nil {
		return nil, fmt.Errorf("finding duplicate courses: %w", err)
	}
	var groups []DuplicateGroup
	for rows.Next() {
		var g DuplicateGroup
		if err := rows.Scan(&g.CourseName, &g.Location, &g.KeepID); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("finding duplicate courses: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("finding duplicate courses: %w", err)
	}
	_ = rows.Close()

	for i := range groups {
		g := &groups[i]
		courses, err := model.Courses(q).
			Select("id").
			Where("course_name = ? AND location = ?", g.CourseName, g.Location).
			OrderBy("id").
			All(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing duplicates of %q: %w", g.CourseName, err)
		}
		for _, c := range courses {
			g.IDs = append(g.IDs, c.ID)
		}
		g.AffectedTournaments, err = model.Tournaments(q).Scopes(scope.In("course_id", g.Duplicates())).Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting tournaments of %q: %w", g.CourseName, err)
		}
	}
	return groups, nil
}

func dedupeCourses(ctx context.Context, q orm.Querier, dryRun bool) (DedupeReport, error) {
	groups, err := analyzeCourseDuplicates(ctx, q)
	if err != nil {
		return DedupeReport{}, err
	}
	report := DedupeReport{DryRun: dryRun, Groups: groups}

	if !dryRun {
		for _, g := range groups {
			dups := g.Duplicates()
			if err := fillCourseGaps(ctx, q, g.KeepID, dups); err != nil {
				return DedupeReport{}, err
			}
			n, err := model.Tournaments(q).
				Scopes(scope.In("course_id", dups)).
				UpdateColumns(ctx, map[string]any{"course_id": g.KeepID})
			if err != nil {
				return DedupeReport{}, fmt.Errorf("re-pointing tournaments of %q: %w", g.CourseName, err)
			}
			report.TournamentsRepointed += n

			n, err = model.Courses(q).Scopes(scope.In("id", dups)).Delete(ctx)
			if err != nil {
				return DedupeReport{}, fmt.Errorf("deleting duplicates of %q: %w", g.CourseName, err)
			}
			report.CoursesRemoved += n
			report.GroupsFixed++
		}

		remaining, err := analyzeCourseDuplicates(ctx, q)
		if err != nil {
			return DedupeReport{}, err
		}
		report.DuplicateGroupsRemain = len(remaining)
	} else {
		report.DuplicateGroupsRemain = len(groups)
		for _, g := range groups {
			report.TournamentsRepointed += g.AffectedTournaments
			report.CoursesRemoved += int64(len(g.Duplicates()))
		}
	}

	report.CoursesRemaining, err = model.Courses(q).Count(ctx)
	if err != nil {
		return DedupeReport{}, fmt.Errorf("counting courses: %w", err)
	}
	if dryRun {
		report.CoursesRemaining -= report.CoursesRemoved
	}
	return report, nil
}

// fillCourseGaps copies attributes the kept course lacks from its
// duplicates, first non-null wins.
func fillCourseGaps(ctx context.Context, q orm.Querier, keepID int64, dups []int64) error {
	keep, err := model.Courses(q).Where("id = ?", keepID).First(ctx)
	if err != nil {
		return fmt.Errorf("loading course %d: %w", keepID, err)
	}
	others, err := model.Courses(q).Scopes(scope.In("id", dups)).OrderBy("id").All(ctx)
	if err != nil {
		return fmt.Errorf("loading duplicates of course %d: %w", keepID, err)
	}

	set := map[string]any{}
	for _, o := range others {
		if keep.Par == nil && o.Par != nil {
			keep.Par = o.Par
			set["par"] = *o.Par
		}
		if keep.Country == nil && o.Country != nil {
			keep.Country = o.Country
			set["country"] = *o.Country
		}
		if keep.Yardage == nil && o.Yardage != nil {
			keep.Yardage = o.Yardage
			set["yardage"] = *o.Yardage
		}
	}
	if _, err := model.Courses(q).Where("id = ?", keepID).UpdateColumns(ctx, set); err != nil {
		return fmt.Errorf("filling course %d: %w", keepID, err)
	}
	return nil
}
