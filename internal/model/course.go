package model

import (
	"database/sql"
	"strings"
	"time"

	"github.com/mickamy/golfstats/orm"
)

// courseSeparator divides course name and location in source files,
// e.g. "TPC Sawgrass - Ponte Vedra Beach, FL".
const courseSeparator = " - "

type Course struct {
	ID              int64     `db:"id,primaryKey" json:"id"`
	CourseName      string    `db:"course_name" json:"course_name"`
	Location        string    `db:"location" json:"location"`
	Country         *string   `db:"country" json:"country,omitempty"`
	Par             *int      `db:"par" json:"par,omitempty"`
	Yardage         *int      `db:"yardage" json:"yardage,omitempty"`
	CourseRating    *float64  `db:"course_rating" json:"course_rating,omitempty"`
	SlopeRating     *int      `db:"slope_rating" json:"slope_rating,omitempty"`
	Architect       *string   `db:"architect" json:"architect,omitempty"`
	EstablishedYear *int      `db:"established_year" json:"established_year,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// SplitCourse splits a combined "Name - Location" value on the first
// separator. Values without one are all name.
func SplitCourse(raw string) (name, location string) {
	raw = strings.TrimSpace(raw)
	name, location, found := strings.Cut(raw, courseSeparator)
	if !found {
		return raw, ""
	}
	return strings.TrimSpace(name), strings.TrimSpace(location)
}

// Courses returns a new Query for the courses table.
func Courses(db orm.Querier) *orm.Query[Course] {
	q := orm.NewQuery[Course](
		db, orm.ResolveTableName[Course](orm.InferTableName("Course")), coursesColumns, "id",
		scanCourse, courseColumnValuePairs, setCoursePK,
	)
	q.RegisterJoin("Tournaments", orm.JoinConfig{
		TargetTable: orm.ResolveTableName[Tournament]("tournaments"), TargetColumn: "course_id",
		SourceTable: orm.ResolveTableName[Course]("courses"), SourceColumn: "id",
	})
	q.RegisterTimestamps([]string{"created_at"}, setCourseCreatedAt, nil)
	return q
}

var coursesColumns = []string{
	"id", "course_name", "location", "country", "par", "yardage",
	"course_rating", "slope_rating", "architect", "established_year", "created_at",
}

func scanCourse(rows *sql.Rows) (Course, error) {
	cols, _ := rows.Columns()
	var v Course
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch col {
		case "id":
			dest[i] = &v.ID
		case "course_name":
			dest[i] = &v.CourseName
		case "location":
			dest[i] = &v.Location
		case "country":
			dest[i] = &v.Country
		case "par":
			dest[i] = &v.Par
		case "yardage":
			dest[i] = &v.Yardage
		case "course_rating":
			dest[i] = &v.CourseRating
		case "slope_rating":
			dest[i] = &v.SlopeRating
		case "architect":
			dest[i] = &v.Architect
		case "established_year":
			dest[i] = &v.EstablishedYear
		case "created_at":
			dest[i] = &v.CreatedAt
		default:
			dest[i] = new(any)
		}
	}
	err := rows.Scan(dest...)
	return v, err
}

func courseColumnValuePairs(v *Course, includesPK bool) ([]string, []any) {
	cols := []string{
		"course_name", "location", "country", "par", "yardage",
		"course_rating", "slope_rating", "architect", "established_year", "created_at",
	}
	vals := []any{
		v.CourseName, v.Location, v.Country, v.Par, v.Yardage,
		v.CourseRating, v.SlopeRating, v.Architect, v.EstablishedYear, v.CreatedAt,
	}
	if includesPK {
		return append([]string{"id"}, cols...), append([]any{v.ID}, vals...)
	}
	return cols, vals
}

func setCoursePK(v *Course, id int64) {
	v.ID = id
}

func setCourseCreatedAt(v *Course, now time.Time) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
}
