package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mickamy/golfstats/internal/model"
	"github.com/mickamy/golfstats/orm"
)

// SampleTournamentExternalID keys the seeded tournament so re-seeding
// finds it again.
const SampleTournamentExternalID = "sample-masters-2024"

// Sample is what SeedSample created or found.
type Sample struct {
	Course     model.Course
	Tournament model.Tournament
	Player     model.Player
	Created    int
}

func ptr[T any](v T) *T { return &v }

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// SeedSample adds one course, tournament and player for a quick smoke
// test of an empty database. Rows that already exist are left alone.
func (s *Store) SeedSample(ctx context.Context) (Sample, error) {
	var out Sample
	err := orm.InTransaction(ctx, s.db, func(q orm.Querier) error {
		course := model.Course{
			CourseName:      "Augusta National Golf Club",
			Location:        "Augusta, Georgia",
			Country:         ptr("USA"),
			Par:             ptr(72),
			Yardage:         ptr(7475),
			CourseRating:    ptr(76.2),
			SlopeRating:     ptr(137),
			Architect:       ptr("Alister MacKenzie, Bobby Jones"),
			EstablishedYear: ptr(1933),
		}
		c, created, err := model.Courses(q).
			Where("course_name = ? AND location = ?", course.CourseName, course.Location).
			FirstOrCreate(ctx, &course)
		if err != nil {
			return fmt.Errorf("seeding course: %w", err)
		}
		out.Course = c
		if created {
			out.Created++
		}

		tournament := model.Tournament{
			ExternalID:     ptr(SampleTournamentExternalID),
			TournamentName: "Masters Tournament",
			CourseID:       &c.ID,
			TournamentDate: date(2024, time.April, 11),
			EndDate:        date(2024, time.April, 14),
			PurseMillions:  ptr(18.0),
			Season:         ptr(2024),
			HasCut:         true,
			FieldSize:      ptr(88),
			WinningScore:   ptr(-11),
		}
		t, created, err := model.Tournaments(q).
			Where("external_id = ?", SampleTournamentExternalID).
			FirstOrCreate(ctx, &tournament)
		if err != nil {
			return fmt.Errorf("seeding tournament: %w", err)
		}
		out.Tournament = t
		if created {
			out.Created++
		}

		player := model.Player{
			FirstName:      "Tiger",
			LastName:       "Woods",
			Nationality:    "USA",
			BirthDate:      date(1975, time.December, 30),
			TurnedProDate:  date(1996, time.August, 27),
			HeightCM:       ptr(185),
			WorldRanking:   ptr(1),
			CareerEarnings: ptr(120000000.0),
		}
		p, created, err := model.Players(q).
			Where("first_name = ? AND last_name = ?", player.FirstName, player.LastName).
			FirstOrCreate(ctx, &player)
		if err != nil {
			return fmt.Errorf("seeding player: %w", err)
		}
		out.Player = p
		if created {
			out.Created++
		}
		return nil
	})
	if err != nil {
		return Sample{}, err
	}
	s.log.WithField("created", out.Created).Info("sample data seeded")
	return out, nil
}
