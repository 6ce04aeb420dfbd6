package repository

import (
	"fmt"
	"net/url"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/rmgsl/mapa-od/internal/survey"
)

var log = logrus.WithField("module", "repository")

// tripColumns is the survey_trips projection shared by SQLite and Postgres
const tripColumns = `origin, destination, origin_group, destination_group, motive, frequency, period, mode`

// rowScanner is satisfied by *sql.Rows and pgx.Rows
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTrips(rows rowScanner) ([]survey.TripRecord, error) {
	var records []survey.TripRecord
	for rows.Next() {
		var r survey.TripRecord
		err := rows.Scan(
			&r.Origin,
			&r.Destination,
			&r.OriginGroup,
			&r.DestinationGroup,
			&r.Motive,
			&r.Frequency,
			&r.Period,
			&r.Mode,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trip rows: %w", err)
	}
	return records, nil
}

// presentAttributes lists the attributes that have a value in at least one
// record. Origin and destination are always reported.
func presentAttributes(records []survey.TripRecord) []survey.Attribute {
	return lo.Filter(survey.AllAttributes(), func(a survey.Attribute, _ int) bool {
		if a == survey.AttrOrigin || a == survey.AttrDestination {
			return true
		}
		return lo.ContainsBy(records, func(r survey.TripRecord) bool { return r.Value(a) != "" })
	})
}

// redact hides the password of a connection URL for listings and logs
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
