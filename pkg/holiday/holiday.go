package holiday

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ndtl/timereport/internal/config"
	"github.com/ndtl/timereport/internal/utils"
	"github.com/ndtl/timereport/pkg/period"
	"github.com/ndtl/timereport/pkg/redmine"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	ProjectName = "University Holidays"
	ActivityId  = 98
	Hours       = 8.0
)

var ErrUnknownHoliday = errors.New("unknown holiday")

type Holiday struct {
	Date time.Time
	Name string
}

// FromConfig parses the configured holidays. Dates were validated on load.
func FromConfig(holidays []config.Holiday) ([]Holiday, error) {
	result := make([]Holiday, 0, len(holidays))
	for _, h := range holidays {
		date, err := period.ParseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h.Name, err)
		}
		result = append(result, Holiday{Date: date, Name: h.Name})
	}
	return result, nil
}

type Service struct {
	redmine  redmine.Repository
	holidays []Holiday
	clock    utils.Clock
}

func NewService(redmineRepo redmine.Repository, holidays []Holiday, clock utils.Clock) *Service {
	return &Service{redmine: redmineRepo, holidays: holidays, clock: clock}
}

// LogToday logs every holiday falling on today. It returns how many entries
// were inserted.
func (s *Service) LogToday(ctx context.Context) (int, error) {
	today := utils.Today(s.clock)
	inserted := 0
	for _, h := range s.holidays {
		if !h.Date.Equal(today) {
			continue
		}
		log.Infof("Logging time for %s", h.Name)
		n, err := s.log(ctx, h)
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	if inserted == 0 {
		log.Debugf("No holiday on %s", today.Format(period.DateLayout))
	}
	return inserted, nil
}

// LogByName logs the holidays of the current year called name.
func (s *Service) LogByName(ctx context.Context, name string) (int, error) {
	year := utils.Today(s.clock).Year()
	matches := lo.Filter(s.holidays, func(h Holiday, _ int) bool {
		return h.Name == name && h.Date.Year() == year
	})
	if len(matches) == 0 {
		names := lo.Uniq(lo.Map(s.holidays, func(h Holiday, _ int) string { return "'" + h.Name + "'" }))
		return 0, fmt.Errorf("%w %q, expected one of: %s", ErrUnknownHoliday, name, strings.Join(names, ", "))
	}

	inserted := 0
	for _, h := range matches {
		n, err := s.log(ctx, h)
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// log inserts the holiday for every member of the holidays project in one
// transaction. Members who already have the entry are left alone, so running
// it twice for the same day inserts nothing the second time.
func (s *Service) log(ctx context.Context, h Holiday) (int, error) {
	project, err := s.redmine.GetProjectByName(ctx, ProjectName)
	if err != nil {
		return 0, err
	}
	memberIds, err := s.redmine.GetProjectMemberIds(ctx, project.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to load members of %s: %w", ProjectName, err)
	}

	inserted := 0
	err = s.redmine.WithTransaction(ctx, func(repo redmine.Repository) error {
		for _, userId := range memberIds {
			entry := redmine.NewTimeEntry{
				ProjectId:  project.Id,
				UserId:     userId,
				ActivityId: ActivityId,
				Hours:      Hours,
				Comments:   h.Name,
				SpentOn:    h.Date,
			}
			exists, err := repo.HasTimeEntry(ctx, entry)
			if err != nil {
				return err
			}
			if exists {
				log.Debugf("User %d already has %s logged", userId, h.Name)
				continue
			}
			if err := repo.InsertTimeEntry(ctx, entry); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to log %s: %w", h.Name, err)
	}
	log.Infof("Logged %s for %d of %d members on %s", h.Name, inserted, len(memberIds), h.Date.Format(period.DateLayout))
	return inserted, nil
}
