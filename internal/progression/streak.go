package progression

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// StreakItem is an item granted on check-in from FromDay onwards.
type StreakItem struct {
	FromDay int
	Grant   ItemGrant
}

// StreakRules sets the daily check-in reward and the calendar used to
// decide what "today" is.
type StreakRules struct {
	BaseExp     uint64
	BonusPerDay uint64
	BonusCap    uint64
	Items       []StreakItem
	// Location defines calendar days. Nil means time.Local.
	Location *time.Location
}

// DefaultStreakRules returns the shipped check-in rewards.
func DefaultStreakRules() StreakRules {
	return StreakRules{
		BaseExp:     20,
		BonusPerDay: 5,
		BonusCap:    50,
		Items: []StreakItem{
			{FromDay: 1, Grant: ItemGrant{ItemID: "qi_pill", Quantity: 1}},
			{FromDay: 3, Grant: ItemGrant{ItemID: "spirit_herb", Quantity: 2}},
			{FromDay: 7, Grant: ItemGrant{ItemID: "jade_talisman", Quantity: 1}},
		},
	}
}

// StreakState is the persisted check-in history. LastCheckIn is a calendar
// date (YYYY-MM-DD) or empty before the first check-in.
type StreakState struct {
	LastCheckIn     string `json:"lastCheckIn,omitempty"`
	ConsecutiveDays int    `json:"consecutiveDays"`
	TotalCheckIns   int    `json:"totalCheckIns"`
}

// CheckInResult is returned by CheckIn. A second check-in on the same day
// reports Success false and grants nothing.
type CheckInResult struct {
	Success         bool        `json:"success"`
	Reward          *RewardSpec `json:"reward,omitempty"`
	ConsecutiveDays int         `json:"consecutiveDays"`
}

// DailyStreak tracks consecutive daily check-ins.
type DailyStreak struct {
	rules StreakRules
	state StreakState
}

// NewDailyStreak returns a tracker with no check-in history.
func NewDailyStreak(rules StreakRules) *DailyStreak {
	if rules.Location == nil {
		rules.Location = time.Local
	}
	return &DailyStreak{rules: rules}
}

// Reward returns what a check-in on the given streak day grants.
func (s *DailyStreak) Reward(days int) RewardSpec {
	bonus := min(uint64(max(days, 0))*s.rules.BonusPerDay, s.rules.BonusCap)
	r := RewardSpec{Exp: s.rules.BaseExp + bonus}
	for _, it := range s.rules.Items {
		if days >= it.FromDay {
			r.Items = append(r.Items, it.Grant)
		}
	}
	return r
}

// CheckIn records a check-in at now. The streak grows when the previous
// check-in was yesterday and restarts at 1 after a gap. A check-in dated
// before the last one is rejected like a same-day repeat.
func (s *DailyStreak) CheckIn(p *Player, now time.Time) CheckInResult {
	today := s.day(now)

	days := 1
	if last, ok := s.lastDay(); ok {
		switch {
		case !today.After(last):
			return CheckInResult{ConsecutiveDays: s.state.ConsecutiveDays}
		case today.Equal(last.AddDate(0, 0, 1)):
			days = s.state.ConsecutiveDays + 1
		}
	}

	s.state.LastCheckIn = today.Format(dateLayout)
	s.state.ConsecutiveDays = days
	s.state.TotalCheckIns++

	reward := s.Reward(days)
	reward.grant(p)
	return CheckInResult{Success: true, Reward: &reward, ConsecutiveDays: days}
}

// CheckedInOn reports whether a check-in was already made on now's date.
func (s *DailyStreak) CheckedInOn(now time.Time) bool {
	last, ok := s.lastDay()
	return ok && last.Equal(s.day(now))
}

// day truncates t to its calendar date in the configured location,
// represented as midnight UTC so dates compare without zone effects.
func (s *DailyStreak) day(t time.Time) time.Time {
	y, m, d := t.In(s.rules.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *DailyStreak) lastDay() (time.Time, bool) {
	if s.state.LastCheckIn == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s.state.LastCheckIn)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Handle satisfies Handler. The streak does not react to events.
func (s *DailyStreak) Handle(Event, *Player) []GoalCompleted {
	return nil
}

// State returns the persisted form of the streak.
func (s *DailyStreak) State() StreakState {
	return s.state
}

// Restore applies a persisted streak, repairing malformed values.
func (s *DailyStreak) Restore(st StreakState) []Issue {
	var issues []Issue
	if st.LastCheckIn != "" {
		if _, err := time.Parse(dateLayout, st.LastCheckIn); err != nil {
			issues = append(issues, Issue{Path: "dailyStreak.lastCheckIn", Message: fmt.Sprintf("bad date %q dropped", st.LastCheckIn)})
			st.LastCheckIn = ""
			st.ConsecutiveDays = 0
		}
	}
	if st.ConsecutiveDays < 0 {
		issues = append(issues, Issue{Path: "dailyStreak.consecutiveDays", Message: "negative value reset"})
		st.ConsecutiveDays = 0
	}
	if st.TotalCheckIns < st.ConsecutiveDays {
		issues = append(issues, Issue{Path: "dailyStreak.totalCheckIns", Message: "raised to consecutive days"})
		st.TotalCheckIns = st.ConsecutiveDays
	}
	s.state = st
	return issues
}
