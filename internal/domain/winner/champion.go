package winner

import (
	"fmt"
	"strings"
)

// ChampionInfo is the human-facing tournament context a trigger may send
// instead of explicit display fields.
type ChampionInfo struct {
	TournamentName string `json:"tournament_name"`
	Month          string `json:"month"`
	Year           string `json:"year"`
	TeamName       string `json:"team_name"`
}

func (c ChampionInfo) IsZero() bool {
	return strings.TrimSpace(c.TournamentName) == "" && strings.TrimSpace(c.TeamName) == ""
}

// ApplyChampionDefaults fills empty display fields of in from c.
// Explicit values in in always win.
func ApplyChampionDefaults(in NewWinnerInput, c ChampionInfo) NewWinnerInput {
	if c.IsZero() {
		return in
	}
	tn := strings.TrimSpace(c.TournamentName)
	team := strings.TrimSpace(c.TeamName)
	month := strings.TrimSpace(c.Month)
	year := strings.TrimSpace(c.Year)

	period := strings.TrimSpace(month + " " + year)

	if strings.TrimSpace(in.DisplayName) == "" {
		in.DisplayName = strings.TrimSpace(fmt.Sprintf("%s Champion - %s", tn, period))
	}
	if strings.TrimSpace(in.Description) == "" {
		in.Description = fmt.Sprintf("Champion Badge for %s in %s (%s)", team, tn, period)
	}
	if len(in.Attributes) == 0 {
		in.Attributes = []Attribute{
			{TraitType: "Tournament", Value: tn},
			{TraitType: "Month", Value: month},
			{TraitType: "Year", Value: year},
			{TraitType: "Team", Value: team},
			{TraitType: "Badge Serial ID", Value: strings.TrimSpace(in.WinnerID)},
		}
	}
	return in
}
