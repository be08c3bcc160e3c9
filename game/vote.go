package game

import (
	"github.com/wfunc/nightfall/models"
)

// Tally counts valid votes and picks a plurality. A tie for the top count, or
// no valid votes at all, eliminates nobody. Votes from or against eliminated
// participants are ignored.
func Tally(s *models.Session) models.VoteOutcome {
	out := models.VoteOutcome{Day: s.Day, Counts: make(map[string]int)}
	for voter, target := range s.Votes {
		if !s.HasParticipant(voter) || s.IsEliminated(voter) {
			continue
		}
		if !s.HasParticipant(target) || s.IsEliminated(target) {
			continue
		}
		out.Counts[target]++
	}

	maxVotes := 0
	var leaders []string
	for target, count := range out.Counts {
		if count > maxVotes {
			maxVotes = count
			leaders = []string{target}
		} else if count == maxVotes {
			leaders = append(leaders, target)
		}
	}

	switch len(leaders) {
	case 0:
	case 1:
		out.Eliminated = leaders[0]
	default:
		out.Tie = true
	}
	return out
}

// CheckWin evaluates the win condition over active participants. No killer
// left means the bystander faction wins; killers matching or outnumbering
// everyone else means the killer faction wins.
func CheckWin(s *models.Session) (models.Faction, bool) {
	killers, others := 0, 0
	for _, id := range s.Active() {
		if s.Roles[id] == models.RoleKiller {
			killers++
		} else {
			others++
		}
	}
	switch {
	case killers == 0:
		return models.FactionBystander, true
	case killers >= others:
		return models.FactionKiller, true
	default:
		return models.FactionNone, false
	}
}

// Winners returns the surviving members of a faction.
func Winners(s *models.Session, faction models.Faction) []string {
	winners := []string{}
	for _, id := range s.Active() {
		if models.FactionOf(s.Roles[id]) == faction {
			winners = append(winners, id)
		}
	}
	return winners
}
