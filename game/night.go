package game

import "github.com/wfunc/nightfall/models"

// ResolveNight computes the outcome of the night without mutating the
// session. A kill is cancelled when the protector chose the same target. A
// role that abstained has no effect, and so does an action aimed at a
// participant that is already eliminated.
func ResolveNight(s *models.Session) models.NightOutcome {
	out := models.NightOutcome{Day: s.Day}

	var killTarget, protectTarget, investigateTarget, investigator string
	for actor, action := range s.NightActions {
		if s.IsEliminated(actor) || action.Target == "" {
			continue
		}
		switch role := s.Roles[actor]; {
		case role == models.RoleKiller && action.Type == models.ActionKill:
			killTarget = action.Target
		case role == models.RoleProtector && action.Type == models.ActionProtect:
			protectTarget = action.Target
		case role == models.RoleInvestigator && action.Type == models.ActionInvestigate:
			investigateTarget = action.Target
			investigator = actor
		}
	}

	if killTarget != "" && s.HasParticipant(killTarget) && !s.IsEliminated(killTarget) {
		if killTarget == protectTarget {
			out.Protected = true
		} else {
			out.Eliminated = killTarget
		}
	}

	if investigateTarget != "" && s.HasParticipant(investigateTarget) && !s.IsEliminated(investigateTarget) {
		out.Investigator = investigator
		out.Investigation = &models.Investigation{
			Day:    s.Day,
			Target: investigateTarget,
			Role:   s.Roles[investigateTarget],
		}
	}
	return out
}
