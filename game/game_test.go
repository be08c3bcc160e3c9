package game

import (
	"time"

	"github.com/wfunc/nightfall/models"
)

// newStartedSession returns a night-phase session with P1=killer,
// P2=protector, P3=investigator and the rest bystanders.
func newStartedSession(participants ...string) *models.Session {
	s := models.NewSession("s1", "ABC234", participants[0], "10", len(participants), 10, time.Unix(0, 0))
	s.Participants = append(s.Participants, participants...)
	s.Phase = models.PhaseNight
	s.Day = 1
	for i, id := range participants {
		switch i {
		case 0:
			s.Roles[id] = models.RoleKiller
		case 1:
			s.Roles[id] = models.RoleProtector
		case 2:
			s.Roles[id] = models.RoleInvestigator
		default:
			s.Roles[id] = models.RoleBystander
		}
	}
	return s
}
