package game

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/models"
)

// MinRoleParticipants is the smallest roster roles can be assigned to.
const MinRoleParticipants = 3

const saltBytes = 16

var specialRoles = []models.Role{
	models.RoleKiller,
	models.RoleProtector,
	models.RoleInvestigator,
}

// AssignRoles shuffles participants uniformly and hands killer, protector and
// investigator to the first three slots; everyone else is a bystander.
func AssignRoles(participants []string, rng Rand) (map[string]models.Role, error) {
	if len(participants) < MinRoleParticipants {
		return nil, apperr.ErrInsufficientParticipants.WithDetail("have %d, need %d", len(participants), MinRoleParticipants)
	}

	shuffled := slices.Clone(participants)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	roles := make(map[string]models.Role, len(shuffled))
	for i, id := range shuffled {
		if i < len(specialRoles) {
			roles[id] = specialRoles[i]
			continue
		}
		roles[id] = models.RoleBystander
	}
	return roles, nil
}

// Commitment binds the server to a role map before any role is revealed.
type Commitment struct {
	Hash string
	Salt string
}

// Commit draws a fresh salt from entropy and hashes it with the role map.
func Commit(roles map[string]models.Role, entropy io.Reader) (Commitment, error) {
	raw := make([]byte, saltBytes)
	if _, err := io.ReadFull(entropy, raw); err != nil {
		return Commitment{}, fmt.Errorf("read salt: %w", err)
	}
	salt := hex.EncodeToString(raw)

	hash, err := CommitmentHash(roles, salt)
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{Hash: hash, Salt: salt}, nil
}

// CommitmentHash returns hex(sha256(json(roles) || ":" || salt)). JSON
// encoding sorts map keys, so the serialization is deterministic.
func CommitmentHash(roles map[string]models.Role, salt string) (string, error) {
	payload, err := json.Marshal(roles)
	if err != nil {
		return "", fmt.Errorf("serialize roles: %w", err)
	}
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(":"))
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyCommitment recomputes the hash and compares it to the published one.
func VerifyCommitment(roles map[string]models.Role, salt, hash string) bool {
	got, err := CommitmentHash(roles, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1
}

// AllowedAction reports whether a role may declare the given night action.
func AllowedAction(role models.Role, action models.ActionType) bool {
	switch action {
	case models.ActionSkip:
		return true
	case models.ActionKill:
		return role == models.RoleKiller
	case models.ActionProtect:
		return role == models.RoleProtector
	case models.ActionInvestigate:
		return role == models.RoleInvestigator
	default:
		return false
	}
}
