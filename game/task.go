package game

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/wfunc/nightfall/models"
)

const (
	sequenceLength = 5
	sequenceMax    = 99
	memoryLength   = 6
	fragmentLength = 6
)

var taskKinds = []models.TaskKind{
	models.TaskSequence,
	models.TaskMemory,
	models.TaskHashFragment,
}

var memorySymbols = []string{"red", "blue", "green", "yellow", "purple", "orange", "white", "black"}

var fragmentWords = []string{
	"lantern", "harbor", "cipher", "meadow", "ember", "quarry",
	"falcon", "orchid", "glacier", "thistle", "copper", "velvet",
}

// GenerateTask picks a task kind uniformly and builds its puzzle.
func GenerateTask(rng Rand) *models.Task {
	var t *models.Task
	switch taskKinds[rng.IntN(len(taskKinds))] {
	case models.TaskSequence:
		t = sequenceTask(rng)
	case models.TaskMemory:
		t = memoryTask(rng)
	default:
		t = hashFragmentTask(rng)
	}
	t.Submissions = make(map[string]models.TaskSubmission)
	return t
}

// sequenceTask shows distinct numbers shuffled; the answer is ascending order.
func sequenceTask(rng Rand) *models.Task {
	seen := make(map[int]bool, sequenceLength)
	values := make([]int, 0, sequenceLength)
	for len(values) < sequenceLength {
		n := rng.IntN(sequenceMax) + 1
		if seen[n] {
			continue
		}
		seen[n] = true
		values = append(values, n)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	presentation := make([]string, len(values))
	for i, n := range values {
		presentation[i] = strconv.Itoa(n)
	}
	rng.Shuffle(len(presentation), func(i, j int) {
		presentation[i], presentation[j] = presentation[j], presentation[i]
	})
	answer := make([]string, len(sorted))
	for i, n := range sorted {
		answer[i] = strconv.Itoa(n)
	}

	return &models.Task{
		Kind:         models.TaskSequence,
		Prompt:       "arrange the numbers in ascending order",
		Presentation: presentation,
		Answer:       answer,
	}
}

// memoryTask flashes a symbol sequence that must be repeated in order.
func memoryTask(rng Rand) *models.Task {
	seq := make([]string, memoryLength)
	for i := range seq {
		seq[i] = memorySymbols[rng.IntN(len(memorySymbols))]
	}
	return &models.Task{
		Kind:         models.TaskMemory,
		Prompt:       "repeat the sequence in the order shown",
		Presentation: slices.Clone(seq),
		Answer:       seq,
	}
}

// hashFragmentTask masks a window of a word's SHA-256 digest; the answer is
// the masked fragment.
func hashFragmentTask(rng Rand) *models.Task {
	word := fragmentWords[rng.IntN(len(fragmentWords))]
	sum := sha256.Sum256([]byte(word))
	digest := hex.EncodeToString(sum[:])

	start := rng.IntN(len(digest) - fragmentLength + 1)
	fragment := digest[start : start+fragmentLength]
	masked := digest[:start] + strings.Repeat("?", fragmentLength) + digest[start+fragmentLength:]

	return &models.Task{
		Kind:         models.TaskHashFragment,
		Prompt:       "recover the masked characters of sha256(word)",
		Presentation: []string{word, masked},
		Answer:       []string{fragment},
	}
}

// ValidateAnswer requires an exact match. Sequence and memory answers are
// order-sensitive; a hash fragment is a single exact string.
func ValidateAnswer(t *models.Task, submitted []string) bool {
	if t == nil {
		return false
	}
	if t.Kind == models.TaskHashFragment {
		return len(submitted) == 1 && len(t.Answer) == 1 && submitted[0] == t.Answer[0]
	}
	return slices.Equal(t.Answer, submitted)
}
