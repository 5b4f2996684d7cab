package batch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TaskName derives the unique run name for a task.
//
// It is a pure function of (comboIndex, replicateIndex, hasSweep, hasReps):
//
//	no sweep, 1 replicate   ⇒ <experiment>
//	sweep,    1 replicate   ⇒ <experiment>_combo{NNN}
//	no sweep, >1 replicates ⇒ <experiment>_rep{NN}
//	sweep,    >1 replicates ⇒ <experiment>_combo{NNN}_rep{NN}
//
// Combo indices are 3-digit and replicate indices 2-digit, both 1-based;
// wider indices keep all their digits rather than colliding.
func TaskName(experiment string, comboIndex, replicateIndex int, hasSweep, hasReps bool) string {
	name := experiment
	if hasSweep {
		name += fmt.Sprintf("_combo%03d", comboIndex)
	}
	if hasReps {
		name += fmt.Sprintf("_rep%02d", replicateIndex)
	}
	return name
}

var taskNameRE = regexp.MustCompile(`^(.*?)(?:_combo(\d{3,}))?(?:_rep(\d{2,}))?$`)

// ParseTaskName recovers the experiment name and indices from a name
// produced by TaskName. A missing suffix reports index 0.
func ParseTaskName(name string) (experiment string, comboIndex, replicateIndex int, err error) {
	m := taskNameRE.FindStringSubmatch(name)
	if m == nil || m[1] == "" {
		return "", 0, 0, fmt.Errorf("unparseable task name %q", name)
	}
	experiment = m[1]
	if m[2] != "" {
		comboIndex, err = strconv.Atoi(m[2])
		if err != nil || comboIndex < 1 {
			return "", 0, 0, fmt.Errorf("bad combo index in %q", name)
		}
	}
	if m[3] != "" {
		replicateIndex, err = strconv.Atoi(m[3])
		if err != nil || replicateIndex < 1 {
			return "", 0, 0, fmt.Errorf("bad replicate index in %q", name)
		}
	}
	return experiment, comboIndex, replicateIndex, nil
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NormalizeExperiment makes an experiment name filesystem-safe: NFC
// normalization, whitespace trimmed, runs of unsafe characters collapsed to
// a single underscore.
func NormalizeExperiment(name string) string {
	cleaned := norm.NFC.String(strings.TrimSpace(name))
	cleaned = unsafePathChars.ReplaceAllString(cleaned, "_")
	return strings.Trim(cleaned, "_")
}
