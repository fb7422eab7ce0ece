/*
checksum.go - Content checksum over decision-relevant inputs

PURPOSE:
  The preview cache keys on a stable hash of exactly the inputs that can
  change the engine's answer: athlete, reference date, scope, plan
  version, and the readiness snapshot's date and score. Identical inputs
  must produce the identical checksum; different inputs must be
  effectively distinct. The hash function itself is an implementation
  detail - the cache only consumes the string.

SEE ALSO:
  - preview/coordinator.go: Uses the checksum as the primary cache key
*/
package adapt

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// checksumInputs is hashed structurally; field order and names are part
// of the checksum contract, so treat this struct as frozen.
type checksumInputs struct {
	AthleteID      string
	Date           string
	Scope          string
	PlanVersion    int
	ReadinessDate  string
	ReadinessScore *float64
}

// ComputeInputsChecksum hashes the decision-relevant inputs. readiness
// may be nil (waived), which hashes distinctly from any real snapshot.
func ComputeInputsChecksum(athleteID AthleteID, date string, scope Scope, planVersion int, readiness *ReadinessSnapshot) (string, error) {
	in := checksumInputs{
		AthleteID:   string(athleteID),
		Date:        date,
		Scope:       string(scope),
		PlanVersion: planVersion,
	}
	if readiness != nil {
		in.ReadinessDate = readiness.Date.Format(DateLayout)
		in.ReadinessScore = readiness.Score
	}
	h, err := hashstructure.Hash(in, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("hash checksum inputs: %w", err)
	}
	return fmt.Sprintf("%016x", h), nil
}
