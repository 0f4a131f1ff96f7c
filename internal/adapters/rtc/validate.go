package rtc

import (
	"fmt"
	"strings"

	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
)

// ValidateOffer rejects payloads that are not a parseable SDP with at least
// one media section, before they reach the coordinator.
func ValidateOffer(offer string) error {
	if strings.TrimSpace(offer) == "" {
		return fmt.Errorf("%w: empty sdp", domain.ErrInvalidOffer)
	}
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(offer)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidOffer, err)
	}
	if len(desc.MediaDescriptions) == 0 {
		return fmt.Errorf("%w: no media sections", domain.ErrInvalidOffer)
	}
	return nil
}

// ValidateCandidate checks the candidate attribute syntax. The empty
// end-of-candidates marker is valid.
func ValidateCandidate(c domain.Candidate) error {
	if c.IsEndOfCandidates() {
		return nil
	}
	raw := strings.TrimPrefix(c.SDP, "candidate:")
	if _, err := ice.UnmarshalCandidate(raw); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidCandidate, err)
	}
	return nil
}
