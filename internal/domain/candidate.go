package domain

// Candidate is one ICE candidate as exchanged with the browser. An empty
// SDP fragment is the end-of-candidates marker.
type Candidate struct {
	SDP           string  `json:"candidate"`
	SDPMid        *string `json:"sdp_mid"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index"`
}

// EndOfCandidates returns the marker appended when gathering completes.
func EndOfCandidates() Candidate { return Candidate{} }

func (c Candidate) IsEndOfCandidates() bool { return c.SDP == "" }
