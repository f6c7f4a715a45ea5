package model

// NumericClaim is a number found in free text together with its surroundings
type NumericClaim struct {
	Value        string `json:"value"`              // Raw matched text, e.g. "36 million"
	Start        int    `json:"start"`              // Byte offset of the match in the source text
	End          int    `json:"end"`                // Byte offset just past the match
	LeftContext  string `json:"left_context"`       // Lower-cased text before the match
	RightContext string `json:"right_context"`      // Lower-cased text after the match
	Year         *int   `json:"year,omitempty"`     // Year the claim refers to, if one is nearby
	Temporal     bool   `json:"temporal,omitempty"` // The number itself is a year ("founded in 1985")
}

// Context returns left and right context joined by a space
func (c NumericClaim) Context() string {
	return c.LeftContext + " " + c.RightContext
}
