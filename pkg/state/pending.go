package state

// PendingRoll is the Brain's request for a player-supplied die roll in
// interactive dice mode. It is produced by one turn, round-tripped by the
// caller unchanged, and consumed by the next turn's prior-roll field.
type PendingRoll struct {
	Type       string `json:"type"` // die notation, e.g. "1d20"
	Purpose    string `json:"purpose"`
	Modifier   int    `json:"modifier,omitempty"`
	Stat       string `json:"stat,omitempty"`
	Difficulty *int   `json:"difficulty,omitempty"`
}

// PendingChoice is the Brain's request for the player to pick one of an
// enumerated option set.
type PendingChoice struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// RollResult is the player's answer to a PendingRoll, supplied on the next
// turn request.
type RollResult struct {
	Type   string `json:"type"`
	Result int    `json:"result"`
}
