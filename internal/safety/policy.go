package safety

// Action says how a command is written into the child's input
type Action int

const (
	// Submit writes the command followed by a line feed
	Submit Action = iota
	// Stage writes the command without a line feed
	Stage
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case Submit:
		return "submit"
	case Stage:
		return "stage"
	default:
		return "unknown"
	}
}

// Decision is a verdict together with the action it implies
type Decision struct {
	Verdict Verdict
	Action  Action
}

// Policy decides how generated commands are injected
type Policy struct {
	Gate    *Gate
	Preview bool
}

// Decide classifies command and picks its injection action
func (p Policy) Decide(command string) Decision {
	var verdict Verdict
	if p.Gate != nil {
		verdict = p.Gate.Classify(command)
	}

	action := Submit
	if verdict.Destructive || p.Preview {
		action = Stage
	}

	return Decision{Verdict: verdict, Action: action}
}
