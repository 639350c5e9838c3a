package inventory

// Action is a lifecycle transition of a single package.
type Action string

const (
	ActionRemove  Action = "remove"
	ActionRestore Action = "restore"
)

// actionFor maps the current status to the only action that applies to it.
var actionFor = map[Status]Action{
	Installed:   ActionRemove,
	Uninstalled: ActionRestore,
}

// resultOf maps an action to the status it leaves behind on success.
var resultOf = map[Action]Status{
	ActionRemove:  Uninstalled,
	ActionRestore: Installed,
}

// forbidden lists, per action, the tiers for which the action is rejected.
// Restore has no entry: it is never gated.
var forbidden = map[Action]map[string]bool{
	ActionRemove: {TierUnsafe: true},
}

// Transition describes one edge of the per-row state machine.
type Transition struct {
	Action Action
	From   Status
	To     Status
}

// NextTransition returns the transition that applies to a package in the
// given status. ok is false when the status is unknown.
func NextTransition(status Status) (Transition, bool) {
	action, ok := actionFor[status]
	if !ok {
		return Transition{}, false
	}
	return Transition{Action: action, From: status, To: resultOf[action]}, true
}

// TransitionFor returns the transition for a specific action, checking that
// the package is in the status the action starts from.
func TransitionFor(status Status, action Action) (Transition, bool) {
	t, ok := NextTransition(status)
	if !ok || t.Action != action {
		return Transition{}, false
	}
	return t, true
}

// Allowed reports whether action may be applied to a package of the given tier.
func Allowed(action Action, tier string) bool {
	return !forbidden[action][tier]
}
