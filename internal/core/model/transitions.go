package model

// TransitionKind names the operation through which a status change happens.
type TransitionKind string

const (
	ViaAssignment     TransitionKind = "assignment"
	ViaCancellation   TransitionKind = "cancellation"
	ViaDeliveryUpdate TransitionKind = "delivery update"
)

var transitions = map[ParcelStatus]map[ParcelStatus]TransitionKind{
	StatusPending: {
		StatusPickedUp:  ViaAssignment,
		StatusCancelled: ViaCancellation,
	},
	StatusPickedUp: {
		StatusInTransit: ViaDeliveryUpdate,
		StatusDelivered: ViaDeliveryUpdate,
	},
	StatusInTransit: {
		StatusDelivered: ViaDeliveryUpdate,
		StatusReturned:  ViaDeliveryUpdate,
	},
}

// CheckTransition validates that moving from one status to another through the given kind of operation is allowed.
// It returns an *Error of kind ErrIllegalTransition otherwise.
func CheckTransition(from, to ParcelStatus, via TransitionKind) error {
	if from.IsTerminal() {
		return NewError(ErrIllegalTransition, "Parcel is already %s and cannot change status", from)
	}
	kind, ok := transitions[from][to]
	if !ok {
		return NewError(ErrIllegalTransition, "Cannot change parcel status from %s to %s", from, to)
	}
	if kind != via {
		return NewError(ErrIllegalTransition, "Status %s can only be reached from %s through %s", to, from, kind)
	}
	return nil
}

// NextStatuses returns the statuses reachable from s through the given kind of operation.
func NextStatuses(s ParcelStatus, via TransitionKind) []ParcelStatus {
	var next []ParcelStatus
	for _, to := range []ParcelStatus{StatusPickedUp, StatusInTransit, StatusDelivered, StatusCancelled, StatusReturned} {
		if kind, ok := transitions[s][to]; ok && kind == via {
			next = append(next, to)
		}
	}
	return next
}
