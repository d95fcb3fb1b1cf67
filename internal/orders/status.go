package orders

type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// forward is the one-way lifecycle. Each state has exactly one successor;
// skipping is not allowed.
var forward = map[Status]Status{
	StatusPending:   StatusConfirmed,
	StatusConfirmed: StatusShipped,
	StatusShipped:   StatusDelivered,
}

func CanTransition(from, to Status) bool {
	next, ok := forward[from]
	return ok && next == to
}

// Cancellable: shipped or delivered goods are out of the cancellation window.
func Cancellable(s Status) bool {
	return s == StatusPending || s == StatusConfirmed
}

func Terminal(s Status) bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}
