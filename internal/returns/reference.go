package returns

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidReference is returned by ParseReference for input that is neither
// an order id nor a customer id.
var ErrInvalidReference = errors.New("invalid reference format")

// ReferenceKind tells which lookup path a reference takes.
type ReferenceKind int

const (
	RefOrderID ReferenceKind = iota + 1
	RefCustomerID
)

func (k ReferenceKind) String() string {
	switch k {
	case RefOrderID:
		return "order_id"
	case RefCustomerID:
		return "customer_id"
	default:
		return "unknown"
	}
}

// Reference is a validated order or customer reference.
type Reference struct {
	Kind  ReferenceKind
	Value string // order ids are upper-cased
}

var (
	orderIDPattern    = regexp.MustCompile(`^[Pp]-[0-9]+$`)
	customerIDPattern = regexp.MustCompile(`^[0-9]{8}$`)
)

// ParseReference classifies a trimmed reference as an order id (P-<digits>,
// either case for the P) or a customer id (exactly 8 ASCII digits).
func ParseReference(raw string) (Reference, error) {
	ref := strings.TrimSpace(raw)
	switch {
	case orderIDPattern.MatchString(ref):
		return Reference{Kind: RefOrderID, Value: strings.ToUpper(ref)}, nil
	case customerIDPattern.MatchString(ref):
		return Reference{Kind: RefCustomerID, Value: ref}, nil
	default:
		return Reference{}, ErrInvalidReference
	}
}
