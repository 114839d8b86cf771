package domain

type Field string

const (
	FieldStatus       Field = "status"
	FieldCreditsUsed  Field = "credits_used"
	FieldCreditsTotal Field = "credits_total"
)

type Op int

const (
	// OpEq holds when Field equals Value.
	OpEq Op = iota
	// OpAbsentOrLessThanField holds when Field is absent or strictly below Other.
	OpAbsentOrLessThanField
)

type Predicate struct {
	Field Field
	Op    Op
	Value any
	Other Field
}

// Guard is a conjunction of predicates evaluated by the store in the same
// operation as the mutation it protects.
type Guard []Predicate

// ReserveGuard allows one more credit only on a succeeded payment with balance left.
func ReserveGuard() Guard {
	return Guard{
		{Field: FieldStatus, Op: OpEq, Value: StatusSucceeded},
		{Field: FieldCreditsUsed, Op: OpAbsentOrLessThanField, Other: FieldCreditsTotal},
	}
}

// Validate rejects predicates a store cannot express.
func (g Guard) Validate() error {
	for _, p := range g {
		switch p.Op {
		case OpEq:
			if p.Field != FieldStatus {
				return ErrInvalidGuard
			}
			if _, ok := p.Value.(Status); !ok {
				return ErrInvalidGuard
			}
		case OpAbsentOrLessThanField:
			if p.Field != FieldCreditsUsed || p.Other != FieldCreditsTotal {
				return ErrInvalidGuard
			}
		default:
			return ErrInvalidGuard
		}
	}
	return nil
}

// Holds evaluates the guard against an in-memory record. Stores that hold an
// exclusive write transaction use it; the others translate the guard into
// their native condition syntax.
func (g Guard) Holds(r *PaymentRecord) bool {
	if r == nil {
		return false
	}
	for _, p := range g {
		switch p.Op {
		case OpEq:
			if r.Status != p.Value.(Status) {
				return false
			}
		case OpAbsentOrLessThanField:
			if r.CreditsUsed != nil && *r.CreditsUsed >= r.CreditsTotal {
				return false
			}
		default:
			return false
		}
	}
	return true
}
