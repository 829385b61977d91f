package wire

// OperationKind is a closed enumeration of decoded operation shapes.
//
// Adding a kind requires a Registry entry and an arm in every rule
// that switches on kinds; the compiler enforces handling via the
// exhaustive switch in the evaluator helpers.
type OperationKind uint8

const (
	// KindUnrecognized means the payload could not be decoded: unknown
	// selector, or payload shorter than the selector's fixed fields.
	// Unrecognized is "no validation obligation", never an error.
	KindUnrecognized OperationKind = iota

	KindDeposit
	KindWithdraw
	KindBorrow
	KindRepay
	KindTransferFrom
	KindLiquidate

	// KindNestedCall is a connector-mediated single call. Decoded
	// structurally by the unwrapper, not field-extracted here.
	KindNestedCall

	// KindNestedBatch is a connector-mediated batch. A nested batch
	// inside an outer batch is never expanded in the same pass.
	KindNestedBatch
)

// String returns the lowercase kind name.
func (k OperationKind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	case KindBorrow:
		return "borrow"
	case KindRepay:
		return "repay"
	case KindTransferFrom:
		return "transferFrom"
	case KindLiquidate:
		return "liquidate"
	case KindNestedCall:
		return "nestedCall"
	case KindNestedBatch:
		return "nestedBatch"
	default:
		return "unrecognized"
	}
}

// Operation is one decoded leaf call. Immutable once decoded.
//
// Target is the resource the call executes against; it is attached by
// the unwrapper from the call envelope, not extracted from the payload.
//
// Principals holds the principal-bearing fields extracted at the fixed
// offsets declared by the Registry, in declaration order. The decoder
// does not trust or filter the values: a null principal is surfaced
// here and dropped by the affected-set builder.
type Operation struct {
	Kind       OperationKind
	Selector   Selector
	Target     Address
	Principals []Address
	Raw        []byte
}

// Primary returns the first extracted principal, if any.
func (op Operation) Primary() (Address, bool) {
	if len(op.Principals) == 0 {
		return ZeroAddress, false
	}
	return op.Principals[0], true
}
