package wire

// Selector is the 4-byte discriminant prefixing an encoded call payload.
type Selector [4]byte

// String returns the 0x-prefixed hex encoding.
func (s Selector) String() string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 2, 10)
	out[0], out[1] = '0', 'x'
	for _, b := range s {
		out = append(out, hexdigits[b>>4], hexdigits[b&0x0f])
	}
	return string(out)
}

// SelectorOf splits a raw payload into its selector and argument bytes.
// Returns ok=false when the payload is shorter than a selector.
func SelectorOf(data []byte) (sel Selector, args []byte, ok bool) {
	if len(data) < len(sel) {
		return sel, nil, false
	}
	copy(sel[:], data)
	return sel, data[len(sel):], true
}

// Shape describes how to decode the fixed fields of one selector.
//
// PrincipalWords lists the zero-based argument word indexes that hold
// principal addresses worth validating, in validation priority order.
// MinWords is the number of fixed words that must be present before
// any dynamic tail; payloads shorter than MinWords*32 decode to
// Unrecognized. DynamicTailWord, when >= 0, names the fixed word that
// holds the offset of a variable-length payload (the nested call and
// batch cases); it is consumed structurally by the unwrapper.
type Shape struct {
	Kind            OperationKind
	PrincipalWords  []int
	MinWords        int
	DynamicTailWord int
}

// Registry is the static selector table. It is never mutated after
// construction; rules share one instance across concurrent pipelines.
type Registry map[Selector]Shape

// Known selectors. The connector selectors (call, batch) carry no
// principal fields here: the unwrapper resolves them structurally.
var (
	// deposit(uint256 assets, address receiver)
	SelDeposit = Selector{0x6e, 0x55, 0x3f, 0x65}
	// withdraw(uint256 assets, address receiver, address owner)
	SelWithdraw = Selector{0xb4, 0x60, 0xaf, 0x94}
	// redeem(uint256 shares, address receiver, address owner)
	SelRedeem = Selector{0xba, 0x08, 0x76, 0x52}
	// borrow(uint256 assets, address receiver)
	SelBorrow = Selector{0x4b, 0x3f, 0xd1, 0x48}
	// repay(uint256 assets, address receiver)
	SelRepay = Selector{0xac, 0xb7, 0x08, 0x15}
	// transferFrom(address from, address to, uint256 amount)
	SelTransferFrom = Selector{0x23, 0xb8, 0x72, 0xdd}
	// liquidate(address violator, address collateral, uint256 repay, uint256 minYield)
	SelLiquidate = Selector{0x5c, 0xbd, 0x2d, 0x1e}
	// call(address target, address onBehalf, uint256 value, bytes data)
	SelCall = Selector{0x1f, 0x8b, 0x52, 0x15}
	// batch((address target, address onBehalf, uint256 value, bytes data)[] items)
	SelBatch = Selector{0xc1, 0x6a, 0xe7, 0xa4}
)

// DefaultRegistry returns the selector table for the vault call surface.
//
// Principal field positions follow the vault ABI: deposit/borrow/repay
// name the receiver, withdraw/redeem name the owner, transferFrom names
// the from account (and the to account as a secondary principal, which
// is validated independently), liquidate names the violator.
func DefaultRegistry() Registry {
	return Registry{
		SelDeposit:      {Kind: KindDeposit, PrincipalWords: []int{1}, MinWords: 2, DynamicTailWord: -1},
		SelWithdraw:     {Kind: KindWithdraw, PrincipalWords: []int{2}, MinWords: 3, DynamicTailWord: -1},
		SelRedeem:       {Kind: KindWithdraw, PrincipalWords: []int{2}, MinWords: 3, DynamicTailWord: -1},
		SelBorrow:       {Kind: KindBorrow, PrincipalWords: []int{1}, MinWords: 2, DynamicTailWord: -1},
		SelRepay:        {Kind: KindRepay, PrincipalWords: []int{1}, MinWords: 2, DynamicTailWord: -1},
		SelTransferFrom: {Kind: KindTransferFrom, PrincipalWords: []int{0, 1}, MinWords: 3, DynamicTailWord: -1},
		SelLiquidate:    {Kind: KindLiquidate, PrincipalWords: []int{0}, MinWords: 4, DynamicTailWord: -1},
		SelCall:         {Kind: KindNestedCall, MinWords: 4, DynamicTailWord: 3},
		SelBatch:        {Kind: KindNestedBatch, MinWords: 1, DynamicTailWord: 0},
	}
}
