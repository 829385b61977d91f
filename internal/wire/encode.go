package wire

// Encoding helpers for the vault call surface. Production traffic is
// decoded, never encoded, so these exist for fixtures: the scenario
// harness and the package tests build payloads with them.

func pad(b []byte) []byte {
	if rem := len(b) % WordSize; rem != 0 {
		b = append(b, make([]byte, WordSize-rem)...)
	}
	return b
}

func appendWords(dst []byte, words ...Word) []byte {
	for _, w := range words {
		dst = append(dst, w[:]...)
	}
	return dst
}

// EncodeDeposit encodes deposit(assets, receiver).
func EncodeDeposit(assets uint64, receiver Address) []byte {
	return appendWords(SelDeposit[:4:4], Uint64Word(assets), AddressWord(receiver))
}

// EncodeWithdraw encodes withdraw(assets, receiver, owner).
func EncodeWithdraw(assets uint64, receiver, owner Address) []byte {
	return appendWords(SelWithdraw[:4:4], Uint64Word(assets), AddressWord(receiver), AddressWord(owner))
}

// EncodeBorrow encodes borrow(assets, receiver).
func EncodeBorrow(assets uint64, receiver Address) []byte {
	return appendWords(SelBorrow[:4:4], Uint64Word(assets), AddressWord(receiver))
}

// EncodeRepay encodes repay(assets, receiver).
func EncodeRepay(assets uint64, receiver Address) []byte {
	return appendWords(SelRepay[:4:4], Uint64Word(assets), AddressWord(receiver))
}

// EncodeTransferFrom encodes transferFrom(from, to, amount).
func EncodeTransferFrom(from, to Address, amount uint64) []byte {
	return appendWords(SelTransferFrom[:4:4], AddressWord(from), AddressWord(to), Uint64Word(amount))
}

// EncodeLiquidate encodes liquidate(violator, collateral, repay, minYield).
func EncodeLiquidate(violator, collateral Address, repay, minYield uint64) []byte {
	return appendWords(SelLiquidate[:4:4],
		AddressWord(violator), AddressWord(collateral), Uint64Word(repay), Uint64Word(minYield))
}

// EncodeNestedCall encodes call(target, onBehalf, value, data).
// The data payload sits behind a dynamic offset at fixed word 3.
func EncodeNestedCall(target, onBehalf Address, value uint64, data []byte) []byte {
	out := appendWords(SelCall[:4:4],
		AddressWord(target), AddressWord(onBehalf), Uint64Word(value),
		Uint64Word(4*WordSize), // offset of the dynamic tail
		Uint64Word(uint64(len(data))))
	return append(out, pad(append([]byte(nil), data...))...)
}

// BatchItem is one element of an encoded batch.
type BatchItem struct {
	Target   Address
	OnBehalf Address
	Value    uint64
	Data     []byte
}

// EncodeBatch encodes batch(items). Each item is a dynamic tuple
// (target, onBehalf, value, data); element offsets are relative to the
// start of the array's element area, and data offsets are relative to
// each tuple's start, matching what Reader.TupleSlice expects.
func EncodeBatch(items []BatchItem) []byte {
	// Build each tuple body first so element offsets are known.
	tuples := make([][]byte, len(items))
	for i, it := range items {
		body := appendWords(nil,
			AddressWord(it.Target), AddressWord(it.OnBehalf), Uint64Word(it.Value),
			Uint64Word(4*WordSize),
			Uint64Word(uint64(len(it.Data))))
		body = append(body, pad(append([]byte(nil), it.Data...))...)
		tuples[i] = body
	}

	out := appendWords(SelBatch[:4:4],
		Uint64Word(WordSize), // offset of the array
		Uint64Word(uint64(len(items))))

	// Element offset table, relative to its own start.
	off := uint64(len(items)) * WordSize
	for _, tup := range tuples {
		out = appendWords(out, Uint64Word(off))
		off += uint64(len(tup))
	}
	for _, tup := range tuples {
		out = append(out, tup...)
	}
	return out
}
