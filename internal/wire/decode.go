package wire

// Decode produces an Operation from a raw encoded payload.
//
// Decode never fails and has no side effects. Payloads shorter than
// the selector, unknown selectors, and payloads shorter than the
// selector's fixed-field width all yield KindUnrecognized with no
// extracted principals. Callers treat Unrecognized as "no validation
// obligation", not as an error.
//
// Decode does not trust field values: a decoded principal may be the
// null identity, and the affected-set builder filters it downstream.
func (r Registry) Decode(data []byte) Operation {
	sel, args, ok := SelectorOf(data)
	if !ok {
		return Operation{Kind: KindUnrecognized, Raw: data}
	}

	shape, known := r[sel]
	if !known {
		return Operation{Kind: KindUnrecognized, Selector: sel, Raw: data}
	}

	rd := NewReader(args)
	if rd.Words() < shape.MinWords {
		return Operation{Kind: KindUnrecognized, Selector: sel, Raw: data}
	}

	op := Operation{Kind: shape.Kind, Selector: sel, Raw: data}
	for _, idx := range shape.PrincipalWords {
		addr, ok := rd.AddressAt(idx)
		if !ok {
			// Fixed-field width was validated above; a miss here means
			// the registry entry is inconsistent. Degrade, don't panic.
			return Operation{Kind: KindUnrecognized, Selector: sel, Raw: data}
		}
		op.Principals = append(op.Principals, addr)
	}
	return op
}

// Args returns a Reader over the operation's argument bytes, skipping
// the selector. Used by the unwrapper to resolve nested payloads.
func (op Operation) Args() *Reader {
	if len(op.Raw) < 4 {
		return NewReader(nil)
	}
	return NewReader(op.Raw[4:])
}
