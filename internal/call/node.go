// Package call models the raw transaction shape as a tree of call
// nodes and flattens it into the leaf operation sequence the rules
// validate. The tree is built once per rule invocation, consumed by
// Unwrap, and discarded.
package call

import (
	"github.com/wardenlab/warden/internal/wire"
)

// Node is a sealed call-tree node: Single, Batch, or Indirect.
type Node interface {
	node()
}

// Single is one leaf call: an encoded payload executed against a
// target on behalf of the envelope principal.
type Single struct {
	Target    wire.Address
	Principal wire.Address // envelope principal: the authenticated actor
	Data      []byte
}

func (*Single) node() {}

// Batch is an ordered sequence of child nodes executed as one
// transaction item list.
type Batch struct {
	Items []Node
}

func (*Batch) node() {}

// Indirect is one level of connector-mediated redirection: the outer
// call targets the connector, and the inner payload names the real
// target and principal. Only one level is ever resolved.
type Indirect struct {
	Target    wire.Address // inner target
	Principal wire.Address // inner principal; replaces the envelope's
	Inner     *Single
}

func (*Indirect) node() {}

// Deferred marks a nested batch discovered inside a batch. It is never
// expanded in the same pass: the host replay mechanism invokes the
// pipeline once per batch occurrence, so expanding here would
// double-count.
type Deferred struct {
	Target    wire.Address
	Principal wire.Address
}

func (*Deferred) node() {}

// Parser builds call trees against one selector registry and one
// connector address. Both are immutable after construction, so a
// single Parser is shared across concurrent rule pipelines.
type Parser struct {
	Registry  wire.Registry
	Connector wire.Address
}

// Parse builds the call tree for a top-level invocation.
//
// A call targeting the connector with a batch payload expands into a
// Batch of parsed items. A call targeting the connector with a
// single-call payload resolves into an Indirect. Anything else is a
// Single leaf. Malformed connector payloads never fail: the node
// degrades to a Single whose operation will decode as Unrecognized,
// keeping the outer envelope principal.
func (p *Parser) Parse(target, principal wire.Address, data []byte) Node {
	if target != p.Connector {
		return &Single{Target: target, Principal: principal, Data: data}
	}

	op := p.Registry.Decode(data)
	switch op.Kind {
	case wire.KindNestedBatch:
		return p.parseBatch(principal, op)
	case wire.KindNestedCall:
		return p.parseIndirect(target, principal, op)
	default:
		return &Single{Target: target, Principal: principal, Data: data}
	}
}

// parseBatch expands a batch payload one level. Items that themselves
// target the connector are resolved per item: single-call payloads
// become Indirect, batch payloads become Deferred.
func (p *Parser) parseBatch(principal wire.Address, op wire.Operation) Node {
	elems, ok := op.Args().TupleSlice(0)
	if !ok {
		// Malformed batch envelope: degrade to a Single leaf that
		// decodes as Unrecognized, keeping the outer principal.
		return &Single{Target: p.Connector, Principal: principal, Data: nil}
	}

	batch := &Batch{Items: make([]Node, 0, len(elems))}
	for _, elem := range elems {
		batch.Items = append(batch.Items, p.parseItem(principal, elem))
	}
	return batch
}

// parseItem parses one (target, onBehalf, value, data) batch element.
func (p *Parser) parseItem(envelope wire.Address, elem *wire.Reader) Node {
	target, okT := elem.AddressAt(0)
	onBehalf, okP := elem.AddressAt(1)
	data, okD := elem.BytesAt(3)
	if !okT || !okP || !okD {
		// Malformed element: nothing decodable, attribute to the
		// batch's envelope principal.
		return &Single{Target: p.Connector, Principal: envelope, Data: nil}
	}

	if target == p.Connector {
		inner := p.Registry.Decode(data)
		switch inner.Kind {
		case wire.KindNestedBatch:
			return &Deferred{Target: target, Principal: onBehalf}
		case wire.KindNestedCall:
			return p.parseIndirect(target, onBehalf, inner)
		}
	}
	return &Single{Target: target, Principal: onBehalf, Data: data}
}

// parseIndirect resolves exactly one level of connector redirection.
// The inner target and principal become effective for the leaf; the
// outer envelope principal is discarded because the inner call is what
// actually executed.
func (p *Parser) parseIndirect(outer, envelope wire.Address, op wire.Operation) Node {
	args := op.Args()
	innerTarget, okT := args.AddressAt(0)
	innerPrincipal, okP := args.AddressAt(1)
	innerData, okD := args.BytesAt(3)
	if !okT || !okP || !okD {
		// Malformed dynamic offset: fall back to a Single with an
		// Unrecognized operation and the outer envelope principal.
		return &Single{Target: outer, Principal: envelope, Data: nil}
	}
	return &Indirect{
		Target:    innerTarget,
		Principal: innerPrincipal,
		Inner:     &Single{Target: innerTarget, Principal: innerPrincipal, Data: innerData},
	}
}
