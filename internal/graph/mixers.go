package graph

// ---------------------------------------------------------------------------
// Known Mixer Addresses: tumblers and obfuscation services
// Any transfer to or from one of these marks the counterparty wallet.
// ---------------------------------------------------------------------------

// defaultMixers maps known mixer addresses to the service name.
var defaultMixers = map[string]string{
	"0x0000000000000000000000000000000000000000": "null_address",
	"0xdeaddeaddeaddeaddeaddeaddeaddeaddead0001": "mixer_pool_1",
	"0xdeaddeaddeaddeaddeaddeaddeaddeaddead0002": "mixer_pool_2",
}

// MixerSet is a lookup table of known mixer addresses. The zero value is an
// empty set.
type MixerSet struct {
	addrs map[string]string
}

// DefaultMixerSet returns the built-in mixer table.
func DefaultMixerSet() MixerSet {
	return NewMixerSet(defaultMixers)
}

// NewMixerSet builds a set from address -> service name.
func NewMixerSet(addrs map[string]string) MixerSet {
	m := MixerSet{addrs: make(map[string]string, len(addrs))}
	for addr, name := range addrs {
		m.addrs[addr] = name
	}
	return m
}

// With returns a copy of the set extended with extra addresses.
func (m MixerSet) With(extra map[string]string) MixerSet {
	merged := NewMixerSet(m.addrs)
	for addr, name := range extra {
		merged.addrs[addr] = name
	}
	return merged
}

// IsMixer checks if an address is a known mixer and returns its service name.
func (m MixerSet) IsMixer(address string) (string, bool) {
	name, ok := m.addrs[address]
	return name, ok
}

// Len returns the number of known mixer addresses.
func (m MixerSet) Len() int {
	return len(m.addrs)
}

// TouchesMixer reports whether any sender to or recipient of addr is a known
// mixer. The matching mixer address is returned.
func (g *Graph) TouchesMixer(addr string, mixers MixerSet) (string, bool) {
	n := g.nodes[addr]
	if n == nil {
		return "", false
	}
	for _, peer := range n.In.items {
		if _, ok := mixers.IsMixer(peer); ok {
			return peer, true
		}
	}
	for _, peer := range n.Out.items {
		if _, ok := mixers.IsMixer(peer); ok {
			return peer, true
		}
	}
	return "", false
}
