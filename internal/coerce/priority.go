// Package coerce converts guest values to host parameter types. Every
// conversion rule has a minimum Priority; a value converts at priority P when
// its rule's minimum is at most P, so convertibility is monotone in P.
package coerce

// Priority orders conversion rules from strictest to loosest.
type Priority int

const (
	Strict Priority = iota
	Loose
	Coerce
	Proxy
	ObjectTarget
)

// Priorities lists every priority in resolution order.
var Priorities = []Priority{Strict, Loose, Coerce, Proxy, ObjectTarget}

func (p Priority) String() string {
	switch p {
	case Strict:
		return "strict"
	case Loose:
		return "loose"
	case Coerce:
		return "coerce"
	case Proxy:
		return "proxy"
	case ObjectTarget:
		return "object-target"
	}
	return "unknown"
}

func looser(p Priority) Priority {
	if p >= ObjectTarget {
		return ObjectTarget
	}
	return p + 1
}

func maxPriority(a, b Priority) Priority {
	if a > b {
		return a
	}
	return b
}
