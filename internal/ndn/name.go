// Package ndn defines the wire-independent value types shared by the
// fetcher, pipeline, and consumer: names, interests, data, and nacks.
//
// These types model the small slice of NDN semantics this fetcher needs;
// they are not a general-purpose NDN packet codec.
package ndn

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// SegmentNo identifies one ordered piece of a content object. Zero-based.
type SegmentNo uint64

// NoFinalBlock is used where a final segment number has not been learned.
const NoFinalBlock = ^SegmentNo(0)

// Component is one opaque, ordered element of a Name.
type Component []byte

func (c Component) String() string {
	return string(c)
}

// Name is an ordered sequence of opaque binary components.
type Name struct {
	comps []Component
}

// ParseName parses a slash-separated URI like "/a/b/v=3" into a Name.
// Empty leading/trailing slashes are ignored.
func ParseName(uri string) (Name, error) {
	uri = strings.Trim(uri, "/")
	if uri == "" {
		return Name{}, nil
	}
	parts := strings.Split(uri, "/")
	n := Name{comps: make([]Component, 0, len(parts))}
	for _, p := range parts {
		if p == "" {
			return Name{}, fmt.Errorf("ndn: empty component in name %q", uri)
		}
		n.comps = append(n.comps, Component(p))
	}
	return n, nil
}

// MustParseName is ParseName but panics on error; for tests and constants.
func MustParseName(uri string) Name {
	n, err := ParseName(uri)
	if err != nil {
		panic(err)
	}
	return n
}

// Len returns the number of components.
func (n Name) Len() int { return len(n.comps) }

// Append returns a new Name with an opaque component appended.
func (n Name) Append(c Component) Name {
	out := make([]Component, len(n.comps), len(n.comps)+1)
	copy(out, n.comps)
	out = append(out, c)
	return Name{comps: out}
}

// AppendSegment returns a new Name with a "seg=<n>" component appended.
func (n Name) AppendSegment(seg SegmentNo) Name {
	return n.Append(Component(fmt.Sprintf("seg=%d", uint64(seg))))
}

// Prefix returns the name with its last component removed.
// Prefix of an empty name returns itself.
func (n Name) Prefix() Name {
	if len(n.comps) == 0 {
		return n
	}
	out := make([]Component, len(n.comps)-1)
	copy(out, n.comps[:len(n.comps)-1])
	return Name{comps: out}
}

// At returns the component at index i.
func (n Name) At(i int) Component { return n.comps[i] }

// Last returns the final component, or an empty Component if the name is empty.
func (n Name) Last() Component {
	if len(n.comps) == 0 {
		return nil
	}
	return n.comps[len(n.comps)-1]
}

// LastSegment parses the final component as a "seg=<n>" segment number.
func (n Name) LastSegment() (SegmentNo, bool) {
	return parseSegmentComponent(n.Last())
}

// parseSegmentComponent extracts the numeric value of a "seg=<n>" component.
func parseSegmentComponent(c Component) (SegmentNo, bool) {
	s := string(c)
	const prefix = "seg="
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return SegmentNo(v), true
}

// Equal reports whether two names have identical components.
func (n Name) Equal(o Name) bool {
	if len(n.comps) != len(o.comps) {
		return false
	}
	for i := range n.comps {
		if string(n.comps[i]) != string(o.comps[i]) {
			return false
		}
	}
	return true
}

// String renders the name back into slash-separated URI form.
func (n Name) String() string {
	if len(n.comps) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, c := range n.comps {
		sb.WriteByte('/')
		sb.Write(c)
	}
	return sb.String()
}

// Nonce is a per-Interest anti-duplicate-suppression token.
type Nonce [4]byte

// NewNonce draws a fresh random nonce.
func NewNonce() Nonce {
	var n Nonce
	_, _ = rand.Read(n[:])
	return n
}

func (n Nonce) String() string {
	return fmt.Sprintf("%08x", binary.BigEndian.Uint32(n[:]))
}
