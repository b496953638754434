package ndn

import "time"

// Interest is a request naming the desired content.
type Interest struct {
	Name                Name
	MustBeFresh         bool
	MaxSuffixComponents int
	Lifetime            time.Duration
	Nonce               Nonce
}

// RefreshNonce returns a copy of the Interest with a fresh nonce, as is
// required on every retransmission to avoid upstream duplicate suppression.
func (i Interest) RefreshNonce() Interest {
	i.Nonce = NewNonce()
	return i
}

// WithLifetime returns a copy of the Interest with a new lifetime.
func (i Interest) WithLifetime(d time.Duration) Interest {
	i.Lifetime = d
	return i
}

// ContentType signals the kind of payload a Data packet carries.
type ContentType int

const (
	// ContentTypeBlob is ordinary application content.
	ContentTypeBlob ContentType = iota
	// ContentTypeNack signals an application-level Nack carried as Data.
	ContentTypeNack
)

// Data is a reply carrying one named, opaque content segment.
type Data struct {
	Name Name

	// Content is the opaque payload of this segment.
	Content []byte

	// FinalBlockID, if HasFinalBlockID, names the last segment of this
	// content object. It is learned opportunistically from any Data.
	FinalBlockID    SegmentNo
	HasFinalBlockID bool

	ContentType ContentType
}

// NackReason classifies a link-level negative acknowledgement.
type NackReason int

const (
	// NackDuplicate means the network already has a pending Interest with
	// the same name+selectors; retransmit immediately with a fresh nonce.
	NackDuplicate NackReason = iota
	// NackCongestion means the network wants the sender to slow down.
	NackCongestion
	// NackOther is any other, non-retriable reason.
	NackOther
)

func (r NackReason) String() string {
	switch r {
	case NackDuplicate:
		return "duplicate"
	case NackCongestion:
		return "congestion"
	default:
		return "other"
	}
}

// Nack is a negative acknowledgement to a specific Interest.
type Nack struct {
	Interest Interest
	Reason   NackReason
}
