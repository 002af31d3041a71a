package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chids04/0xm-relay/errors"
)

// EventKind names a ledger event the subsystem reacts to.
type EventKind string

const (
	EventMilestoneAdded    EventKind = "MilestoneAdded"
	EventMilestoneSigned   EventKind = "MilestoneSigned"
	EventFinalized         EventKind = "Finalized"
	EventCertificateMinted EventKind = "CertificateMinted"
)

// Event topic hashes. The user/recipient address is indexed on every
// tracked event; the remaining arguments travel in the data segment.
var (
	topicMilestoneAdded    = crypto.Keccak256Hash([]byte("MilestoneAdded(address,string)"))
	topicMilestoneSigned   = crypto.Keccak256Hash([]byte("MilestoneSigned(address,string)"))
	topicFinalized         = crypto.Keccak256Hash([]byte("Finalized(address,string)"))
	topicCertificateMinted = crypto.Keccak256Hash([]byte("CertificateMinted(address,string,uint256)"))
)

var (
	milestoneEventData   = abi.Arguments{{Type: typeString}}
	certificateEventData = abi.Arguments{{Type: typeString}, {Type: typeUint256}}
)

// Event is a decoded ledger event. TxHash and BlockNumber come from the
// log itself, so an event can always be traced back to the transaction
// that produced it.
type Event struct {
	Kind        EventKind
	User        ethcommon.Address
	MilestoneID string
	TokenID     *big.Int // set for CertificateMinted only
	TxHash      ethcommon.Hash
	BlockNumber uint64
}

// ParseReceiptEvents decodes the tracked events out of a receipt's logs.
// Logs from unrelated contracts or with unknown topics are skipped, not
// treated as errors.
func ParseReceiptEvents(receipt *types.Receipt, addrs Addresses) ([]Event, error) {
	var events []Event
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Removed {
			continue
		}
		if lg.Address != addrs.Tracker && lg.Address != addrs.Certificate {
			continue
		}
		ev, ok, err := decodeLog(lg)
		if err != nil {
			return nil, err
		}
		if ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// FindFinalized returns the first Finalized event for the given milestone,
// or false when the logs carry none.
func FindFinalized(events []Event, milestoneID string) (Event, bool) {
	for _, ev := range events {
		if ev.Kind == EventFinalized && ev.MilestoneID == milestoneID {
			return ev, true
		}
	}
	return Event{}, false
}

// LogFilterer is the slice of the RPC pool the event scanner needs.
type LogFilterer interface {
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// EventScanner replays tracked events from the ledger's log store. Used by
// reconciliation to rebuild local state that a crash left behind.
type EventScanner struct {
	caller LogFilterer
	addrs  Addresses
}

func NewEventScanner(caller LogFilterer, addrs Addresses) *EventScanner {
	return &EventScanner{caller: caller, addrs: addrs}
}

// Scan fetches and decodes all tracked events in [fromBlock, toBlock].
func (s *EventScanner) Scan(ctx context.Context, fromBlock, toBlock uint64) ([]Event, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []ethcommon.Address{s.addrs.Tracker, s.addrs.Certificate},
		Topics: [][]ethcommon.Hash{{
			topicMilestoneAdded,
			topicMilestoneSigned,
			topicFinalized,
			topicCertificateMinted,
		}},
	}
	logs, err := s.caller.FilterLogs(ctx, query)
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to fetch ledger events").WithCause(err)
	}

	var events []Event
	for i := range logs {
		ev, ok, err := decodeLog(&logs[i])
		if err != nil {
			return nil, err
		}
		if ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func decodeLog(lg *types.Log) (Event, bool, error) {
	if len(lg.Topics) < 2 {
		return Event{}, false, nil
	}

	var kind EventKind
	switch lg.Topics[0] {
	case topicMilestoneAdded:
		kind = EventMilestoneAdded
	case topicMilestoneSigned:
		kind = EventMilestoneSigned
	case topicFinalized:
		kind = EventFinalized
	case topicCertificateMinted:
		kind = EventCertificateMinted
	default:
		return Event{}, false, nil
	}

	ev := Event{
		Kind:        kind,
		User:        ethcommon.BytesToAddress(lg.Topics[1].Bytes()),
		TxHash:      lg.TxHash,
		BlockNumber: lg.BlockNumber,
	}

	if kind == EventCertificateMinted {
		vals, err := certificateEventData.Unpack(lg.Data)
		if err != nil {
			return Event{}, false, errors.New(errors.CodeInternal, "malformed CertificateMinted event data").WithCause(err)
		}
		ev.MilestoneID = vals[0].(string)
		ev.TokenID = vals[1].(*big.Int)
		return ev, true, nil
	}

	vals, err := milestoneEventData.Unpack(lg.Data)
	if err != nil {
		return Event{}, false, errors.Newf(errors.CodeInternal, "malformed %s event data", kind).WithCause(err)
	}
	ev.MilestoneID = vals[0].(string)
	return ev, true, nil
}
