// Package ledger implements the subsystem's view of the external
// smart-contract platform: a failover RPC pool, the fee oracle, typed-data
// signing, permit and meta-transaction builders, the relay submitter, and
// event extraction.
package ledger

import (
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Action identifies a privileged ledger action for fee lookup and the
// relayed transaction log.
type Action string

const (
	ActionSoloMilestone  Action = "solo_milestone"
	ActionGroupMilestone Action = "group_milestone"
	ActionSign           Action = "sign"
	ActionDecline        Action = "decline"
	ActionTransfer       Action = "transfer"
	ActionSubscribe      Action = "subscribe"
	ActionMint           Action = "mint"
	ActionPermit         Action = "permit"
)

// Tier is a subscription tier as stored on the ledger.
type Tier uint8

const (
	TierFree Tier = 0
	Tier1    Tier = 1
	Tier2    Tier = 2
)

// ForwardedCallRequest is a single-use signed instruction for the
// forwarder. The forwarder's nonce check rejects any replay, so a request
// is consumed exactly once; a request past its deadline is rebuilt from
// scratch, never re-signed or resubmitted.
type ForwardedCallRequest struct {
	From      ethcommon.Address
	To        ethcommon.Address
	Value     *big.Int
	Gas       uint64
	Nonce     *big.Int
	Deadline  int64 // unix seconds, uint48 on the wire
	Data      []byte
	Signature []byte
}

// FeeSchedule is the ledger's current fee and discount schedule. Read
// through per request and never cached longer than one request, so pricing
// races between schedule updates are impossible.
type FeeSchedule struct {
	SoloMilestoneFee  *big.Int
	GroupMilestoneFee *big.Int
	SignFee           *big.Int
	TransferFee       *big.Int
	MintFee           *big.Int
	Tier1DiscountPct  uint8
	Tier2DiscountPct  uint8
}

// Quote is the result of a fee lookup for one caller and action.
type Quote struct {
	Action        Action
	BaseFee       *big.Int
	DiscountedFee *big.Int
	Tier          Tier
}

// SubmitResult is what the relay submitter returns after a successful
// inclusion. Events carry the receipt's logs, already scoped to the
// submitted transaction hash and block.
type SubmitResult struct {
	TxHash      ethcommon.Hash
	BlockNumber uint64
	Events      []Event
}
