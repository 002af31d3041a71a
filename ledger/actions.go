package ledger

import (
	"context"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/chids04/0xm-relay/errors"
)

// Call is an encoded contract call ready to be wrapped in a forward
// request.
type Call struct {
	Target ethcommon.Address
	Data   []byte
}

// ActionEncoder maps the subsystem's operations to calldata against the
// deployed contracts.
type ActionEncoder struct {
	addrs Addresses
}

func NewActionEncoder(addrs Addresses) *ActionEncoder {
	return &ActionEncoder{addrs: addrs}
}

func (e *ActionEncoder) AddMilestone(description, contentHash, milestoneID string) (Call, error) {
	data, err := encodeAddMilestone(description, contentHash, milestoneID)
	return e.trackerCall(data, err)
}

func (e *ActionEncoder) AddGroupMilestone(description string, participants []ethcommon.Address, contentHash, milestoneID string) (Call, error) {
	data, err := encodeAddGroupMilestone(description, participants, contentHash, milestoneID)
	return e.trackerCall(data, err)
}

func (e *ActionEncoder) SignMilestone(owner ethcommon.Address, milestoneID string) (Call, error) {
	data, err := encodeSignMilestone(owner, milestoneID)
	return e.trackerCall(data, err)
}

func (e *ActionEncoder) RemoveMilestone(owner ethcommon.Address, milestoneID string) (Call, error) {
	data, err := encodeRemoveMilestone(owner, milestoneID)
	return e.trackerCall(data, err)
}

func (e *ActionEncoder) Transfer(to ethcommon.Address, amount *big.Int) (Call, error) {
	data, err := encodeTransfer(to, amount)
	if err != nil {
		return Call{}, errors.New(errors.CodeInternal, "failed to encode transfer").WithCause(err)
	}
	return Call{Target: e.addrs.Token, Data: data}, nil
}

func (e *ActionEncoder) Subscribe(tier Tier) (Call, error) {
	data, err := encodeSubscribe(uint8(tier))
	if err != nil {
		return Call{}, errors.New(errors.CodeInternal, "failed to encode subscribe").WithCause(err)
	}
	return Call{Target: e.addrs.Relayer, Data: data}, nil
}

func (e *ActionEncoder) MintCertificate(to ethcommon.Address, tokenURI string) (Call, error) {
	data, err := encodeMintCertificate(to, tokenURI)
	if err != nil {
		return Call{}, errors.New(errors.CodeInternal, "failed to encode certificate mint").WithCause(err)
	}
	return Call{Target: e.addrs.Certificate, Data: data}, nil
}

func (e *ActionEncoder) trackerCall(data []byte, err error) (Call, error) {
	if err != nil {
		return Call{}, errors.New(errors.CodeInternal, "failed to encode tracker call").WithCause(err)
	}
	return Call{Target: e.addrs.Tracker, Data: data}, nil
}

// Reader exposes the ledger's read-only views needed outside this
// package.
type Reader struct {
	caller ContractCaller
	addrs  Addresses
}

func NewReader(caller ContractCaller, addrs Addresses) *Reader {
	return &Reader{caller: caller, addrs: addrs}
}

// VerifyHash asks the tracker whether the candidate hash matches the one
// recorded for the milestone.
func (r *Reader) VerifyHash(ctx context.Context, owner ethcommon.Address, milestoneID, candidateHash string) (bool, error) {
	ok, err := callVerifyHash(ctx, r.caller, r.addrs.Tracker, owner, milestoneID, candidateHash)
	if err != nil {
		return false, errors.New(errors.CodeLedgerUnavailable, "failed to verify hash on ledger").WithCause(err)
	}
	return ok, nil
}

// TokenBalance reads the owner's fee token balance.
func (r *Reader) TokenBalance(ctx context.Context, owner ethcommon.Address) (*big.Int, error) {
	balance, err := callBalanceOf(ctx, r.caller, r.addrs.Token, owner)
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to read token balance").WithCause(err)
	}
	return balance, nil
}
