package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/logger"
)

// FeeOracle reads the current fee/discount schedule and a caller's
// subscription tier from the ledger. It never guesses: any read failure is
// surfaced as LEDGER_UNAVAILABLE and the caller must abort.
type FeeOracle struct {
	caller ContractCaller
	addrs  Addresses
	logger zerolog.Logger
}

// NewFeeOracle creates a fee oracle over the given RPC pool.
func NewFeeOracle(caller ContractCaller, addrs Addresses, log zerolog.Logger) *FeeOracle {
	return &FeeOracle{
		caller: caller,
		addrs:  addrs,
		logger: logger.Component(log, "fee_oracle"),
	}
}

// Quote returns the base and tier-discounted fee for an action. The
// discount is applied multiplicatively and rounded down to the token's
// smallest unit.
func (o *FeeOracle) Quote(ctx context.Context, action Action, caller ethcommon.Address) (*Quote, error) {
	schedule, err := o.Schedule(ctx)
	if err != nil {
		return nil, err
	}

	base, err := schedule.feeFor(action)
	if err != nil {
		return nil, errors.New(errors.CodeValidation, err.Error())
	}

	tier, err := o.SubscriptionTier(ctx, caller)
	if err != nil {
		return nil, err
	}

	var pct uint8
	switch tier {
	case Tier1:
		pct = schedule.Tier1DiscountPct
	case Tier2:
		pct = schedule.Tier2DiscountPct
	}

	return &Quote{
		Action:        action,
		BaseFee:       base,
		DiscountedFee: applyDiscount(base, pct),
		Tier:          tier,
	}, nil
}

// Schedule reads the full fee schedule from the ledger. Valid for the
// current request only.
func (o *FeeOracle) Schedule(ctx context.Context) (*FeeSchedule, error) {
	out, err := view(ctx, o.caller, o.addrs.Relayer, selector("getFees()"))
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to read fee schedule").WithCause(err)
	}
	args := abi.Arguments{
		{Type: typeUint256}, // solo milestone fee
		{Type: typeUint256}, // group milestone fee
		{Type: typeUint256}, // sign fee
		{Type: typeUint8},   // tier 1 discount pct
		{Type: typeUint8},   // tier 2 discount pct
	}
	vals, err := args.Unpack(out)
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "malformed fee schedule response").WithCause(err)
	}

	schedule := &FeeSchedule{
		SoloMilestoneFee:  vals[0].(*big.Int),
		GroupMilestoneFee: vals[1].(*big.Int),
		SignFee:           vals[2].(*big.Int),
		Tier1DiscountPct:  vals[3].(uint8),
		Tier2DiscountPct:  vals[4].(uint8),
	}

	if schedule.TransferFee, err = o.readSingleFee(ctx, "transferFee()"); err != nil {
		return nil, err
	}
	if schedule.MintFee, err = o.readSingleFee(ctx, "mintFee()"); err != nil {
		return nil, err
	}
	return schedule, nil
}

// SubscriptionTier reads the caller's current tier from the ledger.
func (o *FeeOracle) SubscriptionTier(ctx context.Context, caller ethcommon.Address) (Tier, error) {
	data, err := packCall("subscriptionTier(address)", abi.Arguments{{Type: typeAddress}}, caller)
	if err != nil {
		return TierFree, errors.New(errors.CodeInternal, "failed to encode tier lookup").WithCause(err)
	}
	out, err := view(ctx, o.caller, o.addrs.Relayer, data)
	if err != nil {
		return TierFree, errors.New(errors.CodeLedgerUnavailable, "failed to read subscription tier").WithCause(err)
	}
	vals, err := abi.Arguments{{Type: typeUint8}}.Unpack(out)
	if err != nil {
		return TierFree, errors.New(errors.CodeLedgerUnavailable, "malformed tier response").WithCause(err)
	}
	return Tier(vals[0].(uint8)), nil
}

func (o *FeeOracle) readSingleFee(ctx context.Context, accessor string) (*big.Int, error) {
	out, err := view(ctx, o.caller, o.addrs.Relayer, selector(accessor))
	if err != nil {
		return nil, errors.Newf(errors.CodeLedgerUnavailable, "failed to read %s", accessor).WithCause(err)
	}
	vals, err := abi.Arguments{{Type: typeUint256}}.Unpack(out)
	if err != nil {
		return nil, errors.Newf(errors.CodeLedgerUnavailable, "malformed %s response", accessor).WithCause(err)
	}
	return vals[0].(*big.Int), nil
}

// feeFor maps an action to its base fee. Decline and subscribe carry no
// token fee; the relay account only pays their gas.
func (s *FeeSchedule) feeFor(action Action) (*big.Int, error) {
	switch action {
	case ActionSoloMilestone:
		return s.SoloMilestoneFee, nil
	case ActionGroupMilestone:
		return s.GroupMilestoneFee, nil
	case ActionSign:
		return s.SignFee, nil
	case ActionTransfer:
		return s.TransferFee, nil
	case ActionMint:
		return s.MintFee, nil
	default:
		return nil, fmt.Errorf("no fee defined for action %q", action)
	}
}

// applyDiscount computes base * (100 - pct) / 100 in integer math,
// rounding down.
func applyDiscount(base *big.Int, pct uint8) *big.Int {
	if pct == 0 {
		return new(big.Int).Set(base)
	}
	if pct >= 100 {
		return big.NewInt(0)
	}
	discounted := new(big.Int).Mul(base, big.NewInt(int64(100-pct)))
	return discounted.Div(discounted, big.NewInt(100))
}
