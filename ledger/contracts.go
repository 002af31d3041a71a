package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ContractCaller is the read-only slice of the RPC pool that view-call
// helpers need. Satisfied by *RPCClient and by test fakes.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// Addresses holds the deployed contract addresses this subsystem talks to.
type Addresses struct {
	Forwarder   ethcommon.Address // ERC-2771 forwarder, entry point for all relayed calls
	Tracker     ethcommon.Address // milestone tracker
	Token       ethcommon.Address // fee token with permit support
	Certificate ethcommon.Address // certificate (ERC-721) contract
	Relayer     ethcommon.Address // relayer contract exposing fee accessors
}

// ABI type definitions shared across call encoders. abi.NewType only fails
// on malformed type strings, which would be a programming error here.
var (
	typeAddress, _      = abi.NewType("address", "", nil)
	typeAddressList, _  = abi.NewType("address[]", "", nil)
	typeUint256, _      = abi.NewType("uint256", "", nil)
	typeUint256List, _  = abi.NewType("uint256[]", "", nil)
	typeUint8, _        = abi.NewType("uint8", "", nil)
	typeBytes1, _       = abi.NewType("bytes1", "", nil)
	typeBytes32, _      = abi.NewType("bytes32", "", nil)
	typeString, _       = abi.NewType("string", "", nil)
	typeBool, _         = abi.NewType("bool", "", nil)
	typeForwardReq, _   = abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "gas", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint48"},
		{Name: "data", Type: "bytes"},
		{Name: "signature", Type: "bytes"},
	})
)

// selector returns the 4-byte function selector for a signature.
func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// packCall ABI-encodes a function call: selector plus packed arguments.
func packCall(signature string, args abi.Arguments, values ...any) ([]byte, error) {
	encoded, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack arguments for %s: %w", signature, err)
	}
	return append(selector(signature), encoded...), nil
}

// view performs a read-only call against a contract and returns the raw
// return data.
func view(ctx context.Context, caller ContractCaller, contract ethcommon.Address, data []byte) ([]byte, error) {
	return caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data})
}

// callNonces reads the replay-protection nonce a contract tracks for owner.
// Both the forwarder and the permit token expose nonces(address).
func callNonces(ctx context.Context, caller ContractCaller, contract, owner ethcommon.Address) (*big.Int, error) {
	data, err := packCall("nonces(address)", abi.Arguments{{Type: typeAddress}}, owner)
	if err != nil {
		return nil, err
	}
	out, err := view(ctx, caller, contract, data)
	if err != nil {
		return nil, err
	}
	vals, err := abi.Arguments{{Type: typeUint256}}.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack nonces: %w", err)
	}
	return vals[0].(*big.Int), nil
}

// EIP712Domain is the live typed-data domain of a contract.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract ethcommon.Address
}

// callEIP712Domain fetches a contract's typed-data domain via the ERC-5267
// eip712Domain() accessor. The domain is always read live, never assumed.
func callEIP712Domain(ctx context.Context, caller ContractCaller, contract ethcommon.Address) (*EIP712Domain, error) {
	out, err := view(ctx, caller, contract, selector("eip712Domain()"))
	if err != nil {
		return nil, err
	}
	args := abi.Arguments{
		{Type: typeBytes1},      // fields
		{Type: typeString},      // name
		{Type: typeString},      // version
		{Type: typeUint256},     // chainId
		{Type: typeAddress},     // verifyingContract
		{Type: typeBytes32},     // salt
		{Type: typeUint256List}, // extensions
	}
	vals, err := args.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack eip712Domain: %w", err)
	}
	return &EIP712Domain{
		Name:              vals[1].(string),
		Version:           vals[2].(string),
		ChainID:           vals[3].(*big.Int),
		VerifyingContract: vals[4].(ethcommon.Address),
	}, nil
}

// callBalanceOf reads the fee token balance of an address.
func callBalanceOf(ctx context.Context, caller ContractCaller, token, owner ethcommon.Address) (*big.Int, error) {
	data, err := packCall("balanceOf(address)", abi.Arguments{{Type: typeAddress}}, owner)
	if err != nil {
		return nil, err
	}
	out, err := view(ctx, caller, token, data)
	if err != nil {
		return nil, err
	}
	vals, err := abi.Arguments{{Type: typeUint256}}.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	return vals[0].(*big.Int), nil
}

// callVerifyHash asks the tracker whether the candidate hash matches the
// stored one for (owner, milestoneID).
func callVerifyHash(ctx context.Context, caller ContractCaller, tracker, owner ethcommon.Address, milestoneID, candidateHash string) (bool, error) {
	data, err := packCall(
		"verifyHash(address,string,string)",
		abi.Arguments{{Type: typeAddress}, {Type: typeString}, {Type: typeString}},
		owner, milestoneID, candidateHash,
	)
	if err != nil {
		return false, err
	}
	out, err := view(ctx, caller, tracker, data)
	if err != nil {
		return false, err
	}
	vals, err := abi.Arguments{{Type: typeBool}}.Unpack(out)
	if err != nil {
		return false, fmt.Errorf("failed to unpack verifyHash: %w", err)
	}
	return vals[0].(bool), nil
}

// Calldata builders for the ledger entry points. Every one of these is
// wrapped in a forwarded call, never submitted directly by the user.

func encodeAddMilestone(description, contentHash, milestoneID string) ([]byte, error) {
	return packCall(
		"addMilestone(string,string,string)",
		abi.Arguments{{Type: typeString}, {Type: typeString}, {Type: typeString}},
		description, contentHash, milestoneID,
	)
}

func encodeAddGroupMilestone(description string, participants []ethcommon.Address, contentHash, milestoneID string) ([]byte, error) {
	return packCall(
		"addGroupMilestone(string,address[],string,string)",
		abi.Arguments{{Type: typeString}, {Type: typeAddressList}, {Type: typeString}, {Type: typeString}},
		description, participants, contentHash, milestoneID,
	)
}

func encodeSignMilestone(owner ethcommon.Address, milestoneID string) ([]byte, error) {
	return packCall(
		"signMilestone(address,string)",
		abi.Arguments{{Type: typeAddress}, {Type: typeString}},
		owner, milestoneID,
	)
}

func encodeRemoveMilestone(owner ethcommon.Address, milestoneID string) ([]byte, error) {
	return packCall(
		"removeMilestone(address,string)",
		abi.Arguments{{Type: typeAddress}, {Type: typeString}},
		owner, milestoneID,
	)
}

func encodeTransfer(to ethcommon.Address, amount *big.Int) ([]byte, error) {
	return packCall(
		"transfer(address,uint256)",
		abi.Arguments{{Type: typeAddress}, {Type: typeUint256}},
		to, amount,
	)
}

func encodeSubscribe(tier uint8) ([]byte, error) {
	return packCall("subscribe(uint8)", abi.Arguments{{Type: typeUint8}}, tier)
}

func encodeMintCertificate(to ethcommon.Address, tokenURI string) ([]byte, error) {
	return packCall(
		"mintCertificate(address,string)",
		abi.Arguments{{Type: typeAddress}, {Type: typeString}},
		to, tokenURI,
	)
}

func encodePermit(owner, spender ethcommon.Address, value, deadline *big.Int, v uint8, r, s [32]byte) ([]byte, error) {
	return packCall(
		"permit(address,address,uint256,uint256,uint8,bytes32,bytes32)",
		abi.Arguments{
			{Type: typeAddress}, {Type: typeAddress}, {Type: typeUint256},
			{Type: typeUint256}, {Type: typeUint8}, {Type: typeBytes32}, {Type: typeBytes32},
		},
		owner, spender, value, deadline, v, r, s,
	)
}

// forwardRequestTuple mirrors the forwarder's execute() argument layout.
type forwardRequestTuple struct {
	From      ethcommon.Address
	To        ethcommon.Address
	Value     *big.Int
	Gas       *big.Int
	Nonce     *big.Int
	Deadline  *big.Int
	Data      []byte
	Signature []byte
}

func encodeExecute(req *ForwardedCallRequest) ([]byte, error) {
	return packCall(
		"execute((address,address,uint256,uint256,uint256,uint48,bytes,bytes))",
		abi.Arguments{{Type: typeForwardReq}},
		forwardRequestTuple{
			From:      req.From,
			To:        req.To,
			Value:     req.Value,
			Gas:       new(big.Int).SetUint64(req.Gas),
			Nonce:     req.Nonce,
			Deadline:  new(big.Int).SetInt64(req.Deadline),
			Data:      req.Data,
			Signature: req.Signature,
		},
	)
}
