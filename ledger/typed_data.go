package ledger

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Typed-data signing for permits and forwarded calls. Domains are always
// fetched live from the contract (ERC-5267), never hardcoded, so a contract
// upgrade cannot silently invalidate signatures.

var forwardRequestTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"ForwardRequest": {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "gas", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint48"},
		{Name: "data", Type: "bytes"},
	},
}

var permitTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Permit": {
		{Name: "owner", Type: "address"},
		{Name: "spender", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

func typedDataDomain(d *EIP712Domain) apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           (*math.HexOrDecimal256)(d.ChainID),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
}

// forwardRequestTypedData binds a forward request to the forwarder's domain.
func forwardRequestTypedData(domain *EIP712Domain, req *ForwardedCallRequest) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       forwardRequestTypes,
		PrimaryType: "ForwardRequest",
		Domain:      typedDataDomain(domain),
		Message: apitypes.TypedDataMessage{
			"from":     req.From.Hex(),
			"to":       req.To.Hex(),
			"value":    (*math.HexOrDecimal256)(req.Value),
			"gas":      (*math.HexOrDecimal256)(new(big.Int).SetUint64(req.Gas)),
			"nonce":    (*math.HexOrDecimal256)(req.Nonce),
			"deadline": (*math.HexOrDecimal256)(big.NewInt(req.Deadline)),
			"data":     hexutil.Encode(req.Data),
		},
	}
}

// permitTypedData binds a permit message to the token's domain.
func permitTypedData(domain *EIP712Domain, owner, spender ethcommon.Address, value, nonce, deadline *big.Int) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       permitTypes,
		PrimaryType: "Permit",
		Domain:      typedDataDomain(domain),
		Message: apitypes.TypedDataMessage{
			"owner":    owner.Hex(),
			"spender":  spender.Hex(),
			"value":    (*math.HexOrDecimal256)(value),
			"nonce":    (*math.HexOrDecimal256)(nonce),
			"deadline": (*math.HexOrDecimal256)(deadline),
		},
	}
}

// hashTypedData computes the EIP-712 digest for a typed-data payload.
func hashTypedData(td apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return digest, nil
}

// signTypedData signs a typed-data payload and returns a 65-byte signature
// with v in {27, 28}, the form contracts expect from ecrecover.
func signTypedData(key *ecdsa.PrivateKey, td apitypes.TypedData) ([]byte, error) {
	digest, err := hashTypedData(td)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// splitSignature splits a 65-byte signature into its v, r, s components.
func splitSignature(sig []byte) (v uint8, r, s [32]byte, err error) {
	if len(sig) != 65 {
		return 0, r, s, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	copy(r[:], sig[:32])
	copy(s[:], sig[32:64])
	v = sig[64]
	return v, r, s, nil
}
