// Package keyvault owns the per-user signing keys. Keys are generated
// server-side, encrypted at rest in web3 keystore format under a vault
// passphrase, and decrypted on demand for exactly one operation.
package keyvault

import (
	"crypto/ecdsa"
	stderrors "errors"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/chids04/0xm-relay/db"
	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/logger"
	"github.com/chids04/0xm-relay/store"
)

// Vault manages wallet records and their encrypted signing keys.
type Vault struct {
	database   *db.DB
	passphrase string
	logger     zerolog.Logger
}

// New creates a Vault. The passphrase encrypts every stored key; a missing
// passphrase is a startup-time configuration error.
func New(database *db.DB, passphrase string, log zerolog.Logger) (*Vault, error) {
	if database == nil {
		return nil, errors.New(errors.CodeConfigMissing, "key vault requires a database")
	}
	if passphrase == "" {
		return nil, errors.New(errors.CodeConfigMissing, "key vault requires a passphrase")
	}
	return &Vault{
		database:   database,
		passphrase: passphrase,
		logger:     logger.Component(log, "keyvault"),
	}, nil
}

// CreateWallet generates a fresh secp256k1 key for the user, encrypts it,
// and stores the wallet record. Creation is idempotent: an existing wallet
// is returned as-is, never re-keyed, so the address stays immutable.
func (v *Vault) CreateWallet(userID string) (*store.Wallet, error) {
	if userID == "" {
		return nil, errors.New(errors.CodeValidation, "user id is required")
	}

	existing, err := v.Wallet(userID)
	if err == nil {
		return existing, nil
	}
	if !errors.HasCode(err, errors.CodeWalletNotFound) {
		return nil, err
	}

	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to generate signing key").WithCause(err)
	}

	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(priv.PublicKey),
		PrivateKey: priv,
	}
	blob, err := keystore.EncryptKey(key, v.passphrase, keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to encrypt signing key").WithCause(err)
	}

	wallet := &store.Wallet{
		UserID:       userID,
		Address:      key.Address.Hex(),
		EncryptedKey: string(blob),
	}
	if err := v.database.Client().Create(wallet).Error; err != nil {
		// A concurrent create for the same user can slip past the
		// pre-check; the unique index rejects the loser, which then
		// returns the winner's row.
		if existing, lookupErr := v.Wallet(userID); lookupErr == nil {
			return existing, nil
		}
		return nil, errors.New(errors.CodeInternal, "failed to store wallet").WithCause(err)
	}

	v.logger.Info().
		Str("user_id", userID).
		Str("address", wallet.Address).
		Msg("wallet created")

	return wallet, nil
}

// Wallet returns the wallet record for the user.
func (v *Vault) Wallet(userID string) (*store.Wallet, error) {
	var wallet store.Wallet
	err := v.database.Client().First(&wallet, "user_id = ?", userID).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(errors.CodeWalletNotFound, "no wallet linked to this account")
	}
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to load wallet").WithCause(err)
	}
	return &wallet, nil
}

// SignerKey decrypts the user's signing key for a single operation. Callers
// must not retain the key past the operation's lifetime.
func (v *Vault) SignerKey(userID string) (*ecdsa.PrivateKey, ethcommon.Address, error) {
	wallet, err := v.Wallet(userID)
	if err != nil {
		return nil, ethcommon.Address{}, err
	}

	key, err := keystore.DecryptKey([]byte(wallet.EncryptedKey), v.passphrase)
	if err != nil {
		return nil, ethcommon.Address{}, errors.New(errors.CodeInternal, "failed to decrypt signing key").WithCause(err)
	}

	addr := ethcommon.HexToAddress(wallet.Address)
	if key.Address != addr {
		// The record was tampered with or the wrong passphrase decrypted
		// garbage; refuse to sign with a key that does not match.
		return nil, ethcommon.Address{}, errors.New(errors.CodeInternal, "decrypted key does not match wallet address")
	}
	return key.PrivateKey, addr, nil
}

// UpdateCachedBalance stores a display-only balance snapshot on the wallet
// record. Authoritative balance always comes from the ledger.
func (v *Vault) UpdateCachedBalance(userID, balance string) error {
	err := v.database.Client().
		Model(&store.Wallet{}).
		Where("user_id = ?", userID).
		Update("cached_balance", balance).Error
	if err != nil {
		return errors.New(errors.CodeInternal, "failed to update cached balance").WithCause(err)
	}
	return nil
}
