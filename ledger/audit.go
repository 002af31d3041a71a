package ledger

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/logger"
	"github.com/chids04/0xm-relay/store"
)

const (
	txStatusSuccess  = "success"
	txStatusReverted = "reverted"
)

// AuditLog is the persistent record of every forwarded call submitted
// through the admin relay account, reverted ones included.
type AuditLog struct {
	database *gorm.DB
	logger   zerolog.Logger
}

func NewAuditLog(database *gorm.DB, log zerolog.Logger) *AuditLog {
	return &AuditLog{
		database: database,
		logger:   logger.Component(log, "relay_audit"),
	}
}

// Record appends one submission. Failures here are logged and swallowed:
// the audit log must never fail a transaction that already landed.
func (a *AuditLog) Record(action Action, req *ForwardedCallRequest, txHash ethcommon.Hash, receipt *types.Receipt) {
	status := txStatusSuccess
	if receipt.Status != types.ReceiptStatusSuccessful {
		status = txStatusReverted
	}
	record := store.RelayedTransaction{
		TxHash:      txHash.Hex(),
		Action:      string(action),
		From:        req.From.Hex(),
		Nonce:       req.Nonce.Uint64(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		Status:      status,
	}
	if err := a.database.Create(&record).Error; err != nil {
		a.logger.Warn().Err(err).Str("tx_hash", record.TxHash).Msg("failed to record relayed transaction")
	}
}

// History returns the submissions forwarded for the address, newest
// first, capped at limit.
func (a *AuditLog) History(from ethcommon.Address, limit int) ([]store.RelayedTransaction, error) {
	var records []store.RelayedTransaction
	err := a.database.
		Where("\"from\" = ?", from.Hex()).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to load transaction history").WithCause(err)
	}
	return records, nil
}
