package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/chids04/0xm-relay/api"
	"github.com/chids04/0xm-relay/config"
	"github.com/chids04/0xm-relay/contentstore"
	"github.com/chids04/0xm-relay/db"
	"github.com/chids04/0xm-relay/keyvault"
	"github.com/chids04/0xm-relay/ledger"
	"github.com/chids04/0xm-relay/logger"
	"github.com/chids04/0xm-relay/milestone"
	"github.com/chids04/0xm-relay/workflow"
)

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the relay daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := resolveHome(cmd)
			if err != nil {
				return err
			}
			cfg, err := config.Load(home)
			if err != nil {
				return err
			}
			if err := cfg.RequireLedgerAddresses(); err != nil {
				return err
			}
			return runDaemon(&cfg)
		},
	}
}

func runDaemon(cfg *config.Config) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.OpenFileDB(filepath.Join(cfg.Home, "data"), cfg.DBFileName, true)
	if err != nil {
		return err
	}
	defer database.Close()

	vault, err := keyvault.New(database, cfg.VaultPassphrase, log)
	if err != nil {
		return err
	}

	rpcClient, err := ledger.NewRPCClient(cfg.LedgerRPCURLs, cfg.ChainID, log)
	if err != nil {
		return err
	}
	defer rpcClient.Close()

	adminKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.RelayAdminKeyHex, "0x"))
	if err != nil {
		return err
	}

	addrs := ledger.Addresses{
		Forwarder:   ethcommon.HexToAddress(cfg.ForwarderAddress),
		Tracker:     ethcommon.HexToAddress(cfg.TrackerAddress),
		Token:       ethcommon.HexToAddress(cfg.TokenAddress),
		Certificate: ethcommon.HexToAddress(cfg.CertificateAddress),
		Relayer:     ethcommon.HexToAddress(cfg.RelayerAddress),
	}

	oracle := ledger.NewFeeOracle(rpcClient, addrs, log)
	metatx := ledger.NewMetaTransactionBuilder(rpcClient, addrs, log)
	approvals := ledger.NewGaslessApprovalBuilder(rpcClient, metatx, addrs, log)
	audit := ledger.NewAuditLog(database.Client(), log)
	submitter := ledger.NewRelaySubmitter(
		rpcClient, adminKey, cfg.ChainID, addrs, audit,
		time.Duration(cfg.InclusionTimeoutSeconds)*time.Second, log,
	)

	content := contentstore.New(cfg.ContentStoreURL,
		time.Duration(cfg.ContentFetchTimeoutSeconds)*time.Second, log)

	states := milestone.NewStateMachine(database.Client(), log)
	reader := ledger.NewReader(rpcClient, addrs)
	verifier := milestone.NewVerificationEngine(database.Client(), content, reader, log)

	sweeper := milestone.NewExpirySweeper(database.Client(), content,
		time.Duration(cfg.ExpirySweepIntervalSeconds)*time.Second, log)
	go sweeper.Run(ctx)

	svc := workflow.NewService(workflow.Deps{
		Vault:            vault,
		Content:          content,
		Oracle:           oracle,
		Approvals:        approvals,
		MetaTx:           metatx,
		Submitter:        submitter,
		Reader:           reader,
		Events:           ledger.NewEventScanner(rpcClient, addrs),
		Chain:            rpcClient,
		Audit:            audit,
		Encoder:          ledger.NewActionEncoder(addrs),
		States:           states,
		Verifier:         verifier,
		DeclineRetention: time.Duration(cfg.DeclineRetentionSeconds) * time.Second,
	}, log)

	log.Info().
		Str("relay_account", submitter.AdminAddress().Hex()).
		Int64("chain_id", cfg.ChainID).
		Msg("relay daemon starting")

	server := api.NewServer(svc, api.HeaderCallerResolver, log)
	return server.ListenAndServe(ctx, cfg.APIPort)
}
