package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"private-stake-go/internal/api"
	"private-stake-go/internal/balance"
	"private-stake-go/internal/database"
	"private-stake-go/internal/formance"
	"private-stake-go/internal/ledger"
	"private-stake-go/internal/metrics"
	"private-stake-go/internal/models"
	"private-stake-go/internal/orchestrator"
	"private-stake-go/internal/privacy"
	"private-stake-go/internal/recovery"
	"private-stake-go/internal/session"
	"private-stake-go/internal/staking"
	"private-stake-go/internal/store"
	"private-stake-go/internal/sweeper"
	"private-stake-go/internal/wallet"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	Config       *models.Config
	Registry     models.TokenRegistry
	Journal      *database.Service
	Audit        store.AuditTrail
	Metrics      *metrics.Recorder
	Session      *session.Session
	Reconciler   *balance.Reconciler
	Recovery     *recovery.Manager
	Orchestrator *orchestrator.Orchestrator
	Operations   *api.OperationsService
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the clients, opens the owner session and builds the
// orchestrator. The owner signs the capability seed message here.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	registry, err := LoadTokenRegistry(cfg.Orchestrator.TokensFile)
	if err != nil {
		return nil, err
	}

	journal, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	svc := &Services{
		Config:   cfg,
		Registry: registry,
		Journal:  journal,
		Audit:    store.NoopAudit{},
	}

	recorder, err := metrics.NewRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	svc.Metrics = recorder

	if cfg.Formance.Enabled() {
		audit, err := formance.NewService(ctx, cfg.Formance, registry)
		if err != nil {
			svc.Close()
			return nil, err
		}
		svc.Audit = audit
	}

	ledgerClient, err := ledger.NewSolanaClient(cfg.Ledger)
	if err != nil {
		svc.Close()
		return nil, err
	}

	privacyGateway, err := privacy.NewGateway(cfg.Privacy, registry)
	if err != nil {
		svc.Close()
		return nil, err
	}

	stakingService, err := staking.NewService(cfg.Staking)
	if err != nil {
		svc.Close()
		return nil, err
	}

	zap.L().Info("Loading owner wallet", zap.String("path", cfg.Wallet.KeypairPath))
	keypair, err := wallet.LoadKeypairFile(cfg.Wallet.KeypairPath)
	if err != nil {
		svc.Close()
		return nil, err
	}

	sess, err := session.Open(ctx, session.OpenParams{
		Signer:           wallet.NewLocalSigner(keypair, ledgerClient, cfg.Ledger.Commitment),
		Ledger:           ledgerClient,
		Privacy:          privacyGateway,
		Staking:          stakingService,
		Label:            cfg.Orchestrator.BurnerLabel,
		RemoteDerivation: cfg.Privacy.DeriveKeys,
	})
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	svc.Session = sess

	svc.Reconciler = balance.NewReconciler(registry)
	svc.Recovery = recovery.NewManager(recovery.Params{
		Registry: registry,
		TxFee:    cfg.Ledger.TxFee,
		Journal:  journal,
		Audit:    svc.Audit,
		Metrics:  svc.Metrics,
	})
	svc.Orchestrator = orchestrator.New(orchestrator.Params{
		Config:       cfg.Orchestrator,
		Registry:     registry,
		Reconciler:   svc.Reconciler,
		Recovery:     svc.Recovery,
		Journal:      journal,
		Audit:        svc.Audit,
		Metrics:      svc.Metrics,
		PollInterval: cfg.Ledger.PollInterval,
	})
	svc.Operations = api.NewOperationsService(journal, registry)
	if reader, ok := svc.Audit.(store.AuditReader); ok {
		svc.Operations.WithAudit(reader)
	}

	zap.L().Info("Services initialized",
		zap.String("owner", sess.Owner()),
		zap.String("native", registry.Native.Symbol),
		zap.String("derivative", registry.Derivative.Symbol),
		zap.Bool("audit", cfg.Formance.Enabled()))

	return svc, nil
}

// NewSweeper builds a sweeper over the session. Its recovery manager does not
// journal, since the sweeper resolves the records it retries.
func (cs *Services) NewSweeper() *sweeper.Sweeper {
	return sweeper.New(sweeper.Config{
		Session: cs.Session,
		Journal: cs.Journal,
		Recovery: recovery.NewManager(recovery.Params{
			Registry: cs.Registry,
			TxFee:    cs.Config.Ledger.TxFee,
			Audit:    cs.Audit,
			Metrics:  cs.Metrics,
		}),
		Schedule: cs.Config.Sweeper.Schedule,
	})
}

// InitializeJournalOnly opens just the operation journal, without wallet or gateways.
// Useful for read-only operations like listing history.
func InitializeJournalOnly(ctx context.Context, cfg *models.Config) (*database.Service, models.TokenRegistry, error) {
	registry, err := LoadTokenRegistry(cfg.Orchestrator.TokensFile)
	if err != nil {
		return nil, models.TokenRegistry{}, err
	}
	journal, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, models.TokenRegistry{}, err
	}
	return journal, registry, nil
}

func (cs *Services) Close() {
	if cs.Journal != nil {
		cs.Journal.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
