package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ajohq/ajolink/service/cache"
	"github.com/ajohq/ajolink/service/config"
	"github.com/ajohq/ajolink/service/contract"
	"github.com/ajohq/ajolink/service/mirror"
	"github.com/ajohq/ajolink/service/session"
	"github.com/ajohq/ajolink/service/signer"
	"github.com/ajohq/ajolink/service/wallet"
)

// env is the wired application environment shared by all commands.
type env struct {
	cfg       *config.Config
	logger    *slog.Logger
	kv        *session.KV
	store     *session.Store
	connector *wallet.Connector
	gateway   *contract.Gateway
	caller    *ethclient.Client
	mirror    *mirror.Client

	groups   *cache.GroupList
	details  *cache.GroupDetails
	member   *cache.Member
	balances *cache.Balances
}

// setup loads configuration and wires the full connectivity stack. The
// pairing agent is the in-process loopback agent; it pairs pairAccount when a
// new pairing is opened and resumes whatever session is on disk otherwise.
func setup(ctx context.Context, pairAccount string) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg.LogLevel)

	kv, err := session.OpenKV(cfg.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	store := session.NewStore(kv)

	caller, err := ethclient.Dial(cfg.JSONRPCURL)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to connect to JSON-RPC relay: %w", err)
	}

	agent := wallet.NewMockAgent(pairAccount, cfg.Network)
	connector := wallet.NewConnector(agent, store, cfg.Network, logger, nil, signer.Options{
		Timeout:      cfg.TxTimeout,
		PollInterval: cfg.ReceiptPollInterval,
	})
	connector.AttachProvider(caller)

	gateway, err := contract.NewGateway(caller, cfg.FactoryAddress, connector, logger, nil)
	if err != nil {
		connector.Close()
		caller.Close()
		kv.Close()
		return nil, err
	}

	e := &env{
		cfg:       cfg,
		logger:    logger,
		kv:        kv,
		store:     store,
		connector: connector,
		gateway:   gateway,
		caller:    caller,
		mirror:    mirror.NewClient(cfg.MirrorNodeURL, nil, logger, nil),
		groups:    cache.NewGroupList(),
		details:   cache.NewGroupDetails(),
		member:    cache.NewMember(logger).WithPersistence(ctx, kv),
		balances:  cache.NewBalances(),
	}
	e.gateway.AttachSinks(e.groups, e.details, e.member)
	return e, nil
}

func (e *env) close() {
	e.connector.Close()
	e.caller.Close()
	e.kv.Close()
}

// ensurePaired initializes the connector and requires an active pairing,
// either freshly resumed or already established.
func (e *env) ensurePaired(ctx context.Context) error {
	if err := e.connector.Initialize(ctx); err != nil {
		return err
	}
	if e.connector.State() != wallet.StatePaired {
		return fmt.Errorf("no paired wallet; run `ajolink wallet connect` first")
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
