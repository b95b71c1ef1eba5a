package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Re20Cboy/EZchain/app/services/ezchain-node/handlers"
	"github.com/Re20Cboy/EZchain/business/driver"
	"github.com/Re20Cboy/EZchain/ezchain/node"
	"github.com/Re20Cboy/EZchain/ezchain/value"
	"github.com/Re20Cboy/EZchain/foundation/blobstore"
	"github.com/Re20Cboy/EZchain/foundation/events"
	"github.com/Re20Cboy/EZchain/foundation/eventbus"
	"github.com/Re20Cboy/EZchain/foundation/hashing"
	"github.com/Re20Cboy/EZchain/foundation/logger"
	"github.com/ardanlabs/conf/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an EZchain node set's event loop and ops HTTP surface",
	RunE: func(*cobra.Command, []string) error {
		log, err := logger.New("EZCHAIN-NODE")
		if err != nil {
			return err
		}
		defer log.Sync()

		if err := run(log); err != nil {
			log.Errorw("startup", "ERROR", err)
			return err
		}
		return nil
	},
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			OpsHost         string        `conf:"default:0.0.0.0:8080"`
		}
		Network struct {
			N      int           `conf:"default:4"`
			M      int           `conf:"default:4"`
			NV     int           `conf:"default:5"`
			K      float64       `conf:"default:1"`
			Round  time.Duration `conf:"default:2s"`
			T      time.Duration `conf:"default:30s"`
			UseCC  bool          `conf:"default:true"`
			Gamma1 time.Duration `conf:"default:10s"`
			Gamma2 time.Duration `conf:"default:10s"`
			Gamma3 time.Duration `conf:"default:10s"`
			Gamma4 time.Duration `conf:"default:10s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "EZchain value-centric blockchain node",
		},
	}

	const prefix = "EZCHAIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Node set construction

	evts := events.New()
	ev := func(v string, args ...any) {
		log.Infow(v, args...)
		evts.Send(fmt.Sprintf("%s %v", v, args))
	}

	bus := eventbus.NewMemory()
	store := blobstore.New()
	hasher := hashing.NewKeccak256Hasher()

	ids := make([]value.NodeID, cfg.Network.N)
	for i := range ids {
		ids[i] = value.NodeID(i + 1)
	}

	nodes := make(map[value.NodeID]*node.Node, len(ids))
	for _, id := range ids {
		peers := make([]value.NodeID, 0, len(ids)-1)
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}

		n, err := node.New(node.Config{
			SelfID:       id,
			Peers:        peers,
			CommitteeCap: cfg.Network.M,
			EpochLength:  cfg.Network.T,
			MiningMean:   cfg.Network.Round * time.Duration(cfg.Network.N),
			UseCC:        cfg.Network.UseCC,
			Gamma1:       cfg.Network.Gamma1,
			Gamma2:       cfg.Network.Gamma2,
			Gamma3:       cfg.Network.Gamma3,
			Gamma4:       cfg.Network.Gamma4,
			Bus:          bus,
			Store:        store,
			Hasher:       hasher,
			Log:          ev,
		})
		if err != nil {
			return fmt.Errorf("constructing node %d: %w", id, err)
		}
		nodes[id] = n
	}

	if err := seedGenesisHoldings(nodes, ids, cfg.Network.NV, hasher); err != nil {
		return fmt.Errorf("seeding genesis holdings: %w", err)
	}

	drv := driver.Run(nodes, bus, driver.Config{
		GenTxMean:   rateToMean(cfg.Network.K),
		HashMean:    cfg.Network.Round * time.Duration(cfg.Network.N),
		EpochLength: cfg.Network.T,
		UseCC:       cfg.Network.UseCC,
		Gamma1:      cfg.Network.Gamma1,
		Gamma2:      cfg.Network.Gamma2,
		Gamma3:      cfg.Network.Gamma3,
		Gamma4:      cfg.Network.Gamma4,
	}, ev)
	defer drv.Stop()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Ops Service

	log.Infow("startup", "status", "initializing v1 ops API support")

	opsMux := handlers.OpsMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Nodes:    nodes,
		Evts:     evts,
	})

	ops := http.Server{
		Addr:         cfg.Web.OpsHost,
		Handler:      opsMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "ops api router started", "host", ops.Addr)
		serverErrors <- ops.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		log.Infow("shutdown", "status", "shutdown ops API started")
		if err := ops.Shutdown(ctx); err != nil {
			ops.Close()
			return fmt.Errorf("could not stop ops service gracefully: %w", err)
		}
	}

	return nil
}

// rateToMean converts the §6 transaction-generation rate k (transactions
// per unit time) into the Poisson process's mean inter-arrival 1/k.
func rateToMean(k float64) time.Duration {
	if k <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / k)
}
