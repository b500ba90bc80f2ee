package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stake-plus/safetyjim/src/commands"
	"github.com/stake-plus/safetyjim/src/config"
	"github.com/stake-plus/safetyjim/src/data"
	"github.com/stake-plus/safetyjim/src/discord"
	"github.com/stake-plus/safetyjim/src/logging"
	"github.com/stake-plus/safetyjim/src/metrics"
	"github.com/stake-plus/safetyjim/src/processors"
	"github.com/stake-plus/safetyjim/src/router"
	"github.com/stake-plus/safetyjim/src/status"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = config.DefaultVersion

func main() {
	root := &cobra.Command{
		Use:          "safetyjim",
		Short:        "Safety Jim Discord moderation bot",
		SilenceUsage: true,
		RunE:         run,
	}
	config.BindFlags(root)
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables and exit",
		RunE:  migrate,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Bot.Version == config.DefaultVersion {
		cfg.Bot.Version = version
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func migrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := data.ConnectMySQL(cfg.MySQL.DSN, logger)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := data.NewGuildStore(db, cfg.Bot.DefaultPrefix).Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database migrated")
	return nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := data.ConnectMySQL(cfg.MySQL.DSN, logger)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	store := data.NewGuildStore(db, cfg.Bot.DefaultPrefix)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	prefixes, err := store.Prefixes(ctx)
	if err != nil {
		return fmt.Errorf("load prefixes: %w", err)
	}

	var sink router.Metrics = metrics.Nop{}
	var redisSink *metrics.RedisSink
	if cfg.Redis.URL != "" {
		rdb, err := metrics.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		redisSink = metrics.NewRedisSink(rdb, logger.Named("metrics"))
		sink = redisSink
	}

	loadTimeout, err := cfg.GuildLoadTimeout()
	if err != nil {
		return err
	}

	manager := discord.NewManager(discord.ManagerConfig{IdentifyInterval: discord.DefaultIdentifyInterval}, logger.Named("discord"))
	var shards []*router.Shard
	for _, id := range cfg.ShardIDs() {
		gw, err := discord.NewGateway(discord.GatewayConfig{
			Token:            cfg.Discord.Token,
			ShardID:          id,
			ShardCount:       cfg.Discord.ShardCount,
			GuildLoadTimeout: loadTimeout,
		}, logger.Named("discord"))
		if err != nil {
			return err
		}

		set := router.NewCommands()
		if err := commands.Register(set, gw, store); err != nil {
			return err
		}
		shard := router.NewShard(router.ShardConfig{
			ID:            id,
			Count:         cfg.Discord.ShardCount,
			Version:       cfg.Bot.Version,
			DefaultPrefix: cfg.Bot.DefaultPrefix,
			QueueSize:     cfg.Bot.QueueSize,
			Reconciler: router.ReconcilerConfig{
				BotFarmThreshold: cfg.Bot.BotFarmThreshold,
				AllowList:        cfg.Bot.AllowList,
			},
		}, gw, store, sink, set, []router.Processor{processors.InviteLinks{}}, logger.Named("router"))
		shard.Preload(discord.PrefixesForShard(prefixes, id, cfg.Discord.ShardCount))

		gw.Bind(shard)
		if err := manager.Add(gw); err != nil {
			return err
		}
		shards = append(shards, shard)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, shard := range shards {
		g.Go(func() error {
			defer shard.Close()
			if err := shard.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if redisSink != nil {
		g.Go(func() error { return redisSink.Run(gctx) })
	}
	if cfg.Status.Addr != "" {
		statusShards := make([]status.Shard, 0, len(shards))
		for _, shard := range shards {
			statusShards = append(statusShards, shard)
		}
		opts := status.Options{
			Shards:     statusShards,
			ShardCount: cfg.Discord.ShardCount,
			Settings:   store,
			JWTSecret:  cfg.Status.JWTSecret,
			Log:        logger.Named("status"),
		}
		if redisSink != nil {
			opts.Counters = redisSink
		}
		handler := status.New(opts)
		g.Go(func() error { return status.Serve(gctx, cfg.Status.Addr, handler, logger.Named("status")) })
	}

	if err := manager.Start(gctx); err != nil {
		stop()
		_ = g.Wait()
		return err
	}
	logger.Info("safety jim started",
		zap.String("version", cfg.Bot.Version),
		zap.Ints("shards", cfg.ShardIDs()),
		zap.Int("shard_count", cfg.Discord.ShardCount))

	<-gctx.Done()
	manager.Stop()
	return g.Wait()
}
