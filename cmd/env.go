package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/ingest"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/link"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/match"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/store"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/suggest"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/verify"
)

// appEnv holds the store and services shared by the commands.
type appEnv struct {
	Store   store.Store
	Engine  *match.Engine
	Linker  *link.Linker
	Suggest *suggest.Service
	Ingest  *ingest.Service
	Options match.Options

	redis *redis.Client
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv validates the config for mode, opens and migrates the store and
// builds every service. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	policy := match.DefaultPolicy()
	if cfg.Match.PolicyFile != "" {
		policy, err = match.LoadPolicy(cfg.Match.PolicyFile)
		if err != nil {
			env.Close()
			return nil, err
		}
		zap.L().Info("loaded match policy", zap.String("file", cfg.Match.PolicyFile), zap.Int("fields", len(policy.Fields)))
	}

	var locker link.Locker
	switch cfg.Link.Locker {
	case "redis":
		client, err := link.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.redis = client
		locker = link.NewRedisLocker(client, time.Duration(cfg.Link.LockTTLSecs)*time.Second)
	default:
		locker = link.NewLocalLocker()
	}

	verifier, err := verify.New(cfg.Verify)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Options = match.OptionsFromConfig(cfg.Match)
	env.Engine = match.NewEngine(policy)
	env.Linker = link.NewLinker(st, policy, locker, link.OptionsFromConfig(cfg.Link))
	env.Suggest = suggest.NewService(st, env.Engine, env.Linker, env.Options, time.Duration(cfg.Match.TimeoutSecs)*time.Second)
	env.Ingest = ingest.NewService(st, verifier, cfg.Verify.RequirePlausible)

	return env, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
