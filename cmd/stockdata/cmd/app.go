package cmd

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rustyeddy/stockdata/alphavantage"
	"github.com/rustyeddy/stockdata/config"
	"github.com/rustyeddy/stockdata/journal"
	"github.com/rustyeddy/stockdata/manager"
	"github.com/rustyeddy/stockdata/provider"
	"github.com/rustyeddy/stockdata/store"
	"github.com/rustyeddy/stockdata/throttle"
	"go.uber.org/zap"
)

// app holds everything a data command needs.
type app struct {
	store   store.Store
	journal journal.Journal
	manager *manager.Manager
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	st, err := openStore(cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	j, err := openJournal(cfg.Journal)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	f, err := newFetcher(cfg.Provider, cfg.Throttle, logger)
	if err != nil {
		_ = st.Close()
		_ = j.Close()
		return nil, err
	}

	return &app{
		store:   st,
		journal: j,
		manager: manager.New(f, st, manager.WithJournal(j), manager.WithLogger(logger)),
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.journal.Close())
}

func newFetcher(pc config.ProviderConfig, tc config.ThrottleConfig, logger *zap.Logger) (*provider.Fetcher, error) {
	th, err := throttle.New(tc.Limit, tc.Window)
	if err != nil {
		return nil, err
	}
	kinds := provider.AllIndicators()
	if len(pc.Indicators) > 0 {
		if kinds, err = provider.ParseIndicators(pc.Indicators); err != nil {
			return nil, err
		}
	}

	client := alphavantage.NewClient(pc.APIKey,
		alphavantage.WithBaseURL(pc.BaseURL),
		alphavantage.WithTimeout(pc.Timeout),
		alphavantage.WithLogger(logger))

	return provider.NewFetcher(client, th,
		provider.WithLogger(logger),
		provider.WithOutputSize(pc.OutputSize),
		provider.WithTimePeriod(pc.TimePeriod),
		provider.WithIndicators(kinds),
		provider.WithAlignIndicators(pc.AlignIndicators),
		provider.WithRetries(uint64(pc.MaxRetries), 0)), nil
}

func openStore(sc config.StoreConfig, logger *zap.Logger) (store.Store, error) {
	switch sc.Backend {
	case "file":
		return store.NewFileStore(sc.Dir, logger)
	case "sqlite":
		return store.NewSQLite(sc.DBPath, logger)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		return store.NewRedis(client, sc.Redis.Prefix, sc.Redis.TTL, logger), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "none", "":
		return journal.Nop{}, nil
	case "csv":
		return journal.NewCSV(jc.File)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", jc.Type)
	}
}
