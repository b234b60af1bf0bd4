package main

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/bond"
	"github.com/beblucech/entry/config"
	"github.com/beblucech/entry/room"
	"github.com/beblucech/entry/store"
)

// env is what every command needs: configuration and the persisted room.
type env struct {
	cfg   *config.Config
	store entry.Store
	room  *room.Room
	bonds bond.Manager
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(config.Path(c.GlobalString("config")))
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if l := c.GlobalString("log-level"); l != "" {
		level = l
	}
	if err := entry.SetLogLevel(level); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openEnv(c *cli.Context) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	id, err := store.LoadIdentity(cfg.Store.Identity)
	if err != nil {
		return nil, errors.Wrap(err, "run 'entryd keygen' first")
	}

	st := store.New(cfg.Store.Path, id)
	return &env{
		cfg:   cfg,
		store: st,
		room:  room.New(st),
		bonds: bond.NewManager(st),
	}, nil
}
