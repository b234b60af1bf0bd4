//go:build linux

package main

import (
	"github.com/beblucech/entry"
	"github.com/beblucech/entry/config"
	"github.com/beblucech/entry/linux"
)

func newRadio(cfg *config.Config) (entry.Radio, func() error, error) {
	r, err := linux.NewRadio(linux.OptDeviceID(cfg.BLE.Device))
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
