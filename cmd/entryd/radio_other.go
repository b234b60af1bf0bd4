//go:build !linux

package main

import (
	"github.com/pkg/errors"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/config"
)

func newRadio(cfg *config.Config) (entry.Radio, func() error, error) {
	return nil, nil, errors.Wrap(entry.ErrBLEUnavailable, "no HCI support on this platform")
}
