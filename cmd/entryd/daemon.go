package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/central"
	"github.com/beblucech/entry/command"
	"github.com/beblucech/entry/handshake"
	"github.com/beblucech/entry/pipeline"
	"github.com/beblucech/entry/validation"
)

// link wires the connection manager and the command channel to the radio.
type link struct {
	manager *central.Manager
	channel *command.Channel
	close   func() error
}

func openLink(e *env) (*link, error) {
	key, iv, err := e.cfg.Handshake.Decode()
	if err != nil {
		return nil, err
	}
	auth, err := handshake.New(handshake.Config{
		Key:             key,
		IV:              iv,
		Mode:            handshake.Mode(e.cfg.Handshake.Mode),
		ResponseLength:  e.cfg.Handshake.ResponseLength,
		DerivePerDevice: e.cfg.Handshake.DerivePerDevice,
	}, nil)
	if err != nil {
		return nil, err
	}

	radio, closeRadio, err := newRadio(e.cfg)
	if err != nil {
		return nil, err
	}

	m := central.New(radio, e.bonds, auth,
		central.OptSettle(e.cfg.BLE.Settle),
		central.OptReconnectInterval(e.cfg.BLE.ReconnectInterval),
		central.OptScanWindow(e.cfg.BLE.ScanWindow),
	)
	ch := command.NewChannel(m, command.OptPulse(e.cfg.Unlock.Pulse))

	return &link{
		manager: m,
		channel: ch,
		close: func() error {
			ch.Wait()
			m.Close()
			return closeRadio()
		},
	}, nil
}

func newPipeline(e *env, ls pipeline.LinkStatus, ns pipeline.NetworkStatus, u pipeline.Unlocker, mode pipeline.Mode) *pipeline.Pipeline {
	client := validation.NewClient(e.cfg.API.Endpoint, validation.OptTimeout(e.cfg.API.Timeout))
	return pipeline.New(e.room, ls, ns, client, u,
		pipeline.OptTokenPrefix(e.cfg.Pipeline.TokenPrefix),
		pipeline.OptDisplayDelay(e.cfg.Pipeline.DisplayDelay),
		pipeline.OptMode(mode),
	)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func cmdRun(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	monitor, err := validation.NewMonitor(e.cfg.API.Endpoint, validation.OptProbeInterval(e.cfg.API.ProbeInterval))
	if err != nil {
		return err
	}

	l, err := openLink(e)
	if err != nil {
		return err
	}
	defer l.close()

	p := newPipeline(e, l.manager, monitor, l.channel, pipeline.ModeEntry)

	ctx, cancel := signalContext()
	defer cancel()

	sub := l.manager.Observe(func(s central.State) { printLinkState(os.Stdout, s) })
	defer sub.Release()

	go monitor.Run(ctx)
	go l.manager.Run(ctx)

	listen := e.cfg.HTTP.Listen
	if c.String("listen") != "" {
		listen = c.String("listen")
	}
	if listen != "" {
		srv := &http.Server{Addr: listen, Handler: newRouter(&statusSource{
			link:     l.manager,
			pipeline: p,
			network:  monitor,
			room:     e.room,
		})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				entry.GetLogger().Errorf("status endpoint: %v", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			srv.Shutdown(sctx)
		}()
		entry.GetLogger().Infof("status endpoint on %s", listen)
	}

	// A bonded actuator is picked up by the reconnect loop; otherwise pair.
	if _, ok, err := e.bonds.Find(); err == nil && !ok {
		if err := l.manager.StartScan(ctx); err != nil {
			return err
		}
	}

	return readTokens(ctx, os.Stdin, p, pipeline.ModeEntry)
}

func cmdEnroll(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	if e.cfg.API.Endpoint == "" {
		return errors.New("api.endpoint is required")
	}

	monitor, err := validation.NewMonitor(e.cfg.API.Endpoint, validation.OptProbeInterval(e.cfg.API.ProbeInterval))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	go monitor.Run(ctx)

	p := newPipeline(e, noLink{}, monitor, noLink{}, pipeline.ModeEnroll)
	return readTokens(ctx, os.Stdin, p, pipeline.ModeEnroll)
}

// noLink stands in for the actuator when enrolling.
type noLink struct{}

func (noLink) Connected() bool { return false }

func (noLink) Unlock(context.Context) error { return entry.ErrNotConnected }

// readTokens submits every line of r as a decoded token until r is
// exhausted or ctx is done.
func readTokens(ctx context.Context, r io.Reader, p *pipeline.Pipeline, mode pipeline.Mode) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case token, ok := <-lines:
			if !ok {
				return nil
			}
			if token == "" {
				continue
			}
			out, accepted := p.Submit(ctx, token)
			if !accepted {
				continue
			}
			printOutcome(os.Stdout, out, mode)
		}
	}
}

func cmdPair(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	l, err := openLink(e)
	if err != nil {
		return err
	}
	defer l.close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := l.manager.Disconnect(ctx); err != nil {
		return err
	}

	done := make(chan central.State, 1)
	sub := l.manager.Observe(func(s central.State) {
		printLinkState(os.Stdout, s)
		switch s {
		case central.Ready, central.Idle, central.Disconnected:
			select {
			case done <- s:
			default:
			}
		}
	})
	defer sub.Release()

	if err := l.manager.StartScan(ctx); err != nil {
		return err
	}

	select {
	case s := <-done:
		if s != central.Ready {
			return errors.New("no entry paired")
		}
		okColor.Printf("paired with %s\n", l.manager.Status().ID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const disconnectHelp = `Clears the stored bond. A running 'entryd run' keeps its current link
   until the actuator drops it and then stops reconnecting. Restart the
   daemon to drop the link immediately.`

func cmdDisconnect(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	if err := e.bonds.Clear(); err != nil {
		return err
	}
	// a running daemon only stops reconnecting; its live link stays up
	okColor.Println("entry disconnected")
	warnColor.Println("restart a running daemon to drop its current link")
	return nil
}

func cmdUnlock(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	id, ok, err := e.bonds.Find()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no entry paired, run 'entryd pair'")
	}

	l, err := openLink(e)
	if err != nil {
		return err
	}
	defer l.close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := l.manager.Connect(ctx, id); err != nil {
		return err
	}
	if err := l.channel.Unlock(ctx); err != nil {
		return err
	}
	okColor.Printf("unlocked for %v\n", e.cfg.Unlock.Pulse)
	return nil
}
