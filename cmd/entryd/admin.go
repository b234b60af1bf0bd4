package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/beblucech/entry"
	"github.com/beblucech/entry/room"
	"github.com/beblucech/entry/store"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid member id %q", s)
	}
	return id, nil
}

func cmdMembersAdd(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.ShowSubcommandHelp(c)
	}
	id, err := parseID(c.Args().Get(0))
	if err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}

	m := entry.Member{ID: id, Name: c.Args().Get(1)}
	if s := c.Args().Get(2); s != "" {
		if m.CompanyID, err = strconv.ParseInt(s, 10, 64); err != nil {
			return errors.Errorf("invalid company id %q", s)
		}
	}

	if err := e.room.Roster.Add(m); err != nil {
		if errors.Is(err, room.ErrDuplicateMember) {
			return errors.Errorf("member %s already granted", m.Name)
		}
		return err
	}
	okColor.Printf("member %s add successful\n", m.Name)
	return nil
}

func cmdMembersRevoke(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.ShowSubcommandHelp(c)
	}
	id, err := parseID(c.Args().First())
	if err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	if err := e.room.Roster.Revoke(id); err != nil {
		return err
	}
	okColor.Printf("member %d revoked\n", id)
	return nil
}

func cmdMembersList(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	members, err := e.room.Roster.List()
	if err != nil {
		return err
	}

	if len(members) == 0 {
		fmt.Println("No members found")
		return nil
	}
	for _, m := range members {
		fmt.Printf("%-10d %s\n", m.ID, m.Name)
	}
	return nil
}

func cmdLogs(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	records, err := e.room.Log.Recent(c.Int("limit"))
	if err != nil {
		return err
	}
	for _, rec := range records {
		printRecord(os.Stdout, rec)
	}
	return nil
}

func cmdSetCompany(c *cli.Context) error {
	id := strings.TrimSpace(c.Args().First())
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return errors.Errorf("invalid company id %q", id)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	return e.room.Settings.SetCompanyID(id)
}

func cmdSetRoom(c *cli.Context) error {
	name := strings.Join(c.Args(), " ")

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	return e.room.Settings.SetRoomName(name)
}

func cmdSetGuest(c *cli.Context) error {
	allow, err := strconv.ParseBool(c.Args().First())
	if err != nil {
		return errors.Errorf("expected true or false, got %q", c.Args().First())
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	return e.room.Settings.SetAllowGuest(allow)
}

func cmdStatus(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}

	company, ok, err := e.room.Settings.CompanyID()
	if err != nil {
		return err
	}
	if !ok {
		company = warnColor.Sprint("not set")
	}
	name, err := e.room.Settings.RoomName()
	if err != nil {
		return err
	}
	guest, err := e.room.Settings.AllowGuest()
	if err != nil {
		return err
	}
	members, err := e.room.Roster.List()
	if err != nil {
		return err
	}

	peripheral := warnColor.Sprint("not paired")
	if id, ok, err := e.bonds.Find(); err != nil {
		return err
	} else if ok {
		peripheral = id.String()
	}

	fmt.Printf("room:     %s\n", name)
	fmt.Printf("company:  %s\n", company)
	fmt.Printf("guests:   %v\n", guest)
	fmt.Printf("members:  %d\n", len(members))
	fmt.Printf("entry:    %s\n", peripheral)

	if recent, err := e.room.Log.Recent(1); err == nil && len(recent) == 1 {
		fmt.Print("last:     ")
		printRecord(os.Stdout, recent[0])
	}
	return nil
}

func cmdKeygen(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	id, err := store.GenerateIdentity(cfg.Store.Identity)
	if err != nil {
		return err
	}
	okColor.Printf("wrote %s\n", cfg.Store.Identity)
	fmt.Printf("public key: %s\n", id.Recipient())
	return nil
}
