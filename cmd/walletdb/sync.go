package main

import (
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"
)

var syncCmd = cli.Command{
	Name:  "sync",
	Usage: "Run and inspect the cloud sync",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "flush", Usage: "replace the server data with the local one"},
	},
	Action: syncAction,
	Subcommands: []*cli.Command{
		{
			Name:  "password",
			Usage: "set the sync password, protected by the local password",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "sync_password", Usage: "the sync password", Required: true},
				&passwordFlag,
			},
			Action: setSyncPasswordAction,
		},
		{
			Name:   "items",
			Usage:  "list the local sync items",
			Action: listSyncItemsAction,
		},
		{
			Name:   "bookmarks",
			Usage:  "list the synced browser bookmarks",
			Action: listBookmarksAction,
		},
	},
}

func syncAction(ctx *cli.Context) error {
	resp, err := callDaemon(http.MethodPost, "/v1/sync", map[string]bool{
		"isFlush": ctx.Bool("flush"),
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func setSyncPasswordAction(ctx *cli.Context) error {
	if _, err := callDaemon(http.MethodPost, "/v1/sync/password", map[string]string{
		"syncPassword": ctx.String("sync_password"),
		"password":     ctx.String("password"),
	}); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Sync password has been set")
	return nil
}

func listSyncItemsAction(ctx *cli.Context) error {
	resp, err := callDaemon(http.MethodGet, "/v1/sync/items", nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func listBookmarksAction(ctx *cli.Context) error {
	resp, err := callDaemon(http.MethodGet, "/v1/sync/bookmarks", nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}
