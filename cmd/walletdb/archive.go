package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/urfave/cli/v2"
)

var archiveKinds = map[string]string{
	"messages":     "/v1/archive/signed-messages",
	"transactions": "/v1/archive/signed-transactions",
	"sites":        "/v1/archive/connected-sites",
}

var archive = cli.Command{
	Name:  "archive",
	Usage: "Browse and clear the history of signatures and dApp connections",
	Subcommands: []*cli.Command{
		{
			Name:      "list",
			Usage:     "list the archived records, newest first",
			ArgsUsage: "<messages|transactions|sites>",
			Action:    listArchiveAction,
		},
		{
			Name:      "clear",
			Usage:     "remove every archived record of the given kind",
			ArgsUsage: "<messages|transactions|sites>",
			Action:    clearArchiveAction,
		},
		{
			Name:      "home-screens",
			Usage:     "list the custom home screens of a hardware device",
			ArgsUsage: "<device_id>",
			Action:    listHomeScreensAction,
		},
	},
}

func archivePath(ctx *cli.Context, command string) (string, error) {
	if ctx.NArg() < 1 {
		return "", &invalidUsageError{ctx, command}
	}
	path, ok := archiveKinds[ctx.Args().Get(0)]
	if !ok {
		return "", fmt.Errorf("unknown archive kind %q", ctx.Args().Get(0))
	}
	return path, nil
}

func listArchiveAction(ctx *cli.Context) error {
	path, err := archivePath(ctx, "list")
	if err != nil {
		return err
	}
	resp, err := callDaemon(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func clearArchiveAction(ctx *cli.Context) error {
	path, err := archivePath(ctx, "clear")
	if err != nil {
		return err
	}
	resp, err := callDaemon(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func listHomeScreensAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return &invalidUsageError{ctx, "home-screens"}
	}
	path := "/v1/archive/home-screens/" + url.PathEscape(ctx.Args().Get(0))
	resp, err := callDaemon(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}
