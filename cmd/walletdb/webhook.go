package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/urfave/cli/v2"
)

var webhook = cli.Command{
	Name:  "webhook",
	Usage: "Manage the endpoints notified of data layer events",
	Subcommands: []*cli.Command{
		{
			Name:  "add",
			Usage: "register an endpoint for an event",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "event", Usage: "the event topic", Required: true},
				&cli.StringFlag{Name: "endpoint", Usage: "the url notified", Required: true},
				&cli.StringFlag{Name: "secret", Usage: "the secret signing the notifications"},
			},
			Action: addWebhookAction,
		},
		{
			Name:  "list",
			Usage: "list the registered endpoints",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "event", Usage: "filter by event topic"},
			},
			Action: listWebhooksAction,
		},
		{
			Name:      "remove",
			Usage:     "unregister an endpoint",
			ArgsUsage: "<webhook_id>",
			Action:    removeWebhookAction,
		},
	},
}

func addWebhookAction(ctx *cli.Context) error {
	resp, err := callDaemon(http.MethodPost, "/v1/webhooks", map[string]string{
		"event":    ctx.String("event"),
		"endpoint": ctx.String("endpoint"),
		"secret":   ctx.String("secret"),
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func listWebhooksAction(ctx *cli.Context) error {
	path := "/v1/webhooks"
	if event := ctx.String("event"); event != "" {
		path += "?event=" + url.QueryEscape(event)
	}
	resp, err := callDaemon(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func removeWebhookAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return &invalidUsageError{ctx, "remove"}
	}
	path := "/v1/webhooks/" + url.PathEscape(ctx.Args().Get(0))
	if _, err := callDaemon(http.MethodDelete, path, nil); err != nil {
		return err
	}

	fmt.Println("Webhook has been removed")
	return nil
}
