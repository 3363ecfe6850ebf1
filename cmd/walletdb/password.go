package main

import (
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"
)

var passwordFlag = cli.StringFlag{
	Name:     "password",
	Usage:    "the password protecting the stored credentials",
	Required: true,
}

var password = cli.Command{
	Name:   "password",
	Usage:  "Show whether the password is set and the session unlocked",
	Action: passwordStatusAction,
	Subcommands: []*cli.Command{
		{
			Name:   "init",
			Usage:  "set the password for the first time",
			Flags:  []cli.Flag{&passwordFlag},
			Action: passwordInitAction,
		},
		{
			Name:   "unlock",
			Usage:  "unlock the session with the given password",
			Flags:  []cli.Flag{&passwordFlag},
			Action: passwordUnlockAction,
		},
		{
			Name:   "lock",
			Usage:  "lock the session",
			Action: passwordLockAction,
		},
		{
			Name:  "change",
			Usage: "re-encrypt every credential with a new password",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "old_password",
					Usage:    "the current password",
					Required: true,
				},
				&cli.StringFlag{
					Name:     "new_password",
					Usage:    "the new password",
					Required: true,
				},
			},
			Action: passwordChangeAction,
		},
	},
}

func passwordStatusAction(ctx *cli.Context) error {
	resp, err := callDaemon(http.MethodGet, "/v1/password", nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func passwordInitAction(ctx *cli.Context) error {
	if _, err := callDaemon(http.MethodPost, "/v1/password/init", map[string]string{
		"password": ctx.String("password"),
	}); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Password is set and session is unlocked")
	return nil
}

func passwordUnlockAction(ctx *cli.Context) error {
	if _, err := callDaemon(http.MethodPost, "/v1/password/unlock", map[string]string{
		"password": ctx.String("password"),
	}); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Session is unlocked")
	return nil
}

func passwordLockAction(ctx *cli.Context) error {
	if _, err := callDaemon(http.MethodPost, "/v1/password/lock", nil); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Session is locked")
	return nil
}

func passwordChangeAction(ctx *cli.Context) error {
	if _, err := callDaemon(http.MethodPost, "/v1/password/change", map[string]string{
		"oldPassword": ctx.String("old_password"),
		"newPassword": ctx.String("new_password"),
	}); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Password has been changed")
	return nil
}
