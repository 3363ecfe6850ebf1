package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/urfave/cli/v2"
)

var wallet = cli.Command{
	Name:  "wallet",
	Usage: "Manage wallets, indexed accounts and accounts",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "list the wallets",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "nested", Usage: "nest hidden wallets under their parent"},
				&cli.BoolFlag{Name: "accounts", Usage: "include the accounts of every wallet"},
				&cli.BoolFlag{Name: "backed_up_only", Usage: "skip wallets not backed up"},
			},
			Action: listWalletsAction,
		},
		{
			Name:      "get",
			Usage:     "get a wallet by id",
			ArgsUsage: "<wallet_id>",
			Action:    getWalletAction,
		},
		{
			Name:  "create",
			Usage: "create an HD wallet from an hex encoded seed",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Usage: "the wallet name"},
				&cli.StringFlag{Name: "entropy", Usage: "hex encoded mnemonic entropy", Required: true},
				&cli.StringFlag{Name: "seed", Usage: "hex encoded bip39 seed", Required: true},
				&cli.StringFlag{Name: "hash", Usage: "hash identifying the seed", Required: true},
				&cli.StringFlag{Name: "xfp", Usage: "master fingerprint of the seed"},
				&cli.StringFlag{Name: "first_evm_address", Usage: "first evm address of the seed"},
				&cli.BoolFlag{Name: "backuped", Usage: "whether the mnemonic is backed up"},
			},
			Action: createWalletAction,
		},
		{
			Name:      "rename",
			Usage:     "set the name of a wallet",
			ArgsUsage: "<wallet_id> <name>",
			Action:    renameWalletAction,
		},
		{
			Name:      "order",
			Usage:     "set the sorting position of a wallet",
			ArgsUsage: "<wallet_id> <order>",
			Action:    reorderWalletAction,
		},
		{
			Name:      "remove",
			Usage:     "remove a wallet and its accounts",
			ArgsUsage: "<wallet_id>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "to_mocked", Usage: "keep a mocked copy of the wallet"},
			},
			Action: removeWalletAction,
		},
		{
			Name:      "accounts",
			Usage:     "list the indexed accounts of a wallet",
			ArgsUsage: "<wallet_id>",
			Action:    listIndexedAccountsAction,
		},
		{
			Name:      "next-account",
			Usage:     "add the next free indexed account to a wallet",
			ArgsUsage: "<wallet_id>",
			Action:    addNextIndexedAccountAction,
		},
		{
			Name:   "devices",
			Usage:  "list the paired hardware devices",
			Action: listDevicesAction,
		},
		{
			Name:      "address",
			Usage:     "show the accounts owning an address",
			ArgsUsage: "<network_id> <address>",
			Action:    lookupAddressAction,
		},
	},
}

func listWalletsAction(ctx *cli.Context) error {
	query := url.Values{}
	query.Set("nested", strconv.FormatBool(ctx.Bool("nested")))
	query.Set("accounts", strconv.FormatBool(ctx.Bool("accounts")))
	query.Set("backedUpOnly", strconv.FormatBool(ctx.Bool("backed_up_only")))

	resp, err := callDaemon(http.MethodGet, "/v1/wallets?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func getWalletAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return &invalidUsageError{ctx, "get"}
	}
	resp, err := callDaemon(http.MethodGet, "/v1/wallets/"+url.PathEscape(ctx.Args().Get(0)), nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func createWalletAction(ctx *cli.Context) error {
	resp, err := callDaemon(http.MethodPost, "/v1/wallets/hd", map[string]interface{}{
		"name":     ctx.String("name"),
		"backuped": ctx.Bool("backuped"),
		"seed": map[string]string{
			"entropy": ctx.String("entropy"),
			"seed":    ctx.String("seed"),
		},
		"hash":            ctx.String("hash"),
		"xfp":             ctx.String("xfp"),
		"firstEvmAddress": ctx.String("first_evm_address"),
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func renameWalletAction(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return &invalidUsageError{ctx, "rename"}
	}
	path := fmt.Sprintf("/v1/wallets/%s/name", url.PathEscape(ctx.Args().Get(0)))
	resp, err := callDaemon(http.MethodPut, path, map[string]string{
		"name": ctx.Args().Get(1),
	})
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func reorderWalletAction(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return &invalidUsageError{ctx, "order"}
	}
	order, err := strconv.ParseFloat(ctx.Args().Get(1), 64)
	if err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}
	path := fmt.Sprintf("/v1/wallets/%s/order", url.PathEscape(ctx.Args().Get(0)))
	if _, err := callDaemon(http.MethodPut, path, map[string]float64{"order": order}); err != nil {
		return err
	}

	fmt.Println("Wallet order has been updated")
	return nil
}

func removeWalletAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return &invalidUsageError{ctx, "remove"}
	}
	path := fmt.Sprintf(
		"/v1/wallets/%s?toMocked=%t",
		url.PathEscape(ctx.Args().Get(0)), ctx.Bool("to_mocked"),
	)
	if _, err := callDaemon(http.MethodDelete, path, nil); err != nil {
		return err
	}

	fmt.Println("Wallet has been removed")
	return nil
}

func listIndexedAccountsAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return &invalidUsageError{ctx, "accounts"}
	}
	path := fmt.Sprintf("/v1/wallets/%s/indexed-accounts", url.PathEscape(ctx.Args().Get(0)))
	resp, err := callDaemon(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func addNextIndexedAccountAction(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return &invalidUsageError{ctx, "next-account"}
	}
	path := fmt.Sprintf("/v1/wallets/%s/indexed-accounts/next", url.PathEscape(ctx.Args().Get(0)))
	resp, err := callDaemon(http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func listDevicesAction(ctx *cli.Context) error {
	resp, err := callDaemon(http.MethodGet, "/v1/devices", nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func lookupAddressAction(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return &invalidUsageError{ctx, "address"}
	}
	path := fmt.Sprintf(
		"/v1/addresses/%s/%s",
		url.PathEscape(ctx.Args().Get(0)), url.PathEscape(ctx.Args().Get(1)),
	)
	resp, err := callDaemon(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}
