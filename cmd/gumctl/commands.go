package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/urfave/cli"

	"github.com/fastprodman/gumball/internal/client"
)

const (
	defaultServer = "http://localhost:8080"

	envVarServer  = "GUMCTL_SERVER"
	envVarAccount = "GUMCTL_ACCOUNT"
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "gumctl"
	app.Usage = "command line client for the gumball machine API"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "server",
			Value:  defaultServer,
			Usage:  "The base URL of the machine API.",
			EnvVar: envVarServer,
		},
		cli.StringFlag{
			Name:   "account, a",
			Usage:  "The account to act as.",
			EnvVar: envVarAccount,
		},
		cli.StringFlag{
			Name: "idempotency-key",
			Usage: "Tag the mutating call with this operation id; a " +
				"repeated key is rejected by the server.",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: client.DefaultTimeout,
			Usage: "Per-request timeout.",
		},
	}

	app.Commands = []cli.Command{
		statusCommand,
		itemsCommand,
		creditsCommand,
		contributeCommand,
		insertCommand,
		crankCommand,
		revealCommand,
		playCommand,
		sessionCommand,
		balanceCommand,
		transferCommand,
		approveCommand,
		devCommand,
	}

	return app
}

func getClient(c *cli.Context) (*client.Client, error) {
	httpClient := &http.Client{Timeout: c.GlobalDuration("timeout")}
	return client.New(c.GlobalString("server"), httpClient)
}

// commandContext is cancelled on interrupt. It carries the idempotency key
// when one was given.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)

	if key := c.GlobalString("idempotency-key"); key != "" {
		ctx = client.WithIdempotencyKey(ctx, key)
	}

	return ctx, cancel
}

func requireAccount(c *cli.Context) (string, error) {
	acct := c.GlobalString("account")
	if acct == "" {
		return "", fmt.Errorf("--account (or %s) is required", envVarAccount)
	}

	return acct, nil
}

func printJSON(w io.Writer, resp any) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	_ = json.Indent(&out, b, "", "\t")
	out.WriteString("\n")

	_, err = out.WriteTo(w)

	return err
}

// accountAction wraps the common setup of commands that act as --account.
func accountAction(fn func(ctx context.Context, c *cli.Context, cl *client.Client, acct string) (any, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		acct, err := requireAccount(c)
		if err != nil {
			return err
		}

		cl, err := getClient(c)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(c)
		defer cancel()

		resp, err := fn(ctx, c, cl, acct)
		if err != nil {
			return err
		}

		return printJSON(c.App.Writer, resp)
	}
}

// argOrFlag returns the named flag, falling back to the positional
// argument at idx.
func argOrFlag(c *cli.Context, idx int, flag, what string) (string, error) {
	v := c.String(flag)
	if v == "" {
		v = c.Args().Get(idx)
	}

	if v == "" {
		return "", fmt.Errorf("%s is required", what)
	}

	return v, nil
}

var statusCommand = cli.Command{
	Name:  "status",
	Usage: "Show machine parameters, activation and reservoir size.",
	Action: func(c *cli.Context) error {
		cl, err := getClient(c)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(c)
		defer cancel()

		st, err := cl.Status(ctx)
		if err != nil {
			return err
		}

		return printJSON(c.App.Writer, st)
	},
}

var itemsCommand = cli.Command{
	Name:  "items",
	Usage: "List the reservoir contents by slot.",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "offset", Usage: "First slot to list."},
		cli.IntFlag{Name: "limit", Value: 50, Usage: "Maximum number of items."},
	},
	Action: func(c *cli.Context) error {
		cl, err := getClient(c)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(c)
		defer cancel()

		items, err := cl.Items(ctx, c.Int("offset"), c.Int("limit"))
		if err != nil {
			return err
		}

		return printJSON(c.App.Writer, items)
	},
}

var creditsCommand = cli.Command{
	Name:      "credits",
	Usage:     "Exchange reference tokens for GUM credits.",
	ArgsUsage: "amount",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "amount", Usage: "Deposit, e.g. 2.00."},
	},
	Action: accountAction(func(ctx context.Context, c *cli.Context, cl *client.Client, acct string) (any, error) {
		amount, err := argOrFlag(c, 0, "amount", "amount")
		if err != nil {
			return nil, err
		}

		return cl.AcquireCredits(ctx, acct, amount)
	}),
}

var contributeCommand = cli.Command{
	Name:      "contribute",
	Usage:     "Hand an item to the machine's reservoir.",
	ArgsUsage: "collection token_id",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "collection", Usage: "Item collection."},
		cli.StringFlag{Name: "token_id", Usage: "Item token id."},
	},
	Action: accountAction(func(ctx context.Context, c *cli.Context, cl *client.Client, acct string) (any, error) {
		collection, err := argOrFlag(c, 0, "collection", "collection")
		if err != nil {
			return nil, err
		}

		rawID, err := argOrFlag(c, 1, "token_id", "token_id")
		if err != nil {
			return nil, err
		}

		id, err := strconv.ParseUint(rawID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("token_id: %w", err)
		}

		item := client.Item{Collection: collection, TokenID: id}

		err = cl.Contribute(ctx, acct, item)
		if err != nil {
			return nil, err
		}

		return item, nil
	}),
}

var insertCommand = cli.Command{
	Name:  "insert",
	Usage: "Pay the entry price and start a session.",
	Action: accountAction(func(ctx context.Context, _ *cli.Context, cl *client.Client, acct string) (any, error) {
		return cl.Insert(ctx, acct)
	}),
}

var crankCommand = cli.Command{
	Name:  "crank",
	Usage: "Commit the session to the next block.",
	Action: accountAction(func(ctx context.Context, _ *cli.Context, cl *client.Client, acct string) (any, error) {
		commit, err := cl.Crank(ctx, acct)
		if err != nil {
			return nil, err
		}

		return map[string]any{"account": acct, "commitBlock": commit}, nil
	}),
}

var revealCommand = cli.Command{
	Name:  "reveal",
	Usage: "Draw the item for a cranked session.",
	Action: accountAction(func(ctx context.Context, _ *cli.Context, cl *client.Client, acct string) (any, error) {
		return cl.Reveal(ctx, acct)
	}),
}

var playCommand = cli.Command{
	Name: "play",
	Usage: "Insert, crank and reveal in one go, waiting for the " +
		"commit block to be buried.",
	Flags: []cli.Flag{
		cli.DurationFlag{
			Name:  "poll",
			Value: time.Second,
			Usage: "How often to retry the reveal while it is too early.",
		},
	},
	Action: accountAction(func(ctx context.Context, c *cli.Context, cl *client.Client, acct string) (any, error) {
		return cl.Play(ctx, acct, c.Duration("poll"))
	}),
}

var sessionCommand = cli.Command{
	Name:  "session",
	Usage: "Show the account's session phase and last draw.",
	Action: accountAction(func(ctx context.Context, _ *cli.Context, cl *client.Client, acct string) (any, error) {
		return cl.Session(ctx, acct)
	}),
}

var balanceCommand = cli.Command{
	Name:  "balance",
	Usage: "Show the account's GUM balance.",
	Action: accountAction(func(ctx context.Context, _ *cli.Context, cl *client.Client, acct string) (any, error) {
		return cl.Balance(ctx, acct)
	}),
}

var transferCommand = cli.Command{
	Name:      "transfer",
	Usage:     "Send GUM credits to another account.",
	ArgsUsage: "to amount",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "to", Usage: "Recipient account."},
		cli.StringFlag{Name: "amount", Usage: "Amount, e.g. 0.50."},
	},
	Action: accountAction(func(ctx context.Context, c *cli.Context, cl *client.Client, acct string) (any, error) {
		to, err := argOrFlag(c, 0, "to", "recipient")
		if err != nil {
			return nil, err
		}

		amount, err := argOrFlag(c, 1, "amount", "amount")
		if err != nil {
			return nil, err
		}

		return cl.Transfer(ctx, acct, to, amount)
	}),
}

var approveCommand = cli.Command{
	Name:      "approve",
	Usage:     "Allow a spender to move the account's GUM credits.",
	ArgsUsage: "spender amount",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "spender", Usage: "Spender account."},
		cli.StringFlag{Name: "amount", Usage: "Allowance, e.g. 1.00."},
	},
	Action: accountAction(func(ctx context.Context, c *cli.Context, cl *client.Client, acct string) (any, error) {
		spender, err := argOrFlag(c, 0, "spender", "spender")
		if err != nil {
			return nil, err
		}

		amount, err := argOrFlag(c, 1, "amount", "amount")
		if err != nil {
			return nil, err
		}

		return cl.Approve(ctx, acct, spender, amount)
	}),
}

var devCommand = cli.Command{
	Name:  "dev",
	Usage: "Fund and stock a local DEV deployment.",
	Subcommands: []cli.Command{
		{
			Name:      "fund",
			Usage:     "Mint reference tokens and approve the machine.",
			ArgsUsage: "amount",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "amount", Usage: "Amount, e.g. 5.00."},
			},
			Action: accountAction(func(ctx context.Context, c *cli.Context, cl *client.Client, acct string) (any, error) {
				amount, err := argOrFlag(c, 0, "amount", "amount")
				if err != nil {
					return nil, err
				}

				err = cl.DevFund(ctx, acct, amount)
				if err != nil {
					return nil, err
				}

				return map[string]string{"account": acct, "funded": amount}, nil
			}),
		},
		{
			Name:  "stock",
			Usage: "Mint items to the account and contribute them.",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "collection", Value: "gumballs", Usage: "Collection to mint into."},
				cli.IntFlag{Name: "count", Value: 1, Usage: "Number of items."},
			},
			Action: accountAction(func(ctx context.Context, c *cli.Context, cl *client.Client, acct string) (any, error) {
				items := make([]client.Item, 0, c.Int("count"))

				for range c.Int("count") {
					item, err := cl.DevMintItem(ctx, acct, c.String("collection"))
					if err != nil {
						return nil, err
					}

					err = cl.Contribute(ctx, acct, item)
					if err != nil {
						return nil, fmt.Errorf("contribute %s: %w", item, err)
					}

					items = append(items, item)
				}

				return items, nil
			}),
		},
	},
}
