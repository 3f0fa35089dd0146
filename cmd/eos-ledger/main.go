// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

// Command eos-ledger talks to the EOS app on a Ledger device: it reads the
// app configuration, discovers keys and signs packed transactions.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	ledger "github.com/luxfi/ledger-eos-go"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		zap.S().Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "eos-ledger",
		Usage: "Ledger EOS app client",
		Flags: globalFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := newSettings().GetString(LogLevelKey)
			if cmd.IsSet(logLevelFlag) {
				level = cmd.String(logLevelFlag)
			}
			logger := newLogger(level)
			zap.ReplaceGlobals(logger)
			ledger.SetLogger(logger.Named("ledger-eos").Sugar())
			return ctx, nil
		},
		Commands: []*cli.Command{
			devicesCommand(),
			configCommand(),
			discoverCommand(),
			addressCommand(),
			signCommand(),
			signMessageCommand(),
		},
	}
}
