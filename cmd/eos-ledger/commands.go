// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// Licensed under the Apache License, Version 2.0

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	ledger "github.com/luxfi/ledger-eos-go"
	"github.com/luxfi/ledger-eos-go/chain"
)

const (
	indexFlag      = "index"
	chainCodeFlag  = "chain-code"
	chainIDFlag    = "chain-id"
	txFlag         = "tx"
	accountFlag    = "account"
	permissionFlag = "permission"
	publicKeyFlag  = "public-key"
	messageFlag    = "message"
)

var errMissingFlag = errors.New("missing required flag")

func indexFlagDef(usage string) cli.Flag {
	return &cli.IntFlag{
		Name:  indexFlag,
		Usage: usage,
	}
}

func devicesCommand() *cli.Command {
	return &cli.Command{
		Name:   "devices",
		Usage:  "List the connected Ledger devices",
		Action: runDevicesCommand,
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:   "config",
		Usage:  "Show the EOS app version and settings",
		Action: runConfigCommand,
	}
}

func discoverCommand() *cli.Command {
	return &cli.Command{
		Name:      "discover",
		Usage:     "List the keys of the given address indices (default 0-3)",
		ArgsUsage: "[index...]",
		Action:    runDiscoverCommand,
	}
}

func addressCommand() *cli.Command {
	return &cli.Command{
		Name:  "address",
		Usage: "Show the public key and address at an index",
		Flags: []cli.Flag{
			indexFlagDef("Address index appended to the base path"),
			&cli.BoolFlag{
				Name:  chainCodeFlag,
				Usage: "Also return the chain code",
			},
		},
		Action: runAddressCommand,
	}
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Sign a packed transaction",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  chainIDFlag,
				Usage: "Chain id, hex encoded",
			},
			&cli.StringFlag{
				Name:  txFlag,
				Usage: "Serialized transaction, hex encoded",
			},
			&cli.StringFlag{
				Name:  accountFlag,
				Usage: "Account the key signs for",
			},
			&cli.StringFlag{
				Name:  permissionFlag,
				Usage: "Permission of the account",
				Value: "active",
			},
			&cli.StringFlag{
				Name:  publicKeyFlag,
				Usage: "Expected public key; discovered from the device when empty",
			},
			indexFlagDef("Address index of the signing key"),
		},
		Action: runSignCommand,
	}
}

func signMessageCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign-message",
		Usage: "Sign an arbitrary message",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  messageFlag,
				Usage: "Message to sign",
			},
			indexFlagDef("Address index of the signing key"),
		},
		Action: runSignMessageCommand,
	}
}

// connect builds a provider from settings and opens the device.
func connect(ctx context.Context, cmd *cli.Command) (*ledger.WalletProvider, *ledger.AppConfiguration, error) {
	vip, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, err
	}
	config, err := configFromSettings(vip)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid settings: %w", err)
	}

	provider, err := ledger.NewWalletProvider(config, chain.EosCodec{})
	if err != nil {
		return nil, nil, err
	}
	appConfig, err := provider.Connect(ctx)
	if err != nil {
		_ = provider.Close()
		return nil, nil, fmt.Errorf("failed to connect: %w", err)
	}
	zap.S().Debugf("EOS app %s over %s", appConfig.Version, config.Transport)
	return provider, appConfig, nil
}

func parseIndex(cmd *cli.Command) (uint32, error) {
	index := cmd.Int(indexFlag)
	if index < 0 || int64(index) > int64(^uint32(0)>>1) {
		return 0, fmt.Errorf("index out of range: %d", index)
	}
	return uint32(index), nil
}

func parseIndices(args []string) ([]uint32, error) {
	indices := make([]uint32, 0, len(args))
	for _, arg := range args {
		index, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q: %w", arg, err)
		}
		indices = append(indices, uint32(index))
	}
	return indices, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// deviceList is the output of the devices command.
type deviceList struct {
	Count int      `json:"count"`
	Paths []string `json:"paths"`
}

func listDevices(admin ledger.LedgerAdmin) (*deviceList, error) {
	paths, err := admin.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return &deviceList{Count: admin.CountDevices(), Paths: paths}, nil
}

func runDevicesCommand(ctx context.Context, cmd *cli.Command) error {
	devices, err := listDevices(ledger.NewLedgerAdmin())
	if err != nil {
		return err
	}
	return printJSON(cmd.Root().Writer, devices)
}

func runConfigCommand(ctx context.Context, cmd *cli.Command) error {
	provider, appConfig, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	return printJSON(cmd.Root().Writer, appConfig)
}

func runDiscoverCommand(ctx context.Context, cmd *cli.Command) error {
	indices, err := parseIndices(cmd.Args().Slice())
	if err != nil {
		return err
	}

	provider, _, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	keys, err := provider.Discover(ctx, indices...)
	if err != nil {
		return fmt.Errorf("failed to discover keys: %w", err)
	}
	return printJSON(cmd.Root().Writer, keys)
}

func runAddressCommand(ctx context.Context, cmd *cli.Command) error {
	index, err := parseIndex(cmd)
	if err != nil {
		return err
	}

	provider, _, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	result, err := provider.Address(ctx, index, cmd.Bool(chainCodeFlag))
	if err != nil {
		return fmt.Errorf("failed to get address: %w", err)
	}
	return printJSON(cmd.Root().Writer, result)
}

func runSignCommand(ctx context.Context, cmd *cli.Command) error {
	chainID := cmd.String(chainIDFlag)
	rawTx := strings.TrimPrefix(cmd.String(txFlag), "0x")
	account := cmd.String(accountFlag)
	if chainID == "" || rawTx == "" || account == "" {
		return fmt.Errorf("%w: --%s, --%s and --%s are required", errMissingFlag, chainIDFlag, txFlag, accountFlag)
	}
	serialized, err := hex.DecodeString(rawTx)
	if err != nil {
		return fmt.Errorf("invalid transaction hex: %w", err)
	}
	index, err := parseIndex(cmd)
	if err != nil {
		return err
	}

	provider, _, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	publicKey := cmd.String(publicKeyFlag)
	if publicKey == "" {
		if _, err := provider.Discover(ctx, index); err != nil {
			return fmt.Errorf("failed to discover key %d: %w", index, err)
		}
		publicKey, _ = provider.Session().Key(index)
	}

	if _, err := provider.Login(ledger.LoginArgs{
		AccountName: account,
		Permission:  cmd.String(permissionFlag),
		PublicKey:   publicKey,
		Index:       &index,
	}); err != nil {
		return err
	}

	signed, err := provider.SignatureProvider().Sign(ctx, ledger.SignatureProviderArgs{
		ChainID:               chainID,
		RequiredKeys:          []string{publicKey},
		SerializedTransaction: serialized,
	})
	if err != nil {
		if ledger.IsDenied(err) {
			return errors.New("transaction rejected on the device")
		}
		return fmt.Errorf("failed to sign: %w", err)
	}
	return printJSON(cmd.Root().Writer, signed)
}

func runSignMessageCommand(ctx context.Context, cmd *cli.Command) error {
	message := cmd.String(messageFlag)
	if message == "" {
		return fmt.Errorf("%w: --%s", errMissingFlag, messageFlag)
	}
	index, err := parseIndex(cmd)
	if err != nil {
		return err
	}

	provider, _, err := connect(ctx, cmd)
	if err != nil {
		return err
	}
	defer provider.Close()

	reply, err := provider.SignPersonalMessage(ctx, index, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to sign message: %w", err)
	}
	return printJSON(cmd.Root().Writer, map[string]string{"signature": hex.EncodeToString(reply)})
}
