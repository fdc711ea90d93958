// Copyright 2025 ModelKit Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/modelkit-ai/modelkit/config"
	_ "github.com/modelkit-ai/modelkit/imageprocessor"
	"github.com/modelkit-ai/modelkit/tokenizer/bpe"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	app := &cli.App{
		Name:  "modelkit",
		Usage: "Manage toolkit configs and tokenizers, locally and on the hub",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "set log level (trace, debug, info, warn, error, fatal, panic)",
				Action: func(c *cli.Context, s string) error {
					return setLogLevel(s)
				},
				Value:   "info",
				EnvVars: []string{"MODELKIT_LOGLEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "fetch",
				Usage:     "Fetch a config from a local path or hub repository and print it",
				ArgsUsage: "<path-or-repo-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "filename",
						Usage: "config filename inside the location",
						Value: config.DefaultFilename,
					},
					&cli.StringFlag{
						Name:  "subfolder",
						Usage: "subfolder the config file is in",
					},
				},
				Action: func(c *cli.Context) error {
					return fetch(c, c.Args().First())
				},
			},
			{
				Name:      "push",
				Usage:     "Push a local config file to a hub repository",
				ArgsUsage: "<local-config-file> <repo-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "private",
						Usage: "create the repository as private if it does not exist",
					},
					&cli.StringFlag{
						Name:  "message",
						Usage: "upload commit message",
					},
				},
				Action: func(c *cli.Context) error {
					return push(c, c.Args().Get(0), c.Args().Get(1))
				},
			},
			{
				Name:      "train-bpe",
				Usage:     "Train a byte-level BPE tokenizer on text files and save it",
				ArgsUsage: "<corpus-file> [<corpus-file> ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "save-dir",
						Usage:    "directory to save the trained tokenizer in",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "vocab-size",
						Usage: "target vocabulary size",
						Value: 30000,
					},
				},
				Action: func(c *cli.Context) error {
					return trainBPE(c, c.Args().Slice())
				},
			},
			{
				Name:      "tokenize",
				Usage:     "Tokenize a text with a saved tokenizer",
				ArgsUsage: "<path-or-repo-id> <text>",
				Action: func(c *cli.Context) error {
					return tokenize(c, c.Args().Get(0), c.Args().Get(1))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func setLogLevel(logLevel string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	log.Logger = log.Level(level)
	return nil
}

func fetch(c *cli.Context, location string) error {
	if location == "" {
		return fmt.Errorf("missing config location")
	}
	store := config.NewStore()
	opts := []config.LoadOption{config.WithFilename(c.String("filename"))}
	if subfolder := c.String("subfolder"); subfolder != "" {
		opts = append(opts, config.WithSubfolder(subfolder))
	}
	cfg, err := store.Load(c.Context, location, opts...)
	if err != nil {
		return err
	}

	mapping, err := config.ToMap(cfg)
	if err != nil {
		return err
	}
	doc, err := yaml.Marshal(mapping)
	if err != nil {
		return err
	}
	fmt.Print(string(doc))
	return nil
}

func push(c *cli.Context, configPath, repoID string) error {
	if configPath == "" || repoID == "" {
		return fmt.Errorf("missing config file or repo id")
	}
	store := config.NewStore()
	loadOpts := []config.LoadOption{}
	if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
		dir, file := filepath.Split(configPath)
		configPath = dir
		loadOpts = append(loadOpts, config.WithFilename(file))
	}
	cfg, err := store.Load(c.Context, configPath, loadOpts...)
	if err != nil {
		return err
	}

	opts := []config.PushOption{config.WithCommitMessage(c.String("message"))}
	if c.Bool("private") {
		opts = append(opts, config.WithPrivate())
	}
	return store.Push(c.Context, cfg, repoID, opts...)
}

func trainBPE(c *cli.Context, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("no corpus files given")
	}
	cfg := bpe.NewConfig()
	cfg.Train.VocabSize = c.Int("vocab-size")

	tk, err := bpe.New(cfg)
	if err != nil {
		return err
	}
	log.Info().Int("vocab_size", cfg.Train.VocabSize).Strs("files", files).Msg("training BPE tokenizer")
	if err := tk.Train(files, nil); err != nil {
		return err
	}

	saveDir := c.String("save-dir")
	if err := tk.Save(saveDir); err != nil {
		return err
	}
	log.Info().Str("dir", saveDir).Msg("tokenizer saved")
	return nil
}

func tokenize(c *cli.Context, location, text string) error {
	if location == "" || text == "" {
		return fmt.Errorf("missing tokenizer location or text")
	}
	tk, err := bpe.Load(c.Context, location)
	if err != nil {
		return err
	}
	ids, err := tk.Tokenize(text)
	if err != nil {
		return err
	}
	fmt.Println(ids)
	return nil
}
