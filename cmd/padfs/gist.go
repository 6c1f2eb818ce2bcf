// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/padfs/lib/github"
	"github.com/bureau-foundation/padfs/lib/version"
	"github.com/bureau-foundation/padfs/lib/workspace"
)

func gistCmd(args []string) error {
	if len(args) == 0 || args[0] != "new" {
		return fmt.Errorf("usage: padfs gist new [--description TEXT] [--public] FILE...")
	}
	var (
		common      commonFlags
		description string
		public      bool
	)
	flagSet := pflag.NewFlagSet("padfs gist new", pflag.ContinueOnError)
	common.add(flagSet)
	flagSet.StringVar(&description, "description", "", "gist description")
	flagSet.BoolVar(&public, "public", false, "create a public gist")
	if done, err := parseFlags(flagSet, args[1:]); done || err != nil {
		return err
	}
	if flagSet.NArg() == 0 {
		return fmt.Errorf("at least one file is required: a gist cannot be empty")
	}

	files, err := gistFiles(flagSet.Args())
	if err != nil {
		return err
	}

	cfg, logger, err := common.load()
	if err != nil {
		return err
	}
	ws, err := workspace.New(cfg, workspace.Options{UserAgent: version.UserAgent(), Logger: logger})
	if err != nil {
		return err
	}
	defer ws.Close(context.Background())
	if !ws.Client.SignedIn() {
		return fmt.Errorf("creating a gist needs an access token in %s", cfg.GitHub.TokenFile)
	}

	gist, err := ws.Client.CreateGist(context.Background(), github.CreateGistRequest{
		Description: description,
		Public:      public,
		Files:       files,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created gist %s\n  %s\nAdd %q to snippets.gists to mount it.\n", gist.ID, gist.HTMLURL, gist.ID)
	return nil
}

// gistFiles reads the initial files of a new gist, keyed by base
// name. Gist files hold text, so binary input is rejected.
func gistFiles(paths []string) (map[string]github.GistFileChange, error) {
	files := make(map[string]github.GistFileChange, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%s is empty: gist files need content", path)
		}
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%s is not UTF-8 text", path)
		}
		name := filepath.Base(path)
		if _, duplicate := files[name]; duplicate {
			return nil, fmt.Errorf("two files are named %q", name)
		}
		files[name] = github.GistFileChange{Content: string(data)}
	}
	return files, nil
}
