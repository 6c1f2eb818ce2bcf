// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/padfs/lib/version"
	"github.com/bureau-foundation/padfs/lib/workspace"
)

func repoCmd(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: padfs repo add|remove|list")
	}
	var common commonFlags
	flagSet := pflag.NewFlagSet("padfs repo "+args[0], pflag.ContinueOnError)
	common.add(flagSet)
	if done, err := parseFlags(flagSet, args[1:]); done || err != nil {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "add":
		repo, err := singleRepoArgument(flagSet.Args())
		if err != nil {
			return err
		}
		opened, err := ws.OpenRepository(ctx, repo.Owner, repo.Name, repo.Branch)
		if err != nil {
			return err
		}
		kind := "repository"
		if opened.Wiki {
			kind = "wiki"
		}
		fmt.Printf("Added %s (%s, branch %s)\n", repo, kind, opened.ID.Branch)
		return nil
	case "remove":
		repo, err := singleRepoArgument(flagSet.Args())
		if err != nil {
			return err
		}
		if err := ws.CloseRepository(repo.Owner, repo.Name, repo.Branch); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", repo)
		return nil
	case "list":
		return listRepositories(ws, os.Stdout)
	}
	return fmt.Errorf("unknown repo command %q", args[0])
}

func singleRepoArgument(args []string) (repoArgument, error) {
	if len(args) != 1 {
		return repoArgument{}, fmt.Errorf("expected one OWNER/NAME[@BRANCH] argument, got %d", len(args))
	}
	return parseRepoArgument(args[0])
}

func listRepositories(ws *workspace.Workspace, output io.Writer) error {
	managed, err := ws.ManagedRepositories()
	if err != nil {
		return err
	}
	if len(managed) == 0 {
		fmt.Fprintln(output, "No managed repositories.")
		return nil
	}
	for _, repo := range managed {
		fmt.Fprintln(output, repoArgument{Owner: repo.Owner, Name: repo.Name, Branch: repo.Branch})
	}
	return nil
}
