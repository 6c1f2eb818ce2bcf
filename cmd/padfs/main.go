// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// padfs mounts gists and GitHub repositories as a local filesystem.
//
// Usage:
//
//	padfs mount [--mountpoint DIR] [--allow-other]
//	padfs repo add OWNER/NAME[@BRANCH]
//	padfs repo remove OWNER/NAME[@BRANCH]
//	padfs repo list
//	padfs gist new [--description TEXT] [--public] FILE...
//	padfs --version
//
// Every command reads its configuration from --config or the
// PADFS_CONFIG environment variable.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/padfs/lib/config"
	"github.com/bureau-foundation/padfs/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "--version", "version":
		fmt.Printf("padfs %s\n", version.Full())
		return nil
	case "--help", "help", "-h":
		printUsage()
		return nil
	case "mount":
		return mountCmd(args[1:])
	case "repo":
		return repoCmd(args[1:])
	case "gist":
		return gistCmd(args[1:])
	}
	printUsage()
	return fmt.Errorf("unknown command %q", args[0])
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configPath string
}

func (c *commonFlags) add(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "configuration file (default: $PADFS_CONFIG)")
}

// load reads and validates the configuration and installs the
// configured logger as the default.
func (c *commonFlags) load() (*config.Config, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// parseFlags parses args, printing usage for --help. It returns
// done when the command should stop without error.
func parseFlags(flagSet *pflag.FlagSet, args []string) (done bool, err error) {
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// repoArgument is OWNER/NAME with an optional @BRANCH.
type repoArgument struct {
	Owner, Name, Branch string
}

func parseRepoArgument(text string) (repoArgument, error) {
	spec, branch, _ := strings.Cut(text, "@")
	owner, name, ok := strings.Cut(spec, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return repoArgument{}, fmt.Errorf("repository must be OWNER/NAME[@BRANCH], got %q", text)
	}
	if strings.Contains(text, "@") && branch == "" {
		return repoArgument{}, fmt.Errorf("empty branch in %q", text)
	}
	return repoArgument{Owner: owner, Name: name, Branch: branch}, nil
}

func (r repoArgument) String() string {
	if r.Branch == "" {
		return r.Owner + "/" + r.Name
	}
	return r.Owner + "/" + r.Name + "@" + r.Branch
}

func printUsage() {
	fmt.Print(`padfs - gists and GitHub repositories as a local filesystem

USAGE
    padfs mount [--mountpoint DIR] [--allow-other]
    padfs repo add OWNER/NAME[@BRANCH]
    padfs repo remove OWNER/NAME[@BRANCH]
    padfs repo list
    padfs gist new [--description TEXT] [--public] FILE...
    padfs --version

Every command accepts --config FILE; the default is $PADFS_CONFIG.

LAYOUT
    gists/<id>/...            configured snippet stores
    repos/<owner>/<name>/...  managed repositories, default branch

    Backlinks of a wiki page are in the user.padfs.backlinks
    extended attribute:
        getfattr -n user.padfs.backlinks --only-values repos/o/wiki/Home.md
`)
}
