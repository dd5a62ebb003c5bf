package search

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp-forge/hermes-import/internal/cmd/base"
	"github.com/hashicorp-forge/hermes-import/internal/config"
	"github.com/hashicorp-forge/hermes-import/pkg/database"
	"github.com/hashicorp-forge/hermes-import/pkg/search"
)

type Command struct {
	*base.Command

	flagConfig  string
	flagQuery   string
	flagSpaceID string
	flagLimit   int
	flagReindex bool
}

func (c *Command) Synopsis() string {
	return "Search imported pages"
}

func (c *Command) Help() string {
	return `Usage: hermes-import search [options] [query]

  Searches the local page index configured by search.index_path. With
  -reindex every page of the space named by -space-id is indexed again
  from the database before searching.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("search", flag.ContinueOnError))

	f.StringVar(&c.flagConfig, "config", "",
		"Path to the HCL `file` holding configuration. Defaults apply when unset.")
	f.StringVar(&c.flagQuery, "query", "",
		"Search `text`. Remaining arguments are appended.")
	f.StringVar(&c.flagSpaceID, "space-id", "",
		"Only return pages of this space `ID`.")
	f.IntVar(&c.flagLimit, "limit", search.DefaultLimit,
		"Maximum number of hits.")
	f.BoolVar(&c.flagReindex, "reindex", false,
		"Index the space's pages from the database first.")

	return f
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	text := strings.TrimSpace(strings.Join(append([]string{c.flagQuery}, flags.Args()...), " "))

	if c.flagReindex && c.flagSpaceID == "" {
		ui.Error("space-id flag is required with -reindex")
		return 1
	}

	cfg, err := config.NewConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config file: %v", err))
		return 1
	}
	if cfg.Search.IndexPath == "" {
		ui.Error("search.index_path is not configured")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index, err := search.Open(cfg.Search.IndexPath, logger)
	if err != nil {
		ui.Error(fmt.Sprintf("error opening page index: %v", err))
		return 1
	}
	defer index.Close()

	if c.flagReindex {
		db, err := database.Connect(cfg.DatabaseConfig(), logger)
		if err != nil {
			ui.Error(fmt.Sprintf("error initializing database: %v", err))
			return 1
		}
		n, err := search.NewSubscriber(db, index, logger).IndexSpace(ctx, c.flagSpaceID)
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		if err != nil {
			ui.Error(fmt.Sprintf("error indexing space: %v", err))
			return 1
		}
		ui.Info(fmt.Sprintf("Indexed %d pages", n))
	}

	res, err := index.Search(ctx, search.Query{
		Text:    text,
		SpaceID: c.flagSpaceID,
		Limit:   c.flagLimit,
	})
	if err != nil {
		ui.Error(fmt.Sprintf("error searching: %v", err))
		return 1
	}

	ui.Info(fmt.Sprintf("%d matching pages (%s)", res.Total, res.Took))
	for _, h := range res.Hits {
		ui.Output(fmt.Sprintf("%s\t%s\t%s", h.ID, h.SlugID, h.Title))
		for _, frag := range h.Fragments {
			ui.Output("    " + frag)
		}
	}
	return 0
}
