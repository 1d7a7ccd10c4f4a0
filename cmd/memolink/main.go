package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/memolink/internal"
	"github.com/starford/memolink/internal/tags"
	pkgconfig "github.com/starford/memolink/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Corpus.Root = root
	}
	return cfg, nil
}

func options(cmd *cli.Command, extra ...internal.Option) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts := []internal.Option{internal.WithConfig(cfg), internal.WithVersion(version)}
	if !cmd.Bool("verbose") {
		// One-shot commands print results on stdout; keep logs off it.
		opts = append(opts, internal.WithLogOutput(os.Stderr))
	}
	return append(opts, extra...), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd, internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, opts...)
}

func stats(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	svc, err := internal.Open(ctx, opts...)
	if err != nil {
		return err
	}
	s := svc.GetLinkStatistics()
	for i := range s.MostLinkedFiles {
		s.MostLinkedFiles[i].Path = svc.Rel(s.MostLinkedFiles[i].Path)
	}
	return printJSON(s)
}

func orphans(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	svc, err := internal.Open(ctx, opts...)
	if err != nil {
		return err
	}
	list, err := svc.GetOrphanedFiles(ctx)
	if err != nil {
		return err
	}
	for _, p := range list {
		fmt.Println(svc.Rel(p))
	}
	return nil
}

func backlinks(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: memolink backlinks <path>")
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	svc, err := internal.Open(ctx, opts...)
	if err != nil {
		return err
	}
	get := svc.GetBacklinks
	if cmd.Bool("outbound") {
		get = svc.GetOutboundLinks
	}
	for _, l := range get(cmd.Args().First()) {
		fmt.Printf("%s:%d\t%s\t%s\n", svc.Rel(l.SourceDocument), l.SourceLine, l.RawTarget, svc.Rel(l.Target))
	}
	return nil
}

func listTags(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	svc, err := internal.Open(ctx, opts...)
	if err != nil {
		return err
	}
	if cmd.Args().Len() == 0 {
		for _, t := range svc.GetAllTags() {
			fmt.Printf("%d\t%s\n", t.Count, t.Tag)
		}
		return nil
	}
	mode, err := tags.ParseMode(cmd.String("mode"))
	if err != nil {
		return err
	}
	for _, m := range svc.GetMemosByTags(cmd.Args().Slice(), mode) {
		fmt.Printf("%s\t%s\t%s\n", svc.Rel(m.Path), m.LastModified.Format("2006-01-02"), strings.Join(m.Tags, ","))
	}
	return nil
}

func rename(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: memolink rename <old> <new>")
	}
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	svc, err := internal.Open(ctx, opts...)
	if err != nil {
		return err
	}
	res, err := svc.RenameDocument(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
	if err != nil {
		return err
	}
	if err := printJSON(res); err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d documents could not be updated", len(res.Errors))
	}
	return nil
}

func exportDB(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	st, err := internal.Export(ctx, cmd.Args().First(), opts...)
	if err != nil {
		return err
	}
	return printJSON(st)
}

func main() {
	cmd := &cli.Command{
		Name:    "memolink",
		Usage:   "Link and tag index for a tree of Markdown notes",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Corpus root, overrides corpus.root",
				Sources: cli.EnvVars("MEMOLINK_ROOT"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Send logs of one-shot commands to stdout",
			},
		},
		Commands: []*cli.Command{
			{Name: "serve", Usage: "Index the corpus, then serve the HTTP API, SSE and the watcher", Action: serve},
			{Name: "mcp", Usage: "Serve MCP tools over stdio", Action: mcp},
			{Name: "stats", Usage: "Print link statistics", Action: stats},
			{Name: "orphans", Usage: "List documents with no links in or out", Action: orphans},
			{
				Name:      "backlinks",
				Usage:     "List links pointing at a document",
				ArgsUsage: "<path>",
				Action:    backlinks,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "outbound", Usage: "List links written in the document instead"},
				},
			},
			{
				Name:      "tags",
				Usage:     "List tags, or documents carrying the given tags",
				ArgsUsage: "[tag...]",
				Action:    listTags,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Value: "or", Usage: "and | or"},
				},
			},
			{Name: "rename", Usage: "Move a document and rewrite links to it", ArgsUsage: "<old> <new>", Action: rename},
			{Name: "export", Usage: "Write a SQLite snapshot of the index", ArgsUsage: "[db]", Action: exportDB},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
