package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rflorenc/shop-migration-workbench/internal/config"
	"github.com/rflorenc/shop-migration-workbench/internal/history"
	"github.com/rflorenc/shop-migration-workbench/internal/migration"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
	"github.com/rflorenc/shop-migration-workbench/internal/platform"
)

type migrateOptions struct {
	source      string
	target      string
	sourceToken string
	targetToken string
	kind        string
	ids         []string
	ownerType   string
	policy      string
	dryRun      bool
}

func newMigrateCmd(g *globalOptions) *cobra.Command {
	o := &migrateOptions{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate selected items of one kind from source to target",
		Long: `Migrates the given source ids of one entity kind into the target shop.

--source and --target take the name of a shop from the config file or a
shop URL. With a URL, pass the token with --source-token / --target-token.`,
		Example: `  shopmigrate migrate --source live --target staging --kind pages --ids 101,102
  shopmigrate migrate --source live --target staging --kind products \
      --ids gid://shopify/Product/1 --policy ask
  shopmigrate migrate --source live --target staging --kind metafield_definitions \
      --ids custom.color --owner-type PRODUCT --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			return runMigrate(cmd, cfg, o)
		},
	}
	cmd.Flags().StringVar(&o.source, "source", "", "Source shop name or URL")
	cmd.Flags().StringVar(&o.target, "target", "", "Target shop name or URL")
	cmd.Flags().StringVar(&o.sourceToken, "source-token", "", "Source access token (overrides the configured one)")
	cmd.Flags().StringVar(&o.targetToken, "target-token", "", "Target access token (overrides the configured one)")
	cmd.Flags().StringVar(&o.kind, "kind", "", "Entity kind: "+kindNames())
	cmd.Flags().StringSliceVar(&o.ids, "ids", nil, "Source ids to migrate (comma-separated)")
	cmd.Flags().StringVar(&o.ownerType, "owner-type", models.DefaultOwnerType, "Owner type for metafield definitions")
	cmd.Flags().StringVar(&o.policy, "policy", string(models.PolicySkip), "Conflict policy: skip, overwrite or ask")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Report what would happen without writing")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func kindNames() string {
	names := make([]string, len(models.AllKinds))
	for i, k := range models.AllKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// request builds the migration request from flags and config.
func (o *migrateOptions) request(cfg *config.Config) (models.MigrationRequest, error) {
	kind, err := models.ParseKind(o.kind)
	if err != nil {
		return models.MigrationRequest{}, err
	}
	policy, err := models.ParsePolicy(o.policy)
	if err != nil {
		return models.MigrationRequest{}, err
	}
	src, err := resolveShop(cfg, o.source, o.sourceToken)
	if err != nil {
		return models.MigrationRequest{}, fmt.Errorf("source: %w", err)
	}
	dst, err := resolveShop(cfg, o.target, o.targetToken)
	if err != nil {
		return models.MigrationRequest{}, fmt.Errorf("target: %w", err)
	}

	ids := make([]string, 0, len(o.ids))
	for _, id := range o.ids {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return models.MigrationRequest{
		Source:    src,
		Target:    dst,
		Kind:      kind,
		ItemIDs:   ids,
		Policy:    policy,
		DryRun:    o.dryRun,
		OwnerType: o.ownerType,
	}, nil
}

// resolveShop looks the value up as a configured shop name first and falls
// back to treating it as a shop URL.
func resolveShop(cfg *config.Config, value, token string) (models.Shop, error) {
	if sc, ok := cfg.Shop(value); ok {
		if token == "" {
			token = sc.Token
		}
		if token == "" {
			return models.Shop{}, fmt.Errorf("no token for shop %q (set %s)", sc.Name, config.TokenEnv(sc.Name))
		}
		conn := models.Connection{URL: sc.URL, Token: token}
		return conn.Shop(), nil
	}
	if !strings.Contains(value, ".") && !strings.Contains(value, ":") {
		return models.Shop{}, fmt.Errorf("unknown shop %q", value)
	}
	if token == "" {
		return models.Shop{}, fmt.Errorf("no token for %s", value)
	}
	conn := models.Connection{URL: value, Token: token}
	return conn.Shop(), nil
}

func runMigrate(cmd *cobra.Command, cfg *config.Config, o *migrateOptions) error {
	req, err := o.request(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	runner := migration.NewRunner(platform.NewRequester(cfg.PlatformOptions()), cfg.APIVersion)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	prompt := &conflictPrompt{in: bufio.NewReader(cmd.InOrStdin()), out: out}
	started := time.Now()
	res, err := runner.Migrate(ctx, req, migration.RunOptions{
		Logger:    func(line string) { fmt.Fprintln(out, line) },
		Conflicts: prompt,
	})
	if cfg.HistoryDB != "" {
		if archiveErr := archiveRun(cfg.HistoryDB, req, started, res, err); archiveErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: archiving run: %v\n", archiveErr)
		}
	}
	if err != nil {
		return err
	}

	printResults(out, res)
	return nil
}

func archiveRun(path string, req models.MigrationRequest, started time.Time, res *models.MigrationResult, runErr error) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	run := &history.Run{
		Kind:       req.Kind,
		OwnerType:  req.OwnerType,
		Policy:     req.Policy,
		DryRun:     req.DryRun,
		SourceShop: req.Source.URL,
		TargetShop: req.Target.URL,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if res != nil {
		run.Summary, run.Results = res.Summary, res.Results
	}
	return store.Save(context.Background(), run)
}

func printResults(w io.Writer, res *models.MigrationResult) {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tID\tTITLE\tMESSAGE")
	for _, o := range res.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Status, o.ID, o.Title, o.Message)
	}
	tw.Flush()

	s := res.Summary
	fmt.Fprintf(w, "\nTotal %d: %d created, %d updated, %d skipped, %d errors, %d conflicts\n",
		s.Total, s.Created, s.Updated, s.Skipped, s.Errors, s.Conflicts)
}

// conflictPrompt asks about each pending conflict on the terminal.
type conflictPrompt struct {
	in  *bufio.Reader
	out io.Writer
}

var errAbort = errors.New("aborted")

func (p *conflictPrompt) HandleConflicts(b *migration.ConflictBatch) {
	fmt.Fprintf(p.out, "\n%d %s already exist in the target shop.\n", len(b.Conflicts), b.Label)

	decisions := models.ConflictDecision{}
	for i, c := range b.Conflicts {
		fmt.Fprintf(p.out, "\n[%d/%d] %s (%s)\n", i+1, len(b.Conflicts), c.Title, c.ID)
		if d := migration.Diff(c); d != "" {
			fmt.Fprint(p.out, d)
		} else {
			fmt.Fprintln(p.out, "  no differences in compared fields")
		}

		decision, err := p.ask()
		if err != nil {
			fmt.Fprintln(p.out, "Aborting, nothing further is written.")
			_ = b.Cancel()
			return
		}
		decisions[c.ID] = decision
	}
	_ = b.Resolve(decisions)
}

// ask reads one answer. End of input counts as abort.
func (p *conflictPrompt) ask() (models.Decision, error) {
	for {
		fmt.Fprint(p.out, "[o]verwrite / [s]kip / [a]bort all? ")
		line, err := p.in.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "o", "overwrite":
			return models.DecisionOverwrite, nil
		case "s", "skip":
			return models.DecisionSkip, nil
		case "a", "abort":
			return "", errAbort
		}
		if err != nil {
			fmt.Fprintln(p.out)
			return "", err
		}
		fmt.Fprintln(p.out, "Please answer o, s or a.")
	}
}
