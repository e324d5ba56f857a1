package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mineroot/torrentcheck/pkg/progress"
	"github.com/mineroot/torrentcheck/pkg/report"
	"github.com/mineroot/torrentcheck/pkg/selection"
	"github.com/mineroot/torrentcheck/pkg/torrent"
	"github.com/mineroot/torrentcheck/pkg/verify"
)

const envPrefix = "TORRENTCHECK"

var errUsage = errors.New("invalid usage")

type pair struct {
	torrentPath string
	dir         string
}

// job is one verification pass, its report is buffered until every pass is done.
type job struct {
	pair
	torrent *torrent.File
	plan    *selection.Plan
	out     bytes.Buffer
	summary report.Summary
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	v := viper.New()
	var pairs []pair

	cmd := &cobra.Command{
		DisableFlagsInUseLine: true,
		Version:               "0.1",
		Use:                   "torrentcheck [flags] (file.torrent dir)...",
		Example:               "  torrentcheck debian.torrent ~/Downloads another.torrent /data",
		Short:                 "Check local data against torrent piece hashes",
		SilenceUsage:          true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("requires at least 2 args, only received %d", len(args))
			}
			if len(args)%2 != 0 {
				return fmt.Errorf("expected one or more pairs of (file.torrent dir), received %d args", len(args))
			}
			pairs = pairs[:0]
			for i := 0; i < len(args); i += 2 {
				pairs = append(pairs, pair{torrentPath: args[i], dir: args[i+1]})
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return run(ctx, fs, v, pairs, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringArray("partial", nil, "verify only this torrent path, repeatable (single pair only, one path per line in "+envPrefix+"_PARTIAL)")
	flags.String("rename", "", "verify torrent path against a local file, as path=local (single pair only)")
	flags.Bool("no-padding-heuristic", false, "only treat entries with the padding attribute as padding")
	flags.Bool("progress", true, "show a progress bar on stderr")
	flags.String("log-level", zerolog.InfoLevel.String(), "log level (trace, debug, info, warn, error)")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
	return cmd
}

func run(ctx context.Context, fs afero.Fs, v *viper.Viper, pairs []pair, stdout, stderr io.Writer) error {
	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	l := zerolog.New(zerolog.ConsoleWriter{Out: zerolog.SyncWriter(stderr)}).Level(level).With().Timestamp().Logger()
	ctx = l.WithContext(ctx)

	sel, err := parseSelection(v)
	if err != nil {
		return err
	}
	if sel.Mode != selection.ModeAll && len(pairs) > 1 {
		return fmt.Errorf("%w: --partial and --rename need exactly one (file.torrent dir) pair", errUsage)
	}
	policy := selection.Policy{PaddingHeuristic: !v.GetBool("no-padding-heuristic")}

	jobs := make([]*job, len(pairs))
	var total int64
	for i, p := range pairs {
		t, err := torrent.Open(fs, p.torrentPath)
		if err != nil {
			return fmt.Errorf("unable to open torrent file: %w", err)
		}
		plan, err := selection.NewPlan(t, p.dir, sel, policy)
		if err != nil {
			return fmt.Errorf("%s: %w", t.TorrentFileName, err)
		}
		log.Ctx(ctx).Debug().
			Str("torrent", t.TorrentFileName).
			Stringer("selection", sel.Mode).
			Int("files", plan.WantedCount()).
			Int("pieces", plan.WantedPieces.Count()).
			Msg("planned")
		jobs[i] = &job{pair: p, torrent: t, plan: plan}
		total += verify.ExpectedProgress(plan)
	}

	var reporter progress.Reporter = progress.Nop{}
	var bar *progress.Bar
	if v.GetBool("progress") {
		bar = progress.NewBar(stderr, total)
		reporter = bar
	}
	verifier := verify.New(fs, verify.WithReporter(reporter))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			return j.verify(gCtx, verifier)
		})
	}
	err = g.Wait()
	if bar != nil {
		bar.Close()
	}
	if err != nil {
		return err
	}

	for _, j := range jobs {
		if _, err := j.out.WriteTo(stdout); err != nil {
			return err
		}
		log.Ctx(ctx).Info().
			Str("torrent", j.torrent.TorrentFileName).
			Stringer("infohash", j.torrent.InfoHash).
			Int("files", j.summary.Files).
			Int("complete", j.summary.Complete).
			Str("correct", humanize.IBytes(uint64(j.summary.Correct))).
			Str("total", humanize.IBytes(uint64(j.summary.Total))).
			Msg("verified")
	}
	return nil
}

func (j *job) verify(ctx context.Context, verifier *verify.Verifier) error {
	res, err := verifier.Run(ctx, j.torrent, j.plan)
	if err != nil {
		return fmt.Errorf("%s: %w", j.torrent.TorrentFileName, err)
	}
	j.summary, err = report.Write(&j.out, res)
	return err
}

func parseSelection(v *viper.Viper) (selection.Selection, error) {
	partial := partialPaths(v)
	rename := v.GetString("rename")
	switch {
	case len(partial) > 0 && rename != "":
		return selection.Selection{}, fmt.Errorf("%w: --partial and --rename are mutually exclusive", errUsage)
	case len(partial) > 0:
		return selection.Partial(partial...), nil
	case rename != "":
		// the last '=' separates, torrent paths may contain one
		i := strings.LastIndexByte(rename, '=')
		if i <= 0 || i == len(rename)-1 {
			return selection.Selection{}, fmt.Errorf("%w: --rename expects path=local, got %q", errUsage, rename)
		}
		return selection.Renamed(rename[:i], rename[i+1:]), nil
	}
	return selection.All(), nil
}

// partialPaths keeps spaces inside paths: flag values come as a list, the environment variable holds one path per line.
func partialPaths(v *viper.Viper) []string {
	raw, ok := v.Get("partial").(string)
	if !ok {
		return v.GetStringSlice("partial")
	}
	var paths []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSuffix(line, "\r"); line != "" {
			paths = append(paths, line)
		}
	}
	return paths
}
