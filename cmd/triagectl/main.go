// Triagectl runs the triage engine and inspects the emergency lexicon from
// the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	tc "github.com/linnemanlabs/triageline/internal/cfg"
	"github.com/linnemanlabs/triageline/internal/classify/zeroshot"
	"github.com/linnemanlabs/triageline/internal/llm"
	"github.com/linnemanlabs/triageline/internal/triage"
)

const appName = "triagectl"

type options struct {
	app     tc.Config
	logCfg  log.Config
	lang    string
	context string
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(func(fs *flag.FlagSet) {
		// environment first so explicit flags parsed by cobra win
		cfg.FillFromEnv(fs, "TRIAGELINE_", func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		})
	})
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd wires the shared configuration flags into a cobra tree. env,
// when non-nil, may populate the flag set before command-line parsing.
func newRootCmd(env func(*flag.FlagSet)) *cobra.Command {
	o := &options{}

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	o.app.RegisterFlags(fs)
	o.logCfg.RegisterFlags(fs)
	if env != nil {
		env(fs)
	}

	root := &cobra.Command{
		Use:          appName,
		Short:        "Run symptom triage and inspect the emergency lexicon",
		SilenceUsage: true,
	}
	root.PersistentFlags().AddGoFlagSet(fs)
	root.PersistentFlags().BoolVar(&o.verbose, "verbose", false, "emit structured logs")

	root.AddCommand(newTriageCmd(o), newLexiconCmd(o))
	return root
}

func newTriageCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage <symptoms...>",
		Short: "Triage a symptom narrative and print the outcome as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger, err := o.logger()
			if err != nil {
				return err
			}

			lx, err := triage.LoadLexicon(o.app.LexiconFile)
			if err != nil {
				return fmt.Errorf("lexicon: %w", err)
			}
			gen, err := llm.NewGenerator(ctx, &o.app)
			if err != nil {
				return err
			}
			var cls triage.Classifier
			if o.app.ClassifierEndpoint != "" {
				zs, err := zeroshot.New(o.app.ClassifierEndpoint, o.app.ClassifierToken, o.app.ClassifierModel)
				if err != nil {
					return fmt.Errorf("classifier: %w", err)
				}
				cls = zs
			}

			engine := triage.NewEngine(gen, cls, lx, logger, triage.EngineHooks{},
				triage.WithCallTimeout(o.app.CallTimeout()),
				triage.WithRequestTimeout(o.app.RequestTimeout()),
			)

			lang, _ := triage.ParseLanguage(o.lang)
			res, err := engine.Run(ctx, triage.Narrative{
				Symptoms: strings.Join(args, " "),
				Language: lang,
				Context:  o.context,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&o.lang, "lang", string(triage.LangEN), "narrative language (en, es)")
	cmd.Flags().StringVar(&o.context, "context", "", "free-form context such as a location")
	return cmd
}

func newLexiconCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lexicon",
		Short: "Inspect the emergency keyword lexicon",
	}

	check := &cobra.Command{
		Use:   "check <text...>",
		Short: "Print the emergency keywords matched in text, one per line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, ok := triage.ParseLanguage(o.lang)
			if !ok {
				return fmt.Errorf("%w: unsupported language %q", triage.ErrInvalidInput, o.lang)
			}
			lx, err := triage.LoadLexicon(o.app.LexiconFile)
			if err != nil {
				return fmt.Errorf("lexicon: %w", err)
			}
			matches := lx.Matches(strings.Join(args, " "), lang)
			if len(matches) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no emergency keywords matched")
				return err
			}
			for _, m := range matches {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), m); err != nil {
					return err
				}
			}
			return nil
		},
	}
	check.Flags().StringVar(&o.lang, "lang", string(triage.LangEN), "text language (en, es)")

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective lexicon as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lx, err := triage.LoadLexicon(o.app.LexiconFile)
			if err != nil {
				return fmt.Errorf("lexicon: %w", err)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(lx.File()); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.AddCommand(check, dump)
	return cmd
}

func (o *options) logger() (log.Logger, error) {
	if !o.verbose {
		return log.Nop(), nil
	}
	lg, err := log.New(o.logCfg.ToOptions(appName))
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	return lg, nil
}
