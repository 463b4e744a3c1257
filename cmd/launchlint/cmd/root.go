package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/NetPo4ki/go-launch/internal/lint"
)

// ErrFindings is returned when the scan reported at least one finding.
var ErrFindings = errors.New("launchlint: findings reported")

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCmd(viper.New()).Execute(); err != nil {
		if errors.Is(err, ErrFindings) {
			return 1
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}
	return 0
}

// NewRootCmd builds the command tree around v, which holds configuration
// from flags, the config file and LAUNCHLINT_* environment variables.
func NewRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string
	log := logrus.New()

	root := &cobra.Command{
		Use:   "launchlint [paths...]",
		Short: "Flag raw goroutine launches and context switches",
		Long: `launchlint scans Go sources and reports functions that start work with a bare
go statement, call Dispatch directly or switch with scope.WithContext instead of
using the routed Scope helpers (LaunchIO, LaunchMain, Builder, WithIO, WithMain).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log.SetOutput(cmd.ErrOrStderr())
			if err := initConfig(v, cfgFile); err != nil {
				return err
			}
			if v.GetBool("verbose") {
				log.SetLevel(logrus.DebugLevel)
			}
			if used := v.ConfigFileUsed(); used != "" {
				log.WithField("file", used).Debug("loaded config")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			var rules []lint.Rule
			if err := v.UnmarshalKey("rules", &rules); err != nil {
				return fmt.Errorf("decode rules: %w", err)
			}
			scanner, err := lint.NewScanner(rules)
			if err != nil {
				return err
			}
			exclude := v.GetStringSlice("exclude")
			log.WithFields(logrus.Fields{"paths": args, "exclude": exclude}).Debug("scanning")

			findings, err := scanner.ScanPaths(args, exclude)
			if err != nil {
				return err
			}
			if err := render(cmd.OutOrStdout(), v.GetString("format"), findings); err != nil {
				return err
			}
			if len(findings) > 0 {
				return ErrFindings
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./.launchlint.yaml)")
	flags.String("format", "table", "output format: table, json or yaml")
	flags.StringSlice("exclude", nil, "glob or directory prefix (ending in /) to skip")
	flags.BoolP("verbose", "v", false, "log debug output to stderr")
	for _, name := range []string{"format", "exclude", "verbose"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".launchlint")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("launchlint")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func render(w io.Writer, format string, findings []lint.Finding) error {
	switch format {
	case "json":
		out, err := json.MarshalIndent(findings, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		out, err := yaml.Marshal(findings)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "table", "":
		if len(findings) == 0 {
			_, err := fmt.Fprintln(w, "No findings")
			return err
		}
		table := tablewriter.NewWriter(w)
		table.Header("Rule", "File", "Line", "Function", "Offset")
		for _, f := range findings {
			if err := table.Append(f.Rule, f.File, strconv.Itoa(f.Line), f.Function, strconv.Itoa(f.Offset)); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\nTotal findings: %d\n", len(findings))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
