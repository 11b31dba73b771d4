package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chriserin/ftgen/internal/config"
	"github.com/chriserin/ftgen/internal/logging"
)

var (
	cfgFile string
	envFile string

	v   = config.New()
	cfg *config.Config
	log *logrus.Logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:          "ftgen",
	Short:        "ftgen — generate Go tests from Gherkin features",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(envFile); err != nil {
			return err
		}
		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		log = logging.New(cmd.ErrOrStderr(), c.Log.Level, c.Log.Format)
		return nil
	},
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"features":     "features",
	"steps":        "steps",
	"sources":      "sources",
	"template":     "template",
	"template-dir": "template_dir",
	"output":       "output",
	"package":      "package",
	"parser":       "parser",
	"parallel":     "parallel",
	"history":      "history",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ftgen.yaml or ftgen/ftgen.yaml)")
	pf.StringVar(&envFile, "env-file", "", "environment file loaded before config (default .env)")
	pf.StringSlice("features", nil, "feature files or directories")
	pf.StringSlice("steps", nil, "directories or files searched for step definitions")
	pf.StringSlice("sources", nil, "step extractors to use: go, csharp, manifest")
	pf.String("template", "", "template file")
	pf.String("template-dir", "", "directory holding exactly one .mustache template")
	pf.StringP("output", "o", "", "output directory (default next to each feature)")
	pf.String("package", "", "package of generated files without a @namespace tag")
	pf.String("parser", "", "feature parser: native or cucumber")
	pf.IntP("parallel", "j", 0, "files generated concurrently (default GOMAXPROCS)")
	pf.String("history", "", "run history database")
	pf.String("log-level", "", "log level")
	pf.String("log-format", "", "log format: text or json")
	bindFlags(pf)
}

func bindFlags(fs *pflag.FlagSet) {
	for name, key := range flagKeys {
		must(v.BindPFlag(key, fs.Lookup(name)))
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
