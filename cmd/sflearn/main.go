/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Command-line interface for the sflearn transducer learner. Provides the
root command with configuration management and logging flags, plus the learn command
for inferring models of the built-in demo targets.
*/

package main

import (
	"fmt"
	"os"

	"github.com/kleascm/sflearn/cmd/sflearn/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Configuration
	configFile string
	logLevel   string
	jsonLogs   bool
	logDir     string

	// Learning configuration
	target       string
	alphabet     string
	ceProcessing string
	maxLookahead int
	maxRounds    int

	// Equivalence oracle configuration
	eqMode   string
	eqMaxLen int
	eqTests  int
	eqSeed   int64

	// Output configuration
	outFile   string
	cachePath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sflearn",
		Short: "sflearn - Black-box inference of transducers with bounded lookahead",
		Long: `sflearn infers a deterministic finite-state transducer model of an unknown
string-processing program (an encoder, sanitizer, or de-obfuscation filter) by
active learning: it issues membership and equivalence queries against the target
and converges to a minimal model, discovering per-state lookahead windows where
the target's output depends on upcoming input symbols.`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Use JSON log format")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for timestamped log files (disabled when empty)")

	learnCmd := &cobra.Command{
		Use:   "learn",
		Short: "Infer a transducer model of a built-in demo target",
		Long: `Learn runs the inference loop against one of the built-in demo targets
(identity, replace, encoder, html) and saves the learned model in text format.`,
		RunE: commands.RunLearn,
	}

	learnCmd.Flags().StringVar(&target, "target", "encoder", "Demo target (identity, replace, encoder, html)")
	learnCmd.Flags().StringVar(&alphabet, "alphabet", "", "Alphabet characters for character targets (defaults per target)")
	learnCmd.Flags().StringVar(&ceProcessing, "ce-processing", "rivest-schapire", "Counterexample processing (rivest-schapire, shahbaz-groz)")
	learnCmd.Flags().IntVar(&maxLookahead, "max-lookahead", 16, "Safety bound on lookahead window length")
	learnCmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Safety bound on refinement rounds (0 = unbounded)")
	learnCmd.Flags().StringVar(&eqMode, "eq-mode", "random", "Equivalence oracle (random, brute-force)")
	learnCmd.Flags().IntVar(&eqMaxLen, "eq-max-len", 10, "Maximum word length tested by the equivalence oracle")
	learnCmd.Flags().IntVar(&eqTests, "eq-tests", 1000, "Number of random equivalence tests")
	learnCmd.Flags().Int64Var(&eqSeed, "eq-seed", 1, "Random seed for the equivalence oracle")
	learnCmd.Flags().StringVar(&outFile, "out", "model.txt", "File to save the learned transducer")
	learnCmd.Flags().StringVar(&cachePath, "cache", "", "Optional bbolt file persisting membership queries")

	// Bind flags to viper for config file and environment overrides
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("json_logs", rootCmd.PersistentFlags().Lookup("json-logs"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("target", learnCmd.Flags().Lookup("target"))
	viper.BindPFlag("alphabet", learnCmd.Flags().Lookup("alphabet"))
	viper.BindPFlag("ce_processing", learnCmd.Flags().Lookup("ce-processing"))
	viper.BindPFlag("max_lookahead", learnCmd.Flags().Lookup("max-lookahead"))
	viper.BindPFlag("max_rounds", learnCmd.Flags().Lookup("max-rounds"))
	viper.BindPFlag("eq_mode", learnCmd.Flags().Lookup("eq-mode"))
	viper.BindPFlag("eq_max_len", learnCmd.Flags().Lookup("eq-max-len"))
	viper.BindPFlag("eq_tests", learnCmd.Flags().Lookup("eq-tests"))
	viper.BindPFlag("eq_seed", learnCmd.Flags().Lookup("eq-seed"))
	viper.BindPFlag("out", learnCmd.Flags().Lookup("out"))
	viper.BindPFlag("cache", learnCmd.Flags().Lookup("cache"))

	rootCmd.AddCommand(learnCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
