/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: learn.go
Description: Learn command implementation for the sflearn CLI. Assembles the oracle
pair for the selected demo target, runs the learning loop with graceful cancellation
on interrupt, and saves the learned transducer in text format.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kleascm/sflearn/pkg/interfaces"
	"github.com/kleascm/sflearn/pkg/learner"
	"github.com/kleascm/sflearn/pkg/logging"
	"github.com/kleascm/sflearn/pkg/oracles"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunLearn executes the learning process against a built-in demo target
func RunLearn(cmd *cobra.Command, args []string) error {
	fmt.Println("sflearn - Transducer Inference Session")
	fmt.Println("======================================")
	fmt.Println()

	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := SetupLogging(); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	membership, alphabet, err := buildTarget()
	if err != nil {
		return err
	}

	config := &interfaces.LearnerConfig{
		Alphabet:     alphabet,
		CEProcessing: viper.GetString("ce_processing"),
		MaxLookahead: viper.GetInt("max_lookahead"),
		MaxRounds:    viper.GetInt("max_rounds"),
		LogLevel:     viper.GetString("log_level"),
		JSONLogs:     viper.GetBool("json_logs"),
		CachePath:    viper.GetString("cache"),
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	equivalence, err := buildEquivalenceOracle(membership, alphabet)
	if err != nil {
		return err
	}

	l, err := learner.New(config, membership, equivalence)
	if err != nil {
		return fmt.Errorf("failed to create learner: %w", err)
	}
	defer l.Close()

	var fileLogger *logging.Logger
	if dir := viper.GetString("log_dir"); dir != "" {
		fileLogger, err = newFileLogger(dir)
		if err != nil {
			return fmt.Errorf("failed to setup file logging: %w", err)
		}
		defer fileLogger.Close()
		l.SetLogger(fileLogger.GetLogger())
	}

	// Graceful shutdown on interrupt: the learner returns its partial
	// progress instead of discarding the table.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, err := l.Learn(ctx)
	duration := time.Since(start)

	if result != nil {
		printSummary(result, duration)
		if fileLogger != nil {
			fileLogger.LogLearningComplete(result.States, result.Rounds, result.Queries.Issued, duration)
		}
	}
	if err != nil {
		return fmt.Errorf("learning failed: %w", err)
	}

	outFile := viper.GetString("out")
	if result.Model != nil && outFile != "" {
		if err := result.Model.SaveFile(outFile); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Printf("Model saved to %s\n", outFile)
	}
	return nil
}

// buildTarget assembles the membership oracle and alphabet for the selected
// demo target
func buildTarget() (interfaces.MembershipOracle, []interfaces.Symbol, error) {
	alphabetFlag := viper.GetString("alphabet")

	switch viper.GetString("target") {
	case "identity":
		alphabet := symbolsFromFlag(alphabetFlag, "ab")
		return oracles.Membership(oracles.IdentityTarget(alphabet)), alphabet, nil
	case "replace":
		alphabet := symbolsFromFlag(alphabetFlag, "ab")
		if len(alphabet) < 2 {
			return nil, nil, fmt.Errorf("replace target needs at least two symbols")
		}
		sequence := interfaces.Word{alphabet[0], alphabet[1]}
		replacement := interfaces.WordFromString("X")
		return oracles.Membership(oracles.LookaheadReplaceTarget(alphabet, sequence, replacement)), alphabet, nil
	case "encoder":
		alphabet := oracles.IdempotentEncoderAlphabet()
		return oracles.Membership(oracles.IdempotentEncoderTarget()), alphabet, nil
	case "html":
		alphabet := symbolsFromFlag(alphabetFlag, "a<>&\"b")
		return oracles.HTMLEscapeOracle(), alphabet, nil
	default:
		return nil, nil, fmt.Errorf("unknown target: %s", viper.GetString("target"))
	}
}

// buildEquivalenceOracle assembles the configured equivalence oracle
func buildEquivalenceOracle(membership interfaces.MembershipOracle, alphabet []interfaces.Symbol) (interfaces.EquivalenceOracle, error) {
	switch viper.GetString("eq_mode") {
	case "brute-force":
		return oracles.BruteForceEquivalence(membership, alphabet, viper.GetInt("eq_max_len")), nil
	case "random":
		return oracles.RandomEquivalence(membership, alphabet,
			viper.GetInt("eq_tests"), viper.GetInt("eq_max_len"), viper.GetInt64("eq_seed"), nil), nil
	default:
		return nil, fmt.Errorf("unknown equivalence oracle: %s", viper.GetString("eq_mode"))
	}
}

// newFileLogger builds a timestamped file logger in the given directory
func newFileLogger(dir string) (*logging.Logger, error) {
	format := logging.LogFormatText
	if viper.GetBool("json_logs") {
		format = logging.LogFormatJSON
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log_level")),
		Format:    format,
		OutputDir: dir,
		MaxFiles:  10,
		MaxSize:   100 * 1024 * 1024,
		Timestamp: true,
		Caller:    false,
		Colors:    false,
	})
}

// symbolsFromFlag converts the alphabet flag to symbols, falling back to a
// per-target default
func symbolsFromFlag(flag, fallback string) []interfaces.Symbol {
	if flag == "" {
		flag = fallback
	}
	return interfaces.WordFromString(flag)
}

// printSummary prints the run summary
func printSummary(result *learner.Result, duration time.Duration) {
	fmt.Println()
	fmt.Println("Learning Summary")
	fmt.Println("----------------")
	fmt.Printf("Run ID:        %s\n", result.RunID)
	fmt.Printf("Completed:     %v\n", result.Completed)
	fmt.Printf("States:        %d\n", result.States)
	fmt.Printf("Lookaheads:    %d\n", result.Lookaheads)
	fmt.Printf("Rounds:        %d\n", result.Rounds)
	fmt.Printf("Table:         %d rows x %d columns\n", result.Rows, result.Columns)
	fmt.Printf("Queries:       %d requested, %d issued, %d cache hits\n",
		result.Queries.Queries, result.Queries.Issued, result.Queries.Hits)
	fmt.Printf("Duration:      %v\n", duration)
}
