// oscwave-collector - records the text export a scope sends over its serial
// port into a timestamped capture file, ready for oscwave.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"oscwave/internal/collector"
	"oscwave/internal/config"
	"oscwave/internal/logging"
	"oscwave/internal/version"
	"oscwave/internal/wave"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Command line flag variables
var (
	cfgFile  string // Configuration file path
	verbose  bool   // Enable info logging
	duration string // Maximum collection duration (e.g., "60s")
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oscwave-collector",
	Short: "Capture oscilloscope exports from a serial port",
	Long: `oscwave-collector waits for a digital storage oscilloscope to send its
waveform export over a serial link and saves it as a capture file. Collection
ends when the link stays idle, the duration passes or on interrupt.`,
	Version: version.Get().Short(),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCollector(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// init initializes the CLI flags and configuration
func init() {
	cobra.OnInitialize(initConfig)
	defaults := config.DefaultConfig().Collection

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./oscwave.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(version.Get().Banner("oscwave-collector") + "\n")

	rootCmd.Flags().StringVarP(&duration, "duration", "d", defaults.Duration.String(), "maximum collection duration")
	rootCmd.Flags().StringP("port", "p", defaults.Port, "serial port the scope is attached to")
	rootCmd.Flags().IntP("baud", "b", defaults.BaudRate, "serial baud rate")
	rootCmd.Flags().Duration("idle", defaults.IdleTimeout, "end the capture after the link is quiet this long")
	rootCmd.Flags().StringP("output", "o", defaults.OutputDir, "output directory")
	rootCmd.Flags().String("prefix", defaults.FilePrefix, "capture file prefix")
	rootCmd.Flags().String("id", "", "collection identifier used in the file name")

	// Bind command line flags to viper configuration keys
	viper.BindPFlag("collection.port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("collection.baud_rate", rootCmd.Flags().Lookup("baud"))
	viper.BindPFlag("collection.idle_timeout", rootCmd.Flags().Lookup("idle"))
	viper.BindPFlag("collection.output_dir", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("collection.file_prefix", rootCmd.Flags().Lookup("prefix"))
	viper.BindPFlag("collection.collection_id", rootCmd.Flags().Lookup("id"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("oscwave")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("OSCWAVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// runCollector is the main application logic
func runCollector() error {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	durationParsed, err := time.ParseDuration(duration)
	if err != nil {
		return fmt.Errorf("invalid duration format: %w", err)
	}
	cfg.Collection.Duration = durationParsed
	if verbose && cfg.Logging.Level == "error" {
		cfg.Logging.Level = "info"
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	fmt.Printf("oscwave collector starting...\n")
	fmt.Printf("Port: %s @ %d baud\n", cfg.Collection.Port, cfg.Collection.BaudRate)
	fmt.Printf("Duration: %v (idle timeout %v)\n", cfg.Collection.Duration, cfg.Collection.IdleTimeout)
	fmt.Printf("Output: %s\n", cfg.Collection.OutputDir)

	interrupted, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := collector.NewCollector(cfg, logger)
	if err := c.Initialize(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize collector: %w", err)
	}
	defer c.Close()

	// An interrupt keeps what arrived so far instead of discarding it
	go func() {
		<-interrupted.Done()
		logger.Info("received interrupt signal, finishing capture")
		c.Stop()
	}()

	summary, err := c.CollectWithContext(context.Background())
	if err != nil {
		return fmt.Errorf("collection failed: %w", err)
	}

	fmt.Printf("Saved %s: %d bytes, %d samples", summary.Filename, summary.Bytes, summary.Samples)
	if summary.SamplePeriod > 0 {
		fmt.Printf(" (%s)", wave.FormatTime(summary.SamplePeriod*float64(summary.Samples)))
	}
	fmt.Println()
	logger.Debug("collection summary", zap.Any("summary", summary))
	return nil
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
