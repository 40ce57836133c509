// oscwave - decodes RS-232 traffic from an oscilloscope sample export.
// The capture is thresholded into HIGH/LOW periods, split into frames at idle
// gaps and each frame is decoded into 8-bit characters.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"oscwave/internal/capture"
	"oscwave/internal/config"
	"oscwave/internal/filewriter"
	"oscwave/internal/logging"
	"oscwave/internal/metrics"
	"oscwave/internal/plot"
	"oscwave/internal/processor"
	"oscwave/internal/version"
	"oscwave/internal/wave"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	gonumplot "gonum.org/v1/plot"
)

// Command line flag variables
var (
	cfgFile     string // Configuration file path
	debug       bool   // Force debug logging
	startBit    string // Start bit width range "a..b"
	frameGap    string // Frame gap width range "a..b"
	configError error  // Problem reading an explicitly named config file
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oscwave [flags] <capture>",
	Short: "Decode RS-232 characters from an oscilloscope capture",
	Long: `oscwave reads a sample export saved by a digital storage oscilloscope,
reconstructs the HIGH/LOW waveform, splits it into frames separated by idle
gaps and decodes each frame into bytes.

The capture may be a file (optionally .gz, .zst, .br, .sz or .lz4), "-" for
stdin, s3://bucket/key or serial:<port> to read straight from the scope.`,
	Args:    cobra.ExactArgs(1),
	Version: version.Get().Short(),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDecode(cmd.Context(), args[0], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// init initializes the CLI flags and configuration
func init() {
	cobra.OnInitialize(initConfig)
	defaults := config.DefaultConfig()

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./oscwave.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug logging")
	rootCmd.SetVersionTemplate(version.Get().Banner("oscwave") + "\n")

	// Decoding
	rootCmd.Flags().StringVar(&startBit, "sbw", "", "start bit width range in samples, e.g. 37..53")
	rootCmd.Flags().StringVar(&frameGap, "fgw", "", "frame gap width range in samples, e.g. 1000..5000")
	rootCmd.Flags().Float64("bit-width", defaults.Decode.BitWidth, "bit period in samples")
	rootCmd.Flags().Int("train-chars", defaults.Decode.TrainChars, "characters decoded before the spacing is learned")
	rootCmd.Flags().Int("workers", defaults.Decode.Workers, "frames decoded in parallel")
	rootCmd.Flags().Bool("nochars", false, "stop after finding frames")

	// Reports and exports
	rootCmd.Flags().BoolP("json", "j", false, "output results in JSON")
	rootCmd.Flags().Bool("pulses", false, "print the pulse list")
	rootCmd.Flags().String("highs", "", "file to write the HIGH period histogram to")
	rootCmd.Flags().String("lows", "", "file to write the LOW period histogram to")
	rootCmd.Flags().String("plotraw", "", "plot raw samples: from..to")
	rootCmd.Flags().String("plotlevels", "", "plot levels: from..to[..slide]")
	rootCmd.Flags().String("plot-file", defaults.Output.PlotFile, "PNG file for plots")
	rootCmd.Flags().String("levels-parquet", "", "write the level sequence to a parquet file")
	rootCmd.Flags().String("chars-parquet", "", "write decoded characters to a parquet file")
	rootCmd.Flags().String("compression", defaults.Output.Compression, "parquet compression: zstd, gzip, snappy or none")
	rootCmd.Flags().String("metrics-file", "", "write Prometheus metrics in textfile format")

	// Sources
	rootCmd.Flags().String("s3-region", "", "region for s3:// captures")
	rootCmd.Flags().String("s3-endpoint", "", "custom S3 endpoint")
	rootCmd.Flags().Int("serial-baud", defaults.Source.SerialBaud, "baud rate for serial: captures")

	// Bind command line flags to viper configuration keys
	viper.BindPFlag("decode.bit_width", rootCmd.Flags().Lookup("bit-width"))
	viper.BindPFlag("decode.train_chars", rootCmd.Flags().Lookup("train-chars"))
	viper.BindPFlag("decode.workers", rootCmd.Flags().Lookup("workers"))
	viper.BindPFlag("decode.no_chars", rootCmd.Flags().Lookup("nochars"))
	viper.BindPFlag("output.json", rootCmd.Flags().Lookup("json"))
	viper.BindPFlag("output.pulses", rootCmd.Flags().Lookup("pulses"))
	viper.BindPFlag("output.highs_file", rootCmd.Flags().Lookup("highs"))
	viper.BindPFlag("output.lows_file", rootCmd.Flags().Lookup("lows"))
	viper.BindPFlag("output.plot_raw", rootCmd.Flags().Lookup("plotraw"))
	viper.BindPFlag("output.plot_levels", rootCmd.Flags().Lookup("plotlevels"))
	viper.BindPFlag("output.plot_file", rootCmd.Flags().Lookup("plot-file"))
	viper.BindPFlag("output.levels_parquet", rootCmd.Flags().Lookup("levels-parquet"))
	viper.BindPFlag("output.chars_parquet", rootCmd.Flags().Lookup("chars-parquet"))
	viper.BindPFlag("output.compression", rootCmd.Flags().Lookup("compression"))
	viper.BindPFlag("output.metrics_file", rootCmd.Flags().Lookup("metrics-file"))
	viper.BindPFlag("source.s3_region", rootCmd.Flags().Lookup("s3-region"))
	viper.BindPFlag("source.s3_endpoint", rootCmd.Flags().Lookup("s3-endpoint"))
	viper.BindPFlag("source.serial_baud", rootCmd.Flags().Lookup("serial-baud"))
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

	if err := viper.ReadInConfig(); err != nil && cfgFile != "" {
		configError = fmt.Errorf("failed to read config %s: %w", cfgFile, err)
	}
}

// loadConfig merges defaults, the config file, environment and flags
func loadConfig() (*config.Config, error) {
	if configError != nil {
		return nil, configError
	}

	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if startBit != "" {
		r, err := config.ParseRange(startBit)
		if err != nil {
			return nil, fmt.Errorf("--sbw: %w", err)
		}
		cfg.Decode.StartBit = r
	}
	if frameGap != "" {
		r, err := config.ParseRange(frameGap)
		if err != nil {
			return nil, fmt.Errorf("--fgw: %w", err)
		}
		cfg.Decode.FrameGap = r
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runDecode is the main application logic
func runDecode(ctx context.Context, source string, stdout io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return decode(ctx, cfg, source, stdout)
}

func decode(ctx context.Context, cfg *config.Config, source string, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var m *metrics.Metrics
	if cfg.Output.MetricsFile != "" {
		m = metrics.New()
	}

	result, err := process(ctx, cfg, source, logger)
	if err != nil {
		if m != nil {
			m.ObserveFailure()
			if werr := m.WriteTextfile(cfg.Output.MetricsFile); werr != nil {
				logger.Error("metrics not written", zap.Error(werr))
			}
		}
		return err
	}

	if err := writeExports(cfg.Output, result, logger); err != nil {
		return err
	}
	if m != nil {
		m.Observe(result)
		if err := m.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			return err
		}
	}

	if cfg.Output.Pulses {
		if err := result.WritePulses(stdout); err != nil {
			return err
		}
	}
	if cfg.Output.JSON {
		return result.WriteJSON(stdout)
	}
	return result.WriteText(stdout)
}

func process(ctx context.Context, cfg *config.Config, source string, logger *zap.Logger) (*processor.Result, error) {
	rc, err := capture.Open(ctx, source, capture.Options{
		S3Region:      cfg.Source.S3Region,
		S3Endpoint:    cfg.Source.S3Endpoint,
		S3PathStyle:   cfg.Source.S3PathStyle,
		S3AccessKey:   cfg.Source.S3AccessKey,
		S3SecretKey:   cfg.Source.S3SecretKey,
		SerialBaud:    cfg.Source.SerialBaud,
		SerialTimeout: cfg.Source.SerialTimeout,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	defer rc.Close()

	proc, err := processor.NewProcessor(processor.ConfigFrom(cfg.Decode), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor: %w", err)
	}

	result, err := proc.Process(ctx, rc)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("interrupted: %w", err)
		}
		return nil, err
	}
	return result, nil
}

// writeExports writes histograms, plots and parquet files requested by out
func writeExports(out config.OutputConfig, result *processor.Result, logger *zap.Logger) error {
	if out.HighsFile != "" {
		if err := result.ExportHistogram(out.HighsFile, wave.High); err != nil {
			return err
		}
	}
	if out.LowsFile != "" {
		if err := result.ExportHistogram(out.LowsFile, wave.Low); err != nil {
			return err
		}
	}

	var plots []*gonumplot.Plot
	if out.PlotRaw != "" {
		win, err := config.ParseWindow(out.PlotRaw)
		if err != nil {
			return fmt.Errorf("--plotraw: %w", err)
		}
		p, err := plot.Raw(result.Wave, win)
		if err != nil {
			return err
		}
		plots = append(plots, p)
	}
	if out.PlotLevels != "" {
		win, err := config.ParseWindow(out.PlotLevels)
		if err != nil {
			return fmt.Errorf("--plotlevels: %w", err)
		}
		p, err := plot.Levels(result.Levels, win)
		if err != nil {
			return err
		}
		plots = append(plots, p)
	}
	if len(plots) > 0 {
		if err := plot.Save(out.PlotFile, plots...); err != nil {
			return err
		}
		logger.Info("plot saved", zap.String("file", out.PlotFile))
	}

	if out.LevelsParquet == "" && out.CharsParquet == "" {
		return nil
	}
	w, err := filewriter.NewWriter(out.Compression)
	if err != nil {
		return err
	}
	if out.LevelsParquet != "" {
		if err := w.WriteLevels(out.LevelsParquet, result.Levels, result.SamplePeriod); err != nil {
			return fmt.Errorf("failed to write levels: %w", err)
		}
		logger.Info("levels saved", zap.String("file", out.LevelsParquet), zap.String("compression", w.Codec()))
	}
	if out.CharsParquet != "" {
		if err := w.WriteCharacters(out.CharsParquet, result.Frames); err != nil {
			return fmt.Errorf("failed to write characters: %w", err)
		}
		logger.Info("characters saved", zap.String("file", out.CharsParquet), zap.String("compression", w.Codec()))
	}
	return nil
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
