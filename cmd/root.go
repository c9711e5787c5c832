package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	transfers "github.com/kbase/cdm-transfers"
	"github.com/kbase/cdm-transfers/objectstore/minio"
)

var (
	endpointMsg  = "Object store endpoint URL. An http scheme disables TLS.\nEnvironment Variable: [$MINIO_ENDPOINT_URL]"
	accessKeyMsg = "Object store access key.\nEnvironment Variable: [$MINIO_ACCESS_KEY]"
	secretKeyMsg = "Object store secret key.\nEnvironment Variable: [$MINIO_SECRET_KEY]"
	bucketMsg    = "Bucket the datasets are published into.\nEnvironment Variable: [$CDM_BUCKET]"
	logLevelMsg  = "Log verbosity: debug, info, warn, or error."
	logJSONMsg   = "Emit logs as JSON instead of text."
)

var (
	endpoint   string
	accessKey  string
	secretKey  string
	bucketName string
	logLevel   string
	logJSON    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "http://localhost:9000", endpointMsg)
	if err := viper.BindPFlag("endpoint", rootCmd.PersistentFlags().Lookup("endpoint")); err != nil {
		panic("INTERNAL ERROR: could not bind endpoint flag to endpoint environment variable")
	}

	rootCmd.PersistentFlags().StringVar(&accessKey, "access-key", "minioadmin", accessKeyMsg)
	if err := viper.BindPFlag("access-key", rootCmd.PersistentFlags().Lookup("access-key")); err != nil {
		panic("INTERNAL ERROR: could not bind access-key flag to access-key environment variable")
	}

	rootCmd.PersistentFlags().StringVar(&secretKey, "secret-key", "minioadmin", secretKeyMsg)
	if err := viper.BindPFlag("secret-key", rootCmd.PersistentFlags().Lookup("secret-key")); err != nil {
		panic("INTERNAL ERROR: could not bind secret-key flag to secret-key environment variable")
	}

	rootCmd.PersistentFlags().StringVar(&bucketName, "bucket", "cdm-lake", bucketMsg)
	if err := viper.BindPFlag("bucket", rootCmd.PersistentFlags().Lookup("bucket")); err != nil {
		panic("INTERNAL ERROR: could not bind bucket flag to bucket environment variable")
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", logLevelMsg)
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, logJSONMsg)

	viper.SetEnvPrefix("cdm")
	viper.AutomaticEnv()

	// The object store settings follow the MINIO_* names the rest of the
	// lakehouse tooling uses.
	_ = viper.BindEnv("endpoint", "MINIO_ENDPOINT_URL")
	_ = viper.BindEnv("access-key", "MINIO_ACCESS_KEY")
	_ = viper.BindEnv("secret-key", "MINIO_SECRET_KEY")
}

var rootCmd = &cobra.Command{
	Use:     "cdm-transfer",
	Short:   "Transfer external genome datasets into the CDM object store",
	Long:    ``,
	Version: version,
}

// Execute runs the root command of cdm-transfer, which has no action of its
// own, so it evaluates which subcommand should be executed.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		prettyPrintError(err)
		os.Exit(1)
	}
}

// foldEnvVarsIntoFlagValues applies environment settings where the flag was
// not given on the command line.
func foldEnvVarsIntoFlagValues() {
	resolveString("endpoint", &endpoint)
	resolveString("access-key", &accessKey)
	resolveString("secret-key", &secretKey)
	resolveString("bucket", &bucketName)
}

func resolveString(name string, value *string) {
	if value == nil {
		return
	}
	if viper.IsSet(name) {
		env := viper.GetString(name)
		if env != "" {
			*value = env
		}
	}
}

func newLogger() *transfers.Logger {
	level := parseLevel(logLevel)
	if logJSON {
		return transfers.NewJSONLogger(level)
	}
	return transfers.NewTextLogger(level)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newStore() (*minio.Store, error) {
	return minio.New(bucketName,
		minio.WithEndpoint(endpoint),
		minio.WithCredentials(accessKey, secretKey),
	)
}
