// cmd/yepctl/root.go
// Root command for the `yepctl` CLI: a client-transport (C5) driver plus
// thin wrappers around the broker and gateway binaries for local testing.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kzahel/yepanywhere/internal/logging"
	"github.com/kzahel/yepanywhere/pkg/version"
)

var (
    cfgFile string
    logJSON bool

    rootCmd = &cobra.Command{
        Use:   "yepctl",
        Short: "Client and operator CLI for the yepanywhere remote-access relay",
        Long:  `yepctl drives the client transport (request/subscribe/upload) directly against a gateway, and runs local broker/gateway instances for testing.`,
        PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
            if logging.Initialised() {
                return nil
            }
            return initLogger()
        },
    }
)

func init() {
    cobra.OnInitialize(initConfig)

    rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file (YAML/TOML/JSON)")
    rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Enable JSON log output (default is human-friendly console)")

    rootCmd.AddCommand(newRequestCmd())
    rootCmd.AddCommand(newSubscribeCmd())
    rootCmd.AddCommand(newUploadCmd())
    rootCmd.AddCommand(newBrokerCmd())
    rootCmd.AddCommand(newGatewayCmd())
    rootCmd.AddCommand(newVersionCmd())
}

// Execute is called by main.main().
func Execute() {
    if err := rootCmd.Execute(); err != nil {
        _, _ = fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

func initConfig() {
    if cfgFile != "" {
        viper.SetConfigFile(cfgFile)
    } else {
        home, err := os.UserHomeDir()
        if err == nil {
            viper.AddConfigPath(filepath.Join(home, ".config", "yepctl"))
        }
        viper.SetConfigName("config")
    }

    viper.SetEnvPrefix("YEPCTL")
    viper.AutomaticEnv()

    if err := viper.ReadInConfig(); err == nil {
        logging.Sugar().Infof("using config file: %s", viper.ConfigFileUsed())
    }
}

func initLogger() error {
    cfg := zap.NewProductionConfig()
    if !logJSON {
        cfg = zap.NewDevelopmentConfig()
    }
    cfg.EncoderConfig.EncodeTime = zap.TimeEncoder(func(t time.Time, enc zap.PrimitiveArrayEncoder) {
        enc.AppendString(t.Format(time.RFC3339))
    })

    logger, err := cfg.Build()
    if err != nil {
        return err
    }
    logging.Set(logger)
    logging.Sugar().Infow("yepctl starting", "go_version", runtime.Version(), "version", version.String())
    return nil
}
