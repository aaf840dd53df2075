// Package core provides the root command and server wiring for hostd.
package core

import (
	"fmt"
	"os"

	"github.com/panelforge/hostd/src/common/cli"
	"github.com/panelforge/hostd/src/common/logs"
	"github.com/panelforge/hostd/src/common/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Global logger instance
	log *logs.Logger

	// Configuration file path
	cfgFile string
)

// Linker variables - these are set via ldflags at build time
var (
	Version        = "dev"
	ReleaseName    = "dev"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hostd",
	Short: "hostd panel runtime server",
	Long: `hostd hosts a workspace-scoped tree of composable panels: it
persists the panel tree, provisions and bundles panel sources on demand,
and exposes an HTTP facade for the bridge/preload layer that embeds it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// Execute runs the root command
func Execute() {
	VersionInfo.Version = Version
	VersionInfo.ReleaseName = ReleaseName
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "/etc/hostd/hostd.yaml")

	rootCmd.Flags().IntP("port", "p", 7788, "Port to listen on")
	rootCmd.Flags().StringP("bind", "b", "0.0.0.0", "Address to bind to")

	cli.RegisterLogFlags(rootCmd)

	rootCmd.Flags().String("workspace-root", "~/.hostd/workspaces", "Base directory under which each workspace's panel database, artifact cache, and type-definitions root live")

	rootCmd.Flags().String("cache-backend", "local", "Artifact cache backend: 'local' or 's3'")
	rootCmd.Flags().Int("build-workers", 2, "Number of concurrent build worker goroutines per open workspace")
	rootCmd.Flags().Int("build-queue-depth", 32, "Pending build job queue depth per open workspace")
	rootCmd.Flags().Bool("dev-cache", false, "Bypass artifact cache reads (writes still occur) for local iteration")

	rootCmd.Flags().String("auth-token", "", "Static bearer token required on authenticated endpoints; empty disables auth")

	rootCmd.Flags().String("s3-endpoint", "", "S3-compatible storage endpoint URL")
	rootCmd.Flags().String("s3-region", "us-east-1", "S3 region")
	rootCmd.Flags().String("s3-bucket", "hostd-artifacts", "S3 bucket for the shared artifact cache")
	rootCmd.Flags().String("s3-access-key", "", "S3 access key ID")
	rootCmd.Flags().String("s3-secret-key", "", "S3 secret access key")

	_ = viper.BindPFlag("server.port", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.bind", rootCmd.Flags().Lookup("bind"))
	_ = viper.BindPFlag("workspace.root", rootCmd.Flags().Lookup("workspace-root"))
	_ = viper.BindPFlag("cache.backend", rootCmd.Flags().Lookup("cache-backend"))
	_ = viper.BindPFlag("build.workers", rootCmd.Flags().Lookup("build-workers"))
	_ = viper.BindPFlag("build.queue_depth", rootCmd.Flags().Lookup("build-queue-depth"))
	_ = viper.BindPFlag("cache.dev", rootCmd.Flags().Lookup("dev-cache"))
	_ = viper.BindPFlag("auth.token", rootCmd.Flags().Lookup("auth-token"))
	_ = viper.BindPFlag("cache.s3.endpoint", rootCmd.Flags().Lookup("s3-endpoint"))
	_ = viper.BindPFlag("cache.s3.region", rootCmd.Flags().Lookup("s3-region"))
	_ = viper.BindPFlag("cache.s3.bucket", rootCmd.Flags().Lookup("s3-bucket"))
	_ = viper.BindPFlag("cache.s3.access_key", rootCmd.Flags().Lookup("s3-access-key"))
	_ = viper.BindPFlag("cache.s3.secret_key", rootCmd.Flags().Lookup("s3-secret-key"))

	viper.SetDefault("server.port", 7788)
	viper.SetDefault("server.bind", "0.0.0.0")
	viper.SetDefault("workspace.root", "~/.hostd/workspaces")
	viper.SetDefault("cache.backend", "local")
	viper.SetDefault("build.workers", 2)
	viper.SetDefault("build.queue_depth", 32)
	viper.SetDefault("cache.s3.region", "us-east-1")
	viper.SetDefault("cache.s3.bucket", "hostd-artifacts")

	rootCmd.AddCommand(versionCmd, migrateCmd, cachePruneCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(VersionInfo.Full())
	},
}

// migrateCmd applies the panel schema to a single workspace database path
// without starting the server, for operators preparing a workspace offline.
var migrateCmd = &cobra.Command{
	Use:   "migrate <workspace-db-path>",
	Short: "Apply pending panel schema migrations to a workspace database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(args[0])
	},
}

// cachePruneCmd is a manual hook only: eviction policy is the artifact
// cache owner's concern, not something this core enforces automatically.
var cachePruneCmd = &cobra.Command{
	Use:   "cache-prune",
	Short: "No-op: hostd performs no automatic artifact cache eviction",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("hostd does not evict cache entries; remove them from the storage backend directly")
	},
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	opts := cli.ConfigOptions{
		ConfigName: "hostd",
		ConfigType: "yaml",
		EnvPrefix:  "HOSTD",
		SearchPaths: []string{
			"/etc/hostd",
			"/opt/hostd",
			"~/.hostd",
		},
	}
	opts.ConfigFile = cfgFile

	if err := cli.InitConfig(opts); err != nil {
		return err
	}

	log = cli.InitLogger("hostd")
	return nil
}
