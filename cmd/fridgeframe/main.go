package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"fridgeframe/internal/config"
	"fridgeframe/internal/playlog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func cliLogger(msg string) {
	log.Printf("[fridgeframe] %s", msg)
}

// configFlags registers one flag per configuration key. Only flags given on
// the command line take effect; the defaults shown in help come from config.
func configFlags(fs *pflag.FlagSet) {
	fs.Duration("photo-duration", 30*time.Second, "how long each photo is shown")
	fs.Duration("video-duration", 60*time.Second, "longest a video may play")
	fs.String("media-types", "all", "which items to show: all, photo or video")
	fs.Bool("video-sound", true, "play video audio")
	fs.String("source-url", "", "batch endpoint URL")
	fs.String("source-dir", "", "local album root directory")
	fs.Bool("source-raw-urls", false, "use item URLs from the endpoint without sizing suffixes")
	fs.Int("batch-count", 5, "items per batch from source-dir albums")
	fs.Duration("fetch-timeout", 30*time.Second, "batch request timeout")
	fs.String("db-path", "", "play log database (default ~/.local/share/fridgeframe/fridgeframe.db)")
	fs.Int("history-size", 20, "recent displays kept for the status API")
	fs.Bool("api-enabled", true, "serve the local status API")
	fs.String("api-addr", "127.0.0.1:8088", "status API listen address")
	fs.Bool("fullscreen", true, "start full screen")
	fs.String("player-command", "mpv", "video player command")
	fs.Bool("thermal-enabled", true, "restrict to photos while the CPU is hot")
	fs.String("thermal-path", "", "sysfs temperature file")
	fs.Float64("thermal-warning", 65, "temperature that forces photos only")
	fs.Float64("thermal-recovery", 60, "temperature that lifts the restriction")
	fs.Duration("thermal-interval", 10*time.Second, "temperature sampling period")
}

// NewRootCmd builds the command tree. run is what the run command does
// with a validated configuration, so tests can stand in for the kiosk.
func NewRootCmd(run func(cmd *cobra.Command, cfg config.Config) error) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "fridgeframe",
		Short:         "FridgeFrame - kiosk photo and video slideshow",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/fridgeframe/config.yml)")
	configFlags(rootCmd.PersistentFlags())

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Show the slideshow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}
	rootCmd.AddCommand(runCmd)

	var writePath string
	var overwrite bool
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if writePath != "" {
				if err := cfg.WriteFile(writePath, overwrite); err != nil {
					return err
				}
				cmd.Printf("Wrote %s\n", writePath)
				return nil
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				cmd.PrintErrf("Warning: %v\n", err)
			}
			cmd.Print(string(out))
			return nil
		},
	}
	configCmd.Flags().StringVar(&writePath, "write", "", "write the configuration to this file instead of printing it")
	configCmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(configCmd)

	var limit int
	var pruneAge time.Duration
	playlogCmd := &cobra.Command{
		Use:   "playlog",
		Short: "List recent displays from the play log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			store, err := playlog.Open(cfg.DBPath, cliLogger)
			if err != nil {
				return fmt.Errorf("failed to open play log: %w", err)
			}
			defer store.Close()

			if pruneAge > 0 {
				n, err := store.Prune(time.Now().Add(-pruneAge))
				if err != nil {
					return err
				}
				cmd.Printf("Pruned %d entries older than %s.\n", n, pruneAge)
				return nil
			}

			entries, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				cmd.Println("No displays recorded.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SHOWN\tKIND\tALBUM\tITEM")
			for _, e := range entries {
				item := e.Filename
				if item == "" {
					item = e.SourceRef
				}
				if e.Message != "" {
					item = e.Message
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ShownAt.Local().Format("2006-01-02 15:04:05"), e.Kind, e.Album, item)
			}
			return w.Flush()
		},
	}
	playlogCmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to list")
	playlogCmd.Flags().DurationVar(&pruneAge, "prune", 0, "delete entries older than this age instead of listing")
	rootCmd.AddCommand(playlogCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("FridgeFrame\n")
			cmd.Printf("  Version: %s\n", version)
			cmd.Printf("  Commit:  %s\n", commit)
			cmd.Printf("  Built:   %s\n", buildTime)
		},
	}
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func main() {
	rootCmd := NewRootCmd(runFrame)
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
