package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cplr/internal/bcache"
	"cplr/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the build cache",
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every cached executable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, err := cfg.CacheDir()
		if err != nil {
			return err
		}
		cache, err := bcache.Open(dir)
		if err != nil {
			return fmt.Errorf("open build cache: %w", err)
		}
		n, err := cache.Len()
		if err != nil {
			return err
		}
		if err := cache.DropAll(); err != nil {
			return fmt.Errorf("clean build cache: %w", err)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached executables from %s\n", n, dir)
		return err
	},
}

func init() {
	cacheCmd.AddCommand(cacheCleanCmd)
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	return config.Load(path, ".")
}

// openCache returns nil when caching is disabled.
func openCache(cfg config.Config) (*bcache.Cache, error) {
	if cfg.Cache.Disabled {
		return nil, nil
	}
	dir, err := cfg.CacheDir()
	if err != nil {
		return nil, err
	}
	return bcache.Open(dir)
}
