package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dreamscape-app/dreamscape/internal/synth"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the synthesized audio cache",
	Args:  cobra.NoArgs,
	RunE:  runCacheInfo,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached audio; it is re-synthesized on demand",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheInfo(*cobra.Command, []string) error {
	dir, err := resolveCacheDir()
	if err != nil {
		return err
	}

	var files int
	var bytes int64
	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		bytes += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	fmt.Printf("%s\n  %s\n", headerStyle.Render("Audio cache"), subtle(dir))
	fmt.Printf("  %d artifacts, %.1f MB\n", files, float64(bytes)/(1024*1024))
	return nil
}

func runCacheClear(*cobra.Command, []string) error {
	dir, err := resolveCacheDir()
	if err != nil {
		return err
	}
	// Clearing needs no provider; pass none.
	cache, err := synth.NewCache(dir, nil, log.Default())
	if err != nil {
		return err
	}
	if err := cache.Clear(); err != nil {
		return err
	}
	fmt.Println("Cleared the audio cache.")
	return nil
}
