package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nadzzz/audiobridge/internal/speechcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the speech cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached speech entries",
	Long:  `Print every entry of the speech cache table with the size and age of its audio files.`,
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	table, err := speechcache.Load(cfg.TTS.Database)
	if err != nil {
		return err
	}
	dir := filepath.Join(cfg.Sounds.CacheDir, "tts")

	out := cmd.OutOrStdout()
	if len(table.TTS) == 0 {
		fmt.Fprintf(out, "Speech cache %s is empty\n", cfg.TTS.Database)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tVOICE\tFORMATS\tSIZE\tCREATED\tTEXT")

	var total int64
	for _, e := range table.TTS {
		var size int64
		created := "missing"
		for i, ext := range e.Extensions {
			fi, err := os.Stat(filepath.Join(dir, e.Filename+"."+ext))
			if err != nil {
				continue
			}
			size += fi.Size()
			if i == 0 {
				created = humanize.Time(fi.ModTime())
			}
		}
		total += size
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%q\n",
			strings.TrimPrefix(e.Filename, "/"), e.Voice, strings.Join(e.Extensions, ","),
			humanize.Bytes(uint64(size)), created, e.Text)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s entries, %s on disk\n", humanize.Comma(int64(len(table.TTS))), humanize.Bytes(uint64(total)))
	return nil
}
