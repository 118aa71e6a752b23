package cmd

import (
	"context"
	"fmt"
	"os"

	"MuseFM/config"
	"MuseFM/core/library"
	"MuseFM/db"
	"MuseFM/logger"
	"MuseFM/repository"

	"github.com/spf13/cobra"
)

var (
	scanForce    bool
	scanMetadata bool
	scanVerbose  bool
	scanPrune    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "扫描并同步音乐库",
	Long:  `扫描播放列表目录，将发现的曲目与数据库进行对账（新增/更新/可选清理）`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogOutputPath,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})

		if err := db.ConnectDB(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
			os.Exit(1)
		}
		defer db.DB.Close()
		if err := db.InitDB(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
			os.Exit(1)
		}

		trackRepo := repository.NewMySQLTrackRepository()
		parser := library.NewM3UParser(cfg.PlaylistsRoot)
		reconciler := library.NewReconciler(trackRepo)
		scanner := library.NewScanner(parser, reconciler)

		result := scanner.ScanAndSync(context.Background(), library.ScanOptions{
			ForceRescan:     scanForce,
			ExtractMetadata: scanMetadata,
			Verbose:         scanVerbose,
			Prune:           scanPrune,
		})

		fmt.Printf("success: %v\n", result.Success)
		fmt.Printf("message: %s\n", result.Message)
		fmt.Printf("scanned files: %d\n", result.Stats.ScannedFiles)
		fmt.Printf("tracks: %d, artists: %d, size: %d bytes\n",
			result.Stats.TotalTracks, result.Stats.TotalArtists, result.Stats.TotalSize)
		fmt.Printf("synced: %d\n", result.SyncedCount)
		for _, e := range result.Stats.Errors {
			fmt.Printf("  warn: %s\n", e)
		}
		if !result.Success {
			os.Exit(1)
		}
	},
}

func init() {
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "强制重新扫描")
	scanCmd.Flags().BoolVar(&scanMetadata, "metadata", false, "提取音频元数据（时长、专辑）")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "详细日志")
	scanCmd.Flags().BoolVar(&scanPrune, "prune", false, "删除磁盘上已不存在的曲目")
	rootCmd.AddCommand(scanCmd)
}
