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
	cleanLimit  int
	cleanDryRun bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "批量清理歌曲标题",
	Long:  `对库中歌曲标题应用清理规则（去除音轨序号、多余扩展名、括号版本标签）`,
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

		reconciler := library.NewReconciler(repository.NewMySQLTrackRepository())
		result, err := reconciler.BatchCleanTitles(context.Background(), library.CleanOptions{
			Limit:  cleanLimit,
			DryRun: cleanDryRun,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s\n", result.Message)
		for _, change := range result.Details {
			if change.Changed {
				fmt.Printf("  %q -> %q\n", change.OriginalTitle, change.NewTitle)
			}
		}
	},
}

func init() {
	cleanCmd.Flags().IntVar(&cleanLimit, "limit", 0, "最多处理的曲目数量（0为全部）")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "预演模式，不写入数据库")
	rootCmd.AddCommand(cleanCmd)
}
