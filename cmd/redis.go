package cmd

import (
	"fmt"
	"os"

	"MuseFM/config"
	"MuseFM/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "测试Redis连接",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if err := db.ConnectRedis(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Redis connection failed: %v\n", err)
			os.Exit(1)
		}
		defer db.CloseRedis()

		if err := db.TestRedis(); err != nil {
			fmt.Fprintf(os.Stderr, "Redis test failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Redis connection successful!")
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
