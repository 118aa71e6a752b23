package cmd

import (
	"MuseFM/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动MuseFM服务器",
	Long:  `启动MuseFM音乐库的HTTP服务器，提供扫描、列表与流式传输API`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
