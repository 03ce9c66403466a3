package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"culverin/internal/dummy"
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run a local HTTP server with fast/medium/slow/spike/error endpoints for trying out attack",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		dummy.Start(dummy.ServerConfig{Port: port, Logger: logger})

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "port to listen on")
}
