package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/zhukov-alex/snowflake/internal/config"
	"github.com/zhukov-alex/snowflake/internal/decoder"
)

func main() {
	log.SetFlags(log.Llongfile | log.Ldate | log.Ltime | log.Lmicroseconds)

	var cfgFile string
	cobra.OnInitialize(config.NewConfigInit(&cfgFile))

	cmd := &cobra.Command{
		Use:   "sfdecode [id...]",
		Short: "Decode snowflake ids into timestamp, sequence, server and worker id",
		RunE:  decoder.DecodeCmd,
	}

	cmd.Flags().StringVar(&cfgFile, "config", "config/config.yaml", "Path to the configuration file (default: config/config.yaml)")
	cmd.Flags().String("format", decoder.FormatJSON, "Output format: json or text")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("command error: %v", err)
	}
}
