package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "opsight",
	Short: "Operational analytics for pizza delivery pipelines",
	Long: `opsight ingests order exports from a pizza shop's POS system and
analyzes the production pipeline: stage bottlenecks, oven temperature
effects, complaint risk scoring and hourly demand forecasting with
staffing recommendations.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.opsight.json)")

	rootCmd.PersistentFlags().String("output-path", "output", "Directory for analysis artifacts")
	rootCmd.PersistentFlags().String("output-format", "json", "Artifact format: json, csv or parquet")
	rootCmd.PersistentFlags().Bool("kafka-enabled", false, "Publish artifacts to Kafka instead of files")
	rootCmd.PersistentFlags().String("kafka-broker-list", "localhost:9092", "Kafka broker list")

	viper.BindPFlag("output_path", rootCmd.PersistentFlags().Lookup("output-path"))
	viper.BindPFlag("output_format", rootCmd.PersistentFlags().Lookup("output-format"))
	viper.BindPFlag("kafka_enabled", rootCmd.PersistentFlags().Lookup("kafka-enabled"))
	viper.BindPFlag("kafka_broker_list", rootCmd.PersistentFlags().Lookup("kafka-broker-list"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("json")
		viper.SetConfigName(".opsight")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
