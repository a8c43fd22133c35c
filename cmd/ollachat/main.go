// Package main provides the ollachat CLI entry point: an interactive chat
// client for local Ollama models with persisted sessions and image uploads.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/abiosoft/ishell/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ollachat/internal/chat"
	"ollachat/internal/config"
	"ollachat/internal/logger"
	"ollachat/internal/ollama"
	"ollachat/internal/shell"
	"ollachat/internal/store"
)

var version = "0.1.0" // set at build time

// rootCmd starts the interactive shell when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "ollachat",
	Short: "ollachat - chat with local Ollama models",
	Long: `ollachat is an interactive terminal client for local Ollama models.
Conversations are persisted per session, and vision-capable models accept
image attachments which are validated and optimized before sending.`,
	Run: runShell,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat shell",
	Long:  `Start the interactive ollachat shell (same as running ollachat with no arguments).`,
	Run:   runShell,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available on the Ollama server",
	Run:   runModels,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("ollachat v%s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String(config.KeyHost, "", "Ollama server address [default: http://localhost:11434]")
	flags.String(config.KeyHistoryDir, "", "Directory for session files [default: ./"+config.DefaultHistoryDir+"]")
	flags.String(config.KeyModel, "", "Model to chat with")
	flags.Float64(config.KeyTemperature, config.DefaultTemperature, "Sampling temperature (0..2)")
	flags.String(config.KeySystemPrompt, "", "Optional system prompt")
	flags.Bool(config.KeyOptimizeImages, true, "Resize and recompress attached images")
	flags.String(config.KeyLogLevel, "", "Set log level (debug|info|warn|error) [default: info]")
	flags.String(config.KeyLogFile, "", "Write logs to file instead of stderr")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup resolves configuration and prepares the logger, store and client. A
// store directory that cannot be created is fatal: nothing can be persisted.
func setup() (*config.Config, *store.Store, *ollama.Client) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}

	st := store.New(cfg.HistoryDir)
	if err := st.EnsureDirectory(); err != nil {
		logger.Fatal("failed to initialize chat history directory", "dir", cfg.HistoryDir, "error", err)
	}

	return cfg, st, ollama.NewClient(cfg.Host)
}

func runShell(_ *cobra.Command, _ []string) {
	cfg, st, client := setup()
	logger.Info("starting ollachat", "version", version, "host", client.Host(), "history_dir", st.Dir())

	controller := chat.NewController(st, client, chat.Settings{
		Model:          cfg.Model,
		Temperature:    cfg.Temperature,
		SystemPrompt:   cfg.SystemPrompt,
		OptimizeImages: cfg.OptimizeImages,
	})

	sh := ishell.New()
	sh.SetPrompt("you> ")
	sh.Println(fmt.Sprintf("ollachat v%s - chat with your local Ollama models", version))
	sh.Println("Type 'help' for commands; anything else is sent to the model.")
	if cfg.Model == "" {
		sh.Println("No model selected yet. Try: models, then: model <name>")
	}

	shell.New(controller, client).Register(sh)
	sh.Run()
}

func runModels(_ *cobra.Command, _ []string) {
	_, _, client := setup()

	descriptors, err := client.ListModels(context.Background())
	if err != nil {
		logger.Fatal("failed to list models", "error", err)
	}
	if len(descriptors) == 0 {
		fmt.Println("No models found. Pull one first: ollama pull llama3.2:1b")
		return
	}

	for _, d := range descriptors {
		badge := "text-only"
		if ollama.IsVisionModel(d.Name) {
			badge = "vision"
		}
		fmt.Printf("%-40s %s\n", d.Name, badge)
	}
}
