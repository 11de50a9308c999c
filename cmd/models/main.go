package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"HeadTurner/pkg/gemini"
	"HeadTurner/pkg/log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	var (
		method  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List Gemini models usable for pose editing",
		Long:  "Lists the Gemini models that support the given generation method, so a value for GEMINI_MODEL_NAME can be picked.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			apiKey := os.Getenv("GEMINI_API_KEY")
			if apiKey == "" {
				apiKey = os.Getenv("GOOGLE_API_KEY")
			}
			if apiKey == "" {
				return errors.New("GEMINI_API_KEY is not set")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := gemini.NewGeminiClient(ctx, gemini.Config{APIKey: apiKey})
			if err != nil {
				return fmt.Errorf("failed to create Gemini client: %w", err)
			}
			defer client.Close()

			models, err := client.ListModels(ctx, method)
			if err != nil {
				return fmt.Errorf("failed to list models: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Repeat("=", 50))
			fmt.Fprintf(out, "Models supporting '%s'\n", method)
			fmt.Fprintln(out, strings.Repeat("=", 50))
			for _, m := range models {
				fmt.Fprintf(out, "Model Name:   %s\n", m.Name)
				fmt.Fprintf(out, "Display Name: %s\n", m.DisplayName)
				fmt.Fprintf(out, "Description:  %s\n\n", m.Description)
			}
			fmt.Fprintf(out, "%d model(s) found. Use the Model Name as GEMINI_MODEL_NAME.\n", len(models))

			return nil
		},
	}

	cmd.Flags().StringVar(&method, "method", "generateContent", "generation method the model must support")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "time allowed for the listing")

	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Fatalf("Error loading .env file: %v", err)
	}

	if err := cmd.Execute(); err != nil {
		logger.Fatal(err)
	}
}
