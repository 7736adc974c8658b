package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bloomwatch/chatbot/internal/cli"
	"github.com/bloomwatch/chatbot/internal/models"
	"github.com/spf13/cobra"
)

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [flags] <question...>",
		Short: "Ask one question against the persisted index",
		Example: `  bloomwatch ask What is NDVI?
  bloomwatch ask --language hi "मेरी फसल के लिए कौन सी खाद?"
  bloomwatch ask --farm-data '{"ndvi":0.45,"crop_type":"Wheat"}' How is my crop doing?`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
	cmd.Flags().StringP("language", "l", models.DefaultLanguage, "language code of the question, or auto")
	cmd.Flags().String("farm-data", "", "farm context as JSON (ndvi, evi, crop_type, soil_type, ...)")
	cmd.Flags().StringP("output", "o", "text", "output format: text or json")
	return cmd
}

// buildQuery joins args into one question so quoting is optional.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFarmData(raw string) (*models.FarmContext, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var farm models.FarmContext
	if err := json.Unmarshal([]byte(raw), &farm); err != nil {
		return nil, fmt.Errorf("invalid --farm-data: %w", err)
	}
	return &farm, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	format, err := outputFlag(cmd)
	if err != nil {
		return err
	}
	rawFarm, _ := cmd.Flags().GetString("farm-data")
	farm, err := parseFarmData(rawFarm)
	if err != nil {
		return err
	}
	lang, _ := cmd.Flags().GetString("language")

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	if err := ensureIndex(ctx, components, false, logger); err != nil {
		return err
	}
	resp, err := components.Responder.Chat(ctx, &models.QueryRequest{
		Query:    buildQuery(args),
		Language: lang,
		FarmData: farm,
	})
	if err != nil {
		return err
	}
	return cli.WriteAnswer(cmd.OutOrStdout(), resp, format)
}
