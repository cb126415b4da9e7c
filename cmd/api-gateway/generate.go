package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tradelens/ai-gateway/app"
	"github.com/tradelens/ai-gateway/config"
	"github.com/tradelens/ai-gateway/services/gateway"
	"github.com/tradelens/ai-gateway/utils"
)

type generator interface {
	Generate(ctx context.Context, req *gateway.Request) (*gateway.Response, error)
}

func newGenerateCmd() *cobra.Command {
	var (
		req    gateway.Request
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Run a single prompt through the gateway and print the result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.Prompt = args[0]
			}

			ctx := cmd.Context()
			cfg, err := config.New(ctx)
			if err != nil {
				return err
			}

			logger, err := initLogger()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			deps, err := app.NewDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close(context.Background())

			return runGenerate(ctx, cmd.OutOrStdout(), deps.Gateway, &req, asJSON)
		},
	}

	cmd.Flags().StringVarP(&req.Prompt, "prompt", "p", "", "prompt text")
	cmd.Flags().StringVar(&req.Feature, "feature", "", "feature label recorded with the request")
	cmd.Flags().StringVar(&req.Model, "model", "", "model override for the primary provider")
	cmd.Flags().StringVar(&req.CacheKey, "cache-key", "", "explicit cache key")
	cmd.Flags().BoolVar(&req.SkipCache, "skip-cache", false, "bypass the response cache")
	cmd.Flags().IntVar(&req.MaxTokens, "max-tokens", 0, "maximum completion tokens")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")

	return cmd
}

func runGenerate(ctx context.Context, out io.Writer, gw generator, req *gateway.Request, asJSON bool) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("a prompt is required (argument or --prompt)")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return fmt.Errorf("%w: %v", err, utils.GetValidationFields(err))
	}

	resp, err := gw.Generate(ctx, req)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	_, err = fmt.Fprintln(out, resp.Content)
	return err
}
