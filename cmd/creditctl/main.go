package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/Dan9191/bureau-scoring/internal/models"
	"github.com/Dan9191/bureau-scoring/internal/normalizer"
	"github.com/Dan9191/bureau-scoring/internal/rejection"
	"github.com/Dan9191/bureau-scoring/internal/scoring"
	"github.com/Dan9191/bureau-scoring/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

var (
	version = "v0.0.1-default"

	logger = newLogger()
)

const (
	debugFlag            = "debug"
	coefficientsFlag     = "coefficients"
	providerFlag         = "provider"
	fileFlag             = "file"
	statusFlag           = "status"
	rejectHistoricalFlag = "reject-historical"
	deceasedPolicyFlag   = "deceased-policy"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("fatal error: %v", err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "creditctl",
		Version: version,
		Usage:   "Offline scoring of saved bureau responses",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  debugFlag,
				Usage: "Prints verbose logs (optional, default: false)",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool(debugFlag) {
				logger.SetLevel(logrus.DebugLevel)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "score",
				Usage: "Score a saved bureau response",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     providerFlag,
						Usage:    "Bureau provider (equifax, bcu, riskproxy)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     fileFlag,
						Usage:    "Path to a saved bureau response body",
						Required: true,
					},
					&cli.StringFlag{
						Name:  statusFlag,
						Usage: "HTTP status the bureau answered with",
						Value: "200",
					},
					&cli.StringFlag{
						Name:  coefficientsFlag,
						Usage: "Path to a PMML coefficients file (optional, defaults to the embedded sample table)",
					},
					&cli.BoolFlag{
						Name:  rejectHistoricalFlag,
						Usage: "Also reject on a bad rating in the historical period",
					},
					&cli.StringFlag{
						Name:  deceasedPolicyFlag,
						Usage: "What a deceased flag does (reject, annotate)",
						Value: string(rejection.DeceasedReject),
					},
				},
				Action: cmdScore,
			},
			{
				Name:  "model",
				Usage: "Print the version, digest and weights of a coefficients table",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  fileFlag,
						Usage: "Path to a PMML coefficients file (optional, defaults to the embedded sample table)",
					},
				},
				Action: cmdModel,
			},
		},
	}
}

func cmdScore(ctx context.Context, cmd *cli.Command) error {
	provider, err := models.ParseProvider(cmd.String(providerFlag))
	if err != nil {
		return err
	}
	status, err := strconv.Atoi(cmd.String(statusFlag))
	if err != nil || http.StatusText(status) == "" {
		return fmt.Errorf("invalid status %q", cmd.String(statusFlag))
	}
	policy, err := rejection.ParseDeceasedPolicy(cmd.String(deceasedPolicyFlag))
	if err != nil {
		return err
	}
	body, err := os.ReadFile(cmd.String(fileFlag))
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	coef, err := scoring.LoadCoefficients(cmd.String(coefficientsFlag))
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"provider": provider,
		"status":   status,
		"model":    coef.Version(),
	}).Debug("scoring saved payload")

	svc := service.NewService(
		nil,
		normalizer.NewNormalizer(logger),
		rejection.NewEvaluator(rejection.Policy{
			RejectHistoricalBadRating: cmd.Bool(rejectHistoricalFlag),
			Deceased:                  policy,
		}),
		scoring.NewEngine(coef, logger),
		nil,
		logger,
	)
	result, err := svc.Evaluate(provider, "", models.UpstreamOutcome{StatusCode: status, Body: body})
	if err != nil {
		return err
	}
	return encode(cmd.Root().Writer, result)
}

type modelInfo struct {
	Version   string             `json:"version"`
	Digest    string             `json:"digest"`
	Intercept float64            `json:"intercept"`
	Weights   map[string]float64 `json:"weights"`
}

func cmdModel(ctx context.Context, cmd *cli.Command) error {
	coef, err := scoring.LoadCoefficients(cmd.String(fileFlag))
	if err != nil {
		return err
	}
	return encode(cmd.Root().Writer, modelInfo{
		Version:   coef.Version(),
		Digest:    coef.Digest(),
		Intercept: coef.Intercept(),
		Weights:   coef.Weights(),
	})
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
	return log
}

func encode(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
