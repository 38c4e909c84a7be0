package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/di"
	"github.com/mikey/mail-classifier/internal/training"
)

var (
	flagVerbose bool
	flagJSONLog bool
	flagFile    string
	flagForce   bool
)

func main() {
	root := &cobra.Command{
		Use:           "email-classifier",
		Short:         "Ensemble email classification engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable verbose logging")
	root.PersistentFlags().BoolVar(&flagJSONLog, "json-log", false, "output logs in JSON format")

	classifyCmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify an RFC 5322 email from a file or stdin",
		RunE:  runClassify,
	}
	classifyCmd.Flags().StringVar(&flagFile, "file", "", "input email file (stdin if empty)")

	feedbackCmd := &cobra.Command{
		Use:   "feedback <category> [text]",
		Short: "Submit a corrected category for an email text (stdin if no text argument)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runFeedback,
	}

	retrainCmd := &cobra.Command{
		Use:   "retrain",
		Short: "Trigger the retraining state machine",
		RunE:  runRetrain,
	}
	retrainCmd.Flags().BoolVar(&flagForce, "force", false, "retrain even below the feedback threshold")

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train and deploy the initial model from the seed corpus",
		RunE:  runTrain,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the deployed model and pending feedback",
		RunE:  runStatus,
	}

	root.AddCommand(classifyCmd, feedbackCmd, retrainCmd, trainCmd, statusCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// invoke builds the container and runs fn inside it.
func invoke(fn any) error {
	container, err := di.BuildContainer(flagVerbose, flagJSONLog)
	if err != nil {
		return fmt.Errorf("build dependency container: %w", err)
	}
	return container.Invoke(fn)
}

func runClassify(cmd *cobra.Command, args []string) error {
	email, err := readEmail(flagFile)
	if err != nil {
		return err
	}
	return invoke(func(service *core.ClassifierService, logger *zap.Logger) error {
		defer logger.Sync()
		result, err := service.Classify(context.Background(), email)
		if err != nil {
			if err == core.ErrNoSnapshot {
				return fmt.Errorf("no deployed model; run `email-classifier train` first")
			}
			return err
		}
		printResult(cmd.OutOrStdout(), result)
		return nil
	})
}

func runFeedback(cmd *cobra.Command, args []string) error {
	category, err := core.ParseCategory(args[0])
	if err != nil {
		return err
	}
	text, err := readText(args[1:])
	if err != nil {
		return err
	}
	return invoke(func(service *core.ClassifierService, logger *zap.Logger) error {
		defer logger.Sync()
		if err := service.SubmitFeedback(context.Background(), text, category); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "feedback accepted")
		return nil
	})
}

func runRetrain(cmd *cobra.Command, args []string) error {
	return invoke(func(service *core.ClassifierService, logger *zap.Logger) error {
		defer logger.Sync()
		report, err := service.Retrain(context.Background(), flagForce)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", report.Status)
		fmt.Fprintf(cmd.OutOrStdout(), "old accuracy: %.4f\n", report.OldAccuracy)
		fmt.Fprintf(cmd.OutOrStdout(), "new accuracy: %.4f\n", report.NewAccuracy)
		fmt.Fprintf(cmd.OutOrStdout(), "training samples: %d\n", report.TrainingSamples)
		if report.Reason != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "reason: %s\n", report.Reason)
		}
		return nil
	})
}

func runTrain(cmd *cobra.Command, args []string) error {
	return invoke(func(controller *training.Controller, logger *zap.Logger) error {
		defer logger.Sync()
		snapshot, err := controller.Bootstrap(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deployed version: %s\n", snapshot.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "held-out accuracy: %.4f\n", snapshot.HeldOutAccuracy)
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return invoke(func(service *core.ClassifierService, logger *zap.Logger) error {
		defer logger.Sync()
		status, err := service.ModelStatus(context.Background())
		if err != nil {
			if err == core.ErrNoSnapshot {
				return fmt.Errorf("no deployed model; run `email-classifier train` first")
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deployed version: %s\n", status.DeployedVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "deployed accuracy: %.4f\n", status.DeployedAccuracy)
		fmt.Fprintf(cmd.OutOrStdout(), "unconsumed feedback: %d\n", status.UnconsumedFeedback)
		return nil
	})
}
