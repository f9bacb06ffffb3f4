package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/MeKo-Tech/trackscan/internal/models"
	"github.com/MeKo-Tech/trackscan/internal/onnx"
	"github.com/spf13/cobra"
)

func (a *app) newModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model files the ONNX engine needs",
		Long: `List the detection model, recognition model and dictionary resolved from
the models directory and report whether each file is present.

With --check the ONNX Runtime shared library is loaded as well, which
verifies the runtime installation.

Examples:
  trackscan models
  trackscan models --models-dir /opt/trackscan/models --json
  trackscan models --check`,
		Args: cobra.NoArgs,
		RunE: a.runModels,
	}
	cmd.Flags().Bool("json", false, "print the model list as JSON")
	cmd.Flags().Bool("check", false, "also initialize the ONNX Runtime library")
	return cmd
}

func (a *app) runModels(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	check, _ := cmd.Flags().GetBool("check")

	list := models.ListModels(a.cfg.ModelsDir,
		a.cfg.Engine.DetectionModel, a.cfg.Engine.RecognitionModel, a.cfg.Engine.Dictionary)

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(list); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "NAME\tFILE\tPRESENT\tPATH")
		for _, m := range list {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", m.Name, m.Filename, m.Present, m.Path)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	missing := 0
	for _, m := range list {
		if !m.Present {
			missing++
		}
	}

	if check {
		if err := onnx.InitializeEnvironment(a.cfg.GPU.Enabled); err != nil {
			return fmt.Errorf("ONNX Runtime check failed: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "ONNX Runtime is ready")
	}
	if missing > 0 {
		return fmt.Errorf("%d model file(s) missing in %s", missing, models.GetModelsDir(a.cfg.ModelsDir))
	}
	return nil
}
