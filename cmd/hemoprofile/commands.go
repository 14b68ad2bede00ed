package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/stevenson-profiler/internal/database"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/hemodynamics"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/types"
)

// classifierFromFlags builds the classifier selected by --tuning and --legacy
func classifierFromFlags(cmd *cobra.Command) (*hemodynamics.Classifier, error) {
	tuningPath, _ := cmd.Flags().GetString("tuning")
	legacy, _ := cmd.Flags().GetBool("legacy")

	tuning := hemodynamics.DefaultTuning()
	if tuningPath != "" {
		t, err := hemodynamics.LoadTuningFile(tuningPath)
		if err != nil {
			return nil, err
		}
		tuning = t
	}

	var opts []hemodynamics.Option
	if legacy {
		opts = append(opts, hemodynamics.WithLegacyVitals())
	}
	return hemodynamics.NewClassifier(tuning, opts...)
}

func parseInterventions(raw []string) []hemodynamics.InterventionKind {
	kinds := make([]hemodynamics.InterventionKind, 0, len(raw))
	for _, r := range raw {
		for _, k := range strings.Split(r, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kinds = append(kinds, hemodynamics.InterventionKind(strings.ToLower(k)))
			}
		}
	}
	return kinds
}

// readObservation reads a YAML or JSON observation from path, or stdin for "-"
func readObservation(cmd *cobra.Command, path string) (hemodynamics.PatientObservation, error) {
	var obs hemodynamics.PatientObservation

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return obs, fmt.Errorf("read observation: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &obs)
	} else {
		err = yaml.Unmarshal(data, &obs)
	}
	if err != nil {
		return obs, fmt.Errorf("parse observation: %w", err)
	}
	return obs, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func evaluateCmd() *cobra.Command {
	var (
		file          string
		interventions []string
		record        bool
		dataDir       string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Classify a patient observation",
		Example: `  hemoprofile evaluate -f patient.yaml
  hemoprofile evaluate -f patient.json --intervention diuretic,vasodilator
  cat patient.yaml | hemoprofile evaluate -f -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := classifierFromFlags(cmd)
			if err != nil {
				return err
			}
			obs, err := readObservation(cmd, file)
			if err != nil {
				return err
			}

			ev, err := c.Evaluate(obs)
			if err != nil {
				return err
			}
			resp := types.EvaluateResponse{Evaluation: ev, Display: types.NewDisplay(ev)}

			if kinds := parseInterventions(interventions); len(kinds) > 0 {
				proj, err := c.ApplyIntervention(ev.Coordinate, kinds)
				if err != nil {
					return err
				}
				resp.Projection = &proj
			}

			if record {
				id, err := recordEvaluation(cmd.Context(), dataDir, obs, ev)
				if err != nil {
					return err
				}
				resp.RecordID = id
			}

			return printJSON(cmd, resp)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "observation file (YAML or JSON), or - for stdin")
	cmd.Flags().StringSliceVarP(&interventions, "intervention", "i", nil, "project the result through these interventions")
	cmd.Flags().BoolVar(&record, "record", false, "append the evaluation to the evaluation log")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "directory holding the evaluation log")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// recordEvaluation appends to the evaluation log in dataDir. Unlike the
// server, a failed write is an error here.
func recordEvaluation(ctx context.Context, dataDir string, obs hemodynamics.PatientObservation, ev hemodynamics.Evaluation) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := database.NewDB(dataDir)
	if err != nil {
		return "", err
	}
	defer db.Close()

	id := database.NewEvaluationLog(database.NewRepository(db)).Record(ctx, "cli", obs, ev)
	if id == "" {
		return "", fmt.Errorf("failed to write evaluation log in %s", dataDir)
	}
	return id, nil
}

func projectCmd() *cobra.Command {
	var (
		wedge         float64
		ci            float64
		interventions []string
	)

	cmd := &cobra.Command{
		Use:     "project",
		Short:   "Project a hemodynamic point through interventions",
		Example: "  hemoprofile project --wedge 30 --ci 2.8 -i diuretic -i vasodilator",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := classifierFromFlags(cmd)
			if err != nil {
				return err
			}
			proj, err := c.ApplyIntervention(
				hemodynamics.Coordinate{WedgePressure: wedge, CardiacIndex: ci},
				parseInterventions(interventions),
			)
			if err != nil {
				return err
			}
			return printJSON(cmd, types.ProjectResponse{Projection: proj, Crossed: proj.Crossed()})
		},
	}
	cmd.Flags().Float64Var(&wedge, "wedge", 0, "wedge pressure (mmHg)")
	cmd.Flags().Float64Var(&ci, "ci", 0, "cardiac index (L/min/m²)")
	cmd.Flags().StringSliceVarP(&interventions, "intervention", "i", nil, "interventions to apply")
	_ = cmd.MarkFlagRequired("wedge")
	_ = cmd.MarkFlagRequired("ci")
	return cmd
}

func classifyCmd() *cobra.Command {
	var wedge, ci float64

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Name the quadrant of a hemodynamic point",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := classifierFromFlags(cmd)
			if err != nil {
				return err
			}
			coord := hemodynamics.Coordinate{WedgePressure: wedge, CardiacIndex: ci}
			if err := hemodynamics.ValidateCoordinate(coord); err != nil {
				return err
			}
			q := c.Classify(coord)
			return printJSON(cmd, types.ClassifyResponse{
				Coordinate:  coord,
				Quadrant:    q,
				Label:       q.Label(),
				Description: q.Description(),
			})
		},
	}
	cmd.Flags().Float64Var(&wedge, "wedge", 0, "wedge pressure (mmHg)")
	cmd.Flags().Float64Var(&ci, "ci", 0, "cardiac index (L/min/m²)")
	_ = cmd.MarkFlagRequired("wedge")
	_ = cmd.MarkFlagRequired("ci")
	return cmd
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the active rule table",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := classifierFromFlags(cmd)
			if err != nil {
				return err
			}
			t := c.Tuning()
			return printJSON(cmd, types.RulesResponse{
				Rules:         c.Rules(),
				Interventions: t.Interventions,
				Thresholds:    t.Thresholds,
				Overlap:       t.Overlap,
				LegacyVitals:  c.LegacyVitals(),
			})
		},
	}
}

func tuningCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tuning",
		Short: "Inspect and manage tuning tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the built-in tuning table as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hemodynamics.MarshalTuning(hemodynamics.DefaultTuning())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate FILE",
		Short: "Check a tuning file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := hemodynamics.LoadTuningFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	})

	var dataDir string
	profiles := func() *hemodynamics.TuningStore {
		return hemodynamics.NewTuningStore(filepath.Join(dataDir, "tuning"))
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored tuning profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := profiles().List()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	saveCmd := &cobra.Command{
		Use:   "save NAME FILE",
		Short: "Store a tuning file as a named profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := hemodynamics.LoadTuningFile(args[1])
			if err != nil {
				return err
			}
			if err := profiles().SaveTuning(args[0], t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved profile %s\n", args[0])
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Print a stored profile as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := profiles().LoadTuning(args[0])
			if err != nil {
				return err
			}
			data, err := hemodynamics.MarshalTuning(t)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	for _, c := range []*cobra.Command{listCmd, saveCmd, showCmd} {
		c.Flags().StringVar(&dataDir, "data-dir", "./data", "directory holding tuning profiles")
		cmd.AddCommand(c)
	}
	return cmd
}
