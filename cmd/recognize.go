package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facedb/internal/facematch"
	"github.com/kozaktomas/facedb/internal/recognizer"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize FILE",
	Short: "Recognize the faces listed in a faces document",
	Long: `Match every face in FILE against the database.
FILE is the detector output for one image:

  {"faces": [{"location": {"top": 0, "right": 0, "bottom": 0, "left": 0},
              "embedding": [...]}]}

Each face is reported with the recognized name and confidence, or as
unknown when no enrolled person is within tolerance.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Float64("tolerance", 0, "Override the stored tolerance for this run")
	recognizeCmd.Flags().Bool("candidates", false, "Show the distance to every enrolled person")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
	recognizeCmd.Flags().Int("image-width", 0, "Image width in pixels, adds relative boxes to JSON output")
	recognizeCmd.Flags().Int("image-height", 0, "Image height in pixels, adds relative boxes to JSON output")
}

type faceOutput struct {
	Index      int                   `json:"index"`
	Location   facematch.Location    `json:"location"`
	Relative   []float64             `json:"relative,omitempty"`
	Embedding  []float32             `json:"embedding"`
	Name       string                `json:"name"`
	Recognized bool                  `json:"recognized"`
	Confidence float64               `json:"confidence"`
	Distance   *float64              `json:"distance"`
	Candidates []facematch.Candidate `json:"candidates,omitempty"`
}

type recognizeOutput struct {
	ID         string       `json:"id"`
	Tolerance  float64      `json:"tolerance"`
	Identities int          `json:"identities"`
	Recognized int          `json:"recognized"`
	Faces      []faceOutput `json:"faces"`
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	showCandidates := mustGetBool(cmd, "candidates")
	imageWidth := mustGetInt(cmd, "image-width")
	imageHeight := mustGetInt(cmd, "image-height")

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	faces, err := recognizer.ReadFacesFile(args[0], a.session.Dim())
	if err != nil {
		return err
	}

	var result *recognizer.Recognition
	if tolerance := mustGetFloat64(cmd, "tolerance"); tolerance != 0 {
		result, err = a.session.RecognizeWithTolerance(faces, tolerance)
	} else {
		result, err = a.session.Recognize(faces)
	}
	if err != nil {
		return err
	}

	out := recognizeOutput{
		ID:         result.ID.String(),
		Tolerance:  result.Tolerance,
		Identities: result.Identities,
		Recognized: result.RecognizedCount(),
		Faces:      make([]faceOutput, len(result.Faces)),
	}
	for i, f := range result.Faces {
		out.Faces[i] = faceOutput{
			Index:      f.Index,
			Location:   f.Location,
			Relative:   f.Location.Relative(imageWidth, imageHeight),
			Embedding:  f.Embedding,
			Name:       f.Name(),
			Recognized: f.Recognized(),
			Confidence: f.Confidence(),
			Distance:   finiteOrNil(f.Verdict.MinDistance()),
		}
		if showCandidates {
			out.Faces[i].Candidates = f.Candidates
		}
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(out)
	}

	fmt.Printf("Recognized %d of %d face(s), tolerance %.2f, %d known people\n",
		out.Recognized, len(out.Faces), out.Tolerance, out.Identities)
	for i, f := range result.Faces {
		loc := f.Location
		fmt.Printf("  #%d (%d,%d)-(%d,%d)  %-24s confidence %.2f  distance %s\n",
			f.Index, loc.Left, loc.Top, loc.Right, loc.Bottom,
			f.Name(), f.Confidence(), formatDistance(f.Verdict.MinDistance()))
		for _, c := range out.Faces[i].Candidates {
			fmt.Printf("      %-24s %s\n", c.Name, formatDistance(c.Distance))
		}
	}
	return nil
}
