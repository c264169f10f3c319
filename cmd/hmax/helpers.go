package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorgonia/hmax"
	"github.com/gorgonia/hmax/corpus"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// featureExt is the extension of feature vector files.
const featureExt = ".ascii"

var errWrongSize = errors.New("size must be of form [width]x[height], i.e. 104x104")

// preprocFlags are the image preprocessing flags shared by every command reading images.
type preprocFlags struct {
	square  bool
	matchBG bool
	resize  string
}

func (p *preprocFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&p.square, "square", false, "pad images to a square")
	cmd.Flags().BoolVar(&p.matchBG, "match-bg", true, "fill padding with the mean of the adjacent edge")
	cmd.Flags().StringVar(&p.resize, "resize", "", "resize images to [width]x[height] after padding, e.g. 104x104")
}

func (p *preprocFlags) preproc() (corpus.Preproc, error) {
	retVal := corpus.Preproc{Square: p.square, MatchBackground: p.matchBG}
	if p.resize == "" {
		return retVal, nil
	}
	w, h, err := parseSize(p.resize)
	if err != nil {
		return retVal, err
	}
	retVal.Width, retVal.Height = w, h
	return retVal, nil
}

func parseSize(s string) (w, h int, err error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 2 {
		return 0, 0, errWrongSize
	}
	if w, err = strconv.Atoi(parts[0]); err != nil || w <= 0 {
		return 0, 0, errWrongSize
	}
	if h, err = strconv.Atoi(parts[1]); err != nil || h <= 0 {
		return 0, 0, errWrongSize
	}
	return w, h, nil
}

// featureFile names the feature file of an image inside dir.
func featureFile(dir, image string) string {
	base := filepath.Base(image)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+featureExt)
}

// checkCollisions fails if two images would write the same feature file.
func checkCollisions(dir string, images []string) error {
	seen := make(map[string]string, len(images))
	for _, in := range images {
		out := featureFile(dir, in)
		if prev, ok := seen[out]; ok {
			return errors.Errorf("%s and %s would both be written to %s", prev, in, out)
		}
		seen[out] = in
	}
	return nil
}

func checkFeatureExt(filename string) error {
	if !strings.HasSuffix(filename, featureExt) {
		return errors.Errorf("output file %q must end in %s", filename, featureExt)
	}
	return nil
}

func writeFeatures(fv hmax.FeatureVector, filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err = fv.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return errors.WithStack(f.Close())
}
