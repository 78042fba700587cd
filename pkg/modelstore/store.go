// Package modelstore loads the classifiers, scoring networks and tag skew tables
// of a model directory. A loaded Store is read-only and shared by all workers.
package modelstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ChrisMcGann/peptag/pkg/classifier"
	"github.com/ChrisMcGann/peptag/pkg/core"
	"github.com/ChrisMcGann/peptag/pkg/ionscore"
	"github.com/ChrisMcGann/peptag/pkg/logger"
)

// ErrMissingModel is returned when the store has no model for a task.
var ErrMissingModel = errors.New("missing model")

// Classifier names.
const (
	PMC1    = "PMC1"
	PMC2    = "PMC2"
	PMC3    = "PMC3"
	CC1     = "CC1"
	CC2     = "CC2"
	CC2Phos = "CC2Phos"
)

// Network names.
const (
	PRM2     = "PRM2"
	PRM3     = "PRM3"
	TAG2     = "TAG2"
	TAG3     = "TAG3"
	PhosCut2 = "PhosCut2"
	PhosCut3 = "PhosCut3"
)

// SkewFile is the tag skew table file name.
const SkewFile = "TagSkewScores.dat"

var (
	classifierNames = []string{PMC1, PMC2, PMC3, CC1, CC2, CC2Phos}
	networkNames    = []string{PRM2, PRM3, TAG2, TAG3, PhosCut2, PhosCut3}
)

// Store holds every model a scoring run needs.
type Store struct {
	Dir string

	classifiers map[string]classifier.Model
	networks    map[string]*ionscore.Network
	defaults    map[int]*ionscore.Network
	skew        []float64
	absSkew     []float64
	missing     []string
}

// New returns an empty store. Tasks without a model fall back to their defaults.
func New() (*Store, error) {
	s := &Store{
		classifiers: make(map[string]classifier.Model),
		networks:    make(map[string]*ionscore.Network),
		defaults:    make(map[int]*ionscore.Network),
		skew:        []float64{0},
		absSkew:     []float64{0},
	}
	for _, charge := range []int{2, 3} {
		net, err := ionscore.DefaultTagNetwork(charge)
		if err != nil {
			return nil, fmt.Errorf("building default tag network: %w", err)
		}
		s.defaults[charge] = net
	}
	return s, nil
}

// Load reads every model found in dir. Missing files are logged once as
// warnings; malformed files are errors.
func Load(dir string, log *logger.Logger) (*Store, error) {
	s, err := New()
	if err != nil {
		return nil, err
	}
	s.Dir = dir

	for _, name := range classifierNames {
		model, err := loadClassifier(dir, name)
		switch {
		case errors.Is(err, ErrMissingModel):
			s.missing = append(s.missing, name)
			continue
		case err != nil:
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		s.classifiers[name] = model
	}

	for _, name := range networkNames {
		net, err := loadNetwork(filepath.Join(dir, name+".bn"))
		switch {
		case errors.Is(err, ErrMissingModel):
			s.missing = append(s.missing, name)
			continue
		case err != nil:
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		s.networks[name] = net
	}

	skew, abs, err := loadSkewTables(filepath.Join(dir, SkewFile))
	switch {
	case errors.Is(err, ErrMissingModel):
		s.missing = append(s.missing, SkewFile)
	case err != nil:
		return nil, fmt.Errorf("loading %s: %w", SkewFile, err)
	default:
		s.skew, s.absSkew = skew, abs
	}

	for _, name := range s.missing {
		log.Warn("model not found, using fallback", "model", name, "dir", dir)
	}
	log.Info("models loaded",
		"dir", dir,
		"classifiers", len(s.classifiers),
		"networks", len(s.networks),
		"skew_bins", len(s.skew),
	)
	return s, nil
}

// loadClassifier prefers a linear discriminant (name.lda) over a kernel
// machine (name.model); either may come with a name.range scaling file.
func loadClassifier(dir, name string) (classifier.Model, error) {
	scaling, err := os.Open(filepath.Join(dir, name+".range"))
	var rng io.Reader
	switch {
	case err == nil:
		defer scaling.Close()
		rng = scaling
	case !os.IsNotExist(err):
		return nil, err
	}

	if f, err := os.Open(filepath.Join(dir, name+".lda")); err == nil {
		defer f.Close()
		return classifier.ParseLinearDiscriminant(f, rng)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, name+".model"))
	if os.IsNotExist(err) {
		return nil, ErrMissingModel
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return classifier.ParseKernelMachine(f, rng)
}

func loadNetwork(path string) (*ionscore.Network, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrMissingModel
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ionscore.ReadNetwork(f)
}

func loadSkewTables(path string) ([]float64, []float64, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, ErrMissingModel
	}
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ReadSkewTables(f)
}

func chargeName(prefix string, charge, lo, hi int) string {
	return fmt.Sprintf("%s%d", prefix, max(lo, min(charge, hi)))
}

// PMCModel returns the parent mass model for charge; charges above 3 use the
// charge 3 model.
func (s *Store) PMCModel(charge int) (classifier.Model, error) {
	return s.classifier(chargeName("PMC", charge, 1, 3))
}

// CCModel returns the charge-one (which == 1) or charge-two-versus-three
// (which == 2) model, the phosphopeptide variant of the latter when phospho is set.
func (s *Store) CCModel(which int, phospho bool) (classifier.Model, error) {
	switch {
	case which == 1:
		return s.classifier(CC1)
	case which == 2 && phospho:
		return s.classifier(CC2Phos)
	case which == 2:
		return s.classifier(CC2)
	}
	return nil, fmt.Errorf("no charge model %d", which)
}

func (s *Store) classifier(name string) (classifier.Model, error) {
	if m, ok := s.classifiers[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrMissingModel)
}

// Network returns a named network.
func (s *Store) Network(name string) (*ionscore.Network, error) {
	if net, ok := s.networks[name]; ok {
		return net, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrMissingModel)
}

// PRMNetwork returns the network used to index spectra for parent mass correction.
func (s *Store) PRMNetwork(charge int) (*ionscore.Network, error) {
	return s.Network(chargeName("PRM", charge, 2, 3))
}

// TagNetwork returns the tag scoring network for charge, or the built-in
// default when none was loaded.
func (s *Store) TagNetwork(charge int) *ionscore.Network {
	if net, err := s.Network(chargeName("TAG", charge, 2, 3)); err == nil {
		return net
	}
	return s.defaults[max(2, min(charge, 3))]
}

// CutNetwork selects the network that scores pep's cut points: the phospho
// network for phosphopeptides, the tag network otherwise.
func (s *Store) CutNetwork(pep *core.Peptide, charge int) *ionscore.Network {
	if pep.IsPhosphorylated() {
		if net, err := s.Network(chargeName("PhosCut", charge, 2, 3)); err == nil {
			return net
		}
	}
	return s.TagNetwork(charge)
}

// SkewTables returns the tag skew and total absolute skew score tables.
func (s *Store) SkewTables() (skew, abs []float64) {
	return s.skew, s.absSkew
}

// Missing lists the models Load did not find.
func (s *Store) Missing() []string {
	return append([]string(nil), s.missing...)
}

// Available lists the loaded models by name.
func (s *Store) Available() []string {
	var names []string
	for name := range s.classifiers {
		names = append(names, name)
	}
	for name := range s.networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetClassifier installs a classifier under name. Not safe once workers run.
func (s *Store) SetClassifier(name string, m classifier.Model) {
	s.classifiers[name] = m
}

// SetNetwork installs a network under name. Not safe once workers run.
func (s *Store) SetNetwork(name string, net *ionscore.Network) {
	s.networks[name] = net
}

// SetSkewTables installs tag skew tables of equal, non-zero length.
func (s *Store) SetSkewTables(skew, abs []float64) error {
	if len(skew) == 0 || len(skew) != len(abs) {
		return fmt.Errorf("skew tables of %d and %d bins", len(skew), len(abs))
	}
	s.skew, s.absSkew = skew, abs
	return nil
}
