package scoring

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/events"
	"github.com/bennetthilberg/risk-scoring-pipeline/internal/features"
)

// ErrFeatureOrderMismatch is returned when an artifact's metadata declares a
// feature_order that doesn't match the system's compiled-in feature order —
// loading it would silently misalign weights against the wrong features.
var ErrFeatureOrderMismatch = errors.New("scoring: artifact feature_order does not match system feature order")

// Metadata is an artifact directory's metadata.json: weights plus the
// contract it was trained against.
type Metadata struct {
	ModelVersion    string             `json:"model_version"`
	CreatedAt       string             `json:"created_at"`
	FeatureOrder    []string           `json:"feature_order"`
	FeatureDefaults map[string]float64 `json:"feature_defaults"`
	BandThresholds  map[string]float64 `json:"band_thresholds"`
	ParamsHash      string             `json:"params_hash"`
	Coefficients    map[string]float64 `json:"coefficients"`
	Intercept       float64            `json:"intercept"`
	ScalerMean      map[string]float64 `json:"scaler_mean"`
	ScalerScale     map[string]float64 `json:"scaler_scale"`
}

// overrideFile is the optional model.yaml shape: band thresholds only,
// letting an operator retune bands without retraining.
type overrideFile struct {
	BandThresholds map[string]float64 `yaml:"band_thresholds"`
}

// Model is a parametric logistic-regression Scorer loaded from an artifact
// directory containing metadata.json and, optionally, model.yaml.
type Model struct {
	metadata Metadata
}

var _ Scorer = (*Model)(nil)

// LoadModel reads metadata.json (required) and model.yaml (optional, band
// threshold override only) from dir.
func LoadModel(dir string) (*Model, error) {
	metadataPath := filepath.Join(dir, "metadata.json")

	raw, err := os.ReadFile(metadataPath) //nolint:gosec // artifact path is operator-configured, not user input
	if err != nil {
		return nil, fmt.Errorf("scoring: read metadata: %w", err)
	}

	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("scoring: decode metadata: %w", err)
	}

	if !sameFeatureOrder(md.FeatureOrder) {
		return nil, fmt.Errorf("%w: got %v, want %v", ErrFeatureOrderMismatch, md.FeatureOrder, features.Order)
	}

	overridePath := filepath.Join(dir, "model.yaml")

	if overrideRaw, err := os.ReadFile(overridePath); err == nil { //nolint:gosec // see metadataPath
		var ov overrideFile
		if err := yaml.Unmarshal(overrideRaw, &ov); err != nil {
			return nil, fmt.Errorf("scoring: decode model.yaml override: %w", err)
		}

		if err := validateThresholds(ov.BandThresholds); err != nil {
			return nil, fmt.Errorf("scoring: invalid model.yaml override: %w", err)
		}

		md.BandThresholds = ov.BandThresholds
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("scoring: read model.yaml: %w", err)
	}

	if err := validateThresholds(md.BandThresholds); err != nil {
		return nil, fmt.Errorf("scoring: invalid metadata band_thresholds: %w", err)
	}

	return &Model{metadata: md}, nil
}

func sameFeatureOrder(order []string) bool {
	if len(order) != len(features.Order) {
		return false
	}

	for i, name := range features.Order {
		if order[i] != name {
			return false
		}
	}

	return true
}

func validateThresholds(t map[string]float64) error {
	if _, ok := t["low"]; !ok {
		return errors.New("missing \"low\" threshold")
	}

	if _, ok := t["med"]; !ok {
		return errors.New("missing \"med\" threshold")
	}

	return nil
}

// Version returns the loaded artifact's model_version.
func (m *Model) Version() string { return m.metadata.ModelVersion }

// ParamsHash returns the loaded artifact's params_hash fingerprint.
func (m *Model) ParamsHash() string { return m.metadata.ParamsHash }

// MetadataJSON re-serializes the loaded metadata, the form persisted into
// the model_versions table the first time a worker loads this artifact.
func (m *Model) MetadataJSON() (string, error) {
	raw, err := json.Marshal(m.metadata)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// Predict implements Scorer using standardized logistic regression:
// sigmoid(intercept + sum(coefficient_i * (feature_i - mean_i) / scale_i)).
func (m *Model) Predict(
	_ context.Context, _ string, _ events.Type, v features.Vector,
) (Prediction, error) {
	raw := v.AsSlice()

	z := m.metadata.Intercept
	contributions := make(map[string]float64, len(features.Order))

	for i, name := range features.Order {
		value := withDefault(raw[i], m.metadata.FeatureDefaults[name])
		scaled := standardize(value, m.metadata.ScalerMean[name], m.metadata.ScalerScale[name])
		contribution := m.metadata.Coefficients[name] * scaled

		z += contribution
		contributions[name] = contribution
	}

	score := sigmoid(z)
	band := events.BandOfThresholds(score, m.metadata.BandThresholds["low"], m.metadata.BandThresholds["med"])

	return Prediction{
		Score:        score,
		Band:         band,
		TopFeatures:  topK(contributions, 3),
		ModelVersion: m.metadata.ModelVersion,
	}, nil
}

func withDefault(value, def float64) float64 {
	if math.IsNaN(value) {
		return def
	}

	return value
}

func standardize(value, mean, scale float64) float64 {
	if scale == 0 {
		return 0
	}

	return (value - mean) / scale
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// HashArtifact computes a SHA-256 digest over metadata.json's raw bytes,
// usable as a params_hash when an artifact doesn't supply one of its own.
func HashArtifact(dir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "metadata.json")) //nolint:gosec // operator-configured path
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:]), nil
}
