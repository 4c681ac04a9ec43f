// Package classify turns assembled feature rows into region and grade
// predictions. Trained models are loaded once into an immutable Registry
// described by a YAML manifest; the Adapter applies the scaler and both
// models of a named family.
package classify
