// Package features computes the handcrafted colour, texture, edge and local
// binary pattern descriptors used by the tea classifiers.
//
// All extractors are pure functions over a single buffer. The canonical
// vector layout is color(6) + texture(4) + edge(1) + lbp(256) = 267 values.
package features
