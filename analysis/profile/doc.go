// Package profile builds azimuthally averaged surface-density profiles of
// M33 and compares the molecular-to-atomic gas ratio against the Krumholz,
// McKee & Tumlinson (2009) model.
package profile
