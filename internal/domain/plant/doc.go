// Package plant contains the plant snapshot model and the pure classification
// rules of the console.
//
// Classify derives a per-plant Status and fleet Aggregate from one snapshot
// set; ClassifyError maps raw diagnostic text to a short ErrorCategory.
package plant
