package models

// InspectionRequest asks for one snapshot to be inspected against a tier manifest.
type InspectionRequest struct {
	Tier               string
	Path               string
	MinCorrelationRows int
}
