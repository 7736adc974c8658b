package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FarmContext carries optional per-query farm telemetry. Every field is optional and unknown
// JSON keys are ignored on decode.
type FarmContext struct {
	Location       string   `json:"location,omitempty"`
	NDVI           *float64 `json:"ndvi,omitempty"`
	EVI            *float64 `json:"evi,omitempty"`
	CropType       string   `json:"crop_type,omitempty"`
	SoilType       string   `json:"soil_type,omitempty"`
	AreaHectares   *float64 `json:"area,omitempty"`
	SuggestedCrops []string `json:"suggested_crops,omitempty"`
	Rainfall       *float64 `json:"rainfall,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
}

// IsEmpty reports whether no recognized field carries a value.
func (f *FarmContext) IsEmpty() bool {
	if f == nil {
		return true
	}
	return strings.TrimSpace(f.Location) == "" &&
		f.NDVI == nil &&
		f.EVI == nil &&
		strings.TrimSpace(f.CropType) == "" &&
		strings.TrimSpace(f.SoilType) == "" &&
		f.AreaHectares == nil &&
		len(nonBlank(f.SuggestedCrops)) == 0 &&
		f.Rainfall == nil &&
		f.Temperature == nil
}

// Render returns the canonical one-line rendering used to bias retrieval and ground prompts.
// Fields appear in a fixed order; absent fields are omitted.
func (f *FarmContext) Render() string {
	if f.IsEmpty() {
		return ""
	}
	var parts []string
	if s := strings.TrimSpace(f.Location); s != "" {
		parts = append(parts, "Location: "+s)
	}
	if f.NDVI != nil {
		parts = append(parts, fmt.Sprintf("NDVI: %s (%s)", formatFloat(*f.NDVI), NDVIStatus(*f.NDVI)))
	}
	if f.EVI != nil {
		parts = append(parts, "EVI: "+formatFloat(*f.EVI))
	}
	if s := strings.TrimSpace(f.CropType); s != "" {
		parts = append(parts, "Crop: "+s)
	}
	if s := strings.TrimSpace(f.SoilType); s != "" {
		parts = append(parts, "Soil: "+s)
	}
	if f.AreaHectares != nil {
		parts = append(parts, "Area: "+formatFloat(*f.AreaHectares)+" hectares")
	}
	if crops := nonBlank(f.SuggestedCrops); len(crops) > 0 {
		parts = append(parts, "Suggested crops: "+strings.Join(crops, ", "))
	}
	if f.Rainfall != nil {
		parts = append(parts, "Rainfall: "+formatFloat(*f.Rainfall)+" mm")
	}
	if f.Temperature != nil {
		parts = append(parts, "Temperature: "+formatFloat(*f.Temperature)+"°C")
	}
	return strings.Join(parts, ", ")
}

// NDVIStatus maps an NDVI value onto the vegetation health bands used by the knowledge base.
func NDVIStatus(ndvi float64) string {
	switch {
	case ndvi >= 0.8:
		return "extremely healthy"
	case ndvi >= 0.6:
		return "healthy"
	case ndvi >= 0.4:
		return "moderate"
	case ndvi >= 0.2:
		return "stressed"
	case ndvi >= 0:
		return "very poor"
	default:
		return "non-vegetated"
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
