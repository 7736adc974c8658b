// Package e2e runs the full pipeline against an on-disk agricultural corpus.
package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is one knowledge-base file written to the corpus root.
type Document struct {
	Path    string
	Title   string
	Content string
}

// QueryTestCase is a question and the corpus file that must be cited for it.
type QueryTestCase struct {
	Query       string
	ExpectedDoc string
	Description string
}

// Corpus holds documents and query test cases.
type Corpus struct {
	Documents []Document
	TestCases []QueryTestCase
}

var topics = []struct {
	title   string
	phrase  string
	content string
}{
	{"NDVI Basics", "normalized difference vegetation index", "The normalized difference vegetation index compares near infrared and red reflectance. Values above 0.6 indicate dense healthy canopy while values below 0.2 suggest bare soil."},
	{"Rice Water Management", "paddy flooding tillering", "Paddy flooding tillering practice keeps weeds down while the crop branches. Maintain five centimetres of standing water and drain the field ten days before harvest."},
	{"Wheat Nitrogen", "wheat urea top dressing", "Wheat urea top dressing is split between crown root initiation and tillering. Apply about 120 kilograms of nitrogen per hectare on irrigated land."},
	{"Cotton Bollworm", "pink bollworm pheromone traps", "Pink bollworm pheromone traps detect moth activity early. Destroy rosette flowers and avoid late sowing to break the pest cycle."},
	{"Drip Irrigation", "drip emitters fertigation", "Drip emitters fertigation delivers water and soluble nutrients to the root zone. Flush laterals monthly to prevent clogging."},
	{"Black Soil", "black cotton soil cracking", "Black cotton soil cracking during summer improves aeration. These clay soils hold moisture well but drain slowly after heavy rain."},
	{"Sugarcane Ratoon", "sugarcane ratoon stubble shaving", "Sugarcane ratoon stubble shaving promotes uniform sprouting. Gap fill within a month and apply extra nitrogen to the ratoon crop."},
	{"Soil Testing", "soil sample laboratory pH", "Send a soil sample laboratory pH test every two seasons, collecting from several spots at plough depth. The pH and organic carbon results guide lime and manure doses."},
	{"Tomato Blight", "tomato late blight mancozeb", "Tomato late blight mancozeb sprays should start at the first sign of dark leaf lesions. The disease spreads in cool humid weather, so remove infected plants early."},
	{"Monsoon Sowing", "monsoon onset kharif sowing", "Time monsoon onset kharif sowing for when at least 75 millimetres of rain has fallen. Early sowing risks seedling loss in dry spells."},
	{"Groundnut Gypsum", "groundnut gypsum pegging", "Groundnut gypsum pegging application supplies calcium for pod filling. Use 400 kilograms per hectare in light sandy soils."},
	{"Vermicompost", "vermicompost earthworm beds", "Vermicompost earthworm beds convert farm waste into manure in six weeks. Keep beds shaded and moist but never waterlogged."},
}

// BuildCorpus returns one document and one query per topic. Each query carries the topic's
// signature phrase so retrieval can be asserted per file.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for i, t := range topics {
		ext := ".txt"
		if i%2 == 0 {
			ext = ".md"
		}
		path := fmt.Sprintf("topic-%02d%s", i+1, ext)
		if i%3 == 0 {
			path = filepath.ToSlash(filepath.Join("guides", path))
		}
		c.Documents = append(c.Documents, Document{Path: path, Title: t.title, Content: t.content})
		c.TestCases = append(c.TestCases, QueryTestCase{
			Query:       "Tell me about " + t.phrase,
			ExpectedDoc: path,
			Description: strings.ToLower(strings.ReplaceAll(t.title, " ", "_")),
		})
	}
	return c
}

// Write lays the corpus out under root.
func (c *Corpus) Write(root string) error {
	for _, d := range c.Documents {
		path := filepath.Join(root, filepath.FromSlash(d.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		body := d.Content
		if strings.HasSuffix(d.Path, ".md") {
			body = "# " + d.Title + "\n\n" + d.Content
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}
