package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureResolver answers lookups from a static map keyed by cache key.
func fixtureResolver(taxa map[string]*Taxon) func(string) *Taxon {
	return func(scientificName string) *Taxon {
		return taxa[cacheKey(scientificName)]
	}
}

func insectTaxon(order, family string) *Taxon {
	return &Taxon{
		Kingdom: "Animalia",
		Phylum:  "Arthropoda",
		Class:   "Insecta",
		Order:   order,
		Family:  family,
	}
}

func TestBuildTreeNesting(t *testing.T) {
	records := []Record{
		{ID: "20260810-001", CommonName: "Seven-spot Ladybird", ScientificName: "Coccinella septempunctata", Image: "20260810-001-a.jpg"},
		{ID: "20260811-001", CommonName: "Garden Cross Spider", ScientificName: "Araneus diadematus"},
		{ID: "20260812-001", CommonName: "Common Green Bottle Fly", ScientificName: "Lucilia sericata"},
	}
	taxa := map[string]*Taxon{
		"coccinella septempunctata": insectTaxon("Coleoptera", "Coccinellidae"),
		"lucilia sericata":          insectTaxon("Diptera", "Calliphoridae"),
		"araneus diadematus": {
			Kingdom: "Animalia", Phylum: "Arthropoda",
			Class: "Arachnida", Order: "Araneae", Family: "Araneidae",
		},
	}

	tree := BuildTree(records, fixtureResolver(taxa))

	require.Len(t, tree.Classes, 2)
	// Alphabetical: Arachnida before Insecta
	assert.Equal(t, "Arachnida", tree.Classes[0].Name)
	assert.Equal(t, "Insecta", tree.Classes[1].Name)

	insecta := tree.Classes[1]
	require.Len(t, insecta.Orders, 2)
	assert.Equal(t, "Coleoptera", insecta.Orders[0].Name)
	assert.Equal(t, "Diptera", insecta.Orders[1].Name)

	beetles := insecta.Orders[0]
	require.Len(t, beetles.Families, 1)
	assert.Equal(t, "Coccinellidae", beetles.Families[0].Name)
	require.Len(t, beetles.Families[0].Species, 1)

	ladybird := beetles.Families[0].Species[0]
	assert.Equal(t, "Seven-spot Ladybird", ladybird.CommonName)
	assert.Equal(t, "20260810-001", ladybird.SightingID)
	assert.Equal(t, "20260810-001-a.jpg", ladybird.Image)
	assert.Equal(t, 1, ladybird.SightingCount)
	assert.Empty(t, tree.Unclassified)
}

func TestBuildTreeRepeatSightingsCounted(t *testing.T) {
	records := []Record{
		{ID: "20260801-001", CommonName: "Seven-spot Ladybird", ScientificName: "Coccinella septempunctata", Notes: "on the rose bush"},
		{ID: "20260805-002", CommonName: "Seven-spot Ladybird", ScientificName: "coccinella septempunctata"},
		{ID: "20260812-001", CommonName: "Seven-spot Ladybird", ScientificName: "Coccinella septempunctata"},
	}
	taxa := map[string]*Taxon{
		"coccinella septempunctata": insectTaxon("Coleoptera", "Coccinellidae"),
	}

	tree := BuildTree(records, fixtureResolver(taxa))

	require.Len(t, tree.Classes, 1)
	species := tree.Classes[0].Orders[0].Families[0].Species
	require.Len(t, species, 1)
	assert.Equal(t, 3, species[0].SightingCount)
	// First sighting stays the representative
	assert.Equal(t, "20260801-001", species[0].SightingID)
	assert.Equal(t, "on the rose bush", species[0].Notes)
}

func TestBuildTreeUnresolvedGoesUnclassified(t *testing.T) {
	records := []Record{
		{ID: "20260810-001", CommonName: "Mystery Beetle", ScientificName: "Beetleus unknownus"},
		{ID: "20260811-001", CommonName: "Some Moth", ScientificName: "Mothus classlessus"},
		{ID: "20260812-001", CommonName: "Unidentified Slime", ScientificName: ""},
	}
	taxa := map[string]*Taxon{
		// Resolved, but GBIF gave no class placement
		"mothus classlessus": {Kingdom: "Animalia", MatchType: "FUZZY"},
	}

	tree := BuildTree(records, fixtureResolver(taxa))

	assert.Empty(t, tree.Classes)
	// The record without a scientific name is dropped entirely
	require.Len(t, tree.Unclassified, 2)
	assert.Equal(t, "Mystery Beetle", tree.Unclassified[0].CommonName)
	assert.Equal(t, "Some Moth", tree.Unclassified[1].CommonName)
}

func TestBuildTreeUnknownLevels(t *testing.T) {
	records := []Record{
		{ID: "20260810-001", CommonName: "Odd Springtail", ScientificName: "Collembola incertae"},
	}
	taxa := map[string]*Taxon{
		"collembola incertae": {Class: "Collembola"},
	}

	tree := BuildTree(records, fixtureResolver(taxa))

	require.Len(t, tree.Classes, 1)
	require.Len(t, tree.Classes[0].Orders, 1)
	assert.Equal(t, "Unknown Order", tree.Classes[0].Orders[0].Name)
	require.Len(t, tree.Classes[0].Orders[0].Families, 1)
	assert.Equal(t, "Unknown Family", tree.Classes[0].Orders[0].Families[0].Name)
}

func TestBuildTreeSpeciesSortedByCommonName(t *testing.T) {
	records := []Record{
		{ID: "1", CommonName: "Zebra Jumper", ScientificName: "Salticus scenicus"},
		{ID: "2", CommonName: "garden cross spider", ScientificName: "Araneus diadematus"},
		{ID: "3", CommonName: "Cellar Spider", ScientificName: "Pholcus phalangioides"},
	}
	spider := &Taxon{Class: "Arachnida", Order: "Araneae", Family: "Mixed"}
	taxa := map[string]*Taxon{
		"salticus scenicus":     spider,
		"araneus diadematus":    spider,
		"pholcus phalangioides": spider,
	}

	tree := BuildTree(records, fixtureResolver(taxa))

	species := tree.Classes[0].Orders[0].Families[0].Species
	require.Len(t, species, 3)
	// Case-insensitive ordering
	assert.Equal(t, "Cellar Spider", species[0].CommonName)
	assert.Equal(t, "garden cross spider", species[1].CommonName)
	assert.Equal(t, "Zebra Jumper", species[2].CommonName)
}

func TestTreeStats(t *testing.T) {
	records := []Record{
		{ID: "1", CommonName: "Seven-spot Ladybird", ScientificName: "Coccinella septempunctata"},
		{ID: "2", CommonName: "Green Bottle", ScientificName: "Lucilia sericata"},
		{ID: "3", CommonName: "Garden Spider", ScientificName: "Araneus diadematus"},
		{ID: "4", CommonName: "Mystery", ScientificName: "Unknownus totalus"},
	}
	taxa := map[string]*Taxon{
		"coccinella septempunctata": insectTaxon("Coleoptera", "Coccinellidae"),
		"lucilia sericata":          insectTaxon("Diptera", "Calliphoridae"),
		"araneus diadematus":        {Class: "Arachnida", Order: "Araneae", Family: "Araneidae"},
	}

	stats := BuildTree(records, fixtureResolver(taxa)).Stats()

	assert.Equal(t, 2, stats.Classes)
	assert.Equal(t, 3, stats.Orders)
	assert.Equal(t, 3, stats.Families)
	assert.Equal(t, 4, stats.Species)
}

func TestSpeciesTreeResolvesThroughClient(t *testing.T) {
	setupHTTPMock(t)
	registerMatchResponder(t, "Coccinella septempunctata", ladybirdMatchResponse())
	registerMatchResponder(t, "Madeupus imaginarius", noMatchResponse())

	client := newTestClient(t)

	records := []Record{
		{ID: "20260810-001", CommonName: "Seven-spot Ladybird", ScientificName: "Coccinella septempunctata"},
		{ID: "20260811-001", CommonName: "Mystery Bug", ScientificName: "Madeupus imaginarius"},
	}

	tree, err := client.SpeciesTree(t.Context(), records)
	require.NoError(t, err)

	require.Len(t, tree.Classes, 1)
	assert.Equal(t, "Insecta", tree.Classes[0].Name)
	require.Len(t, tree.Unclassified, 1)
	assert.Equal(t, "Mystery Bug", tree.Unclassified[0].CommonName)
}
