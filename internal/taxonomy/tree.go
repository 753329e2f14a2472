package taxonomy

import (
	"context"
	"sort"
	"strings"
)

// speciesGroup accumulates one species while grouping records.
type speciesGroup struct {
	first Record // representative sighting, first seen wins
	count int
}

// BuildTree arranges records into a class/order/family tree using resolve
// to answer taxonomy for each scientific name. resolve returns nil when the
// name has no known placement. Records without a scientific name cannot be
// placed at all and are left out, matching the life-list page which only
// tracks identified species.
func BuildTree(records []Record, resolve func(scientificName string) *Taxon) *Tree {
	groups := make(map[string]*speciesGroup)
	order := make([]string, 0)

	for _, record := range records {
		key := cacheKey(record.ScientificName)
		if key == "" {
			continue
		}
		if group, ok := groups[key]; ok {
			group.count++
			continue
		}
		groups[key] = &speciesGroup{first: record, count: 1}
		order = append(order, key)
	}

	// classes[class][order][family] -> species
	classes := make(map[string]map[string]map[string][]SpeciesNode)
	var unclassified []SpeciesNode

	for _, key := range order {
		group := groups[key]
		record := group.first

		node := SpeciesNode{
			CommonName:     record.CommonName,
			ScientificName: record.ScientificName,
			SightingID:     record.ID,
			Image:          record.Image,
			Notes:          record.Notes,
			SightingCount:  group.count,
		}

		taxon := resolve(record.ScientificName)
		if taxon == nil || taxon.Class == "" {
			unclassified = append(unclassified, node)
			continue
		}

		node.GBIFKey = taxon.GBIFKey
		node.Genus = taxon.Genus
		node.Taxon = taxon

		className := taxon.Class
		orderName := taxon.Order
		if orderName == "" {
			orderName = "Unknown Order"
		}
		familyName := taxon.Family
		if familyName == "" {
			familyName = "Unknown Family"
		}

		if classes[className] == nil {
			classes[className] = make(map[string]map[string][]SpeciesNode)
		}
		if classes[className][orderName] == nil {
			classes[className][orderName] = make(map[string][]SpeciesNode)
		}
		classes[className][orderName][familyName] = append(classes[className][orderName][familyName], node)
	}

	tree := &Tree{Unclassified: unclassified}
	for _, className := range sortedKeys(classes) {
		classNode := ClassNode{Name: className}
		for _, orderName := range sortedKeys(classes[className]) {
			orderNode := OrderNode{Name: orderName}
			for _, familyName := range sortedKeys(classes[className][orderName]) {
				species := classes[className][orderName][familyName]
				sortSpecies(species)
				orderNode.Families = append(orderNode.Families, FamilyNode{
					Name:    familyName,
					Species: species,
				})
			}
			classNode.Orders = append(classNode.Orders, orderNode)
		}
		tree.Classes = append(tree.Classes, classNode)
	}
	sortSpecies(tree.Unclassified)

	return tree
}

// SpeciesTree builds the tree for records, resolving names through the
// cache and the GBIF API. Lookup failures leave the species unclassified
// for this build; only context cancellation aborts.
func (c *Client) SpeciesTree(ctx context.Context, records []Record) (*Tree, error) {
	var canceled error
	tree := BuildTree(records, func(scientificName string) *Taxon {
		if canceled != nil || ctx.Err() != nil {
			if canceled == nil {
				canceled = ctx.Err()
			}
			return nil
		}
		taxon, err := c.Lookup(ctx, scientificName)
		if err != nil {
			return nil
		}
		return taxon
	})
	if canceled != nil {
		return nil, canceled
	}
	return tree, nil
}

// Stats summarizes the tree. Species counts both placed and unclassified
// entries, so it equals the number of distinct named species.
func (t *Tree) Stats() TreeStats {
	stats := TreeStats{
		Classes: len(t.Classes),
		Species: len(t.Unclassified),
	}
	for i := range t.Classes {
		stats.Orders += len(t.Classes[i].Orders)
		for j := range t.Classes[i].Orders {
			stats.Families += len(t.Classes[i].Orders[j].Families)
			for k := range t.Classes[i].Orders[j].Families {
				stats.Species += len(t.Classes[i].Orders[j].Families[k].Species)
			}
		}
	}
	return stats
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortSpecies(species []SpeciesNode) {
	sort.SliceStable(species, func(i, j int) bool {
		return strings.ToLower(species[i].CommonName) < strings.ToLower(species[j].CommonName)
	})
}
