package form

import "github.com/bbrooks37/vscode-mssql/model"

// Well-known advanced categories, in fixed display order. Categories not in
// this list are appended in encounter order.
var seedCategories = []string{
	"general",
	"security",
	"initialization",
	"resiliency",
	"pooling",
}

// groupAdvanced buckets the advanced field names by category ID into an
// ordered list of groups. Seed categories that end up empty are dropped.
func groupAdvanced(schema *model.FormSchema, advanced []string, labels map[string]string) []model.FieldGroup {
	members := make(map[string][]string)
	var categoryOrder []string
	seeded := make(map[string]bool, len(seedCategories))

	for _, cat := range seedCategories {
		categoryOrder = append(categoryOrder, cat)
		seeded[cat] = true
	}

	for _, key := range advanced {
		cat := schema.Fields[key].Category
		if _, seen := members[cat]; !seen && !seeded[cat] {
			categoryOrder = append(categoryOrder, cat)
			seeded[cat] = true
		}
		members[cat] = append(members[cat], key)
	}

	var groups []model.FieldGroup
	for _, cat := range categoryOrder {
		fields := members[cat]
		if len(fields) == 0 {
			continue
		}
		label := labels[cat]
		if label == "" {
			label = cat
		}
		groups = append(groups, model.FieldGroup{
			Category: cat,
			Label:    label,
			Fields:   fields,
		})
	}
	return groups
}
