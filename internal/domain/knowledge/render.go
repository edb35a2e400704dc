package knowledge

import (
	"fmt"
	"sort"
	"strings"
)

// NoPriorKnowledgeMarker replaces the context block while nothing has been learned
const NoPriorKnowledgeMarker = "NO PRIOR KNOWLEDGE: rely on general culinary expertise."

// SortForContext orders bases by recipe count descending, then cuisine
func SortForContext(bases []*KnowledgeBase) {
	sort.SliceStable(bases, func(i, j int) bool {
		if bases[i].RecipeCount != bases[j].RecipeCount {
			return bases[i].RecipeCount > bases[j].RecipeCount
		}
		return bases[i].Cuisine < bases[j].Cuisine
	})
}

// RenderContext turns the learned bases into the text block injected into
// the extraction prompt. Bases are rendered in the order given.
func RenderContext(bases []*KnowledgeBase) string {
	if len(bases) == 0 {
		return NoPriorKnowledgeMarker
	}

	var b strings.Builder
	b.WriteString("LEARNED CUISINE KNOWLEDGE (patterns observed in previously processed recipes):\n")
	for _, kb := range bases {
		fmt.Fprintf(&b, "\n## %s (%d recipes, avg quality %.2f)\n", kb.Cuisine, kb.RecipeCount, kb.AvgQualityScore)

		sacredItems := make([]string, 0, len(kb.CommonSacredIngredients))
		for _, s := range kb.CommonSacredIngredients {
			sacredItems = append(sacredItems, fmt.Sprintf("%s (%d%%)", s.Ingredient, s.Frequency))
		}
		writeLine(&b, "Sacred ingredients", sacredItems)
		writeLine(&b, "Sacred techniques", kb.CommonSacredTechniques)

		removed := make([]string, 0, len(kb.CommonlyRemoved))
		for _, r := range kb.CommonlyRemoved {
			removed = append(removed, fmt.Sprintf("%s (%d%%)", r.Ingredient, r.Frequency))
		}
		writeLine(&b, "Commonly removed", removed)

		tasks := make([]string, 0, len(kb.CommonSideTasks))
		for _, t := range kb.CommonSideTasks {
			tasks = append(tasks, fmt.Sprintf("%s (%d%%)", t.Task, t.Frequency))
		}
		writeLine(&b, "Common side tasks", tasks)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeLine(b *strings.Builder, label string, items []string) {
	value := "none observed"
	if len(items) > 0 {
		value = strings.Join(items, ", ")
	}
	fmt.Fprintf(b, "- %s: %s\n", label, value)
}
