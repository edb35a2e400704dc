package knowledge

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/alchemorsel/recipeflow/internal/domain/sacred"
)

// tally counts how many analyses mention a key and remembers the first
// spelling and reason seen for it
type tally struct {
	order  []string
	counts map[string]int
	names  map[string]string
	extra  map[string]string
}

func newTally() *tally {
	return &tally{
		counts: make(map[string]int),
		names:  make(map[string]string),
		extra:  make(map[string]string),
	}
}

func (t *tally) add(name, extra string) {
	key := normalize(name)
	if key == "" {
		return
	}
	if _, ok := t.counts[key]; !ok {
		t.order = append(t.order, key)
		t.names[key] = strings.TrimSpace(name)
		t.extra[key] = strings.TrimSpace(extra)
	}
	t.counts[key]++
}

type promoted struct {
	name      string
	extra     string
	count     int
	frequency int
}

// promote returns the entries at or above threshold percent of total,
// sorted by count descending and then by name
func (t *tally) promote(threshold, total int) []promoted {
	var out []promoted
	for _, key := range t.order {
		count := t.counts[key]
		if count*100 < threshold*total {
			continue
		}
		out = append(out, promoted{
			name:      t.names[key],
			extra:     t.extra[key],
			count:     count,
			frequency: (count*100 + total/2) / total,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return normalize(out[i].name) < normalize(out[j].name)
	})
	return out
}

// Recompute builds the knowledge base for a cuisine from every analysis
// recorded for it. The result depends only on its arguments, so running it
// twice over the same rows yields identical output.
func Recompute(cuisine string, analyses []*sacred.Analysis, learnedAt time.Time) (*KnowledgeBase, error) {
	total := len(analyses)
	if total < MinAnalyses {
		return nil, ErrInsufficientData
	}

	ordered := make([]*sacred.Analysis, total)
	copy(ordered, analyses)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt().Equal(ordered[j].CreatedAt()) {
			return ordered[i].CreatedAt().Before(ordered[j].CreatedAt())
		}
		return ordered[i].RecipeID().String() < ordered[j].RecipeID().String()
	})

	sacredTally := newTally()
	removedTally := newTally()
	sideTaskTally := newTally()
	var substitutions []Substitution
	seenSubstitution := make(map[string]bool)
	qualitySum := 0.0

	for _, a := range ordered {
		qualitySum += a.QualityScore()

		marked := make(map[string]bool)
		for _, s := range a.SacredIngredients() {
			if key := normalize(s.Ingredient); key != "" && !marked[key] {
				marked[key] = true
				sacredTally.add(s.Ingredient, s.Reason)
			}
		}

		removed := make(map[string]bool)
		for _, f := range a.FlexibleIngredients() {
			key := normalize(f.Ingredient)
			if f.CanRemove && key != "" && !removed[key] {
				removed[key] = true
				removedTally.add(f.Ingredient, "")
			}
			if sub := strings.TrimSpace(f.Substitute); sub != "" && key != "" {
				pair := key + "\x00" + normalize(sub)
				if !seenSubstitution[pair] {
					seenSubstitution[pair] = true
					substitutions = append(substitutions, Substitution{
						Original:   strings.TrimSpace(f.Ingredient),
						Substitute: sub,
					})
				}
			}
		}

		tasks := make(map[string]bool)
		for _, task := range a.SideTasksNeeded() {
			if key := normalize(task); key != "" && !tasks[key] {
				tasks[key] = true
				sideTaskTally.add(task, "")
			}
		}
	}

	kb := &KnowledgeBase{
		Cuisine:                 sacred.CuisineKey(cuisine),
		CommonSacredIngredients: []SacredIngredientStat{},
		CommonSacredTechniques:  recentDistinct(ordered, (*sacred.Analysis).SacredTechnique),
		CommonFlavourProfiles:   recentDistinct(ordered, (*sacred.Analysis).SacredFlavourProfile),
		TypicalHeroIngredients:  recentDistinct(ordered, (*sacred.Analysis).HeroIngredient),
		CommonlyRemoved:         []RemovedIngredientStat{},
		CommonSubstitutions:     []Substitution{},
		CommonSideTasks:         []SideTaskStat{},
		RecipeCount:             total,
		AvgQualityScore:         math.Round(qualitySum/float64(total)*100) / 100,
		LastLearnedAt:           learnedAt.UTC(),
	}

	for _, p := range sacredTally.promote(SacredIngredientThreshold, total) {
		kb.CommonSacredIngredients = append(kb.CommonSacredIngredients, SacredIngredientStat{
			Ingredient: p.name,
			Frequency:  p.frequency,
			Count:      p.count,
			Reason:     p.extra,
		})
	}
	for _, p := range removedTally.promote(CommonlyRemovedThreshold, total) {
		kb.CommonlyRemoved = append(kb.CommonlyRemoved, RemovedIngredientStat{
			Ingredient: p.name,
			Frequency:  p.frequency,
			Count:      p.count,
		})
	}
	for _, p := range sideTaskTally.promote(SideTaskThreshold, total) {
		kb.CommonSideTasks = append(kb.CommonSideTasks, SideTaskStat{
			Task:      p.name,
			Frequency: p.frequency,
			Count:     p.count,
		})
	}
	kb.CommonSubstitutions = append(kb.CommonSubstitutions, substitutions...)

	return kb, nil
}

// recentDistinct walks analyses newest first and keeps up to TopDistinct
// distinct non-blank values
func recentDistinct(ordered []*sacred.Analysis, field func(*sacred.Analysis) string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for i := len(ordered) - 1; i >= 0 && len(out) < TopDistinct; i-- {
		value := strings.TrimSpace(field(ordered[i]))
		key := normalize(value)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, value)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
