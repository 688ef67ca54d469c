package project

import "strings"

// ClashThreshold is the title similarity above which two projects clash.
const ClashThreshold = 0.6

// TitleSimilarity is the Jaccard index of the lower-cased word sets of a
// and b. Empty titles never match.
func TitleSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// FindClash returns the most similar other project whose title clashes with
// title, if any.
func FindClash(id, title string, others []TitleRef) (TitleRef, float64, bool) {
	var best TitleRef
	bestScore := 0.0
	for _, o := range others {
		if o.ID == id {
			continue
		}
		if score := TitleSimilarity(title, o.Title); score > bestScore {
			best, bestScore = o, score
		}
	}
	return best, bestScore, bestScore > ClashThreshold
}

// TitleRef is the slice of a project needed for clash detection.
type TitleRef struct {
	ID    string
	Title string
}
