package llm

// DedupSources drops citations without a uri or title and collapses the rest
// by uri. The first occurrence of each uri wins, including its title, and
// first-seen order is kept.
func DedupSources(candidates []Source) []Source {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Source, 0, len(candidates))
	for _, c := range candidates {
		if c.URI == "" || c.Title == "" {
			continue
		}
		if _, ok := seen[c.URI]; ok {
			continue
		}
		seen[c.URI] = struct{}{}
		out = append(out, c)
	}
	return out
}
