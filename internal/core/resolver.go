package core

// resolver.go classifies the incoming columns of a source file against the
// header catalog. Resolution is read-only and deterministic: resolving the
// same input twice against an unchanged catalog yields the same result.

import "context"

// Resolve classifies incoming column names. Each name is normalized and
// checked against the ignored set first, then the alias lookup; anything
// left is unrecognized. Two incoming names normalizing to the same alias
// both resolve to the same canonical header, since the result is keyed by
// incoming name. Missing-required headers are computed afterwards.
func (c *Catalog) Resolve(incoming []string) ResolutionResult {
	result := ResolutionResult{
		Resolved: make(map[string]string, len(incoming)),
	}

	matched := make(map[string]bool, len(c.Headers))
	for _, name := range incoming {
		key := NormalizeHeader(name)
		if _, ok := c.ignored[key]; ok {
			result.Ignored = append(result.Ignored, name)
			continue
		}
		if i, ok := c.lookup[key]; ok {
			canonical := c.Headers[i].Name
			result.Resolved[name] = canonical
			matched[canonical] = true
			continue
		}
		result.Unrecognized = append(result.Unrecognized, name)
	}

	for _, h := range c.Headers {
		if h.Required && !matched[h.Name] {
			result.MissingRequired = append(result.MissingRequired, h.Name)
		}
	}
	return result
}

// ResolveColumns loads the catalog for a scope and resolves incoming
// column names against it in one call.
func (s *Service) ResolveColumns(ctx context.Context, subPortfolioID int64, cycle LoadCycle, incoming []string) (ResolutionResult, error) {
	cat, err := s.LoadCatalog(ctx, subPortfolioID, cycle)
	if err != nil {
		return ResolutionResult{}, err
	}

	result := cat.Resolve(incoming)
	s.logger.Info("columns resolved",
		"sub_portfolio", subPortfolioID,
		"cycle", cycle,
		"incoming", len(incoming),
		"resolved", len(result.Resolved),
		"unrecognized", len(result.Unrecognized),
		"ignored", len(result.Ignored),
		"missing_required", len(result.MissingRequired),
	)
	return result, nil
}

// RemapRow converts a raw row keyed by incoming column names into a row
// keyed by canonical header names, using a resolution result. Unresolved
// columns are dropped.
func RemapRow(raw map[string]any, resolution ResolutionResult) RowMap {
	out := make(RowMap, len(raw))
	for col, value := range raw {
		if canonical, ok := resolution.Resolved[col]; ok {
			out[canonical] = value
		}
	}
	return out
}
