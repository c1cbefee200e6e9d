package automa

import "strconv"

// mapArgs implements the argument-mapping rules of spec.md §4.3 for a
// worker being kicked off by its declared predecessor set. last is the key
// of the worker that most recently finished and triggered this kickoff
// (only meaningful for Unpack, which requires a single dependency).
func mapArgs(key string, rule ArgsMappingRule, deps []string, last string, outputs map[string]any) ([]any, map[string]any, error) {
	switch rule {
	case AsIs:
		args := make([]any, 0, len(deps))
		for _, d := range deps {
			args = append(args, outputs[d])
		}
		return args, map[string]any{}, nil

	case Unpack:
		if len(deps) != 1 {
			return nil, nil, &ArgsMappingError{
				WorkerKey: key, Rule: rule,
				Message: "UNPACK requires exactly one dependency, got " + strconv.Itoa(len(deps)),
			}
		}
		v := outputs[last]
		switch seq := v.(type) {
		case []any:
			return append([]any{}, seq...), map[string]any{}, nil
		case map[string]any:
			kw := make(map[string]any, len(seq))
			for k, vv := range seq {
				kw[k] = vv
			}
			return []any{}, kw, nil
		default:
			return nil, nil, &ArgsMappingError{
				WorkerKey: key, Rule: rule,
				Message: "UNPACK value is neither a sequence ([]any) nor a mapping (map[string]any)",
			}
		}

	case Merge:
		list := make([]any, 0, len(deps))
		for _, d := range deps {
			list = append(list, outputs[d])
		}
		return []any{list}, map[string]any{}, nil

	case Suppressed:
		return []any{}, map[string]any{}, nil

	default:
		return nil, nil, &ArgsMappingError{
			WorkerKey: key, Rule: rule,
			Message: "unknown args mapping rule",
		}
	}
}

// propagateInputKwargs merges any top-level input keyword not already
// present into kwargs (spec.md §4.3 "input-kwargs propagation"). It does
// not filter by parameter kinds; the caller applies safelyMapArgs
// afterwards.
func propagateInputKwargs(key string, kwargs map[string]any, topLevelKwargs map[string]any) map[string]any {
	merged := make(map[string]any, len(kwargs)+len(topLevelKwargs))
	for k, v := range kwargs {
		merged[k] = v
	}
	for k, v := range topLevelKwargs {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return merged
}

// safelyMapArgs drops kwargs the target worker cannot accept (unless it
// declares VarKeyword) and rejects positional/required mismatches,
// returning a precise ArgsMappingError rather than letting the call panic
// or silently misbehave.
func safelyMapArgs(key string, kinds ParameterKinds, args []any, kwargs map[string]any) ([]any, map[string]any, error) {
	// Positional arity check: only enforced when the worker does not
	// accept var-positional args and declares a closed positional table.
	maxPositional := len(kinds.PositionalOnly) + len(kinds.PositionalOrKeyword)
	if !kinds.VarPositional && len(kinds.PositionalOnly) == 0 && len(kinds.PositionalOrKeyword) == 0 && !kinds.VarKeyword && len(kinds.KeywordOnly) == 0 {
		// Zero-declared-parameter table is treated as "accepts anything"
		// (matches AnyParameterKinds / CallableWorker) to avoid forcing
		// every adapter to enumerate parameters it parses itself.
		return args, kwargs, nil
	}
	if !kinds.VarPositional && len(args) > maxPositional {
		return nil, nil, &ArgsMappingError{
			WorkerKey: key,
			Message:   "too many positional arguments for worker " + key,
		}
	}

	if kinds.VarKeyword {
		return args, kwargs, nil
	}

	accepted := make(map[string]bool, len(kinds.PositionalOrKeyword)+len(kinds.KeywordOnly))
	for _, p := range kinds.PositionalOrKeyword {
		accepted[p.Name] = true
	}
	for _, p := range kinds.KeywordOnly {
		accepted[p.Name] = true
	}

	filtered := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		if accepted[k] {
			filtered[k] = v
		}
	}

	// Required keyword-only parameters must be present after filtering.
	for _, p := range kinds.KeywordOnly {
		if p.HasDflt {
			continue
		}
		if _, ok := filtered[p.Name]; !ok {
			return nil, nil, &ArgsMappingError{
				WorkerKey: key,
				Message:   "missing required keyword argument " + p.Name,
			}
		}
	}

	return args, filtered, nil
}
