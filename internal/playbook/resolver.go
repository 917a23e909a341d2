package playbook

import (
	"log/slog"
	"regexp"

	"orion-sentinel/internal/schema"
)

// templatePattern matches {{path}} tokens inside string parameter values.
// Paths are dot-separated identifiers, e.g. {{fields.ioc_value}}.
var templatePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+(?:\.[a-zA-Z0-9_]+)*)\s*\}\}`)

// ResolveAction substitutes event-derived values into an action's string
// parameters. Non-string parameter values pass through unchanged. An
// unresolvable path leaves the literal token in place so the failure is
// visible downstream instead of silently producing an empty value.
func ResolveAction(action Action, event *schema.Event) Action {
	if len(action.Parameters) == 0 {
		return action
	}

	tree := event.Tree()
	resolved := make(map[string]any, len(action.Parameters))
	for key, value := range action.Parameters {
		str, ok := value.(string)
		if !ok {
			resolved[key] = value
			continue
		}
		resolved[key] = resolveTemplate(str, tree, event.ID)
	}

	action.Parameters = resolved
	return action
}

func resolveTemplate(template string, tree map[string]any, eventID string) string {
	return templatePattern.ReplaceAllStringFunc(template, func(token string) string {
		path := templatePattern.FindStringSubmatch(token)[1]
		value, found := ResolvePath(tree, path)
		if !found {
			slog.Warn("unresolved template token",
				"token", token,
				"event_id", eventID)
			return token
		}
		return stringify(value)
	})
}
