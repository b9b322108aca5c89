package policy

import (
	"fmt"
	"strings"
)

// RenderTemplate substitutes {{field.path}} placeholders in an APPLY action's
// template body with values resolved from ctx, matching the {{var}}
// substitution convention used elsewhere in this codebase's configuration
// templating.
func RenderTemplate(binding *TemplateBinding, ctx *EvaluationContext) (string, error) {
	result := binding.Template
	for _, ref := range extractFieldRefs(result) {
		val, err := ctx.Resolve(FieldRef{Path: ref})
		if err != nil && !IsMissing(err) {
			return "", err
		}
		placeholder := "{{" + strings.Join(ref, ".") + "}}"
		result = strings.ReplaceAll(result, placeholder, fmt.Sprintf("%v", val))
	}
	return result, nil
}

func extractFieldRefs(template string) [][]string {
	var refs [][]string
	for {
		start := strings.Index(template, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(template[start:], "}}")
		if end == -1 {
			break
		}
		inner := strings.TrimSpace(template[start+2 : start+end])
		if inner != "" {
			refs = append(refs, strings.Split(inner, "."))
		}
		template = template[start+end+2:]
	}
	return refs
}
