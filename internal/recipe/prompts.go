package recipe

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/phrazzld/recipe-queue/internal/task"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.MarshalIndent(v, "", "  ")
		return string(b), err
	},
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}).ParseFS(promptFS, "prompts/*.tmpl"))

// render executes the named prompt template.
func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := prompts.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

var complexityCriteria = map[task.Complexity]string{
	task.ComplexityEasy: `EASY COMPLEXITY CRITERIA:
- Common ingredients available in most grocery stores
- Basic cooking techniques (saute, boil, bake, grill)
- 8-10 ingredients maximum
- Under 45 minutes total time
- Basic kitchen equipment only`,
	task.ComplexityMedium: `MEDIUM COMPLEXITY CRITERIA:
- Mix of common and some specialty ingredients
- Moderate techniques (braising, sauce-making, roasting)
- 10-15 ingredients
- 45-90 minutes total time
- Multi-step processes but organized`,
	task.ComplexityHigh: `HIGH COMPLEXITY CRITERIA:
- Premium or specialty ingredients
- Advanced techniques (confit, emulsification, sous vide)
- 15+ ingredients for complex flavors
- 90+ minutes or multi-day preparation
- Restaurant-quality presentation focus`,
}

func criteriaFor(c task.Complexity) string {
	if s, ok := complexityCriteria[c]; ok {
		return s
	}
	return complexityCriteria[task.ComplexityMedium]
}
