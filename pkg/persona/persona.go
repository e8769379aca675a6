package persona

import (
	"embed"
	"fmt"
	"strings"
)

const (
	defaultPersonaName = "default"
	providerOpenCode   = "opencode"
)

//go:embed templates/*.md
var templatesFS embed.FS

// Resolve returns the system preamble sent with every completion.
//
// A configured override always wins, and an explicitly empty override
// disables the preamble. Without one, opencode gets nothing (its agent
// carries its own prompt) and every other provider gets the embedded default.
func Resolve(provider string, override *string) (string, error) {
	if override != nil {
		return strings.TrimSpace(*override), nil
	}

	name := defaultTemplateName(provider)
	if name == "" {
		return "", nil
	}

	return Template(name)
}

// Template loads an embedded persona by name.
func Template(name string) (string, error) {
	content, err := templatesFS.ReadFile(templatePath(name))
	if err != nil {
		return "", fmt.Errorf("load %s persona template: %w", name, err)
	}

	persona := strings.TrimSpace(string(content))
	if persona == "" {
		return "", fmt.Errorf("persona template %q is empty", name)
	}

	return persona, nil
}

func defaultTemplateName(provider string) string {
	if strings.EqualFold(strings.TrimSpace(provider), providerOpenCode) {
		return ""
	}

	return defaultPersonaName
}

func templatePath(name string) string {
	return "templates/" + strings.TrimSpace(name) + ".md"
}
