package gitrepo

import (
	"fmt"
	"regexp"
	"strings"
)

// ConfigSection reads all keys of a configuration section, optionally scoped
// by subsection. The returned map is empty (not nil) when the section exists
// without values, nil when it is absent entirely.
func (r *Repository) ConfigSection(section, subsection string) map[string]string {
	prefix := section
	if subsection != "" {
		prefix = section + "." + subsection
	}
	out, err := r.run("config", "--get-regexp", "^"+regexpQuote(prefix)+"\\.")
	if err != nil {
		return nil
	}
	values := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, _ := strings.Cut(line, " ")
		key := strings.TrimPrefix(name, prefix+".")
		if key == name {
			continue
		}
		values[key] = value
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// ConfigSubsections lists the subsection names present under a section, in
// the order git reports them.
func (r *Repository) ConfigSubsections(section string) []string {
	out, err := r.run("config", "--get-regexp", "^"+regexpQuote(section)+"\\.")
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, _, _ := strings.Cut(line, " ")
		rest := strings.TrimPrefix(name, section+".")
		if rest == name {
			continue
		}
		// Subsection names may themselves contain dots; the key never does.
		i := strings.LastIndex(rest, ".")
		if i <= 0 {
			continue
		}
		sub := rest[:i]
		if !seen[sub] {
			seen[sub] = true
			names = append(names, sub)
		}
	}
	return names
}

// ConfigValue reads a single configuration value.
func (r *Repository) ConfigValue(section, subsection, key string) (string, bool) {
	name := configName(section, subsection, key)
	out, err := r.run("config", "--get", name)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(out), true
}

// ConfigBool reads a boolean configuration value; absent keys are false.
func (r *Repository) ConfigBool(section, subsection, key string) bool {
	value, ok := r.ConfigValue(section, subsection, key)
	return ok && value == "true"
}

// SetConfig writes option-value pairs under a section, optionally scoped by
// subsection. Booleans must already be rendered as "true"/"false".
func (r *Repository) SetConfig(section, subsection string, values map[string]string) error {
	for key, value := range values {
		name := configName(section, subsection, key)
		if _, err := r.run("config", name, value); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

// UnsetConfigSection removes an entire configuration section.
func (r *Repository) UnsetConfigSection(section, subsection string) error {
	name := section
	if subsection != "" {
		name = fmt.Sprintf("%s.%s", section, subsection)
	}
	_, err := r.run("config", "--remove-section", name)
	return err
}

func configName(section, subsection, key string) string {
	if subsection != "" {
		return fmt.Sprintf("%s.%s.%s", section, subsection, key)
	}
	return fmt.Sprintf("%s.%s", section, key)
}

// regexpQuote escapes everything git would otherwise treat as regexp syntax
// in --get-regexp patterns. Branch names may carry +, *, brackets, and
// parentheses.
func regexpQuote(s string) string {
	return regexp.QuoteMeta(s)
}
