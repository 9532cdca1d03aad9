package config

import "strings"

// FormDelim separates the parts of a form field name. Section names may
// contain spaces (encoded by FormSection), keys never contain the delimiter.
const FormDelim = "||"

// formPrefix marks form fields carrying config values
const formPrefix = "v" + FormDelim

// FieldName returns the form input name for a (section, key) pair:
// "v" + delim + encoded section + delim + raw key.
func FieldName(section, key string) string {
	return formPrefix + FormSection(section) + FormDelim + key
}

// DecodeFieldName reverses FieldName. Returns ok=false for fields that
// don't follow the scheme.
func DecodeFieldName(field string) (section, key string, ok bool) {
	if !strings.HasPrefix(field, formPrefix) {
		return "", "", false
	}
	rest := field[len(formPrefix):]
	encSection, key, found := strings.Cut(rest, FormDelim)
	if !found || encSection == "" || key == "" {
		return "", "", false
	}
	return SectionFromForm(encSection), key, true
}

// Build inverts a submitted form payload into configuration file text.
// Every registry section and key is emitted in registry order; a submitted
// value overrides the default (trimmed), a key not submitted is written
// empty. Unknown fields are ignored.
func Build(form map[string]string) string {
	values := map[string]map[string]string{}
	for field, value := range form {
		section, key, ok := DecodeFieldName(field)
		if !ok {
			continue
		}
		if _, exists := values[section]; !exists {
			values[section] = map[string]string{}
		}
		values[section][key] = strings.TrimSpace(value)
	}

	var b strings.Builder
	b.WriteString("# Config.ini File\n\n")
	for _, sect := range Registry() {
		b.WriteString("[" + sect.Name + "]\n")
		for _, opt := range sect.Options {
			b.WriteString(opt.Key + " = " + values[sect.Name][opt.Key] + "\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
