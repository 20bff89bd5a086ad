package match

// ruleAliases maps descriptive rule names used by some audit engines and
// reports to the engine rule ids the matcher and fixer key on.
var ruleAliases = map[string]string{
	"image-missing-text-alternative": "image-alt",
	"missing-alt-text":               "image-alt",
	"missing-form-label":             "label",
	"form-field-missing-label":       "label",
	"missing-main-landmark":          "landmark-one-main",
	"skipped-heading-level":          "heading-order",
	"insufficient-color-contrast":    "color-contrast",
	"empty-button":                   "button-name",
	"empty-link":                     "link-name",
	"content-outside-landmarks":      "region",
}

// CanonicalRule resolves a rule id alias. Unknown ids are returned as is.
func CanonicalRule(id string) string {
	if c, ok := ruleAliases[id]; ok {
		return c
	}
	return id
}
