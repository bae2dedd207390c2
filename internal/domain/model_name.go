package domain

import "strings"

// NormalizeModelName removes the gpt://folder_id/ prefix pattern from model names.
// For example: "gpt://b1g8t5pmnjifaov0paff/yandexgpt/rc" becomes "yandexgpt"
func NormalizeModelName(model string) string {
	normalizedModel := strings.TrimSpace(model)
	if idx := strings.Index(normalizedModel, "gpt://"); idx >= 0 {
		remainder := normalizedModel[idx+6:]
		if slashIdx := strings.Index(remainder, "/"); slashIdx >= 0 {
			normalizedModel = remainder[slashIdx+1:]
			if nextSlashIdx := strings.Index(normalizedModel, "/"); nextSlashIdx >= 0 {
				normalizedModel = normalizedModel[:nextSlashIdx]
			}
		}
	}
	return normalizedModel
}

// ProviderName derives a short provider label from a model name,
// e.g. "deepseek-chat" -> "deepseek", "openai/gpt-4o" -> "openai".
func ProviderName(model string) string {
	name := strings.ToLower(NormalizeModelName(model))
	if idx := strings.IndexAny(name, "/-:_."); idx > 0 {
		name = name[:idx]
	}
	if name == "" {
		return "llm"
	}
	return name
}
