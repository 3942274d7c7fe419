package model

// DefaultCategory is used when a task arrives without a category.
const DefaultCategory = "general"

// CategoryInfo is the display entry for a task category.
type CategoryInfo struct {
	Key   string
	Label string
	Icon  string
	// Known is false for the fallback entry of an unrecognized key.
	Known bool
}

// Categories is the fixed catalogue, in display order.
var Categories = []CategoryInfo{
	{Key: "general", Label: "Общие", Icon: "📋", Known: true},
	{Key: "work", Label: "Работа", Icon: "💼", Known: true},
	{Key: "personal", Label: "Личное", Icon: "👤", Known: true},
	{Key: "shopping", Label: "Покупки", Icon: "🛒", Known: true},
	{Key: "health", Label: "Здоровье", Icon: "🏥", Known: true},
	{Key: "study", Label: "Учеба", Icon: "📚", Known: true},
	{Key: "finance", Label: "Финансы", Icon: "💰", Known: true},
	{Key: "home", Label: "Дом", Icon: "🏠", Known: true},
	{Key: "travel", Label: "Путешествия", Icon: "✈️", Known: true},
	{Key: "hobby", Label: "Хобби", Icon: "🎨", Known: true},
	{Key: "family", Label: "Семья", Icon: "👨‍👩‍👧‍👦", Known: true},
	{Key: "sport", Label: "Спорт", Icon: "⚽", Known: true},
	{Key: "other", Label: "Другое", Icon: "🔧", Known: true},
}

var categoryIndex = func() map[string]CategoryInfo {
	m := make(map[string]CategoryInfo, len(Categories))
	for _, c := range Categories {
		m[c.Key] = c
	}
	return m
}()

// CategoryKeys returns the catalogue keys in display order.
func CategoryKeys() []string {
	keys := make([]string, len(Categories))
	for i, c := range Categories {
		keys[i] = c.Key
	}
	return keys
}

// IsKnownCategory reports whether key is in the catalogue.
func IsKnownCategory(key string) bool {
	_, ok := categoryIndex[key]
	return ok
}

// CategoryInfoFor returns the catalogue entry for key. Unknown keys degrade
// to a fallback entry labelled with the key itself.
func CategoryInfoFor(key string) CategoryInfo {
	if info, ok := categoryIndex[key]; ok {
		return info
	}
	label := key
	if label == "" {
		label = "Неизвестно"
	}
	return CategoryInfo{Key: key, Label: label, Icon: "❓"}
}
