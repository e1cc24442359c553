package schemas

import (
	"strings"
)

// ExtractJSON вырезает JSON-объект из сырого ответа модели: убирает
// markdown-ограждения (```json ... ```) и любой текст до первой '{' и после
// последней '}'. Модели регулярно оборачивают JSON в пояснения.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// FixJSON проверяет и исправляет потенциально некорректный JSON.
// В частности, решает проблему незакрытых скобок в конце ответа, когда
// модель обрывает вывод на лимите токенов.
func FixJSON(jsonStr string) string {
	if jsonStr == "" {
		return jsonStr
	}

	counts := map[rune]int{
		'{': 0,
		'}': 0,
		'[': 0,
		']': 0,
	}

	// Скобки внутри строковых литералов не считаем
	inString := false
	escaped := false

	for _, char := range jsonStr {
		if char == '"' && !escaped {
			inString = !inString
		}

		if !inString {
			if count, exists := counts[char]; exists {
				counts[char] = count + 1
			}
		}

		if char == '\\' && !escaped {
			escaped = true
		} else {
			escaped = false
		}
	}

	fixedJSON := jsonStr
	if imbalance := counts['['] - counts[']']; imbalance > 0 {
		fixedJSON += strings.Repeat("]", imbalance)
	}
	if imbalance := counts['{'] - counts['}']; imbalance > 0 {
		fixedJSON += strings.Repeat("}", imbalance)
	}

	return fixedJSON
}

// Sanitize объединяет ExtractJSON и FixJSON: стандартная подготовка сырого
// ответа модели перед json.Unmarshal.
func Sanitize(raw string) []byte {
	return []byte(FixJSON(ExtractJSON(raw)))
}
