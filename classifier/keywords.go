package classifier

import (
	"strings"

	"github.com/vertexsales/salesbot/types"
)

// contactKeywords trigger CONTACT regardless of other matches: a user
// asking to be contacted always wins over a product mention in the same
// message ("call me about the X200").
var contactKeywords = []string{
	"call me", "contact me", "перезвоните", "свяжитесь", "позвоните",
	"whatsapp me", "email me", "talk to a manager", "talk to sales",
}

var productKeywords = []string{
	"price", "cost", "article", "sku", "in stock", "available",
	"цена", "стоимость", "артикул", "наличи",
}

var serviceKeywords = []string{
	"service", "warranty", "installation", "delivery", "repair",
	"услуга", "гарантия", "установка", "доставка", "ремонт",
}

var companyInfoKeywords = []string{
	"about you", "about your company", "who are you", "your company",
	"о компании", "о вас", "кто вы",
}

// matchKeywords runs the deterministic keyword pre-pass. ok is false when
// no keyword list matches and the caller should fall through to the LLM.
func matchKeywords(text string) (types.Intent, bool) {
	lower := strings.ToLower(text)

	if containsAny(lower, contactKeywords) {
		return types.IntentContact, true
	}
	if containsAny(lower, companyInfoKeywords) {
		return types.IntentCompanyInfo, true
	}
	if containsAny(lower, serviceKeywords) {
		return types.IntentService, true
	}
	if containsAny(lower, productKeywords) {
		return types.IntentProduct, true
	}
	return "", false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
