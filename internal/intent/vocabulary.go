package intent

import "github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"

// CategoryPhrase maps a multi-word phrase to a category. Phrases are checked
// before single keywords so that "phone case" lands in Accessories.
type CategoryPhrase struct {
	Phrase   string
	Category storage.Category
}

// CategoryKeywords lists the single words that suggest a category.
type CategoryKeywords struct {
	Category storage.Category
	Words    []string
}

// UseCase is a named shopping purpose and the words that signal it.
type UseCase struct {
	Name string
	Cues []string
}

// Rule is one row of the fallback rule table.
type Rule struct {
	Kind       Kind
	Keywords   []string
	Confidence float64
}

// Vocabulary is the immutable word data the detector and router work from.
// All entries are lowercase.
type Vocabulary struct {
	RecommendationCues   []string
	StrongComparisonCues []string
	WeakComparisonCues   []string
	BulkCues             []string
	CategoryPhrases      []CategoryPhrase
	CategoryKeywords     []CategoryKeywords
	PhoneCues            []string
	ProductLines         []string
	Brands               []string
	UseCases             []UseCase
	CommerceVerbs        []string
	ProductNouns         []string
	StopWords            []string
	Rules                []Rule
}

// DefaultVocabulary returns the storefront vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		RecommendationCues:   []string{"best", "top", "recommend", "recommended", "recommendation", "recommendations", "suggest", "suggestion", "suggestions"},
		StrongComparisonCues: []string{"compare", "comparison", "vs", "versus", "between"},
		WeakComparisonCues:   []string{"which", "better", "difference"},
		BulkCues:             []string{"top", "best", "all", "cheapest", "popular", "highest rated", "most", "every"},
		CategoryPhrases: []CategoryPhrase{
			{"phone case", storage.CategoryAccessories},
			{"phone cover", storage.CategoryAccessories},
			{"laptop bag", storage.CategoryAccessories},
			{"laptop stand", storage.CategoryAccessories},
			{"screen protector", storage.CategoryAccessories},
			{"power bank", storage.CategoryAccessories},
			{"watch strap", storage.CategoryAccessories},
			{"wireless earbuds", storage.CategoryAccessories},
			{"tv mount", storage.CategoryAccessories},
			{"best phone", storage.CategorySmartphones},
			{"mobile phone", storage.CategorySmartphones},
			{"camera phone", storage.CategorySmartphones},
			{"gaming phone", storage.CategorySmartphones},
			{"gaming laptop", storage.CategoryLaptops},
			{"business laptop", storage.CategoryLaptops},
			{"smart tv", storage.CategorySmartTVs},
			{"android tv", storage.CategorySmartTVs},
			{"oled tv", storage.CategorySmartTVs},
			{"smart watch", storage.CategoryWearables},
			{"fitness band", storage.CategoryWearables},
			{"fitness tracker", storage.CategoryWearables},
		},
		CategoryKeywords: []CategoryKeywords{
			{storage.CategoryLaptops, []string{"laptop", "laptops", "notebook", "notebooks", "macbook", "ultrabook", "chromebook", "thinkpad", "zenbook", "xps"}},
			{storage.CategorySmartphones, []string{"phone", "phones", "smartphone", "smartphones", "mobile", "mobiles", "iphone", "android"}},
			{storage.CategorySmartTVs, []string{"tv", "tvs", "television", "televisions", "bravia"}},
			{storage.CategoryWearables, []string{"watch", "watches", "smartwatch", "smartwatches", "band", "tracker", "wearable", "wearables"}},
			{storage.CategoryAccessories, []string{"headphones", "headphone", "earbuds", "earphones", "charger", "cable", "case", "cover", "mouse", "keyboard", "speaker", "accessory", "accessories", "adapter"}},
		},
		PhoneCues:    []string{"phone", "phones", "smartphone", "smartphones", "mobile", "mobiles", "iphone"},
		ProductLines: []string{"iphone", "galaxy", "pixel", "oneplus", "macbook", "thinkpad", "zenbook", "xps", "chromebook", "bravia"},
		Brands: []string{
			"apple", "samsung", "google", "oneplus", "xiaomi", "redmi", "realme", "oppo", "vivo", "motorola", "nothing",
			"sony", "lg", "tcl", "hisense", "dell", "hp", "lenovo", "asus", "acer", "msi", "microsoft",
			"bose", "jbl", "sennheiser", "boat", "garmin", "fitbit", "amazfit", "anker", "logitech",
		},
		UseCases: []UseCase{
			{"gaming", []string{"gaming", "games", "gamer"}},
			{"programming", []string{"programming", "coding", "developer", "development"}},
			{"travel", []string{"travel", "traveling", "travelling", "commute"}},
			{"photography", []string{"photography", "photos", "photo", "vlogging"}},
			{"video editing", []string{"video editing", "editing", "content creation"}},
			{"office", []string{"office", "work", "business", "productivity"}},
			{"student", []string{"student", "students", "college", "school", "study"}},
			{"fitness", []string{"fitness", "running", "workout", "gym", "cycling"}},
			{"music", []string{"music", "listening", "bass"}},
			{"streaming", []string{"streaming", "movies", "netflix", "binge"}},
		},
		CommerceVerbs: []string{
			"buy", "purchase", "price", "cost", "costs", "stock", "available", "availability",
			"warranty", "specs", "specifications", "details", "deal", "discount", "offer", "delivery",
		},
		ProductNouns: []string{
			"laptop", "laptops", "notebook", "phone", "phones", "smartphone", "smartphones", "mobile",
			"tv", "tvs", "television", "watch", "smartwatch", "band", "headphones", "earbuds", "earphones",
			"charger", "cable", "case", "mouse", "keyboard", "speaker", "tablet", "camera",
			"product", "products", "device", "devices", "gadget", "gadgets", "item",
		},
		StopWords: []string{
			"a", "an", "the", "is", "are", "was", "be", "of", "for", "to", "in", "on", "at", "it", "its",
			"me", "my", "i", "you", "your", "we", "this", "that", "these", "those", "what", "whats", "s",
			"how", "which", "who", "should", "would", "could", "can", "do", "does", "get", "tell", "about",
			"please", "one", "ones", "two", "both", "them", "model", "models", "option", "options",
			"better", "difference", "compare", "comparison", "between", "vs", "versus", "good", "than",
			"show", "see", "find", "want", "need", "looking", "give", "list", "some", "any", "like",
			"with", "and", "or", "has", "have", "where", "when", "will", "did",
		},
		Rules: []Rule{
			{KindOrderSupport, []string{"return", "refund", "cancel", "exchange", "replace", "replacement", "damaged", "defective", "wrong item", "complaint", "missing item"}, 0.85},
			{KindOrderTracking, []string{"track", "tracking", "my order", "my orders", "where is my", "order status", "shipped", "shipment", "delivery status", "out for delivery", "arrive"}, 0.9},
			{KindUserAccount, []string{"my account", "my profile", "my details", "my address", "account", "profile", "login", "password", "email address"}, 0.8},
			{KindProductRecommendation, []string{"best", "recommend", "suggest", "top"}, 0.8},
			{KindProductSemantic, []string{"looking for", "show me", "search", "find", "need", "want", "options", "features"}, 0.7},
			{KindGeneral, []string{"hello", "hi", "hey", "thanks", "thank you", "help"}, 0.4},
		},
	}
}
