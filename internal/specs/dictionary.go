package specs

import (
	"regexp"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/internal/storage"
)

// Pattern is one textual cue for a spec: a whole-word keyword or phrase, or
// a small regular expression run against the lowercased text.
type Pattern struct {
	Keyword string
	Regex   *regexp.Regexp
}

// Spec is a named specification and the cues that mention it.
type Spec struct {
	Name     string
	Patterns []Pattern
}

// Dictionary maps each category to its ordered spec list.
type Dictionary map[storage.Category][]Spec

// PatternCount returns the number of patterns defined for category.
func (d Dictionary) PatternCount(category storage.Category) int {
	n := 0
	for _, s := range d[category] {
		n += len(s.Patterns)
	}
	return n
}

func kw(words ...string) []Pattern {
	out := make([]Pattern, len(words))
	for i, w := range words {
		out[i] = Pattern{Keyword: w}
	}
	return out
}

func re(expr string) Pattern {
	return Pattern{Regex: regexp.MustCompile(expr)}
}

func spec(name string, patterns ...[]Pattern) Spec {
	s := Spec{Name: name}
	for _, p := range patterns {
		s.Patterns = append(s.Patterns, p...)
	}
	return s
}

func one(p Pattern) []Pattern { return []Pattern{p} }

// DefaultDictionary returns the storefront spec dictionaries.
func DefaultDictionary() Dictionary {
	return Dictionary{
		storage.CategoryLaptops: {
			spec("processor", kw("intel", "core i5", "core i7", "core i9", "ryzen", "m1", "m2", "m3", "processor", "cpu")),
			spec("graphics", kw("rtx", "gtx", "gpu", "graphics", "nvidia", "radeon")),
			spec("ram", one(re(`\d+\s*gb\s*(ram|memory)`)), kw("ram")),
			spec("storage", kw("ssd", "nvme"), one(re(`\d+\s*(gb|tb)\s*ssd`))),
			spec("display", one(re(`\d+(\.\d+)?\s*(inch|")`)), one(re(`\d+\s*hz`)), kw("display", "screen")),
			spec("battery", kw("battery", "battery life"), one(re(`\d+\s*(hours|hrs)`))),
			spec("weight", kw("lightweight", "thin", "portable"), one(re(`\d+(\.\d+)?\s*kg`))),
			spec("gaming", kw("gaming")),
			spec("keyboard", kw("backlit", "keyboard")),
		},
		storage.CategorySmartphones: {
			spec("camera", kw("camera", "megapixel", "telephoto", "selfie"), one(re(`\d+\s*mp\b`))),
			spec("battery", kw("battery", "fast charging", "charging"), one(re(`\d+\s*mah`))),
			spec("display", kw("amoled", "oled", "display"), one(re(`\d+\s*hz`))),
			spec("processor", kw("snapdragon", "dimensity", "exynos", "bionic", "tensor", "processor")),
			spec("storage", kw("storage"), one(re(`\d+\s*gb`))),
			spec("connectivity", kw("5g", "nfc", "esim")),
			spec("gaming", kw("gaming")),
		},
		storage.CategorySmartTVs: {
			spec("size", one(re(`\d+\s*(inch|")`)), kw("screen size")),
			spec("panel", kw("oled", "qled", "led", "mini led", "neo qled")),
			spec("resolution", kw("4k", "8k", "uhd", "full hd", "1080p")),
			spec("refresh_rate", one(re(`\d+\s*hz`)), kw("refresh rate")),
			spec("smart_platform", kw("android tv", "google tv", "webos", "tizen", "smart tv")),
			spec("picture_audio", kw("dolby atmos", "dolby vision", "hdr", "soundbar")),
			spec("gaming", kw("gaming", "vrr", "allm", "hdmi 2.1")),
		},
		storage.CategoryWearables: {
			spec("health", kw("heart rate", "spo2", "ecg", "blood oxygen", "sleep tracking")),
			spec("fitness", kw("gps", "steps", "workout", "fitness")),
			spec("battery", kw("battery"), one(re(`\d+\s*days`))),
			spec("display", kw("amoled", "always on", "display")),
			spec("water_resistance", kw("water resistant", "waterproof", "ip68"), one(re(`\d+\s*atm`))),
			spec("smart_features", kw("notifications", "calls", "lte")),
		},
		storage.CategoryAccessories: {
			spec("audio", kw("anc", "noise cancelling", "noise cancellation", "earbuds", "headphones", "bluetooth")),
			spec("charging", kw("charger", "power bank", "usb-c", "wireless charging"), one(re(`\d+\s*w\b`))),
			spec("protection", kw("case", "cover", "screen protector", "tempered glass")),
			spec("input", kw("mouse", "keyboard", "wireless")),
			spec("storage", kw("hard drive", "pen drive", "memory card", "ssd")),
		},
	}
}
