package imaging

import (
	"strings"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/imaging"
)

// InlinePlaceholder is the embedded image returned when nothing else loads.
// It is never checkd.
const InlinePlaceholder = "data:image/svg+xml;charset=utf-8," +
	"%3Csvg%20xmlns%3D%22http%3A%2F%2Fwww.w3.org%2F2000%2Fsvg%22%20width%3D%22400%22%20height%3D%22400%22%20viewBox%3D%220%200%20400%20400%22%3E" +
	"%3Crect%20width%3D%22400%22%20height%3D%22400%22%20fill%3D%22%23f3f4f6%22%2F%3E" +
	"%3Cpath%20d%3D%22M140%20250l45-60%2035%2045%2025-30%2055%2045H140z%22%20fill%3D%22%239ca3af%22%2F%3E" +
	"%3Ccircle%20cx%3D%22170%22%20cy%3D%22160%22%20r%3D%2218%22%20fill%3D%22%239ca3af%22%2F%3E" +
	"%3Ctext%20x%3D%22200%22%20y%3D%22310%22%20font-family%3D%22sans-serif%22%20font-size%3D%2218%22%20fill%3D%22%236b7280%22%20text-anchor%3D%22middle%22%3EImage%20unavailable%3C%2Ftext%3E" +
	"%3C%2Fsvg%3E"

// placeholderOrder is the order placeholders are tried after the requested one
var placeholderOrder = []imaging.FallbackCategory{
	imaging.FallbackProduct,
	imaging.FallbackElectronics,
	imaging.FallbackComponents,
	imaging.FallbackDefault,
}

// defaultPlaceholderFiles maps each category to its file under the placeholder base
var defaultPlaceholderFiles = map[imaging.FallbackCategory]string{
	imaging.FallbackProduct:     "placeholder-product.svg",
	imaging.FallbackElectronics: "placeholder-electronics.svg",
	imaging.FallbackComponents:  "placeholder-components.svg",
	imaging.FallbackDefault:     "placeholder.svg",
}

// Placeholders lists the hosted placeholder images
type Placeholders struct {
	urls map[imaging.FallbackCategory]string
}

// NewPlaceholders builds the placeholder set under baseURL. An empty base
// leaves only the inline placeholder.
func NewPlaceholders(baseURL string) Placeholders {
	p := Placeholders{urls: make(map[imaging.FallbackCategory]string, len(defaultPlaceholderFiles))}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return p
	}
	for cat, file := range defaultPlaceholderFiles {
		p.urls[cat] = baseURL + "/" + file
	}
	return p
}

// For returns the placeholder URLs to try for category: its own first, then
// the rest in the standard order
func (p Placeholders) For(category imaging.FallbackCategory) []string {
	out := make([]string, 0, len(p.urls))
	if u, ok := p.urls[category]; ok {
		out = append(out, u)
	}
	for _, cat := range placeholderOrder {
		if cat == category {
			continue
		}
		if u, ok := p.urls[cat]; ok {
			out = append(out, u)
		}
	}
	return out
}
