package client

// Defaults returns the hardcoded baseline configuration. Server values are
// deep-merged over it so a key the server omits still renders sanely.
func Defaults() map[string]any {
	return map[string]any{
		"character": map[string]any{
			"name":     "Kitsune Hana",
			"bio":      "A fox spirit streaming from her mountain shrine.",
			"imageUrl": "/images/hana-portrait.png",
		},
		"stream": map[string]any{
			"isLive":   false,
			"title":    "",
			"schedule": []any{},
		},
		"content": map[string]any{
			"heroTitle":    "Welcome to the Fox Shrine",
			"heroSubtitle": "Offerings accepted, headpats negotiable",
		},
		"merch": map[string]any{
			"enabled":  false,
			"storeUrl": "",
		},
		"gallery": map[string]any{
			"enabled": true,
		},
		"social": map[string]any{
			"twitch":   "",
			"youtube":  "",
			"twitter":  "",
			"donation": "",
		},
		"theme": map[string]any{
			"primaryColor": "#d64545",
		},
	}
}
