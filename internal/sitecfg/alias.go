package sitecfg // package sitecfg implements the site configuration value model

import "strings"

// legacyAliases maps old single-segment config keys to their canonical
// dotted paths. The table is static: early versions of the site stored
// everything under flat keys and clients may still send them.
var legacyAliases = map[string]string{
	"characterName":  "character.name",
	"characterBio":   "character.bio",
	"characterImage": "character.imageUrl",
	"isLive":         "stream.isLive",
	"streamTitle":    "stream.title",
	"streamSchedule": "stream.schedule",
	"heroTitle":      "content.heroTitle",
	"heroSubtitle":   "content.heroSubtitle",
	"merchUrl":       "merch.storeUrl",
	"merchEnabled":   "merch.enabled",
	"galleryEnabled": "gallery.enabled",
	"twitchUrl":      "social.twitch",
	"youtubeUrl":     "social.youtube",
	"twitterUrl":     "social.twitter",
	"donationUrl":    "social.donation",
	"themeColor":     "theme.primaryColor",
}

// Normalize resolves a supplied key to its canonical dotted path. Keys that
// already contain a dot are returned unchanged; flat keys are looked up in
// the legacy alias table and unknown flat keys pass through as-is.
func Normalize(key string) string {
	if strings.Contains(key, ".") {
		return key
	}
	if canonical, ok := legacyAliases[key]; ok {
		return canonical
	}
	return key
}
