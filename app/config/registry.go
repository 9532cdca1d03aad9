// Package config implements the migrator configuration schema engine: a
// fixed ordered registry of sections and keys, a tolerant parser for the
// persisted Config.ini, a merger producing the registry-ordered served
// view, and a builder inverting a submitted form back into file text.
package config

import "strings"

// Option is a single configuration key within a section
type Option struct {
	Key   string // case-sensitive, unique within its section
	Value string // may be empty
	Hint  string // help text shown next to the form input
}

// Section is a named ordered group of options. Order of sections and of
// options inside a section is registry declaration order.
type Section struct {
	Name    string
	Hint    string
	Options []Option
}

// legacy secret field names that don't match the naming rule
var legacySecretKeys = map[string]struct{}{
	"APPLEPWD": {},
}

// IsSensitive classifies a key as secret by its name: PASSWORD, API_KEY or
// SECRET anywhere in the name (case-insensitive), or an exact legacy match.
// Applied uniformly, including to keys not present in the registry.
func IsSensitive(key string) bool {
	k := strings.ToUpper(key)
	if strings.Contains(k, "PASSWORD") || strings.Contains(k, "API_KEY") || strings.Contains(k, "SECRET") {
		return true
	}
	_, ok := legacySecretKeys[k]
	return ok
}

// Registry returns the canonical schema with default values: every section
// and key the served view may contain, in their fixed order. Callers get a
// fresh copy and may mutate it freely.
func Registry() []Section {
	return []Section{
		{
			Name: "Google Takeout",
			Hint: "No configuration needed for this module for the time being.",
		},
		{
			Name: "Synology Photos",
			Hint: "Set the URL to your Synology server (IP or hostname). Use SYNOLOGY_USERNAME_n and SYNOLOGY_PASSWORD_n for each account (n = 1, 2, or 3).",
			Options: []Option{
				{Key: "SYNOLOGY_URL", Hint: "URL of your Synology server (e.g. http://192.168.1.11:5000) or your valid Synology hostname."},
				{Key: "SYNOLOGY_USERNAME_1", Hint: "Account 1: Your username for Synology Photos."},
				{Key: "SYNOLOGY_PASSWORD_1", Hint: "Account 1: Your password for Synology Photos."},
				{Key: "SYNOLOGY_USERNAME_2", Hint: "Account 2: Your username for Synology Photos."},
				{Key: "SYNOLOGY_PASSWORD_2", Hint: "Account 2: Your password for Synology Photos."},
				{Key: "SYNOLOGY_USERNAME_3", Hint: "Account 3: Your username for Synology Photos."},
				{Key: "SYNOLOGY_PASSWORD_3", Hint: "Account 3: Your password for Synology Photos."},
			},
		},
		{
			Name: "Immich Photos",
			Hint: "Set the Immich server URL and either API keys (Account Settings → API Keys) or username/password per account. ADMIN_API_KEY is required for some operations (e.g. remove orphan assets).",
			Options: []Option{
				{Key: "IMMICH_URL", Hint: "URL of your Immich server (e.g. http://192.168.1.11:2283)."},
				{Key: "IMMICH_API_KEY_ADMIN", Hint: "Admin API key from Immich (Account Settings → API Keys). Required for some operations."},
				{Key: "IMMICH_API_KEY_USER_1", Hint: "Account 1: User API key from Immich (Account Settings → API Keys)."},
				{Key: "IMMICH_USERNAME_1", Hint: "Account 1: Username (used if API key not provided)."},
				{Key: "IMMICH_PASSWORD_1", Hint: "Account 1: Password (used if API key not provided)."},
				{Key: "IMMICH_API_KEY_USER_2", Hint: "Account 2: User API key."},
				{Key: "IMMICH_USERNAME_2", Hint: "Account 2: Username."},
				{Key: "IMMICH_PASSWORD_2", Hint: "Account 2: Password."},
				{Key: "IMMICH_API_KEY_USER_3", Hint: "Account 3: User API key."},
				{Key: "IMMICH_USERNAME_3", Hint: "Account 3: Username."},
				{Key: "IMMICH_PASSWORD_3", Hint: "Account 3: Password."},
			},
		},
		{
			Name: "Apple Photos",
			Hint: "iCloud Apple Photos: use album = all for all albums; set to_directory for download path; date_from/date_to and asset_from/asset_to for date filters; max_photos to limit downloads; shared_library (e.g. PrimarySync) for library selection.",
			Options: []Option{
				{Key: "appleid", Hint: "Your Apple ID for iCloud."},
				{Key: "applepwd", Hint: "Your Apple ID password."},
				{Key: "album", Value: "all", Hint: "Album name to download, or 'all' for all albums."},
				{Key: "to_directory", Hint: "Directory path where photos will be downloaded (year/month/day structure will be created)."},
				{Key: "date_from", Hint: "Filter: photos added to library from this date."},
				{Key: "date_to", Hint: "Filter: photos added to library until this date."},
				{Key: "asset_from", Hint: "Filter: asset date from."},
				{Key: "asset_to", Hint: "Filter: asset date to."},
				{Key: "max_photos", Value: "10000", Hint: "Maximum number of photos to download (safety limit)."},
				{Key: "shared_library", Value: "PrimarySync", Hint: "Library identifier (e.g. PrimarySync for main library)."},
			},
		},
		{
			Name: "Google Photos",
			Hint: "No configuration needed for this module for the time being.",
		},
		{
			Name: "TimeZone",
			Hint: "Optional timezone for interpreting photo dates. Set it to the IANA timezone where most of your photos were taken (e.g. US/Central).",
			Options: []Option{
				{Key: "timezone", Value: "US/Central", Hint: "IANA timezone name (e.g. US/Central, Europe/London). Used when the tool interprets date/time from photos that have no timezone in metadata."},
			},
		},
	}
}

// FormSection returns the form-safe encoding of a section name, spaces
// replaced with underscores. Lossy for names already containing an
// underscore; no registry section name does.
func FormSection(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// SectionFromForm reverses FormSection
func SectionFromForm(encoded string) string {
	return strings.ReplaceAll(encoded, "_", " ")
}
