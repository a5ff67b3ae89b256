package config

const (
	// MaxProfileNameLength is the maximum length for profile names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxProfileNameLength = 255

	// MaxSessionNameLength is the maximum length for session names.
	// Same bound as profile names for consistency.
	MaxSessionNameLength = 255

	// MaxContextNameLength is the maximum length for context data names.
	// Slightly wider than the other names: imported quotes carry their
	// source line as the name.
	MaxContextNameLength = 300

	// MaxSystemMessageNameLength is the maximum length for system message
	// names.
	MaxSystemMessageNameLength = 255

	// MaxSettingNameLength is the maximum length for setting keys.
	MaxSettingNameLength = 100

	// MaxFlagValueLength is the maximum length for flag values. Flags are
	// one-line directives, not documents.
	MaxFlagValueLength = 500

	// MaxInputLength is the maximum length for a turn input. Guards the
	// pipeline against runaway request bodies before token counting.
	MaxInputLength = 100_000
)
