// Package config loads avatarscript settings.
//
// Settings are resolved in layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← AVATARSCRIPT_* (highest priority)
//	├─────────────────────────────┤
//	│  2. Config File             │  ← avatarscript.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// A file only overrides the keys it sets. Environment variable names are the
// upper-cased TOML path joined by underscores, for example
// AVATARSCRIPT_LIMITS_TICK or AVATARSCRIPT_LOGGING_LEVEL.
package config
