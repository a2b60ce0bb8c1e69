// Package mute is a built-in plugin that hides statuses and notifications
// matching a YAML rule file. The file is watched and reloaded on change.
//
// Rule file format:
//
//	keywords: [spoiler, "#nsfw"]
//	accounts: [spammer@bad.example]
//	domains: [bad.example]
package mute
