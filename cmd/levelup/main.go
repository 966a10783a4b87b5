// Package main is the single-binary entrypoint for LevelUp.
// LevelUp turns learning activity into XP, levels, streaks and achievements.
package main

import "github.com/levelup-learning/levelup/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
