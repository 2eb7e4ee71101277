// Package configs provides the embedded configuration template for
// peregrine.
//
// The template is embedded at build time with //go:embed so it ships in
// every distribution, source builds included. `peregrine init` writes it
// to .peregrine.yaml at the workspace root when no project config exists
// yet; the file is mostly commented examples, so a fresh workspace runs
// on the defaults from internal/config.
//
// To change the template, edit project-config.example.yaml and rebuild.
package configs

import _ "embed"

// ProjectConfigTemplate is the starter .peregrine.yaml written by
// `peregrine init`. Keys mirror internal/config.Config; everything is
// optional and documented inline.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
