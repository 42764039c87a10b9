// Package config holds the options of a mirror run and the optional
// .sitemirror YAML file with per-site request settings and follow policy.
package config
