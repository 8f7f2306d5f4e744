// Package config provides configuration structures and utilities for relcrawl.
// It defines the relevance rules, crawl loop tuning, fetch session settings,
// storage backend selection and seed location, and loads them from a YAML file.
package config
