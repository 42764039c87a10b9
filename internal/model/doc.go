// Package model defines the data structures shared by the crawler, the
// crawl journal and the report writers.
//
// This package contains the following main types:
//   - ResourceKind: Classification of a mirrored file by extension
//   - Outcome: What happened to a single URL during a crawl
//   - Resource: The record of one processed URL
//   - Summary: The aggregated result of a whole mirror run
//
// The types live in their own package so that crawler, database and report
// can all depend on them without importing each other. They are serializable
// to JSON for report output and journal storage.
package model
