// Package output renders waypoint-cli results as tables, JSON or YAML.
//
// Values that implement Tabular choose their own columns; anything else is
// printed as YAML when a table is requested.
package output
