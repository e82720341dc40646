// Package persistence stores station state that outlives a single run: the
// access point the station last connected to and lifetime counters.
//
// State is written as indented JSON. The file is only informational; the
// agent always starts by scanning.
package persistence
