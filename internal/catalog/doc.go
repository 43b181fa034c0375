// Package catalog enumerates and persists the batch's work units.
//
// A catalog holds every ordered triple of distinct clips together with a done
// flag. It is rebuilt on a fresh batch and reloaded unchanged after a crash,
// and it is saved after every completed unit so progress is never lost.
package catalog
