// Package store provides the resource store: the ordered collection of
// registered resources together with their latest observations.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [ResourceStore]: Implementation backed by a durable key-value slot
//   - [Entry]: A resource paired with its current [Observation]
//
// Only resource configuration ({id, name, url}) is persisted, as one JSON
// document in a single key-value slot rewritten after every add or remove.
// Observations live in memory and start as pending after a restart.
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the system).
package store
