// Package domain holds the core model types and interfaces of the
// pizzeria service: poll tallies, restaurant hours and status inputs,
// and the storage/transport contracts the rest of the application is
// built against.
package domain
