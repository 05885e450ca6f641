// Package suppression maintains the blocked-recipient list consulted before
// every send. Entries are global (hard bounces, complaints) or scoped to a
// tenant (soft bounces, unsubscribes, manual blocks).
package suppression
