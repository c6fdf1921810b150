// Package tasktest provides scripted leaves, a recorder and fake time sources
// for exercising task trees tick by tick.
package tasktest
