// Package dedupe provides a time-bounded cache of processed message IDs so
// webhook redeliveries are acknowledged without being routed twice.
package dedupe
