// Package prompt asks the user for replacement values.
//
// Prompts render to stderr so stdout stays clean for data. Callers check
// [Interactive] first; without a terminal on stdin there is nobody to ask.
package prompt
