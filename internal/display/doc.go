// Package display renders song records on the terminal.
package display
