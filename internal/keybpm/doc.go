// Package keybpm estimates musical key and tempo from mono PCM.
//
// The engine is synchronous and never fails loudly: any problem with the
// input or the engine itself yields the sentinel Result ("?", "?", 0).
package keybpm
