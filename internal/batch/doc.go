// Package batch runs a file set through the analysis pipeline in fixed-size
// groups. A batch starts only after every record of the previous batch has
// reached a terminal state, which bounds how many decoded buffers are alive
// at once.
package batch
